package debugger

type SymbolKind int

const (
	SYMBOL_UNKNOWN SymbolKind = iota
	SYMBOL_FUNCTION
	SYMBOL_OBJECT
)

type Symbol struct {
	Name string
	Addr uint64
	Size uint64
	Kind SymbolKind
}

// SymbolProvider resolves names and addresses for a process. LoadAll is
// called once when the session starts and Release when it ends.
type SymbolProvider interface {
	LoadAll(ProcessInfo) (SymbolTable, error)
	Release(ProcessInfo)
	ResolveByName(name string) (Symbol, error)
	ResolveByAddress(addr uint64) (Symbol, error)
}

// SymbolTable summarizes what LoadAll found.
type SymbolTable struct {
	Base        uint64
	Count       int
	SourceFiles []SourceFile
}
