package native

type MemProt int

const (
	MEM_PROT_NONE MemProt = 0
	MEM_PROT_READ MemProt = 1 << (iota - 1)
	MEM_PROT_WRITE
	MEM_PROT_EXEC

	MEM_PROT_ALL = MEM_PROT_READ | MEM_PROT_WRITE | MEM_PROT_EXEC
)

type MemRegion struct {
	Addr, Size uint64
	Prot       MemProt
	Path       string
}

func (r MemRegion) Contains(addr uint64) bool {
	return addr >= r.Addr && addr-r.Addr < r.Size
}

func (r MemRegion) End() uint64 {
	return r.Addr + r.Size
}
