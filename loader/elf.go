package loader

import (
	"cmp"
	"debug/dwarf"
	"debug/elf"
	"encoding/binary"
	"path/filepath"
	"slices"

	"github.com/pkg/errors"
	"github.com/wnxd/ndbg/debugger"
	"github.com/wnxd/ndbg/native"
)

type elfModule struct {
	file    *elf.File
	name    string
	symbols []debugger.Symbol
}

func OpenELF(path string) (Module, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	m := &elfModule{file: f, name: filepath.Base(path)}
	m.symbols = m.readSymbols()
	return m, nil
}

func (m *elfModule) Close() error {
	return m.file.Close()
}

func (m *elfModule) Name() string {
	return m.name
}

func (m *elfModule) Arch() native.Arch {
	switch m.file.Machine {
	case elf.EM_X86_64:
		return native.ARCH_X86_64
	case elf.EM_386:
		return native.ARCH_X86
	}
	return native.ARCH_UNKNOWN
}

func (m *elfModule) ByteOrder() binary.ByteOrder {
	return m.file.ByteOrder
}

func (m *elfModule) Relocatable() bool {
	return m.file.Type == elf.ET_DYN
}

func (m *elfModule) Regions() []Region {
	var regions []Region
	for _, prog := range m.file.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		var prot native.MemProt
		if prog.Flags&elf.PF_R != 0 {
			prot |= native.MEM_PROT_READ
		}
		if prog.Flags&elf.PF_W != 0 {
			prot |= native.MEM_PROT_WRITE
		}
		if prog.Flags&elf.PF_X != 0 {
			prot |= native.MEM_PROT_EXEC
		}
		regions = append(regions, Region{
			Addr:     prog.Vaddr,
			Size:     prog.Memsz,
			Length:   prog.Filesz,
			Align:    prog.Align,
			Prot:     prot,
			ReaderAt: prog,
		})
	}
	return regions
}

func (m *elfModule) EntryAddr() uint64 {
	return m.file.Entry
}

func (m *elfModule) Libraries() []string {
	libs, _ := m.file.ImportedLibraries()
	return libs
}

func (m *elfModule) Symbols() []debugger.Symbol {
	return slices.Clone(m.symbols)
}

func (m *elfModule) FindSymbol(name string) (uint64, error) {
	for _, sym := range m.symbols {
		if sym.Name == name {
			return sym.Addr, nil
		}
	}
	return 0, debugger.ErrSymbolNotFound
}

// SourceFiles lists the files named by the DWARF line tables.
func (m *elfModule) SourceFiles() ([]string, error) {
	data, err := m.file.DWARF()
	if err != nil {
		return nil, errors.Wrapf(err, "dwarf %s", m.name)
	}
	seen := make(map[string]bool)
	r := data.Reader()
	for {
		entry, err := r.Next()
		if err != nil {
			return nil, errors.Wrapf(err, "dwarf %s", m.name)
		} else if entry == nil {
			break
		}
		if entry.Tag != dwarf.TagCompileUnit {
			r.SkipChildren()
			continue
		}
		lr, err := data.LineReader(entry)
		if err != nil {
			return nil, errors.Wrapf(err, "line table %s", m.name)
		} else if lr == nil {
			continue
		}
		for _, file := range lr.Files() {
			if file != nil && file.Name != "" {
				seen[file.Name] = true
			}
		}
		r.SkipChildren()
	}
	files := make([]string, 0, len(seen))
	for name := range seen {
		files = append(files, name)
	}
	slices.Sort(files)
	return files, nil
}

func (m *elfModule) readSymbols() []debugger.Symbol {
	var symbols []debugger.Symbol
	seen := make(map[debugger.Symbol]bool)
	for _, read := range []func() ([]elf.Symbol, error){m.file.Symbols, m.file.DynamicSymbols} {
		list, err := read()
		if err != nil {
			continue
		}
		for _, s := range list {
			if s.Name == "" || s.Value == 0 {
				continue
			}
			var kind debugger.SymbolKind
			switch elf.ST_TYPE(s.Info) {
			case elf.STT_FUNC:
				kind = debugger.SYMBOL_FUNCTION
			case elf.STT_OBJECT, elf.STT_TLS:
				kind = debugger.SYMBOL_OBJECT
			default:
				continue
			}
			sym := debugger.Symbol{Name: s.Name, Addr: s.Value, Size: s.Size, Kind: kind}
			if !seen[sym] {
				seen[sym] = true
				symbols = append(symbols, sym)
			}
		}
	}
	slices.SortFunc(symbols, func(a, b debugger.Symbol) int {
		return cmp.Or(cmp.Compare(a.Addr, b.Addr), cmp.Compare(a.Name, b.Name))
	})
	return symbols
}
