// Package symbol resolves names and addresses of a debugged process from
// the symbol tables of its main image.
package symbol

import (
	"slices"
	"sync"

	"github.com/golang/glog"
	"github.com/wnxd/ndbg/debugger"
	"github.com/wnxd/ndbg/loader"
)

const pageSize = 0x1000

type Provider struct {
	open func(path string) (loader.Module, error)

	mu      sync.RWMutex
	base    uint64
	symbols []debugger.Symbol
	byName  map[string]int
}

var _ debugger.SymbolProvider = (*Provider)(nil)

func New() *Provider {
	return &Provider{open: loader.OpenELF}
}

// LoadAll reads the image at info.Path. A relocatable image is rebased to
// info.Base when the load address is known.
func (p *Provider) LoadAll(info debugger.ProcessInfo) (debugger.SymbolTable, error) {
	if info.Path == "" {
		return debugger.SymbolTable{}, debugger.ErrArgumentInvalid
	}
	m, err := p.open(info.Path)
	if err != nil {
		return debugger.SymbolTable{}, err
	}
	defer m.Close()

	var link uint64
	for i, r := range m.Regions() {
		if i == 0 || r.Addr < link {
			link = r.Addr
		}
	}
	link = debugger.AlignDown(link, pageSize)
	base := link
	if m.Relocatable() && info.Base != 0 {
		base = info.Base
	}
	bias := base - link

	symbols := m.Symbols()
	byName := make(map[string]int, len(symbols))
	for i := range symbols {
		symbols[i].Addr += bias
		if _, ok := byName[symbols[i].Name]; !ok {
			byName[symbols[i].Name] = i
		}
	}

	table := debugger.SymbolTable{Base: base, Count: len(symbols)}
	files, err := m.SourceFiles()
	if err != nil {
		glog.V(1).Infof("symbols %s: %v", info.Path, err)
	}
	for _, name := range files {
		table.SourceFiles = append(table.SourceFiles, debugger.SourceFile{Base: base, Name: name})
	}

	p.mu.Lock()
	p.base, p.symbols, p.byName = base, symbols, byName
	p.mu.Unlock()
	glog.V(1).Infof("loaded %d symbols from %s at %#x", len(symbols), m.Name(), base)
	return table, nil
}

func (p *Provider) Release(debugger.ProcessInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.base, p.symbols, p.byName = 0, nil, nil
}

func (p *Provider) ResolveByName(name string) (debugger.Symbol, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i, ok := p.byName[name]; ok {
		return p.symbols[i], nil
	}
	return debugger.Symbol{}, debugger.ErrSymbolNotFound
}

// ResolveByAddress finds the symbol covering addr. A symbol without a size
// only matches its own address.
func (p *Provider) ResolveByAddress(addr uint64) (debugger.Symbol, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	i, found := slices.BinarySearchFunc(p.symbols, addr, func(s debugger.Symbol, addr uint64) int {
		if s.Addr > addr {
			return 1
		} else if s.Addr < addr {
			return -1
		}
		return 0
	})
	if found {
		return p.symbols[i], nil
	}
	for i--; i >= 0; i-- {
		sym := p.symbols[i]
		if sym.Size != 0 && addr < sym.Addr+sym.Size {
			return sym, nil
		}
		if sym.Size != 0 {
			break
		}
	}
	return debugger.Symbol{}, debugger.ErrSymbolNotFound
}
