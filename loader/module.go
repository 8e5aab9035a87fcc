// Package loader reads executable images from disk: their mapped
// regions, entry point, needed libraries and symbol tables.
package loader

import (
	"encoding/binary"
	"io"

	"github.com/wnxd/ndbg/debugger"
	"github.com/wnxd/ndbg/native"
)

type Module interface {
	io.Closer
	Name() string
	Arch() native.Arch
	ByteOrder() binary.ByteOrder
	// Relocatable reports whether the image may be loaded at an address
	// other than its link address.
	Relocatable() bool
	Regions() []Region
	EntryAddr() uint64
	Libraries() []string
	Symbols() []debugger.Symbol
	SourceFiles() ([]string, error)
	FindSymbol(name string) (uint64, error)
}
