package loader

import (
	"io"

	"github.com/wnxd/ndbg/native"
)

// Region is one loadable segment. Length bytes are backed by the file,
// the rest of Size is zero filled.
type Region struct {
	Addr, Size    uint64
	Length, Align uint64
	Prot          native.MemProt
	io.ReaderAt
}

func (r Region) End() uint64 {
	return r.Addr + r.Size
}
