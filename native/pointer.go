package native

import (
	"encoding/binary"
	"io"
	"slices"
	"unicode/utf16"
)

type Pointer struct {
	mem  MemoryAccessor
	addr uint64
}

func ToPointer(mem MemoryAccessor, addr uint64) Pointer {
	return Pointer{mem, addr}
}

func (p Pointer) IsNil() bool {
	return p.addr == 0
}

func (p Pointer) Address() uint64 {
	return p.addr
}

func (p Pointer) Add(offset uint64) Pointer {
	return Pointer{p.mem, p.addr + offset}
}

func (p Pointer) Sub(offset uint64) Pointer {
	return Pointer{p.mem, p.addr - offset}
}

func (p Pointer) MemRead(size uint64) ([]byte, error) {
	data := make([]byte, size)
	n, err := p.mem.ReadMemory(p.addr, data)
	if err != nil {
		return data[:n], err
	} else if n < len(data) {
		return data[:n], io.ErrUnexpectedEOF
	}
	return data, nil
}

func (p Pointer) MemWrite(data []byte) error {
	n, err := p.mem.WriteMemory(p.addr, data)
	if err != nil {
		return err
	} else if n < len(data) {
		return io.ErrShortWrite
	}
	return nil
}

func (p Pointer) MemReadString() (string, error) {
	var data []byte
	var buf [0x10]byte
	size := uint64(len(buf))
	for begin := p.addr; ; begin += size {
		n, err := p.mem.ReadMemory(begin, buf[:])
		if i := slices.Index(buf[:n], 0); i != -1 {
			data = append(data, buf[:i]...)
			break
		} else if err != nil {
			return "", err
		} else if n == 0 {
			return "", io.ErrUnexpectedEOF
		}
		data = append(data, buf[:n]...)
	}
	return string(data), nil
}

// MemReadWString reads a NUL terminated UTF-16 string and returns it as
// UTF-8.
func (p Pointer) MemReadWString() (string, error) {
	var units []uint16
	var buf [0x10]byte
	size := uint64(len(buf))
	for begin := p.addr; ; begin += size {
		n, err := p.mem.ReadMemory(begin, buf[:])
		n &^= 1
		end := false
		for i := 0; i < n; i += 2 {
			u := binary.LittleEndian.Uint16(buf[i:])
			if u == 0 {
				end = true
				break
			}
			units = append(units, u)
		}
		if end {
			break
		} else if err != nil {
			return "", err
		} else if n == 0 {
			return "", io.ErrUnexpectedEOF
		}
	}
	return string(utf16.Decode(units)), nil
}

func (p Pointer) MemReadPointer() (ptr Pointer, err error) {
	size := p.mem.Arch().PointerSize()
	if size == 0 {
		err = ErrArchUnsupported
		return
	}
	data, err := p.MemRead(size)
	if err != nil {
		return
	}
	var addr uint64
	if size == 4 {
		addr = uint64(binary.LittleEndian.Uint32(data))
	} else {
		addr = binary.LittleEndian.Uint64(data)
	}
	ptr.mem, ptr.addr = p.mem, addr
	return
}

func (p Pointer) ReadAt(b []byte, off int64) (n int, err error) {
	return p.mem.ReadMemory(p.addr+uint64(off), b)
}

func (p Pointer) WriteAt(b []byte, off int64) (n int, err error) {
	return p.mem.WriteMemory(p.addr+uint64(off), b)
}
