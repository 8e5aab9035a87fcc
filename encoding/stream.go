package encoding

import (
	"io"
)

type Stream interface {
	Offset() uint64
	Skip(int) error
	Read([]byte) (int, error)
}

type Buffer []byte

func (buf *Buffer) ReadAt(b []byte, off int64) (n int, err error) {
	if int(off) >= len(*buf) {
		return 0, io.EOF
	}
	n = copy(b, (*buf)[off:])
	if n < len(b) {
		err = io.EOF
	}
	return
}

func (buf *Buffer) WriteAt(b []byte, off int64) (n int, err error) {
	if end := len(b) + int(off); end > len(*buf) {
		*buf = append(*buf, make([]byte, end-len(*buf))...)
	}
	return copy((*buf)[off:], b), nil
}

type readerStream struct {
	r      io.ReaderAt
	base   int64
	offset int64
}

// NewStream returns a Stream reading sequentially from r starting at base.
func NewStream(r io.ReaderAt, base int64) Stream {
	return &readerStream{r: r, base: base}
}

func (s *readerStream) Offset() uint64 {
	return uint64(s.base + s.offset)
}

func (s *readerStream) Skip(n int) error {
	if n < 0 {
		return ErrInvalidSkip
	}
	s.offset += int64(n)
	return nil
}

func (s *readerStream) Read(b []byte) (int, error) {
	n, err := s.r.ReadAt(b, s.base+s.offset)
	s.offset += int64(n)
	if n == len(b) {
		return n, nil
	} else if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return n, err
}
