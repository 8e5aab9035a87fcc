package encoding

import (
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type padded struct {
	A uint8
	B uint32
	C uint16
}

type tagged struct {
	A     uint16
	Cache int `encoding:"ignore"`
	B     uint16
}

type nested struct {
	Count uint32
	Items [2]padded
}

func streamOf(data []byte) Stream {
	buf := Buffer(data)
	return NewStream(&buf, 0)
}

func TestDecodeScalar(t *testing.T) {
	var v uint32
	require.NoError(t, Decode(streamOf([]byte{0x78, 0x56, 0x34, 0x12}), &v))
	assert.Equal(t, uint32(0x12345678), v)
	assert.Equal(t, 4, DecodeSize(&v))
}

func TestDecodePaddedStruct(t *testing.T) {
	data := make([]byte, 12)
	data[0] = 7
	binary.LittleEndian.PutUint32(data[4:], 0xdeadbeef)
	binary.LittleEndian.PutUint16(data[8:], 0x1234)

	var v padded
	require.NoError(t, Decode(streamOf(data), &v))
	assert.Equal(t, padded{A: 7, B: 0xdeadbeef, C: 0x1234}, v)
	assert.Equal(t, 12, DecodeSize(v))
}

func TestDecodeIgnoredField(t *testing.T) {
	v := tagged{Cache: 42}
	require.NoError(t, Decode(streamOf([]byte{1, 0, 2, 0}), &v))
	assert.Equal(t, tagged{A: 1, Cache: 42, B: 2}, v)
	assert.Equal(t, 4, DecodeSize(&v))
}

func TestDecodeNested(t *testing.T) {
	data := make([]byte, 28)
	binary.LittleEndian.PutUint32(data, 2)
	data[4] = 1
	binary.LittleEndian.PutUint32(data[8:], 10)
	data[16] = 2
	binary.LittleEndian.PutUint32(data[20:], 20)

	var v nested
	require.NoError(t, Decode(streamOf(data), &v))
	assert.Equal(t, uint32(2), v.Count)
	assert.Equal(t, padded{A: 1, B: 10}, v.Items[0])
	assert.Equal(t, padded{A: 2, B: 20}, v.Items[1])
	assert.Equal(t, 28, DecodeSize(&v))
}

func TestDecodeSequential(t *testing.T) {
	s := streamOf([]byte{1, 0, 2, 0, 3, 0})
	var a, b uint16
	require.NoError(t, Decode(s, &a))
	require.NoError(t, s.Skip(2))
	require.NoError(t, Decode(s, &b))
	assert.Equal(t, uint16(1), a)
	assert.Equal(t, uint16(3), b)
	assert.Equal(t, uint64(6), s.Offset())
}

func TestDecodeErrors(t *testing.T) {
	var v uint32
	assert.ErrorIs(t, Decode(streamOf(nil), v), ErrNotPointer)
	assert.ErrorIs(t, Decode(streamOf([]byte{1, 0, 0, 0}), struct{ A uint32 }{}), ErrNotPointer)
	assert.ErrorIs(t, Decode(streamOf(nil), nil), ErrNotPointer)
	assert.ErrorIs(t, Decode(streamOf(nil), (*uint32)(nil)), ErrNilPointer)

	var s string
	assert.ErrorIs(t, Decode(streamOf(nil), &s), ErrUnsupportedType)
	assert.Zero(t, DecodeSize(&s))
	assert.Zero(t, DecodeSize(nil))
	assert.Equal(t, 4, DecodeSize(struct{ A uint32 }{}))

	assert.ErrorIs(t, Decode(streamOf([]byte{1, 2}), &v), io.ErrUnexpectedEOF)
	assert.ErrorIs(t, streamOf(nil).Skip(-1), ErrInvalidSkip)
}

func TestBufferWriteGrows(t *testing.T) {
	var buf Buffer
	n, err := buf.WriteAt([]byte{1, 2}, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, Buffer{0, 0, 0, 0, 1, 2}, buf)

	b := make([]byte, 4)
	n, err = buf.ReadAt(b, 4)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, n)
	_, err = buf.ReadAt(b, 6)
	assert.ErrorIs(t, err, io.EOF)
}
