package native

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextRegisterNames(t *testing.T) {
	var ctx Context
	for _, name := range []string{"rip", "rax", "r15", "rsp"} {
		assert.True(t, ctx.SetReg(name, 0x1234), name)
	}
	assert.Equal(t, uint64(0x1234), ctx.IP)
	assert.Equal(t, uint64(0x1234), ctx.General.AX)
	assert.Equal(t, uint64(0x1234), ctx.General.R15)

	v, ok := ctx.Reg("eax")
	assert.True(t, ok)
	assert.Equal(t, uint64(0x1234), v)

	_, ok = ctx.Reg("xmm0")
	assert.False(t, ok)
	assert.False(t, ctx.SetReg("xmm0", 1))
}

func TestContextSetIP(t *testing.T) {
	var ctx Context
	ctx.SetIP(0x401000)
	v, ok := ctx.Reg("ip")
	assert.True(t, ok)
	assert.Equal(t, uint64(0x401000), v)
}

func TestArchPointerSize(t *testing.T) {
	assert.Equal(t, uint64(8), ARCH_X86_64.PointerSize())
	assert.Equal(t, uint64(4), ARCH_X86.PointerSize())
	assert.Zero(t, ARCH_UNKNOWN.PointerSize())
}

func TestMemRegion(t *testing.T) {
	r := MemRegion{Addr: 0x1000, Size: 0x2000}
	assert.True(t, r.Contains(0x1000))
	assert.True(t, r.Contains(0x2fff))
	assert.False(t, r.Contains(0x3000))
	assert.False(t, r.Contains(0xfff))
	assert.Equal(t, uint64(0x3000), r.End())
}
