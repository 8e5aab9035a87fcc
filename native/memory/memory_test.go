package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/ndbg/debugger"
	"github.com/wnxd/ndbg/native"
)

func TestMapAlignsToPages(t *testing.T) {
	target := New()
	require.NoError(t, target.MemMap(0x1234, 0x10, native.MEM_PROT_READ))
	assert.Equal(t, []native.MemRegion{{Addr: 0x1000, Size: 0x1000, Prot: native.MEM_PROT_READ}}, target.MemRegions())
	assert.ErrorIs(t, target.MemMap(0x1800, 0x10, native.MEM_PROT_READ), debugger.ErrAddressInvalid)
}

func TestRegionsMerge(t *testing.T) {
	target := New()
	require.NoError(t, target.MemMap(0x1000, 0x1000, native.MEM_PROT_ALL))
	require.NoError(t, target.MemMap(0x2000, 0x1000, native.MEM_PROT_ALL))
	require.NoError(t, target.MemMap(0x3000, 0x1000, native.MEM_PROT_READ))
	assert.Equal(t, []native.MemRegion{
		{Addr: 0x1000, Size: 0x2000, Prot: native.MEM_PROT_ALL},
		{Addr: 0x3000, Size: 0x1000, Prot: native.MEM_PROT_READ},
	}, target.MemRegions())

	require.NoError(t, target.MemUnmap(0x2000, 0x1000))
	assert.Len(t, target.MemRegions(), 2)
}

func TestAccessAcrossPages(t *testing.T) {
	target := New()
	require.NoError(t, target.MemMap(0x1000, 0x2000, native.MEM_PROT_ALL))
	n, err := target.WriteMemory(0x1ffe, []byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	data, err := target.Peek(0x1ffe, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)

	buf := make([]byte, 8)
	n, err = target.ReadMemory(0x2ffc, buf)
	assert.ErrorIs(t, err, native.ErrAccessViolation)
	assert.Equal(t, 4, n)
}

func TestReadNeedsReadProtection(t *testing.T) {
	target := New()
	require.NoError(t, target.MemMap(0x1000, 0x1000, native.MEM_PROT_WRITE))
	_, err := target.WriteMemory(0x1000, []byte{1})
	require.NoError(t, err)
	_, err = target.ReadMemory(0x1000, make([]byte, 1))
	assert.ErrorIs(t, err, native.ErrAccessViolation)
}

func TestFailAt(t *testing.T) {
	target := New()
	require.NoError(t, target.MemMap(0x1000, 0x1000, native.MEM_PROT_ALL))
	failed := errors.New("write fault")
	target.FailAt(0x1002, failed)

	n, err := target.WriteMemory(0x1000, []byte{1, 2, 3, 4})
	assert.ErrorIs(t, err, failed)
	assert.Equal(t, 2, n)
	require.NoError(t, target.Poke(0x1002, []byte{9}))

	target.FailAt(0x1002, nil)
	_, err = target.WriteMemory(0x1000, []byte{1, 2, 3, 4})
	assert.NoError(t, err)
}

func TestEventCycle(t *testing.T) {
	target := New(WithPID(7, 8))
	ev, err := target.WaitEvent(time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, ev)
	assert.ErrorIs(t, target.Resume(), native.ErrNotSuspended)

	target.Inject(native.Event{Code: native.EVENT_CREATE_THREAD, TID: 9})
	ev, err = target.WaitEvent(time.Second)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, 7, ev.PID)
	assert.Equal(t, 9, ev.TID)
	assert.Same(t, ev, target.Pending())

	require.NoError(t, target.ContinueEvent(ev))
	assert.Nil(t, target.Pending())
	assert.Equal(t, 1, target.Continues())

	target.Inject(native.Event{Code: native.EVENT_EXCEPTION})
	ev, err = target.WaitEvent(time.Second)
	require.NoError(t, err)
	require.NoError(t, target.Resume())
	assert.Nil(t, target.Pending())
	assert.Equal(t, 1, target.Resumes())
}

func TestBreakQueuesTrap(t *testing.T) {
	target := New()
	require.NoError(t, target.SetContext(&native.Context{IP: 0x401234}))
	require.NoError(t, target.Break())
	ev, err := target.WaitEvent(time.Second)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, native.EVENT_EXCEPTION, ev.Code)
	assert.Equal(t, native.SIGTRAP, ev.Exception.Signal)
	assert.Equal(t, uint64(0x401234), ev.Exception.Address)
	assert.Equal(t, 1, target.Breaks())
}

func TestStopQueuesExit(t *testing.T) {
	target := New()
	require.NoError(t, target.Stop())
	ev, err := target.WaitEvent(time.Second)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, native.EVENT_EXIT_PROCESS, ev.Code)
}

func TestClosed(t *testing.T) {
	target := New()
	require.NoError(t, target.Close())
	require.NoError(t, target.Close())
	assert.True(t, target.Closed())
	_, err := target.WaitEvent(time.Second)
	assert.ErrorIs(t, err, native.ErrBackendClosed)
	_, err = target.ReadMemory(0, make([]byte, 1))
	assert.ErrorIs(t, err, native.ErrBackendClosed)
	assert.ErrorIs(t, target.Resume(), native.ErrBackendClosed)
}

func TestRequireStop(t *testing.T) {
	target := New()
	require.NoError(t, target.MemMap(0x1000, 0x1000, native.MEM_PROT_ALL))
	target.RequireStop(true)
	buf := make([]byte, 4)
	_, err := target.ReadMemory(0x1000, buf)
	assert.ErrorIs(t, err, native.ErrNotSuspended)
	_, err = target.WriteMemory(0x1000, buf)
	assert.ErrorIs(t, err, native.ErrNotSuspended)

	require.NoError(t, target.Quiesce())
	assert.Equal(t, 1, target.Quiesces())
	_, err = target.ReadMemory(0x1000, buf)
	require.NoError(t, err)

	target.Inject(native.Event{Code: native.EVENT_CREATE_THREAD})
	ev, err := target.WaitEvent(time.Second)
	require.NoError(t, err)
	require.NoError(t, target.ContinueEvent(ev))
	_, err = target.ReadMemory(0x1000, buf)
	assert.ErrorIs(t, err, native.ErrNotSuspended)
}
