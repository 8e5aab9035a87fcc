package native

import (
	"io"
	"time"
)

// MemoryAccessor is the memory half of a Backend.
type MemoryAccessor interface {
	Arch() Arch
	ReadMemory(addr uint64, data []byte) (int, error)
	WriteMemory(addr uint64, data []byte) (int, error)
}

// Backend is the OS facing side of a debug session. Implementations own
// exactly one target process.
type Backend interface {
	io.Closer
	MemoryAccessor
	PID() int
	TID() int
	FlushInstructionCache(addr, size uint64) error
	GetContext(ctx *Context) error
	SetContext(ctx *Context) error
	// WaitEvent blocks for at most timeout. It returns a nil event and a
	// nil error when nothing arrived in time.
	WaitEvent(timeout time.Duration) (*Event, error)
	// ContinueEvent lets the target run past ev. A backend may keep the
	// thread stopped, in which case Resume releases it later.
	ContinueEvent(ev *Event) error
	Resume() error
	Break() error
}

type Stopper interface {
	Stop() error
}

// Quiescer stops every thread of the target and keeps them stopped until
// the backend is closed.
type Quiescer interface {
	Quiesce() error
}

type Attacher interface {
	Attach() error
	Detach() error
}

type PhysicalMemory interface {
	ReadPhysical(addr uint64, data []byte) (int, error)
	WritePhysical(addr uint64, data []byte) (int, error)
	Translate(addr uint64) (uint64, error)
}
