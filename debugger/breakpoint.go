package debugger

import "fmt"

// TrapOpcode is the single byte software breakpoint instruction (int3).
const TrapOpcode byte = 0xCC

type BreakpointKind int

const (
	BREAK_HARD BreakpointKind = iota
	BREAK_SOFT
)

func (k BreakpointKind) String() string {
	if k == BREAK_HARD {
		return "hard"
	}
	return "soft"
}

type Breakpoint struct {
	// ID is unique within a process and never reused.
	ID uint32
	// Address is the target virtual address the trap byte was written to.
	Address uint64
	// Opcode is the original byte saved from Address.
	Opcode byte
	Kind   BreakpointKind
	Active bool
	// Once marks a breakpoint that is removed the first time it is hit.
	Once bool
	Hits uint32
}

func (bp Breakpoint) String() string {
	return fmt.Sprintf("%d %016X %s hits: %d", bp.ID, bp.Address, bp.Kind, bp.Hits)
}

type WatchpointKind int

const (
	WATCH_READ WatchpointKind = 1 << iota
	WATCH_WRITE
	WATCH_EXEC
)

type Watchpoint struct {
	ID      uint32
	Address uint64
	Length  uint64
	Value   uint64
	Kind    WatchpointKind
}
