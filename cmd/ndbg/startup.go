package main

import (
	"sync"

	"github.com/wnxd/ndbg/debugger"
	"github.com/wnxd/ndbg/internal/config"
	engine "github.com/wnxd/ndbg/internal/debugger"
)

// startup plants the configured breakpoints when the process comes up.
// The target is held at its first instruction until then.
type startup struct {
	next        debugger.Handler
	dbg         *engine.Debugger
	breakpoints []config.Breakpoint
	once        sync.Once
}

func (h *startup) HandleEvent(s debugger.Session, ev debugger.Event) debugger.SessionState {
	if _, ok := ev.(debugger.CreateProcessEvent); ok {
		h.once.Do(h.plant)
	}
	return h.next.HandleEvent(s, ev)
}

func (h *startup) plant() {
	out := h.dbg.Display()
	for _, bp := range h.breakpoints {
		addr, err := h.resolve(bp)
		if err != nil {
			out.Error("breakpoint %s%s: %v", bp.Address, bp.Symbol, err)
			continue
		}
		set, err := h.dbg.SetBreakpoint(addr, bp.Once)
		if err != nil {
			out.Error("breakpoint 0x%x: %v", addr, err)
			continue
		}
		out.Message("Breakpoint %d set at 0x%x", set.ID, set.Address)
	}
	out.Message("Target stopped at entry, \"c\" to run")
}

func (h *startup) resolve(bp config.Breakpoint) (uint64, error) {
	if bp.Symbol != "" {
		return h.dbg.Resolve(bp.Symbol)
	}
	return bp.Addr()
}
