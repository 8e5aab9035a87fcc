package debugger

import (
	"github.com/golang/glog"
	"github.com/hashicorp/go-multierror"
	"github.com/wnxd/ndbg/debugger"
)

type breakpointManager struct {
	proc *Process
	dsp  *dispatcher
}

func (bm *breakpointManager) ctor(proc *Process, dsp *dispatcher) {
	bm.proc = proc
	bm.dsp = dsp
}

// dtor takes every active trap out of target memory. The records
// themselves are released with the process.
func (bm *breakpointManager) dtor() error {
	bm.proc.mu.Lock()
	defer bm.proc.mu.Unlock()
	var result *multierror.Error
	for _, h := range bm.proc.breakpoints.All() {
		if err := bm.restore(&h.Value); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (bm *breakpointManager) find(addr uint64) (*Handle[debugger.Breakpoint], int) {
	return bm.proc.breakpoints.Find(func(bp *debugger.Breakpoint) bool {
		return bp.Address == addr
	})
}

func (bm *breakpointManager) set(addr uint64, kind debugger.BreakpointKind, once bool) (debugger.Breakpoint, error) {
	bm.proc.mu.Lock()
	defer bm.proc.mu.Unlock()
	if h, _ := bm.find(addr); h != nil {
		return debugger.Breakpoint{}, debugger.ErrBreakpointExists
	}
	var opcode [1]byte
	if _, err := bm.dsp.ReadMemory(addr, opcode[:]); err != nil {
		return debugger.Breakpoint{}, err
	}
	if _, err := bm.dsp.WriteMemory(addr, []byte{debugger.TrapOpcode}); err != nil {
		bm.dsp.WriteMemory(addr, opcode[:])
		return debugger.Breakpoint{}, err
	}
	if err := bm.dsp.FlushInstructionCache(addr, 1); err != nil {
		bm.dsp.WriteMemory(addr, opcode[:])
		return debugger.Breakpoint{}, err
	}
	bp := debugger.Breakpoint{
		ID:      bm.proc.allocateID(),
		Address: addr,
		Opcode:  opcode[0],
		Kind:    kind,
		Active:  true,
		Once:    once,
	}
	bm.proc.breakpoints.Append(bp)
	glog.V(1).Infof("breakpoint %d set at %016X, saved opcode %02X", bp.ID, addr, opcode[0])
	return bp, nil
}

func (bm *breakpointManager) get(addr uint64) (debugger.Breakpoint, bool) {
	bm.proc.mu.Lock()
	defer bm.proc.mu.Unlock()
	h, _ := bm.find(addr)
	if h == nil {
		return debugger.Breakpoint{}, false
	}
	return h.Value, true
}

func (bm *breakpointManager) list() []debugger.Breakpoint {
	bm.proc.mu.Lock()
	defer bm.proc.mu.Unlock()
	return bm.proc.breakpoints.Values()
}

func (bm *breakpointManager) remove(addr uint64) error {
	bm.proc.mu.Lock()
	defer bm.proc.mu.Unlock()
	return bm.removeLocked(addr)
}

func (bm *breakpointManager) removeLocked(addr uint64) error {
	h, _ := bm.find(addr)
	if h == nil {
		return debugger.ErrBreakpointNotFound
	}
	if err := bm.restore(&h.Value); err != nil {
		return err
	}
	bm.proc.breakpoints.RemoveHandle(h)
	glog.V(1).Infof("breakpoint %d removed from %016X", h.Value.ID, addr)
	return nil
}

// restore puts the saved opcode back, but only over a trap byte. Anything
// else at the address means the target rewrote it and the record is left
// untouched.
func (bm *breakpointManager) restore(bp *debugger.Breakpoint) error {
	if !bp.Active {
		return nil
	}
	var cur [1]byte
	if _, err := bm.dsp.ReadMemory(bp.Address, cur[:]); err != nil {
		return err
	}
	if cur[0] != debugger.TrapOpcode {
		return &debugger.CorruptionError{Addr: bp.Address, Found: cur[0]}
	}
	if _, err := bm.dsp.WriteMemory(bp.Address, []byte{bp.Opcode}); err != nil {
		return err
	}
	if err := bm.dsp.FlushInstructionCache(bp.Address, 1); err != nil {
		return err
	}
	bp.Active = false
	return nil
}

// hit accounts a breakpoint exception at addr. One shot breakpoints are
// removed and the thread is rewound onto the original instruction.
func (bm *breakpointManager) hit(addr uint64) (debugger.Breakpoint, bool) {
	bm.proc.mu.Lock()
	defer bm.proc.mu.Unlock()
	h, _ := bm.find(addr)
	if h == nil {
		return debugger.Breakpoint{}, false
	}
	h.Value.Hits++
	bp := h.Value
	if !bp.Once {
		return bp, true
	}
	if err := bm.removeLocked(addr); err != nil {
		glog.Warningf("one shot breakpoint %d at %016X: %v", bp.ID, addr, err)
		return bp, true
	}
	var ctx debugger.Context
	if err := bm.dsp.GetContext(&ctx); err != nil {
		glog.Warningf("one shot breakpoint %d at %016X: %v", bp.ID, addr, err)
		return bp, true
	}
	if ctx.IP == addr+1 {
		ctx.SetIP(addr)
		if err := bm.dsp.SetContext(&ctx); err != nil {
			glog.Warningf("one shot breakpoint %d at %016X: %v", bp.ID, addr, err)
		}
	}
	return bp, true
}

func (bm *breakpointManager) clearAll() error {
	return debugger.ErrNotImplemented
}

// setHitCount resets the hit counter of every breakpoint to count.
func (bm *breakpointManager) setHitCount(count uint32) error {
	bm.proc.mu.Lock()
	defer bm.proc.mu.Unlock()
	for _, h := range bm.proc.breakpoints.All() {
		h.Value.Hits = count
	}
	return nil
}

func (bm *breakpointManager) setWatchpoint(debugger.Watchpoint) error {
	return debugger.ErrNotImplemented
}

func (bm *breakpointManager) getWatchpoint(uint64) (debugger.Watchpoint, error) {
	return debugger.Watchpoint{}, debugger.ErrNotImplemented
}

func (bm *breakpointManager) removeWatchpoint(debugger.Watchpoint) error {
	return debugger.ErrNotImplemented
}

func (bm *breakpointManager) clearWatchpoints() error {
	return debugger.ErrNotImplemented
}
