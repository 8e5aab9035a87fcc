package debugger

import (
	"github.com/wnxd/ndbg/debugger"
	"github.com/wnxd/ndbg/internal/display"
	"github.com/wnxd/ndbg/native"
)

// Debugger is the command surface over the current session.
type Debugger struct {
	registry Registry
	display  *display.Display
}

func New(d *display.Display) *Debugger {
	if d == nil {
		d = display.Discard()
	}
	return &Debugger{display: d}
}

func (dbg *Debugger) Display() *display.Display {
	return dbg.display
}

// NewSession binds backend to a new session and makes it current. It fails
// with ErrSessionExists while another session is live; the backend then
// stays with the caller.
func (dbg *Debugger) NewSession(backend native.Backend, opts Options) (*Session, error) {
	if opts.Display == nil {
		opts.Display = dbg.display
	}
	s := newSession(&dbg.registry, backend, opts)
	if err := dbg.registry.acquire(s); err != nil {
		return nil, err
	}
	s.RegisterEventHandler(debugger.HandlerFunc(dbg.HandleEvent))
	return s, nil
}

func (dbg *Debugger) Current() (*Session, error) {
	s := dbg.registry.Current()
	if s == nil {
		return nil, debugger.ErrSessionInvalid
	}
	return s, nil
}

// Continue resumes the suspended target thread and marks the session
// running again.
func (dbg *Debugger) Continue() error {
	s, err := dbg.Current()
	if err != nil {
		return err
	}
	if err = s.dsp.Resume(); err != nil {
		return err
	}
	return s.SendEvent(debugger.SESSION_CONTINUE, debugger.SOURCE_COMMAND)
}

// Break asks the target to stop at the next opportunity.
func (dbg *Debugger) Break() error {
	s, err := dbg.Current()
	if err != nil {
		return err
	}
	return s.dsp.Break()
}

func (dbg *Debugger) Quit() error {
	s, err := dbg.Current()
	if err != nil {
		return err
	}
	return s.SendEvent(debugger.SESSION_QUIT, debugger.SOURCE_COMMAND)
}

func (dbg *Debugger) GetRegisters() (*debugger.Context, error) {
	s, err := dbg.Current()
	if err != nil {
		return nil, err
	}
	return s.GetContext()
}

func (dbg *Debugger) SetRegisters(*debugger.Context) error {
	return debugger.ErrNotImplemented
}

func (dbg *Debugger) SingleStep() error {
	return debugger.ErrNotImplemented
}

func (dbg *Debugger) StepIn() error {
	return debugger.ErrNotImplemented
}

func (dbg *Debugger) StepOver() error {
	return debugger.ErrNotImplemented
}

func (dbg *Debugger) StepOut() error {
	return debugger.ErrNotImplemented
}

func (dbg *Debugger) ContinueUntil(uint64) error {
	return debugger.ErrNotImplemented
}

func (dbg *Debugger) SetNextInstruction(uint64) error {
	return debugger.ErrNotImplemented
}

func (dbg *Debugger) SetBreakpoint(addr uint64, once bool) (debugger.Breakpoint, error) {
	s, err := dbg.Current()
	if err != nil {
		return debugger.Breakpoint{}, err
	}
	if once {
		return s.SetBreakpointOnce(addr, debugger.BREAK_SOFT)
	}
	return s.SetBreakpoint(addr, debugger.BREAK_SOFT)
}

func (dbg *Debugger) RemoveBreakpoint(addr uint64) error {
	s, err := dbg.Current()
	if err != nil {
		return err
	}
	return s.RemoveBreakpoint(addr)
}

func (dbg *Debugger) ClearBreakpoints() error {
	s, err := dbg.Current()
	if err != nil {
		return err
	}
	return s.ClearBreakpoints()
}

func (dbg *Debugger) Breakpoints() ([]debugger.Breakpoint, error) {
	s, err := dbg.Current()
	if err != nil {
		return nil, err
	}
	return s.Breakpoints(), nil
}

// ReadMemory returns up to size bytes at addr, at most MaxReadSize. Active
// breakpoints are shown with their original bytes.
func (dbg *Debugger) ReadMemory(addr uint64, size int) ([]byte, error) {
	s, err := dbg.Current()
	if err != nil {
		return nil, err
	} else if size <= 0 {
		return nil, debugger.ErrArgumentInvalid
	}
	buf := make([]byte, min(size, debugger.MaxReadSize))
	n, err := s.ReadMemory(addr, buf)
	if n == 0 {
		return nil, err
	}
	buf = buf[:n]
	for _, bp := range s.Breakpoints() {
		if bp.Active && bp.Address >= addr && bp.Address-addr < uint64(n) {
			buf[bp.Address-addr] = bp.Opcode
		}
	}
	return buf, nil
}

// Resolve looks a symbol up through the session's symbol provider.
func (dbg *Debugger) Resolve(name string) (uint64, error) {
	s, err := dbg.Current()
	if err != nil {
		return 0, err
	} else if s.symbols == nil {
		return 0, debugger.ErrSymbolNotFound
	}
	sym, err := s.symbols.ResolveByName(name)
	if err != nil {
		return 0, err
	}
	return sym.Addr, nil
}
