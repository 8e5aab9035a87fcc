package debugger

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/wnxd/ndbg/debugger"
	"github.com/wnxd/ndbg/internal/display"
	"github.com/wnxd/ndbg/native"
)

const DefaultWaitTimeout = time.Second

type Options struct {
	Name string
	Path string
	// Base is the load address of the main image, when known up front.
	Base uint64
	// Attached is set when the target was not spawned by the session.
	// Traps still in memory are restored before the backend lets go.
	Attached    bool
	WaitTimeout time.Duration
	Display     *display.Display
	Symbols     debugger.SymbolProvider
}

type Session struct {
	id       string
	registry *Registry
	dsp      *dispatcher
	proc     *Process
	display  *display.Display
	symbols  debugger.SymbolProvider
	timeout  time.Duration
	attached bool
	breakpointManager
	translator

	mu       sync.Mutex
	state    debugger.SessionState
	handler  debugger.Handler
	wake     chan struct{}
	done     chan struct{}
	once     sync.Once
	doneOnce sync.Once
	err      error
}

func newSession(registry *Registry, backend native.Backend, opts Options) *Session {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}
	if opts.Display == nil {
		opts.Display = display.Discard()
	}
	s := &Session{
		id:       uuid.NewString(),
		registry: registry,
		dsp:      newDispatcher(backend),
		display:  opts.Display,
		symbols:  opts.Symbols,
		timeout:  opts.WaitTimeout,
		attached: opts.Attached,
		state:    debugger.STATE_CONTINUE,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	s.proc = newProcess(debugger.ProcessInfo{
		Name: opts.Name,
		Path: opts.Path,
		Base: opts.Base,
		PID:  backend.PID(),
		TID:  backend.TID(),
	})
	s.breakpointManager.ctor(s.proc, s.dsp)
	s.translator.ctor(s.proc, s.dsp, s.display)
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() debugger.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state debugger.SessionState) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()
	if prev != state {
		glog.V(1).Infof("session %s: %s -> %s", s.id, prev, state)
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

func (s *Session) Process() debugger.ProcessInfo {
	return s.proc.Info()
}

func (s *Session) Proc() *Process {
	return s.proc
}

// RegisterEventHandler replaces the handler receiving translated events.
func (s *Session) RegisterEventHandler(h debugger.Handler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

func (s *Session) eventHandler() debugger.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler
}

// SendEvent injects a request from outside the target. A quit request only
// takes effect when the handler confirms it.
func (s *Session) SendEvent(req debugger.SessionRequest, src debugger.EventSource) error {
	glog.V(1).Infof("session %s: %s request from %s", s.id, req, src)
	switch req {
	case debugger.SESSION_QUIT:
		h := s.eventHandler()
		if h == nil {
			return debugger.ErrHandlerMissing
		}
		if h.HandleEvent(s, debugger.QuitEvent{Source: src}) == debugger.STATE_QUIT {
			s.setState(debugger.STATE_QUIT)
		}
	case debugger.SESSION_BREAK:
		s.setState(debugger.STATE_SUSPEND)
	case debugger.SESSION_CONTINUE:
		s.setState(debugger.STATE_CONTINUE)
	default:
		return debugger.ErrArgumentInvalid
	}
	return nil
}

func (s *Session) SetBreakpoint(addr uint64, kind debugger.BreakpointKind) (debugger.Breakpoint, error) {
	return s.breakpointManager.set(addr, kind, false)
}

func (s *Session) SetBreakpointOnce(addr uint64, kind debugger.BreakpointKind) (debugger.Breakpoint, error) {
	return s.breakpointManager.set(addr, kind, true)
}

func (s *Session) GetBreakpoint(addr uint64) (debugger.Breakpoint, bool) {
	return s.breakpointManager.get(addr)
}

func (s *Session) RemoveBreakpoint(addr uint64) error {
	return s.breakpointManager.remove(addr)
}

func (s *Session) Breakpoints() []debugger.Breakpoint {
	return s.breakpointManager.list()
}

func (s *Session) ClearBreakpoints() error {
	return s.breakpointManager.clearAll()
}

func (s *Session) SetHitCount(count uint32) error {
	return s.breakpointManager.setHitCount(count)
}

func (s *Session) SetWatchpoint(wp debugger.Watchpoint) error {
	return s.breakpointManager.setWatchpoint(wp)
}

func (s *Session) GetWatchpoint(addr uint64) (debugger.Watchpoint, error) {
	return s.breakpointManager.getWatchpoint(addr)
}

func (s *Session) RemoveWatchpoint(wp debugger.Watchpoint) error {
	return s.breakpointManager.removeWatchpoint(wp)
}

func (s *Session) ClearWatchpoints() error {
	return s.breakpointManager.clearWatchpoints()
}

func (s *Session) ReadMemory(addr uint64, data []byte) (int, error) {
	return s.dsp.ReadMemory(addr, data)
}

func (s *Session) WriteMemory(addr uint64, data []byte) (int, error) {
	return s.dsp.WriteMemory(addr, data)
}

func (s *Session) GetContext() (*debugger.Context, error) {
	var ctx debugger.Context
	if err := s.dsp.GetContext(&ctx); err != nil {
		return nil, err
	}
	return &ctx, nil
}

func (s *Session) ProcessRequest(req debugger.Request, addr uint64, data any) (int, error) {
	return s.dsp.ProcessRequest(req, addr, data)
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the error the session ended with, once Done is closed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Run drives the session until its state becomes QUIT and then tears it
// down. Cancelling ctx sends a quit request on behalf of the session.
func (s *Session) Run(ctx context.Context) (err error) {
	defer func() {
		err = multierror.Append(err, s.teardown()).ErrorOrNil()
		s.finish(err)
	}()
	s.loadSymbols()
	cancel := ctx.Done()
	for {
		select {
		case <-cancel:
			cancel = nil
			s.SendEvent(debugger.SESSION_QUIT, debugger.SOURCE_SESSION)
		default:
		}
		switch s.State() {
		case debugger.STATE_QUIT:
			return nil
		case debugger.STATE_SUSPEND:
			s.idle(cancel)
			continue
		}
		ev, err := s.dsp.WaitEvent(s.timeout)
		if errors.Is(err, native.ErrProcessExited) {
			s.idle(cancel)
			continue
		} else if err != nil {
			glog.Errorf("session %s: wait: %v", s.id, err)
			return err
		} else if ev == nil {
			continue
		}
		if err = s.processEvent(ev); err != nil {
			glog.Errorf("session %s: continue %s: %v", s.id, ev.Code, err)
			s.display.Error("Unable to continue: %v", err)
		}
	}
}

func (s *Session) idle(cancel <-chan struct{}) {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case <-s.wake:
	case <-cancel:
	case <-timer.C:
	}
}

func (s *Session) processEvent(ev *native.Event) error {
	next := debugger.STATE_CONTINUE
	if out, ok := s.translator.translate(ev); ok {
		exc, isException := out.(debugger.ExceptionEvent)
		if isException && exc.Code == debugger.EXCEPTION_BREAKPOINT {
			s.breakpointManager.hit(exc.Address)
		}
		if h := s.eventHandler(); h != nil {
			next = h.HandleEvent(s, out)
		}
		if isException {
			next = debugger.STATE_SUSPEND
		}
	}
	s.mu.Lock()
	if s.state == debugger.STATE_QUIT {
		next = debugger.STATE_QUIT
	}
	s.mu.Unlock()
	s.setState(next)
	switch next {
	case debugger.STATE_CONTINUE, debugger.STATE_IGNORED:
		return s.dsp.ContinueEvent(ev)
	}
	return nil
}

func (s *Session) loadSymbols() {
	if s.symbols == nil {
		s.display.Error("*** Unable to load symbols")
		return
	}
	table, err := s.symbols.LoadAll(s.proc.Info())
	if err != nil {
		glog.V(1).Infof("session %s: symbols: %v", s.id, err)
		s.display.Error("*** Unable to load symbols")
		return
	}
	s.proc.mu.Lock()
	if table.Base != 0 {
		s.proc.info.Base = table.Base
	}
	for _, sf := range table.SourceFiles {
		s.proc.sources.Append(sf)
	}
	s.proc.mu.Unlock()
	s.display.Message("Symbols loaded")
}

// Close tears down a session whose Run loop was never started.
func (s *Session) Close() error {
	err := s.teardown()
	s.finish(err)
	return err
}

func (s *Session) finish(err error) {
	s.doneOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *Session) teardown() error {
	var result *multierror.Error
	s.once.Do(func() {
		glog.V(1).Infof("session %s: teardown", s.id)
		if s.attached {
			if err := s.dsp.Quiesce(); err != nil && !errors.Is(err, debugger.ErrUnsupported) {
				result = multierror.Append(result, err)
			}
			if err := s.breakpointManager.dtor(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		s.proc.release()
		if s.symbols != nil {
			s.symbols.Release(s.proc.Info())
		}
		if err := s.dsp.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		s.registry.release(s)
	})
	return result.ErrorOrNil()
}
