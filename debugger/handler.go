package debugger

// Handler receives every translated event of a session. Its verdict
// becomes the next session state, except for exceptions which always
// suspend the session.
type Handler interface {
	HandleEvent(Session, Event) SessionState
}

type HandlerFunc func(Session, Event) SessionState

func (f HandlerFunc) HandleEvent(s Session, ev Event) SessionState {
	return f(s, ev)
}

// Session is the view of a debug session handed to event handlers.
type Session interface {
	ID() string
	State() SessionState
	Process() ProcessInfo
	SendEvent(SessionRequest, EventSource) error
	SetBreakpoint(addr uint64, kind BreakpointKind) (Breakpoint, error)
	RemoveBreakpoint(addr uint64) error
	ReadMemory(addr uint64, data []byte) (int, error)
	GetContext() (*Context, error)
}
