package debugger

import "fmt"

// SessionState is both the state of a session and the verdict an event
// handler returns for the next iteration of the monitor loop.
type SessionState int

const (
	STATE_CONTINUE SessionState = iota
	STATE_SUSPEND
	STATE_QUIT
	STATE_IGNORED
)

func (s SessionState) String() string {
	switch s {
	case STATE_CONTINUE:
		return "continue"
	case STATE_SUSPEND:
		return "suspend"
	case STATE_QUIT:
		return "quit"
	case STATE_IGNORED:
		return "ignored"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type SessionRequest int

const (
	SESSION_QUIT SessionRequest = iota
	SESSION_BREAK
	SESSION_CONTINUE
)

func (r SessionRequest) String() string {
	switch r {
	case SESSION_QUIT:
		return "quit"
	case SESSION_BREAK:
		return "break"
	case SESSION_CONTINUE:
		return "continue"
	}
	return fmt.Sprintf("session-request(%d)", int(r))
}

type EventSource int

const (
	SOURCE_COMMAND EventSource = iota
	SOURCE_SESSION
	SOURCE_SYMBOL
)

func (s EventSource) String() string {
	switch s {
	case SOURCE_COMMAND:
		return "command"
	case SOURCE_SESSION:
		return "session"
	case SOURCE_SYMBOL:
		return "symbol"
	}
	return fmt.Sprintf("source(%d)", int(s))
}
