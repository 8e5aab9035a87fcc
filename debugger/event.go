package debugger

import "fmt"

type EventKind int

const (
	EVENT_EXCEPTION EventKind = iota
	EVENT_CREATE_THREAD
	EVENT_EXIT_THREAD
	EVENT_CREATE_PROCESS
	EVENT_EXIT_PROCESS
	EVENT_PRINT
	EVENT_QUIT
)

func (k EventKind) String() string {
	switch k {
	case EVENT_EXCEPTION:
		return "exception"
	case EVENT_CREATE_THREAD:
		return "create-thread"
	case EVENT_EXIT_THREAD:
		return "exit-thread"
	case EVENT_CREATE_PROCESS:
		return "create-process"
	case EVENT_EXIT_PROCESS:
		return "exit-process"
	case EVENT_PRINT:
		return "print"
	case EVENT_QUIT:
		return "quit"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is the portable description of something that happened in the
// target. Exactly one of the concrete types below implements it.
type Event interface {
	Kind() EventKind
}

type ExceptionEvent struct {
	FirstChance bool
	Code        Exception
	Type        ExceptionType
	Address     uint64
}

type CreateThreadEvent struct {
	TID   int
	Entry uint64
}

type ExitThreadEvent struct {
	TID      int
	ExitCode int
}

type CreateProcessEvent struct {
	ImageBase uint64
	Entry     uint64
	ImageName string
}

type ExitProcessEvent struct {
	ExitCode int
}

// PrintEvent carries a debug string copied out of the target. Text is only
// valid for the duration of the handler call.
type PrintEvent struct {
	Text string
}

type QuitEvent struct {
	Code   int
	Source EventSource
}

func (ExceptionEvent) Kind() EventKind     { return EVENT_EXCEPTION }
func (CreateThreadEvent) Kind() EventKind  { return EVENT_CREATE_THREAD }
func (ExitThreadEvent) Kind() EventKind    { return EVENT_EXIT_THREAD }
func (CreateProcessEvent) Kind() EventKind { return EVENT_CREATE_PROCESS }
func (ExitProcessEvent) Kind() EventKind   { return EVENT_EXIT_PROCESS }
func (PrintEvent) Kind() EventKind         { return EVENT_PRINT }
func (QuitEvent) Kind() EventKind          { return EVENT_QUIT }
