package native

import "fmt"

type EventCode int

const (
	EVENT_NONE EventCode = iota
	EVENT_CREATE_PROCESS
	EVENT_CREATE_THREAD
	EVENT_EXIT_THREAD
	EVENT_EXIT_PROCESS
	EVENT_EXCEPTION
	EVENT_OUTPUT_STRING
	EVENT_LOAD_LIBRARY
	EVENT_UNLOAD_LIBRARY
	EVENT_RIP
)

func (c EventCode) String() string {
	switch c {
	case EVENT_CREATE_PROCESS:
		return "create-process"
	case EVENT_CREATE_THREAD:
		return "create-thread"
	case EVENT_EXIT_THREAD:
		return "exit-thread"
	case EVENT_EXIT_PROCESS:
		return "exit-process"
	case EVENT_EXCEPTION:
		return "exception"
	case EVENT_OUTPUT_STRING:
		return "output-string"
	case EVENT_LOAD_LIBRARY:
		return "load-library"
	case EVENT_UNLOAD_LIBRARY:
		return "unload-library"
	case EVENT_RIP:
		return "rip"
	}
	return fmt.Sprintf("event(%d)", int(c))
}

type ExceptionRecord struct {
	Signal      Signal
	Code        int32
	Address     uint64
	FirstChance bool
}

type StringRecord struct {
	Address uint64
	Length  uint64
	Unicode bool
}

type RIPRecord struct {
	Error int
	Type  int
}

// Event is the raw stop notification produced by a Backend. It never
// leaves the session engine; handlers only see the translated form.
type Event struct {
	Code EventCode
	PID  int
	TID  int

	// Base and Entry describe the image or thread being created, or the
	// library being loaded or unloaded.
	Base  uint64
	Entry uint64

	// ImageName is the target address of a pointer to the image name.
	// Path is used instead when the backend already knows the name.
	ImageName uint64
	Unicode   bool
	Path      string

	ExitCode  int
	Exception ExceptionRecord
	Output    StringRecord
	RIP       RIPRecord
}

func (ev *Event) String() string {
	switch ev.Code {
	case EVENT_EXCEPTION:
		return fmt.Sprintf("%s tid: %d, %s(%d) at %016X", ev.Code, ev.TID, ev.Exception.Signal, ev.Exception.Code, ev.Exception.Address)
	case EVENT_EXIT_THREAD, EVENT_EXIT_PROCESS:
		return fmt.Sprintf("%s tid: %d, code: %d", ev.Code, ev.TID, ev.ExitCode)
	}
	return fmt.Sprintf("%s tid: %d, base: %016X", ev.Code, ev.TID, ev.Base)
}
