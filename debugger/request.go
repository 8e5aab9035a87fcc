package debugger

import "fmt"

// MaxReadSize bounds a single inspection read of target memory.
const MaxReadSize = 64 << 10

type Request int

const (
	REQ_READ Request = iota
	REQ_WRITE
	REQ_GET_CONTEXT
	REQ_SET_CONTEXT
	REQ_CONTINUE
	REQ_BREAK
	REQ_STOP
	REQ_ATTACH
	REQ_DETACH
	REQ_READ_PHYS
	REQ_WRITE_PHYS
	REQ_TRANSLATE
)

var requestNames = [...]string{
	REQ_READ:        "read",
	REQ_WRITE:       "write",
	REQ_GET_CONTEXT: "get-context",
	REQ_SET_CONTEXT: "set-context",
	REQ_CONTINUE:    "continue",
	REQ_BREAK:       "break",
	REQ_STOP:        "stop",
	REQ_ATTACH:      "attach",
	REQ_DETACH:      "detach",
	REQ_READ_PHYS:   "read-phys",
	REQ_WRITE_PHYS:  "write-phys",
	REQ_TRANSLATE:   "translate",
}

func (r Request) String() string {
	if r >= 0 && int(r) < len(requestNames) {
		return requestNames[r]
	}
	return fmt.Sprintf("request(%d)", int(r))
}
