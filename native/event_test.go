package native

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventString(t *testing.T) {
	ev := &Event{
		Code: EVENT_EXCEPTION,
		TID:  42,
		Exception: ExceptionRecord{
			Signal:  SIGTRAP,
			Code:    SI_KERNEL,
			Address: 0x401000,
		},
	}
	assert.Equal(t, fmt.Sprintf("exception tid: 42, SIGTRAP(%d) at 0000000000401000", SI_KERNEL), ev.String())

	ev = &Event{Code: EVENT_EXIT_PROCESS, TID: 42, ExitCode: 3}
	assert.Equal(t, "exit-process tid: 42, code: 3", fmt.Sprint(ev))

	ev = &Event{Code: EVENT_OUTPUT_STRING, TID: 7, Output: StringRecord{Address: 0x1000, Length: 6}}
	assert.Equal(t, "output-string tid: 7, base: 0000000000000000", ev.String())
	assert.Equal(t, uint64(6), ev.Output.Length)
}
