package debugger

import "fmt"

type Exception int

const (
	EXCEPTION_INT_DIVIDE Exception = iota
	EXCEPTION_SINGLE_STEP
	EXCEPTION_NMI
	EXCEPTION_BREAKPOINT
	EXCEPTION_INT_OVERFLOW
	EXCEPTION_BOUNDS
	EXCEPTION_INVALID_OPCODE
	EXCEPTION_NO_COPROCESSOR
	EXCEPTION_DOUBLE_FAULT
	EXCEPTION_INVALID_TSS
	EXCEPTION_SEGMENT
	EXCEPTION_STACK
	EXCEPTION_GPF
	EXCEPTION_PAGE_FAULT
	EXCEPTION_COPROCESSOR
	EXCEPTION_ALIGNMENT

	EXCEPTION_FLT_DIVIDE
	EXCEPTION_FLT_OVERFLOW
	EXCEPTION_FLT_INEXACT_RESULT
	EXCEPTION_FLT_INVALID_OP
	EXCEPTION_FLT_STACK_CHECK
	EXCEPTION_FLT_DENORMAL_OPERAND
	EXCEPTION_FLT_UNDERFLOW
)

var exceptionNames = [...]string{
	EXCEPTION_INT_DIVIDE:           "integer divide",
	EXCEPTION_SINGLE_STEP:          "single step",
	EXCEPTION_NMI:                  "nmi",
	EXCEPTION_BREAKPOINT:           "breakpoint",
	EXCEPTION_INT_OVERFLOW:         "integer overflow",
	EXCEPTION_BOUNDS:               "bounds",
	EXCEPTION_INVALID_OPCODE:       "invalid opcode",
	EXCEPTION_NO_COPROCESSOR:       "no coprocessor",
	EXCEPTION_DOUBLE_FAULT:         "double fault",
	EXCEPTION_INVALID_TSS:          "invalid tss",
	EXCEPTION_SEGMENT:              "segment",
	EXCEPTION_STACK:                "stack",
	EXCEPTION_GPF:                  "general protection",
	EXCEPTION_PAGE_FAULT:           "page fault",
	EXCEPTION_COPROCESSOR:          "coprocessor",
	EXCEPTION_ALIGNMENT:            "alignment",
	EXCEPTION_FLT_DIVIDE:           "float divide",
	EXCEPTION_FLT_OVERFLOW:         "float overflow",
	EXCEPTION_FLT_INEXACT_RESULT:   "float inexact result",
	EXCEPTION_FLT_INVALID_OP:       "float invalid operation",
	EXCEPTION_FLT_STACK_CHECK:      "float stack check",
	EXCEPTION_FLT_DENORMAL_OPERAND: "float denormal operand",
	EXCEPTION_FLT_UNDERFLOW:        "float underflow",
}

func (e Exception) String() string {
	if e >= 0 && int(e) < len(exceptionNames) {
		return exceptionNames[e]
	}
	return fmt.Sprintf("exception(%d)", int(e))
}

// Type classifies the exception the way the x86 manuals do.
func (e Exception) Type() ExceptionType {
	switch e {
	case EXCEPTION_SINGLE_STEP, EXCEPTION_BREAKPOINT, EXCEPTION_INT_OVERFLOW:
		return EXCEPTION_TYPE_TRAP
	case EXCEPTION_DOUBLE_FAULT:
		return EXCEPTION_TYPE_ABORT
	case EXCEPTION_NMI:
		return EXCEPTION_TYPE_UNKNOWN
	}
	return EXCEPTION_TYPE_FAULT
}

type ExceptionType int

const (
	EXCEPTION_TYPE_UNKNOWN ExceptionType = iota
	EXCEPTION_TYPE_FAULT
	EXCEPTION_TYPE_TRAP
	EXCEPTION_TYPE_ABORT
)

func (t ExceptionType) String() string {
	switch t {
	case EXCEPTION_TYPE_FAULT:
		return "fault"
	case EXCEPTION_TYPE_TRAP:
		return "trap"
	case EXCEPTION_TYPE_ABORT:
		return "abort"
	}
	return "unknown"
}
