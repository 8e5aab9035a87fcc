package native

import "fmt"

// Signal numbers and si_code values as reported by the Linux kernel. They
// are spelled out here so code outside the ptrace backend can classify
// stop reasons on any host.
type Signal int

const (
	SIGHUP    Signal = 1
	SIGINT    Signal = 2
	SIGQUIT   Signal = 3
	SIGILL    Signal = 4
	SIGTRAP   Signal = 5
	SIGABRT   Signal = 6
	SIGBUS    Signal = 7
	SIGFPE    Signal = 8
	SIGKILL   Signal = 9
	SIGUSR1   Signal = 10
	SIGSEGV   Signal = 11
	SIGUSR2   Signal = 12
	SIGPIPE   Signal = 13
	SIGALRM   Signal = 14
	SIGTERM   Signal = 15
	SIGSTKFLT Signal = 16
	SIGCHLD   Signal = 17
	SIGCONT   Signal = 18
	SIGSTOP   Signal = 19
)

const (
	SI_USER   int32 = 0
	SI_KERNEL int32 = 0x80
	SI_TKILL  int32 = -6

	TRAP_BRKPT  int32 = 1
	TRAP_TRACE  int32 = 2
	TRAP_BRANCH int32 = 3
	TRAP_HWBKPT int32 = 4

	FPE_INTDIV int32 = 1
	FPE_INTOVF int32 = 2
	FPE_FLTDIV int32 = 3
	FPE_FLTOVF int32 = 4
	FPE_FLTUND int32 = 5
	FPE_FLTRES int32 = 6
	FPE_FLTINV int32 = 7
	FPE_FLTSUB int32 = 8

	SEGV_MAPERR int32 = 1
	SEGV_ACCERR int32 = 2

	BUS_ADRALN int32 = 1
	BUS_ADRERR int32 = 2
	BUS_OBJERR int32 = 3

	ILL_ILLOPC int32 = 1
	ILL_ILLOPN int32 = 2
	ILL_ILLADR int32 = 3
	ILL_ILLTRP int32 = 4
	ILL_PRVOPC int32 = 5
	ILL_PRVREG int32 = 6
	ILL_COPROC int32 = 7
	ILL_BADSTK int32 = 8
)

var signalNames = map[Signal]string{
	SIGHUP:    "SIGHUP",
	SIGINT:    "SIGINT",
	SIGQUIT:   "SIGQUIT",
	SIGILL:    "SIGILL",
	SIGTRAP:   "SIGTRAP",
	SIGABRT:   "SIGABRT",
	SIGBUS:    "SIGBUS",
	SIGFPE:    "SIGFPE",
	SIGKILL:   "SIGKILL",
	SIGUSR1:   "SIGUSR1",
	SIGSEGV:   "SIGSEGV",
	SIGUSR2:   "SIGUSR2",
	SIGPIPE:   "SIGPIPE",
	SIGALRM:   "SIGALRM",
	SIGTERM:   "SIGTERM",
	SIGSTKFLT: "SIGSTKFLT",
	SIGCHLD:   "SIGCHLD",
	SIGCONT:   "SIGCONT",
	SIGSTOP:   "SIGSTOP",
}

func (s Signal) String() string {
	if name, ok := signalNames[s]; ok {
		return name
	}
	return fmt.Sprintf("signal %d", int(s))
}
