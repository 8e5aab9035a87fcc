//go:build linux

package ptrace

import (
	"unsafe"

	"github.com/wnxd/ndbg/encoding"
	"golang.org/x/sys/unix"
)

const siginfoSize = 128

// siginfo is the leading, architecture independent part of siginfo_t
// followed by the fault address of the sigfault union member.
type siginfo struct {
	Signo int32
	Errno int32
	Code  int32
	_     int32
	Addr  uint64
}

func getSiginfo(tid int) (siginfo, error) {
	buf := make(encoding.Buffer, siginfoSize)
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_GETSIGINFO, uintptr(tid), 0, uintptr(unsafe.Pointer(&buf[0])), 0, 0)
	if errno != 0 {
		return siginfo{}, errno
	}
	return decodeSiginfo(buf)
}

func decodeSiginfo(buf encoding.Buffer) (siginfo, error) {
	var si siginfo
	err := encoding.Decode(encoding.NewStream(&buf, 0), &si)
	return si, err
}
