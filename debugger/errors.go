package debugger

import (
	"errors"
	"fmt"
)

var (
	ErrSessionExists       = errors.New("session already exists")
	ErrSessionInvalid      = errors.New("session invalid")
	ErrContextInvalid      = errors.New("context invalid")
	ErrBreakpointExists    = errors.New("breakpoint already exists")
	ErrBreakpointNotFound  = errors.New("breakpoint not found")
	ErrBreakpointCorrupted = errors.New("breakpoint corrupted")
	ErrSymbolNotFound      = errors.New("symbol not found")
	ErrArgumentInvalid     = errors.New("argument invalid")
	ErrAddressInvalid      = errors.New("address invalid")
	ErrHandlerMissing      = errors.New("event handler missing")
	ErrUnsupported         = errors.New("request unsupported")
	ErrNotImplemented      = errors.New("not implemented")
)

// NativeError reports a failed or short native transfer. Err carries the
// status returned by the backend.
type NativeError struct {
	Op          Request
	Addr        uint64
	Size        int
	Transferred int
	Err         error
}

func (e *NativeError) Error() string {
	return fmt.Sprintf("[Native] %s, addr: %016X, size: %d, transferred: %d, status: %v", e.Op, e.Addr, e.Size, e.Transferred, e.Err)
}

func (e *NativeError) Unwrap() error {
	return e.Err
}

// CorruptionError is returned when the byte at a breakpoint address is no
// longer the trap opcode.
type CorruptionError struct {
	Addr  uint64
	Found byte
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("[Corrupted] addr: %016X, found: %02X", e.Addr, e.Found)
}

func (e *CorruptionError) Unwrap() error {
	return ErrBreakpointCorrupted
}
