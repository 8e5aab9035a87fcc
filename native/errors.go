package native

import "errors"

var (
	ErrArchUnsupported = errors.New("architecture unsupported")
	ErrNotSuspended    = errors.New("thread not suspended")
	ErrProcessExited   = errors.New("process exited")
	ErrBackendClosed   = errors.New("backend closed")
	ErrAccessViolation = errors.New("memory access violation")
)
