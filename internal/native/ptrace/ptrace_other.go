//go:build !linux

package ptrace

import (
	"os"

	"github.com/pkg/errors"
	"github.com/wnxd/ndbg/native"
)

type Config struct {
	Path          string
	Args          []string
	Env           []string
	Dir           string
	Stdin         *os.File
	Stdout        *os.File
	Stderr        *os.File
	Suspended     bool
	DetachOnClose bool
}

type Process struct {
	native.Backend
}

func Launch(cfg Config) (*Process, error) {
	return nil, errors.Wrapf(native.ErrArchUnsupported, "launch %s", cfg.Path)
}

func Attach(pid int) (*Process, error) {
	return nil, errors.Wrapf(native.ErrArchUnsupported, "attach %d", pid)
}

func (p *Process) Attached() bool {
	return false
}

func (p *Process) Path() string {
	return ""
}

func (p *Process) ImageBase() uint64 {
	return 0
}
