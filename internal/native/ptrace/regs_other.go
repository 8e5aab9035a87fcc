//go:build linux && !amd64

package ptrace

import "github.com/wnxd/ndbg/native"

const hostArch = native.ARCH_UNKNOWN

func getContext(int, *native.Context) error {
	return native.ErrArchUnsupported
}

func setContext(int, *native.Context) error {
	return native.ErrArchUnsupported
}
