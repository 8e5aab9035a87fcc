package debugger

import "github.com/wnxd/ndbg/native"

type Context = native.Context
