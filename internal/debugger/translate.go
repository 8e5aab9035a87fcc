package debugger

import (
	"path/filepath"
	"unicode/utf16"

	"github.com/golang/glog"
	"github.com/wnxd/ndbg/debugger"
	"github.com/wnxd/ndbg/internal/display"
	"github.com/wnxd/ndbg/native"
)

const unknownImage = "<unknown>"

type translator struct {
	proc    *Process
	dsp     *dispatcher
	display *display.Display
}

func (tr *translator) ctor(proc *Process, dsp *dispatcher, d *display.Display) {
	tr.proc = proc
	tr.dsp = dsp
	tr.display = d
}

// translate converts a native stop notification. It reports false for
// notifications that are handled internally and never reach the handler.
func (tr *translator) translate(ev *native.Event) (debugger.Event, bool) {
	glog.V(2).Infof("native %s", ev)
	switch ev.Code {
	case native.EVENT_CREATE_PROCESS:
		name := tr.imageName(ev)
		tr.proc.mu.Lock()
		if tr.proc.info.Name == "" {
			tr.proc.info.Name = name
		}
		if tr.proc.info.Base == 0 {
			tr.proc.info.Base = ev.Base
		}
		tr.proc.threads.Append(debugger.Thread{TID: ev.TID, Entry: ev.Entry})
		tr.proc.mu.Unlock()
		return debugger.CreateProcessEvent{
			ImageBase: ev.Base,
			Entry:     ev.Entry,
			ImageName: name,
		}, true
	case native.EVENT_CREATE_THREAD:
		tr.proc.mu.Lock()
		tr.proc.threads.Append(debugger.Thread{TID: ev.TID, Entry: ev.Entry})
		tr.proc.mu.Unlock()
		return debugger.CreateThreadEvent{TID: ev.TID, Entry: ev.Entry}, true
	case native.EVENT_EXIT_THREAD:
		tr.proc.mu.Lock()
		if h, _ := tr.proc.threads.Find(func(t *debugger.Thread) bool { return t.TID == ev.TID }); h != nil {
			tr.proc.threads.RemoveHandle(h)
		}
		tr.proc.mu.Unlock()
		return debugger.ExitThreadEvent{TID: ev.TID, ExitCode: ev.ExitCode}, true
	case native.EVENT_EXIT_PROCESS:
		return debugger.ExitProcessEvent{ExitCode: ev.ExitCode}, true
	case native.EVENT_EXCEPTION:
		code := mapException(ev.Exception.Signal, ev.Exception.Code)
		return debugger.ExceptionEvent{
			FirstChance: ev.Exception.FirstChance,
			Code:        code,
			Type:        code.Type(),
			Address:     ev.Exception.Address,
		}, true
	case native.EVENT_OUTPUT_STRING:
		return debugger.PrintEvent{Text: tr.debugString(ev.Output)}, true
	case native.EVENT_LOAD_LIBRARY:
		name := tr.imageName(ev)
		tr.proc.mu.Lock()
		tr.proc.libraries.Append(debugger.Library{Name: name, Base: ev.Base})
		tr.proc.mu.Unlock()
		tr.display.Message("(%d) Loaded '%s'", ev.PID, name)
	case native.EVENT_UNLOAD_LIBRARY:
		tr.proc.mu.Lock()
		h, _ := tr.proc.libraries.Find(func(lib *debugger.Library) bool { return lib.Base == ev.Base })
		if h != nil {
			tr.proc.libraries.RemoveHandle(h)
		}
		tr.proc.mu.Unlock()
		if h != nil {
			tr.display.Message("(%d) Unloaded '%s'", ev.PID, h.Value.Name)
		} else {
			tr.display.Message("(%d) Unloaded unknown library", ev.PID)
		}
	case native.EVENT_RIP:
		tr.display.Message("RIP Event, error: %d, type: %d", ev.RIP.Error, ev.RIP.Type)
	default:
		glog.Warningf("unknown native event %s", ev.Code)
	}
	return nil, false
}

// imageName resolves the name of an image. ImageName points at a pointer
// to the string inside the target.
func (tr *translator) imageName(ev *native.Event) string {
	if ev.Path != "" {
		return filepath.Base(ev.Path)
	} else if ev.ImageName == 0 {
		return unknownImage
	}
	ptr, err := tr.dsp.ToPointer(ev.ImageName).MemReadPointer()
	if err != nil || ptr.IsNil() {
		return unknownImage
	}
	var name string
	if ev.Unicode {
		name, err = ptr.MemReadWString()
	} else {
		name, err = ptr.MemReadString()
	}
	if err != nil || name == "" {
		return unknownImage
	}
	return filepath.Base(name)
}

// debugString copies a debug string out of the target. The last unit of
// the reported length is always treated as the terminator.
func (tr *translator) debugString(rec native.StringRecord) string {
	if rec.Length == 0 {
		return ""
	}
	size := rec.Length
	if rec.Unicode {
		size *= 2
	}
	buf := make([]byte, size)
	n, err := tr.dsp.ReadMemory(rec.Address, buf)
	if err != nil {
		glog.Warningf("debug string at %016X: %v", rec.Address, err)
	}
	buf = buf[:n]
	if !rec.Unicode {
		if uint64(len(buf)) == rec.Length {
			buf = buf[:len(buf)-1]
		}
		for i, b := range buf {
			if b == 0 {
				return string(buf[:i])
			}
		}
		return string(buf)
	}
	units := make([]uint16, 0, len(buf)/2)
	for i := 0; i+1 < len(buf); i += 2 {
		u := uint16(buf[i]) | uint16(buf[i+1])<<8
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	if uint64(len(units)) == rec.Length {
		units = units[:len(units)-1]
	}
	return string(utf16.Decode(units))
}

func mapException(sig native.Signal, code int32) debugger.Exception {
	switch sig {
	case native.SIGTRAP:
		switch code {
		case native.TRAP_TRACE, native.TRAP_BRANCH, native.TRAP_HWBKPT:
			return debugger.EXCEPTION_SINGLE_STEP
		}
		return debugger.EXCEPTION_BREAKPOINT
	case native.SIGFPE:
		switch code {
		case native.FPE_INTDIV:
			return debugger.EXCEPTION_INT_DIVIDE
		case native.FPE_INTOVF:
			return debugger.EXCEPTION_INT_OVERFLOW
		case native.FPE_FLTDIV:
			return debugger.EXCEPTION_FLT_DIVIDE
		case native.FPE_FLTOVF:
			return debugger.EXCEPTION_FLT_OVERFLOW
		case native.FPE_FLTUND:
			return debugger.EXCEPTION_FLT_UNDERFLOW
		case native.FPE_FLTRES:
			return debugger.EXCEPTION_FLT_INEXACT_RESULT
		case native.FPE_FLTINV:
			return debugger.EXCEPTION_FLT_INVALID_OP
		case native.FPE_FLTSUB:
			return debugger.EXCEPTION_BOUNDS
		}
	case native.SIGSEGV:
		switch code {
		case native.SEGV_MAPERR:
			return debugger.EXCEPTION_PAGE_FAULT
		case native.SEGV_ACCERR:
			return debugger.EXCEPTION_SEGMENT
		}
	case native.SIGBUS:
		if code == native.BUS_ADRALN {
			return debugger.EXCEPTION_ALIGNMENT
		}
		return debugger.EXCEPTION_PAGE_FAULT
	case native.SIGILL:
		if code == native.ILL_PRVOPC || code == native.ILL_PRVREG {
			return debugger.EXCEPTION_GPF
		}
		return debugger.EXCEPTION_INVALID_OPCODE
	case native.SIGSTKFLT:
		return debugger.EXCEPTION_STACK
	}
	return debugger.EXCEPTION_GPF
}
