//go:build linux

package ptrace

import (
	"maps"
	"slices"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/wnxd/ndbg/native"
	"golang.org/x/sys/unix"
)

var exceptionSignals = map[native.Signal]bool{
	native.SIGTRAP:   true,
	native.SIGFPE:    true,
	native.SIGSEGV:   true,
	native.SIGBUS:    true,
	native.SIGILL:    true,
	native.SIGSTKFLT: true,
}

// reap collects every status change that is ready and turns it into
// queued events. It runs on the tracer thread.
func (p *Process) reap() error {
	p.scanImages()
	for {
		var ws unix.WaitStatus
		wpid, err := unix.Wait4(-1, &ws, unix.WNOHANG|unix.WALL, nil)
		if err == unix.ECHILD {
			p.mu.Lock()
			p.exited = true
			p.mu.Unlock()
			return native.ErrProcessExited
		} else if err != nil {
			return errors.Wrap(err, "wait")
		} else if wpid <= 0 {
			return nil
		}
		if err = p.status(wpid, ws); err != nil {
			return err
		}
		p.mu.Lock()
		queued := len(p.queue)
		p.mu.Unlock()
		if queued > 0 {
			return nil
		}
	}
}

func (p *Process) scanImages() {
	regions, err := readMaps(p.pid)
	if err != nil {
		return
	}
	p.mu.Lock()
	p.queue = append(p.queue, p.diffImages(regions)...)
	p.mu.Unlock()
}

// diffImages reports images mapped or unmapped since the last scan.
func (p *Process) diffImages(regions []native.MemRegion) []*native.Event {
	var events []*native.Event
	current := images(regions)
	for _, path := range slices.Sorted(maps.Keys(current)) {
		if _, ok := p.images[path]; ok {
			continue
		}
		p.images[path] = current[path]
		events = append(events, &native.Event{
			Code: native.EVENT_LOAD_LIBRARY,
			PID:  p.pid,
			TID:  p.pid,
			Base: current[path],
			Path: path,
		})
	}
	for _, path := range slices.Sorted(maps.Keys(p.images)) {
		if _, ok := current[path]; ok {
			continue
		}
		events = append(events, &native.Event{
			Code: native.EVENT_UNLOAD_LIBRARY,
			PID:  p.pid,
			TID:  p.pid,
			Base: p.images[path],
		})
		delete(p.images, path)
	}
	return events
}

func (p *Process) status(tid int, ws unix.WaitStatus) error {
	switch {
	case ws.Exited(), ws.Signaled():
		code := ws.ExitStatus()
		if ws.Signaled() {
			code = 128 + int(ws.Signal())
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.threads, tid)
		if tid == p.pid {
			p.exited = true
			p.queue = append(p.queue, &native.Event{Code: native.EVENT_EXIT_PROCESS, PID: p.pid, TID: tid, ExitCode: code})
		} else {
			p.queue = append(p.queue, &native.Event{Code: native.EVENT_EXIT_THREAD, PID: p.pid, TID: tid, ExitCode: code})
		}
		return nil
	case !ws.Stopped():
		return nil
	}

	sig := ws.StopSignal()
	if sig == unix.SIGTRAP && ws.TrapCause() == unix.PTRACE_EVENT_CLONE {
		msg, err := unix.PtraceGetEventMsg(tid)
		if err != nil {
			return errors.Wrapf(err, "clone event %d", tid)
		}
		p.mu.Lock()
		if _, ok := p.threads[int(msg)]; !ok {
			p.threads[int(msg)] = false
		}
		p.mu.Unlock()
		return errors.Wrapf(unix.PtraceCont(tid, 0), "continue %d", tid)
	} else if ws.TrapCause() > 0 {
		return errors.Wrapf(unix.PtraceCont(tid, 0), "continue %d", tid)
	}

	if sig == unix.SIGSTOP {
		p.mu.Lock()
		announced := p.threads[tid]
		p.threads[tid] = true
		p.mu.Unlock()
		if announced {
			return errors.Wrapf(unix.PtraceCont(tid, 0), "continue %d", tid)
		}
		var ctx native.Context
		if err := getContext(tid, &ctx); err != nil {
			glog.Warningf("thread %d: %v", tid, err)
		}
		p.mu.Lock()
		p.queue = append(p.queue, &native.Event{Code: native.EVENT_CREATE_THREAD, PID: p.pid, TID: tid, Entry: ctx.IP})
		p.mu.Unlock()
		return nil
	}

	if !exceptionSignals[native.Signal(sig)] {
		glog.V(2).Infof("forwarding %s to %d", native.Signal(sig), tid)
		return errors.Wrapf(unix.PtraceCont(tid, int(sig)), "continue %d", tid)
	}
	return p.exception(tid, native.Signal(sig))
}

func (p *Process) exception(tid int, sig native.Signal) error {
	si, err := getSiginfo(tid)
	if err != nil {
		return errors.Wrapf(err, "siginfo %d", tid)
	}
	var ctx native.Context
	if err = getContext(tid, &ctx); err != nil {
		return errors.Wrapf(err, "context %d", tid)
	}
	addr := ctx.IP
	if sig == native.SIGTRAP && (si.Code == native.SI_KERNEL || si.Code == native.TRAP_BRKPT) {
		addr--
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	first := p.injected == nil || p.injected.sig != sig || p.injected.addr != addr
	p.injected = nil
	p.queue = append(p.queue, &native.Event{
		Code: native.EVENT_EXCEPTION,
		PID:  p.pid,
		TID:  tid,
		Exception: native.ExceptionRecord{
			Signal:      sig,
			Code:        si.Code,
			Address:     addr,
			FirstChance: first,
		},
	})
	return nil
}
