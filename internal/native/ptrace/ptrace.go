//go:build linux

// Package ptrace implements the native backend on Linux. Every ptrace
// request is issued from one locked OS thread, which the kernel requires
// of a tracer.
package ptrace

import (
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"github.com/wnxd/ndbg/native"
	"golang.org/x/sys/unix"
)

const pollInterval = 5 * time.Millisecond

type Config struct {
	Path   string
	Args   []string
	Env    []string
	Dir    string
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
	// Suspended keeps the initial stop pending until Resume, so
	// breakpoints can be planted before the first instruction runs.
	Suspended bool
	// DetachOnClose leaves the target running when the process is closed
	// instead of killing it.
	DetachOnClose bool
}

type fault struct {
	sig  native.Signal
	addr uint64
}

type Process struct {
	pid       int
	path      string
	base      uint64
	attached  bool
	detach    bool
	suspended bool

	exec   chan func()
	closed chan struct{}
	once   sync.Once

	mu       sync.Mutex
	threads  map[int]bool
	images   map[string]uint64
	queue    []*native.Event
	pending  *native.Event
	current  int
	exited   bool
	quiesced bool
	injected *fault
}

func newProcess() *Process {
	p := &Process{
		exec:    make(chan func()),
		closed:  make(chan struct{}),
		threads: make(map[int]bool),
		images:  make(map[string]uint64),
	}
	go p.loop()
	return p
}

func (p *Process) loop() {
	runtime.LockOSThread()
	for {
		select {
		case <-p.closed:
			return
		case fn := <-p.exec:
			fn()
		}
	}
}

func (p *Process) mainThreadRun(fn func()) error {
	done := make(chan struct{})
	select {
	case <-p.closed:
		return native.ErrBackendClosed
	case p.exec <- func() {
		defer close(done)
		fn()
	}:
	}
	<-done
	return nil
}

// Launch starts cfg.Path under trace and stops it before its first
// instruction.
func Launch(cfg Config) (*Process, error) {
	p := newProcess()
	var err error
	p.mainThreadRun(func() {
		cmd := exec.Command(cfg.Path, cfg.Args...)
		cmd.Env = cfg.Env
		cmd.Dir = cfg.Dir
		cmd.Stdin, cmd.Stdout, cmd.Stderr = cfg.Stdin, cfg.Stdout, cfg.Stderr
		cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true, Setpgid: true}
		if err = cmd.Start(); err != nil {
			err = errors.Wrapf(err, "launch %s", cfg.Path)
			return
		}
		p.pid = cmd.Process.Pid
		var ws unix.WaitStatus
		if _, err = unix.Wait4(p.pid, &ws, unix.WALL, nil); err != nil {
			err = errors.Wrapf(err, "wait %d", p.pid)
			return
		} else if !ws.Stopped() {
			err = errors.Errorf("launch %s: unexpected status %#x", cfg.Path, uint32(ws))
			return
		}
		err = errors.Wrap(unix.PtraceSetOptions(p.pid, unix.PTRACE_O_TRACECLONE), "set options")
	})
	if err != nil {
		p.shutdown()
		return nil, err
	}
	p.suspended = cfg.Suspended
	p.detach = cfg.DetachOnClose
	p.start()
	glog.V(1).Infof("launched %s as %d", cfg.Path, p.pid)
	return p, nil
}

// Attach stops every thread of a running process and takes it under
// trace. The process is detached again by Close.
func Attach(pid int) (*Process, error) {
	p := newProcess()
	p.pid = pid
	p.attached = true
	p.suspended = true
	var err error
	p.mainThreadRun(func() {
		var tids []int
		if tids, err = listThreads(pid); err != nil {
			err = errors.Wrapf(err, "attach %d", pid)
			return
		}
		for _, tid := range tids {
			if err = unix.PtraceAttach(tid); err != nil {
				err = errors.Wrapf(err, "attach %d", tid)
				return
			}
			var ws unix.WaitStatus
			if _, err = unix.Wait4(tid, &ws, unix.WALL, nil); err != nil {
				err = errors.Wrapf(err, "wait %d", tid)
				return
			}
			if err = unix.PtraceSetOptions(tid, unix.PTRACE_O_TRACECLONE); err != nil {
				err = errors.Wrapf(err, "set options %d", tid)
				return
			}
			p.threads[tid] = true
		}
	})
	if err != nil {
		p.shutdown()
		return nil, err
	}
	p.start()
	glog.V(1).Infof("attached to %d", pid)
	return p, nil
}

// start queues the initial process notification. The main thread is in
// a stop, so the notification is the pending one.
func (p *Process) start() {
	p.threads[p.pid] = true
	p.current = p.pid
	exe := readExe(p.pid)
	regions, err := readMaps(p.pid)
	if err != nil {
		glog.Warningf("maps %d: %v", p.pid, err)
	}
	var base uint64
	for _, r := range regions {
		if r.Path == exe {
			base = r.Addr
			break
		}
	}
	ev := &native.Event{
		Code:  native.EVENT_CREATE_PROCESS,
		PID:   p.pid,
		TID:   p.pid,
		Base:  base,
		Entry: readEntry(p.pid),
		Path:  exe,
	}
	p.path, p.base = exe, base
	p.images[exe] = base
	p.queue = append(p.queue, ev)
	p.queue = append(p.queue, p.diffImages(regions)...)
}

func (p *Process) Arch() native.Arch {
	return hostArch
}

func (p *Process) PID() int {
	return p.pid
}

func (p *Process) TID() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *Process) Attached() bool {
	return p.attached
}

// Path is the executable of the main image as reported by the kernel.
func (p *Process) Path() string {
	return p.path
}

func (p *Process) ImageBase() uint64 {
	return p.base
}

func (p *Process) ReadMemory(addr uint64, data []byte) (n int, err error) {
	tid := p.TID()
	if rerr := p.mainThreadRun(func() {
		n, err = unix.PtracePeekData(tid, uintptr(addr), data)
	}); rerr != nil {
		return 0, rerr
	}
	return
}

func (p *Process) WriteMemory(addr uint64, data []byte) (n int, err error) {
	tid := p.TID()
	if rerr := p.mainThreadRun(func() {
		n, err = unix.PtracePokeData(tid, uintptr(addr), data)
	}); rerr != nil {
		return 0, rerr
	}
	return
}

// FlushInstructionCache is a no-op: x86 keeps instruction fetch coherent
// with ptrace writes.
func (p *Process) FlushInstructionCache(addr, size uint64) error {
	return nil
}

func (p *Process) GetContext(ctx *native.Context) (err error) {
	tid := p.TID()
	if rerr := p.mainThreadRun(func() { err = getContext(tid, ctx) }); rerr != nil {
		return rerr
	}
	return errors.Wrapf(err, "get context %d", tid)
}

func (p *Process) SetContext(ctx *native.Context) (err error) {
	tid := p.TID()
	if rerr := p.mainThreadRun(func() { err = setContext(tid, ctx) }); rerr != nil {
		return rerr
	}
	return errors.Wrapf(err, "set context %d", tid)
}

// Break raises SIGTRAP in the main thread. It shows up as a breakpoint
// exception.
func (p *Process) Break() error {
	return errors.Wrap(unix.Tgkill(p.pid, p.pid, unix.SIGTRAP), "break")
}

// Stop kills the target. Its exit is reported through WaitEvent.
func (p *Process) Stop() error {
	return errors.Wrap(unix.Kill(p.pid, unix.SIGKILL), "stop")
}

func (p *Process) WaitEvent(timeout time.Duration) (*native.Event, error) {
	deadline := time.Now().Add(timeout)
	for {
		if ev, err := p.poll(); ev != nil || err != nil {
			return ev, err
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}
		select {
		case <-p.closed:
			return nil, native.ErrBackendClosed
		case <-time.After(pollInterval):
		}
	}
}

func (p *Process) poll() (*native.Event, error) {
	if ev := p.dequeue(); ev != nil {
		return ev, nil
	}
	p.mu.Lock()
	exited := p.exited
	p.mu.Unlock()
	if exited {
		return nil, native.ErrProcessExited
	}
	var err error
	if rerr := p.mainThreadRun(func() { err = p.reap() }); rerr != nil {
		return nil, rerr
	}
	if err != nil {
		return nil, err
	}
	return p.dequeue(), nil
}

// dequeue pops the next queued event. Events that leave a thread in a
// stop become the pending event.
func (p *Process) dequeue() *native.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil
	}
	ev := p.queue[0]
	p.queue = p.queue[1:]
	switch ev.Code {
	case native.EVENT_CREATE_PROCESS, native.EVENT_CREATE_THREAD, native.EVENT_EXCEPTION:
		p.pending = ev
		p.current = ev.TID
	}
	return ev
}

func (p *Process) ContinueEvent(ev *native.Event) error {
	p.mu.Lock()
	if ev != p.pending {
		p.mu.Unlock()
		return nil
	}
	if p.suspended && ev.Code == native.EVENT_CREATE_PROCESS {
		p.mu.Unlock()
		return nil
	}
	p.pending = nil
	p.mu.Unlock()
	return p.cont(ev)
}

func (p *Process) Resume() error {
	p.mu.Lock()
	ev := p.pending
	p.pending = nil
	p.suspended = false
	p.mu.Unlock()
	if ev == nil {
		return native.ErrNotSuspended
	}
	return p.cont(ev)
}

// cont restarts the thread of ev, or every thread for the initial stop.
// Signals that are not ours are passed on to the target.
func (p *Process) cont(ev *native.Event) (err error) {
	sig := 0
	if ev.Code == native.EVENT_EXCEPTION && ev.Exception.Signal != native.SIGTRAP {
		sig = int(ev.Exception.Signal)
		p.mu.Lock()
		p.injected = &fault{ev.Exception.Signal, ev.Exception.Address}
		p.mu.Unlock()
	}
	tids := []int{ev.TID}
	if ev.Code == native.EVENT_CREATE_PROCESS {
		p.mu.Lock()
		for tid := range p.threads {
			if tid != ev.TID {
				tids = append(tids, tid)
			}
		}
		p.mu.Unlock()
	}
	if rerr := p.mainThreadRun(func() {
		for _, tid := range tids {
			if cerr := unix.PtraceCont(tid, sig); cerr != nil && err == nil {
				err = errors.Wrapf(cerr, "continue %d", tid)
			}
		}
	}); rerr != nil {
		return rerr
	}
	return err
}

func (p *Process) Close() error {
	var err error
	p.mu.Lock()
	exited := p.exited
	p.mu.Unlock()
	if !exited {
		if p.attached || p.detach {
			err = p.detachAll()
		} else {
			err = p.kill()
		}
	}
	p.shutdown()
	return err
}

func (p *Process) shutdown() {
	p.once.Do(func() { close(p.closed) })
}

func (p *Process) kill() error {
	var err error
	p.mainThreadRun(func() {
		if err = unix.Kill(p.pid, unix.SIGKILL); err != nil {
			err = errors.Wrapf(err, "kill %d", p.pid)
			return
		}
		var ws unix.WaitStatus
		for {
			wpid, werr := unix.Wait4(-1, &ws, unix.WALL, nil)
			if werr != nil || (wpid == p.pid && (ws.Exited() || ws.Signaled())) {
				return
			}
		}
	})
	return err
}

// stopped lists the threads known to sit in a ptrace stop: the thread of
// every reported but not yet continued event, and all threads while the
// initial stop is outstanding.
func (p *Process) stopped() map[int]bool {
	tids := make(map[int]bool)
	events := p.queue
	if p.pending != nil {
		events = append([]*native.Event{p.pending}, events...)
	}
	for _, ev := range events {
		switch ev.Code {
		case native.EVENT_CREATE_PROCESS:
			for tid := range p.threads {
				tids[tid] = true
			}
		case native.EVENT_CREATE_THREAD, native.EVENT_EXCEPTION:
			tids[ev.TID] = true
		}
	}
	return tids
}

// Quiesce stops every thread that is still running. The threads stay
// stopped until Close releases them.
func (p *Process) Quiesce() error {
	p.mu.Lock()
	if p.exited || p.quiesced {
		p.mu.Unlock()
		return nil
	}
	p.quiesced = true
	stopped := p.stopped()
	threads := make([]int, 0, len(p.threads))
	for tid := range p.threads {
		if !stopped[tid] {
			threads = append(threads, tid)
		}
	}
	p.mu.Unlock()
	var err error
	if rerr := p.mainThreadRun(func() {
		for _, tid := range threads {
			if kerr := unix.Tgkill(p.pid, tid, unix.SIGSTOP); kerr == unix.ESRCH {
				continue
			} else if kerr != nil {
				if err == nil {
					err = errors.Wrapf(kerr, "stop %d", tid)
				}
				continue
			}
			var ws unix.WaitStatus
			unix.Wait4(tid, &ws, unix.WALL, nil)
		}
	}); rerr != nil {
		return rerr
	}
	glog.V(1).Infof("stopped %d threads of %d", len(threads), p.pid)
	return err
}

// detachAll stops every thread that is still running and releases them all.
func (p *Process) detachAll() error {
	err := p.Quiesce()
	p.mainThreadRun(func() {
		p.mu.Lock()
		threads := make([]int, 0, len(p.threads))
		for tid := range p.threads {
			threads = append(threads, tid)
		}
		p.mu.Unlock()
		for _, tid := range threads {
			if derr := unix.PtraceDetach(tid); derr != nil && err == nil {
				err = errors.Wrapf(derr, "detach %d", tid)
			}
		}
		unix.Kill(p.pid, unix.SIGCONT)
	})
	glog.V(1).Infof("detached from %d", p.pid)
	return err
}
