// Package memory implements a native backend over an in-process address
// space. Stop notifications are injected by the caller, which makes the
// backend suitable for replaying recorded sessions and for tests.
package memory

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/wnxd/ndbg/debugger"
	"github.com/wnxd/ndbg/native"
)

const defaultPageSize = 0x1000

type page struct {
	data []byte
	prot native.MemProt
}

type Range struct {
	Addr, Size uint64
}

type Target struct {
	arch     native.Arch
	pid      int
	tid      int
	pageSize uint64

	mu        sync.Mutex
	pages     map[uint64]*page
	faults    map[uint64]error
	ctx       native.Context
	pending   *native.Event
	flushes   []Range
	resumes   int
	continues int
	breaks    int
	quiesces  int
	quiesced  bool
	stopOnly  bool

	events chan *native.Event
	closed chan struct{}
	once   sync.Once
}

type Option func(*Target)

func WithArch(arch native.Arch) Option {
	return func(t *Target) { t.arch = arch }
}

func WithPID(pid, tid int) Option {
	return func(t *Target) { t.pid, t.tid = pid, tid }
}

func WithPageSize(size uint64) Option {
	return func(t *Target) { t.pageSize = size }
}

func New(opts ...Option) *Target {
	t := &Target{
		arch:     native.ARCH_X86_64,
		pid:      1000,
		tid:      1000,
		pageSize: defaultPageSize,
		pages:    make(map[uint64]*page),
		faults:   make(map[uint64]error),
		events:   make(chan *native.Event, 64),
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Target) Arch() native.Arch {
	return t.arch
}

func (t *Target) PID() int {
	return t.pid
}

func (t *Target) TID() int {
	return t.tid
}

func (t *Target) PageSize() uint64 {
	return t.pageSize
}

func (t *Target) Close() error {
	t.once.Do(func() { close(t.closed) })
	return nil
}

func (t *Target) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

func (t *Target) MemMap(addr, size uint64, prot native.MemProt) error {
	addr = debugger.AlignDown(addr, t.pageSize)
	size = debugger.Align(size, t.pageSize)
	t.mu.Lock()
	defer t.mu.Unlock()
	for off := uint64(0); off < size; off += t.pageSize {
		if _, ok := t.pages[addr+off]; ok {
			return debugger.ErrAddressInvalid
		}
	}
	for off := uint64(0); off < size; off += t.pageSize {
		t.pages[addr+off] = &page{data: make([]byte, t.pageSize), prot: prot}
	}
	return nil
}

func (t *Target) MemUnmap(addr, size uint64) error {
	addr = debugger.AlignDown(addr, t.pageSize)
	size = debugger.Align(size, t.pageSize)
	t.mu.Lock()
	defer t.mu.Unlock()
	for off := uint64(0); off < size; off += t.pageSize {
		delete(t.pages, addr+off)
	}
	return nil
}

func (t *Target) MemRegions() []native.MemRegion {
	t.mu.Lock()
	defer t.mu.Unlock()
	var regions []native.MemRegion
	for _, addr := range slices.Sorted(maps.Keys(t.pages)) {
		p := t.pages[addr]
		if n := len(regions) - 1; n >= 0 && regions[n].End() == addr && regions[n].Prot == p.prot {
			regions[n].Size += t.pageSize
			continue
		}
		regions = append(regions, native.MemRegion{Addr: addr, Size: t.pageSize, Prot: p.prot})
	}
	return regions
}

// FailAt makes any write touching addr fail with err. A nil err clears it.
func (t *Target) FailAt(addr uint64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err == nil {
		delete(t.faults, addr)
	} else {
		t.faults[addr] = err
	}
}

// RequireStop makes memory access fail while the target runs, that is
// while no stop is pending and the target is not quiesced.
func (t *Target) RequireStop(on bool) {
	t.mu.Lock()
	t.stopOnly = on
	t.mu.Unlock()
}

func (t *Target) running() bool {
	return t.stopOnly && t.pending == nil && !t.quiesced
}

func (t *Target) ReadMemory(addr uint64, data []byte) (int, error) {
	if t.isClosed() {
		return 0, native.ErrBackendClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running() {
		return 0, native.ErrNotSuspended
	}
	return t.access(addr, data, false)
}

func (t *Target) WriteMemory(addr uint64, data []byte) (int, error) {
	if t.isClosed() {
		return 0, native.ErrBackendClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running() {
		return 0, native.ErrNotSuspended
	}
	for i := range data {
		if err, ok := t.faults[addr+uint64(i)]; ok {
			n, _ := t.access(addr, data[:i], true)
			return n, err
		}
	}
	return t.access(addr, data, true)
}

// Poke writes to target memory without going through fault injection.
func (t *Target) Poke(addr uint64, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.access(addr, data, true)
	return err
}

func (t *Target) Peek(addr uint64, size int) ([]byte, error) {
	data := make([]byte, size)
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.access(addr, data, false)
	return data[:n], err
}

func (t *Target) access(addr uint64, data []byte, write bool) (int, error) {
	var n int
	for n < len(data) {
		cur := addr + uint64(n)
		base := debugger.AlignDown(cur, t.pageSize)
		p, ok := t.pages[base]
		if !ok || (!write && p.prot&native.MEM_PROT_READ == 0) {
			return n, native.ErrAccessViolation
		}
		off := cur - base
		if write {
			n += copy(p.data[off:], data[n:])
		} else {
			n += copy(data[n:], p.data[off:])
		}
	}
	return n, nil
}

func (t *Target) FlushInstructionCache(addr, size uint64) error {
	t.mu.Lock()
	t.flushes = append(t.flushes, Range{addr, size})
	t.mu.Unlock()
	return nil
}

func (t *Target) Flushes() []Range {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.flushes)
}

func (t *Target) GetContext(ctx *native.Context) error {
	if t.isClosed() {
		return native.ErrBackendClosed
	}
	t.mu.Lock()
	*ctx = t.ctx
	t.mu.Unlock()
	return nil
}

func (t *Target) SetContext(ctx *native.Context) error {
	if t.isClosed() {
		return native.ErrBackendClosed
	}
	t.mu.Lock()
	t.ctx = *ctx
	t.mu.Unlock()
	return nil
}

// Inject queues a stop notification for WaitEvent. Missing PID and TID
// fields are filled with the target's own.
func (t *Target) Inject(ev native.Event) {
	if ev.PID == 0 {
		ev.PID = t.pid
	}
	if ev.TID == 0 {
		ev.TID = t.tid
	}
	t.events <- &ev
}

func (t *Target) WaitEvent(timeout time.Duration) (*native.Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-t.closed:
		return nil, native.ErrBackendClosed
	case <-timer.C:
		return nil, nil
	case ev := <-t.events:
		t.mu.Lock()
		t.pending = ev
		t.mu.Unlock()
		return ev, nil
	}
}

func (t *Target) ContinueEvent(ev *native.Event) error {
	if t.isClosed() {
		return native.ErrBackendClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == ev {
		t.pending = nil
	}
	t.quiesced = false
	t.continues++
	return nil
}

func (t *Target) Resume() error {
	if t.isClosed() {
		return native.ErrBackendClosed
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		return native.ErrNotSuspended
	}
	t.pending = nil
	t.quiesced = false
	t.resumes++
	return nil
}

// Break queues a breakpoint trap at the current instruction pointer, the
// same notification a real target raises for an asynchronous break-in.
func (t *Target) Break() error {
	if t.isClosed() {
		return native.ErrBackendClosed
	}
	t.mu.Lock()
	t.breaks++
	ip := t.ctx.IP
	t.mu.Unlock()
	t.Inject(native.Event{
		Code: native.EVENT_EXCEPTION,
		Exception: native.ExceptionRecord{
			Signal:      native.SIGTRAP,
			Code:        native.SI_TKILL,
			Address:     ip,
			FirstChance: true,
		},
	})
	return nil
}

// Quiesce holds every thread of the target stopped until it is resumed.
func (t *Target) Quiesce() error {
	if t.isClosed() {
		return native.ErrBackendClosed
	}
	t.mu.Lock()
	t.quiesced = true
	t.quiesces++
	t.mu.Unlock()
	return nil
}

// Stop terminates the target by queueing its exit notification.
func (t *Target) Stop() error {
	if t.isClosed() {
		return native.ErrBackendClosed
	}
	t.Inject(native.Event{Code: native.EVENT_EXIT_PROCESS, ExitCode: -1})
	return nil
}

func (t *Target) Pending() *native.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

func (t *Target) Resumes() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resumes
}

func (t *Target) Continues() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.continues
}

func (t *Target) Breaks() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.breaks
}

func (t *Target) Quiesces() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.quiesces
}

func (t *Target) Closed() bool {
	return t.isClosed()
}
