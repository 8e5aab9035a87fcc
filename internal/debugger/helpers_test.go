package debugger

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wnxd/ndbg/debugger"
	"github.com/wnxd/ndbg/internal/display"
	"github.com/wnxd/ndbg/native"
	"github.com/wnxd/ndbg/native/memory"
)

const (
	codeBase       = 0x400000
	codeSize       = 0x2000
	timeoutForTest = time.Second
)

type recorder struct {
	mu      sync.Mutex
	events  []debugger.Event
	verdict func(debugger.Event) debugger.SessionState
}

func (r *recorder) HandleEvent(s debugger.Session, ev debugger.Event) debugger.SessionState {
	r.mu.Lock()
	r.events = append(r.events, ev)
	verdict := r.verdict
	r.mu.Unlock()
	if verdict != nil {
		return verdict(ev)
	}
	if _, ok := ev.(debugger.QuitEvent); ok {
		return debugger.STATE_QUIT
	}
	return debugger.STATE_CONTINUE
}

func (r *recorder) Events() []debugger.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]debugger.Event(nil), r.events...)
}

func (r *recorder) setVerdict(fn func(debugger.Event) debugger.SessionState) {
	r.mu.Lock()
	r.verdict = fn
	r.mu.Unlock()
}

type fixture struct {
	dbg    *Debugger
	s      *Session
	target *memory.Target
	out    *syncBuffer
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	target := memory.New()
	require.NoError(t, target.MemMap(codeBase, codeSize, native.MEM_PROT_ALL))
	out := new(syncBuffer)
	dbg := New(display.New(out, out))
	if opts.WaitTimeout == 0 {
		opts.WaitTimeout = 5 * time.Millisecond
	}
	if opts.Name == "" {
		opts.Name = "target"
	}
	s, err := dbg.NewSession(target, opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return &fixture{dbg: dbg, s: s, target: target, out: out}
}

func (f *fixture) run(t *testing.T) <-chan error {
	t.Helper()
	return f.runContext(t, context.Background())
}

func (f *fixture) runContext(t *testing.T, ctx context.Context) <-chan error {
	t.Helper()
	ch := make(chan error, 1)
	go func() {
		ch <- f.s.Run(ctx)
	}()
	return ch
}

func waitState(t *testing.T, s *Session, state debugger.SessionState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.State() == state
	}, time.Second, time.Millisecond, "state never became %s", state)
}

func waitDone(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop")
	}
	return nil
}

func trap(addr uint64) native.Event {
	return native.Event{
		Code: native.EVENT_EXCEPTION,
		Exception: native.ExceptionRecord{
			Signal:      native.SIGTRAP,
			Code:        native.SI_KERNEL,
			Address:     addr,
			FirstChance: true,
		},
	}
}
