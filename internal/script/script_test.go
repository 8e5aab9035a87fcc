package script

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/ndbg/debugger"
	"github.com/wnxd/ndbg/internal/display"
	lua "github.com/yuin/gopher-lua"
)

type fakeSession struct {
	breakpoints []uint64
	removed     []uint64
	requests    []debugger.SessionRequest
	memory      []byte
	ctx         debugger.Context
}

func (s *fakeSession) ID() string                    { return "test" }
func (s *fakeSession) State() debugger.SessionState  { return debugger.STATE_CONTINUE }
func (s *fakeSession) Process() debugger.ProcessInfo { return debugger.ProcessInfo{Name: "target"} }

func (s *fakeSession) GetContext() (*debugger.Context, error) {
	return &s.ctx, nil
}

func (s *fakeSession) SendEvent(req debugger.SessionRequest, _ debugger.EventSource) error {
	s.requests = append(s.requests, req)
	return nil
}

func (s *fakeSession) SetBreakpoint(addr uint64, _ debugger.BreakpointKind) (debugger.Breakpoint, error) {
	for _, a := range s.breakpoints {
		if a == addr {
			return debugger.Breakpoint{}, debugger.ErrBreakpointExists
		}
	}
	s.breakpoints = append(s.breakpoints, addr)
	return debugger.Breakpoint{ID: uint32(len(s.breakpoints)), Address: addr}, nil
}

func (s *fakeSession) RemoveBreakpoint(addr uint64) error {
	s.removed = append(s.removed, addr)
	return nil
}

func (s *fakeSession) ReadMemory(addr uint64, data []byte) (int, error) {
	return copy(data, s.memory), nil
}

type fallback struct {
	events []debugger.Event
}

func (f *fallback) HandleEvent(_ debugger.Session, ev debugger.Event) debugger.SessionState {
	f.events = append(f.events, ev)
	if ev.Kind() == debugger.EVENT_QUIT {
		return debugger.STATE_QUIT
	}
	return debugger.STATE_CONTINUE
}

func newTestHandler(t *testing.T, code string) (*Handler, *fallback, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	fb := new(fallback)
	h := New(fb, display.New(&out, &out))
	t.Cleanup(func() { h.Close() })
	if code != "" {
		require.NoError(t, h.DoString(code))
	}
	return h, fb, &out
}

func TestNoEntryPointFallsBack(t *testing.T) {
	h, fb, _ := newTestHandler(t, "")
	state := h.HandleEvent(&fakeSession{}, debugger.ExitProcessEvent{ExitCode: 3})
	assert.Equal(t, debugger.STATE_CONTINUE, state)
	assert.Len(t, fb.events, 1)
}

func TestVerdict(t *testing.T) {
	h, fb, _ := newTestHandler(t, `
function on_event(ev)
	seen_kind = ev.kind
	seen_address = ev.address
	if ev.kind == "exception" then
		return "suspend"
	end
	return nil
end`)
	state := h.HandleEvent(&fakeSession{}, debugger.ExceptionEvent{Code: debugger.EXCEPTION_BREAKPOINT, Address: 0x401000, FirstChance: true})
	assert.Equal(t, debugger.STATE_SUSPEND, state)
	assert.Empty(t, fb.events)
	assert.Equal(t, lua.LString("exception"), h.L.GetGlobal("seen_kind"))
	assert.Equal(t, lua.LNumber(0x401000), h.L.GetGlobal("seen_address"))

	state = h.HandleEvent(&fakeSession{}, debugger.PrintEvent{Text: "hi"})
	assert.Equal(t, debugger.STATE_CONTINUE, state)
	assert.Len(t, fb.events, 1)
}

func TestBadVerdictFallsBack(t *testing.T) {
	h, fb, _ := newTestHandler(t, `function on_event(ev) return "sideways" end`)
	h.HandleEvent(&fakeSession{}, debugger.PrintEvent{})
	assert.Len(t, fb.events, 1)
}

func TestScriptErrorFallsBack(t *testing.T) {
	h, fb, out := newTestHandler(t, `function on_event(ev) error("boom") end`)
	state := h.HandleEvent(&fakeSession{}, debugger.PrintEvent{})
	assert.Equal(t, debugger.STATE_CONTINUE, state)
	assert.Len(t, fb.events, 1)
	assert.Contains(t, out.String(), "(ndbg) error: script:")
	assert.Contains(t, out.String(), "boom")
}

func TestSessionFunctions(t *testing.T) {
	h, _, out := newTestHandler(t, `
function on_event(ev)
	ndbg.log("entry " .. ev.image_name)
	bp_id = ndbg.set_breakpoint(ev.entry)
	dup_id, dup_err = ndbg.set_breakpoint(ev.entry)
	ndbg.remove_breakpoint(0x500000)
	bytes = ndbg.read_memory(ev.entry, 2)
	rip = ndbg.register("rip")
	no_reg, reg_err = ndbg.register("xyz")
	return "continue"
end`)
	s := &fakeSession{memory: []byte{0x55, 0x48, 0x89}}
	s.ctx.IP = 0x401000
	state := h.HandleEvent(s, debugger.CreateProcessEvent{ImageName: "target", Entry: 0x401000})
	assert.Equal(t, debugger.STATE_CONTINUE, state)

	assert.Equal(t, "(ndbg) entry target\n", out.String())
	assert.Equal(t, []uint64{0x401000}, s.breakpoints)
	assert.Equal(t, []uint64{0x500000}, s.removed)
	assert.Equal(t, lua.LNumber(1), h.L.GetGlobal("bp_id"))
	assert.Equal(t, lua.LNil, h.L.GetGlobal("dup_id"))
	assert.Equal(t, lua.LString(debugger.ErrBreakpointExists.Error()), h.L.GetGlobal("dup_err"))
	assert.Equal(t, lua.LString("\x55\x48"), h.L.GetGlobal("bytes"))
	assert.Equal(t, lua.LNumber(0x401000), h.L.GetGlobal("rip"))
	assert.Equal(t, lua.LNil, h.L.GetGlobal("no_reg"))
	assert.NotEqual(t, lua.LNil, h.L.GetGlobal("reg_err"))
}

func TestSendIsIssuedAfterCall(t *testing.T) {
	h, _, _ := newTestHandler(t, `
function on_event(ev)
	if ev.kind == "print" then
		ndbg.send("break")
		ok, err = ndbg.send("sideways")
	end
	return "continue"
end`)
	s := &fakeSession{}
	h.HandleEvent(s, debugger.PrintEvent{Text: "x"})
	assert.Equal(t, []debugger.SessionRequest{debugger.SESSION_BREAK}, s.requests)
	assert.Equal(t, lua.LNil, h.L.GetGlobal("ok"))
}

func TestFunctionsOutsideEvent(t *testing.T) {
	h, _, _ := newTestHandler(t, "")
	require.NoError(t, h.DoString(`id, err = ndbg.set_breakpoint(0x1000)`))
	assert.Equal(t, lua.LString(ErrNoSession.Error()), h.L.GetGlobal("err"))
}

func TestClosed(t *testing.T) {
	h, fb, _ := newTestHandler(t, `function on_event(ev) return "quit" end`)
	require.NoError(t, h.Close())
	assert.ErrorIs(t, h.DoString("x = 1"), ErrClosed)
	assert.Equal(t, debugger.STATE_QUIT, h.HandleEvent(&fakeSession{}, debugger.QuitEvent{}))
	assert.Len(t, fb.events, 1)
}
