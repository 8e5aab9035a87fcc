// Package script lets a Lua file decide what happens on each debug event.
//
// The script defines a global on_event(ev) function. ev is a table with a
// kind field plus the fields of the event. Returning "continue",
// "suspend", "quit" or "ignored" sets the next session state; returning
// nil leaves the decision to the fallback handler. The ndbg table gives
// the script access to the session.
package script

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang/glog"
	"github.com/wnxd/ndbg/debugger"
	"github.com/wnxd/ndbg/internal/display"
	lua "github.com/yuin/gopher-lua"
)

const entryPoint = "on_event"

var (
	ErrClosed     = errors.New("script closed")
	ErrNoSession  = errors.New("no session in scope")
	errBadVerdict = errors.New("bad verdict")
)

var stateNames = map[string]debugger.SessionState{
	"continue": debugger.STATE_CONTINUE,
	"suspend":  debugger.STATE_SUSPEND,
	"quit":     debugger.STATE_QUIT,
	"ignored":  debugger.STATE_IGNORED,
}

var requestNames = map[string]debugger.SessionRequest{
	"quit":     debugger.SESSION_QUIT,
	"break":    debugger.SESSION_BREAK,
	"continue": debugger.SESSION_CONTINUE,
}

type Handler struct {
	mu       sync.Mutex
	L        *lua.LState
	fallback debugger.Handler
	display  *display.Display
	session  debugger.Session
	requests []debugger.SessionRequest
	closed   bool
}

var _ debugger.Handler = (*Handler)(nil)

func New(fallback debugger.Handler, out *display.Display) *Handler {
	if out == nil {
		out = display.Discard()
	}
	h := &Handler{
		L:        lua.NewState(lua.Options{SkipOpenLibs: true}),
		fallback: fallback,
		display:  out,
	}
	for _, open := range []lua.LGFunction{lua.OpenBase, lua.OpenTable, lua.OpenString, lua.OpenMath} {
		open(h.L)
	}
	h.L.SetGlobal("ndbg", h.L.SetFuncs(h.L.NewTable(), map[string]lua.LGFunction{
		"log":               h.luaLog,
		"set_breakpoint":    h.luaSetBreakpoint,
		"remove_breakpoint": h.luaRemoveBreakpoint,
		"read_memory":       h.luaReadMemory,
		"register":          h.luaRegister,
		"send":              h.luaSend,
	}))
	return h
}

func (h *Handler) DoFile(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	return h.L.DoFile(path)
}

func (h *Handler) DoString(code string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	return h.L.DoString(code)
}

func (h *Handler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		h.L.Close()
	}
	return nil
}

func (h *Handler) HandleEvent(s debugger.Session, ev debugger.Event) debugger.SessionState {
	state, ok, requests := h.call(s, ev)
	for _, req := range requests {
		if err := s.SendEvent(req, debugger.SOURCE_COMMAND); err != nil {
			glog.Warningf("script %s request: %v", req, err)
		}
	}
	if ok {
		return state
	}
	if h.fallback == nil {
		return debugger.STATE_CONTINUE
	}
	return h.fallback.HandleEvent(s, ev)
}

// call runs on_event. Requests the script sends are returned rather than
// issued, since a quit request re-enters the handler.
func (h *Handler) call(s debugger.Session, ev debugger.Event) (state debugger.SessionState, ok bool, requests []debugger.SessionRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	fn, isFunc := h.L.GetGlobal(entryPoint).(*lua.LFunction)
	if !isFunc {
		return
	}
	h.session = s
	defer func() {
		requests = h.requests
		h.session, h.requests = nil, nil
	}()

	if err := h.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, h.eventTable(ev)); err != nil {
		glog.Warningf("script %s: %v", entryPoint, err)
		h.display.Error("script: %v", err)
		return
	}
	ret := h.L.Get(-1)
	h.L.Pop(1)
	switch v := ret.(type) {
	case *lua.LNilType:
		return
	case lua.LString:
		if state, ok = stateNames[string(v)]; ok {
			return
		}
	}
	glog.Warningf("script %s: %v %q", entryPoint, errBadVerdict, ret.String())
	return
}

func (h *Handler) eventTable(ev debugger.Event) *lua.LTable {
	t := h.L.NewTable()
	t.RawSetString("kind", lua.LString(ev.Kind().String()))
	switch ev := ev.(type) {
	case debugger.ExceptionEvent:
		t.RawSetString("code", lua.LString(ev.Code.String()))
		t.RawSetString("type", lua.LString(ev.Type.String()))
		t.RawSetString("address", lua.LNumber(ev.Address))
		t.RawSetString("first_chance", lua.LBool(ev.FirstChance))
	case debugger.CreateThreadEvent:
		t.RawSetString("tid", lua.LNumber(ev.TID))
		t.RawSetString("entry", lua.LNumber(ev.Entry))
	case debugger.ExitThreadEvent:
		t.RawSetString("tid", lua.LNumber(ev.TID))
		t.RawSetString("exit_code", lua.LNumber(ev.ExitCode))
	case debugger.CreateProcessEvent:
		t.RawSetString("image_base", lua.LNumber(ev.ImageBase))
		t.RawSetString("entry", lua.LNumber(ev.Entry))
		t.RawSetString("image_name", lua.LString(ev.ImageName))
	case debugger.ExitProcessEvent:
		t.RawSetString("exit_code", lua.LNumber(ev.ExitCode))
	case debugger.PrintEvent:
		t.RawSetString("text", lua.LString(ev.Text))
	case debugger.QuitEvent:
		t.RawSetString("code", lua.LNumber(ev.Code))
		t.RawSetString("source", lua.LString(ev.Source.String()))
	}
	return t
}

// fail pushes the nil, message pair scripts expect from a failed call.
func fail(L *lua.LState, err error) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(err.Error()))
	return 2
}

func (h *Handler) luaLog(L *lua.LState) int {
	h.display.Message("%s", L.CheckString(1))
	return 0
}

func (h *Handler) luaSetBreakpoint(L *lua.LState) int {
	addr := uint64(L.CheckNumber(1))
	if h.session == nil {
		return fail(L, ErrNoSession)
	}
	bp, err := h.session.SetBreakpoint(addr, debugger.BREAK_SOFT)
	if err != nil {
		return fail(L, err)
	}
	L.Push(lua.LNumber(bp.ID))
	return 1
}

func (h *Handler) luaRemoveBreakpoint(L *lua.LState) int {
	addr := uint64(L.CheckNumber(1))
	if h.session == nil {
		return fail(L, ErrNoSession)
	}
	if err := h.session.RemoveBreakpoint(addr); err != nil {
		return fail(L, err)
	}
	L.Push(lua.LTrue)
	return 1
}

func (h *Handler) luaReadMemory(L *lua.LState) int {
	addr := uint64(L.CheckNumber(1))
	size := L.CheckInt(2)
	if h.session == nil {
		return fail(L, ErrNoSession)
	}
	if size < 0 {
		return fail(L, debugger.ErrArgumentInvalid)
	}
	data := make([]byte, min(size, debugger.MaxReadSize))
	n, err := h.session.ReadMemory(addr, data)
	if err != nil && n == 0 {
		return fail(L, err)
	}
	L.Push(lua.LString(data[:n]))
	return 1
}

func (h *Handler) luaRegister(L *lua.LState) int {
	name := L.CheckString(1)
	if h.session == nil {
		return fail(L, ErrNoSession)
	}
	ctx, err := h.session.GetContext()
	if err != nil {
		return fail(L, err)
	}
	value, ok := ctx.Reg(name)
	if !ok {
		return fail(L, fmt.Errorf("%w: register %s", debugger.ErrArgumentInvalid, name))
	}
	L.Push(lua.LNumber(value))
	return 1
}

func (h *Handler) luaSend(L *lua.LState) int {
	name := L.CheckString(1)
	if h.session == nil {
		return fail(L, ErrNoSession)
	}
	req, ok := requestNames[name]
	if !ok {
		return fail(L, fmt.Errorf("%w: request %s", debugger.ErrArgumentInvalid, name))
	}
	h.requests = append(h.requests, req)
	L.Push(lua.LTrue)
	return 1
}
