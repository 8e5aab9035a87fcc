package console

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wnxd/ndbg/debugger"
	engine "github.com/wnxd/ndbg/internal/debugger"
	"github.com/wnxd/ndbg/internal/display"
	"github.com/wnxd/ndbg/native"
	"github.com/wnxd/ndbg/native/memory"
)

const codeBase = 0x400000

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

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type symbols map[string]uint64

func (s symbols) LoadAll(debugger.ProcessInfo) (debugger.SymbolTable, error) {
	return debugger.SymbolTable{Count: len(s)}, nil
}

func (s symbols) Release(debugger.ProcessInfo) {}

func (s symbols) ResolveByName(name string) (debugger.Symbol, error) {
	if addr, ok := s[name]; ok {
		return debugger.Symbol{Name: name, Addr: addr}, nil
	}
	return debugger.Symbol{}, debugger.ErrSymbolNotFound
}

func (s symbols) ResolveByAddress(addr uint64) (debugger.Symbol, error) {
	return debugger.Symbol{}, debugger.ErrSymbolNotFound
}

type fixture struct {
	con    *Console
	dbg    *engine.Debugger
	target *memory.Target
	out    *syncBuffer
}

func newFixture(t *testing.T, in string) *fixture {
	t.Helper()
	out := new(syncBuffer)
	dbg := engine.New(display.New(out, out))
	target := memory.New()
	require.NoError(t, target.MemMap(codeBase, 0x2000, native.MEM_PROT_ALL))
	s, err := dbg.NewSession(target, engine.Options{Name: "target", Symbols: symbols{"main": 0x401010}})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return &fixture{
		con:    New(dbg, strings.NewReader(in), WithInteractive(false)),
		dbg:    dbg,
		target: target,
		out:    out,
	}
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t, "")
	quit, err := f.con.Execute("frobnicate now")
	assert.False(t, quit)
	assert.NoError(t, err)
	assert.Equal(t, "(ndbg) error: Unknown command 'frobnicate', ignored.\n", f.out.String())
}

func TestEmptyLine(t *testing.T) {
	f := newFixture(t, "")
	quit, err := f.con.Execute("   ")
	assert.False(t, quit)
	assert.NoError(t, err)
	assert.Empty(t, f.out.String())
}

func TestDuplicateRegister(t *testing.T) {
	f := newFixture(t, "")
	assert.ErrorIs(t, f.con.Register("b", "again", nil), ErrDuplicateCommand)
}

func TestPlaceholderCommands(t *testing.T) {
	f := newFixture(t, "")
	for _, name := range []string{"attach", "detach", "restart", "be", "bd", "t", "ext", "s"} {
		_, err := f.con.Execute(name)
		assert.ErrorIs(t, err, debugger.ErrNotImplemented, name)
	}
}

func TestHelpListsCommands(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.con.Execute("help")
	require.NoError(t, err)
	out := f.out.String()
	assert.Contains(t, out, "Command\t| Description\n")
	for _, cmd := range f.con.Commands() {
		assert.Contains(t, out, cmd.Name+"\t| "+cmd.Descr+"\n")
	}
}

func TestBreakpointCommands(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.con.Execute("b 0x401000")
	require.NoError(t, err)
	_, err = f.con.Execute("b main once")
	require.NoError(t, err)
	_, err = f.con.Execute("b 401a20")
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "(ndbg) Breakpoint 1 set at 0x401000\n")
	assert.Contains(t, f.out.String(), "(ndbg) Breakpoint 2 set at 0x401010\n")

	data, err := f.target.Peek(0x401010, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{debugger.TrapOpcode}, data)

	f.out.Reset()
	_, err = f.con.Execute("bl")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(f.out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "0x0000000000401010")
	assert.Contains(t, lines[1], "once")

	_, err = f.con.Execute("bc 0x401000")
	require.NoError(t, err)
	list, err := f.dbg.Breakpoints()
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.con.Execute("bc 0x401000")
	assert.ErrorIs(t, err, debugger.ErrBreakpointNotFound)
}

func TestBreakpointSyntax(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.con.Execute("b")
	assert.ErrorIs(t, err, debugger.ErrArgumentInvalid)
	assert.Contains(t, f.out.String(), "Syntax : b")

	_, err = f.con.Execute("b nowhere")
	assert.ErrorIs(t, err, debugger.ErrSymbolNotFound)
}

func TestRegisters(t *testing.T) {
	f := newFixture(t, "")
	var ctx native.Context
	require.NoError(t, f.target.GetContext(&ctx))
	ctx.IP = 0x401000
	ctx.General.AX = 0x2a
	require.NoError(t, f.target.SetContext(&ctx))

	_, err := f.con.Execute("r")
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "RAX : 0x2a\n")
	assert.Contains(t, f.out.String(), "IP : 0x401000\n")
}

func TestDisassembleAtIP(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, f.target.Poke(0x401000, []byte{0x55, 0x48, 0x89, 0xE5, 0xC3}))
	var ctx native.Context
	require.NoError(t, f.target.GetContext(&ctx))
	ctx.IP = 0x401000
	require.NoError(t, f.target.SetContext(&ctx))

	_, err := f.con.Execute("u")
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "push rbp")

	f.out.Reset()
	_, err = f.con.Execute("u 0x401001 1")
	require.NoError(t, err)
	assert.Contains(t, f.out.String(), "mov rbp, rsp")
	assert.NotContains(t, f.out.String(), "ret")
}

func TestDumpMemory(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, f.target.Poke(0x401000, []byte("ABCDEFGHIJKLMNOPQR")))
	_, err := f.con.Execute("b 0x401001")
	require.NoError(t, err)

	f.out.Reset()
	_, err = f.con.Execute("db 0x401000 18")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(f.out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "0x0000000000401000  41 42 43 44 45 46 47 48 49 4a 4b 4c 4d 4e 4f 50  ABCDEFGHIJKLMNOP", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "0x0000000000401010  51 52    "))
	assert.True(t, strings.HasSuffix(lines[1], " QR"))
}

func TestContinueWithoutStop(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.con.Execute("c")
	assert.ErrorIs(t, err, native.ErrNotSuspended)
}

func TestBreakCommand(t *testing.T) {
	f := newFixture(t, "")
	_, err := f.con.Execute("break")
	require.NoError(t, err)
	assert.Equal(t, 1, f.target.Breaks())
}

func TestQuitConfirmed(t *testing.T) {
	f := newFixture(t, "")
	quit, err := f.con.Execute("q")
	assert.True(t, quit)
	assert.NoError(t, err)
	s, err := f.dbg.Current()
	require.NoError(t, err)
	assert.Equal(t, debugger.STATE_QUIT, s.State())
	assert.Contains(t, f.out.String(), "QUIT Command received; quitting...")
}

func TestRunStopsAtEndOfInput(t *testing.T) {
	f := newFixture(t, "version\nbogus\n")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.con.Run(ctx))
	out := f.out.String()
	assert.Contains(t, out, "Type \"help\" for information and \"q\" to quit.\n")
	assert.Contains(t, out, Product+" "+Version+"\n")
	assert.Contains(t, out, "Unknown command 'bogus', ignored.")
	assert.Contains(t, out, "QUIT Command received")
	assert.NotContains(t, out, DefaultPrompt)
}

func TestRunPromptsWhenInteractive(t *testing.T) {
	f := newFixture(t, "q\n")
	f.con = New(f.dbg, strings.NewReader("q\n"), WithInteractive(true), WithPrompt("> "))
	require.NoError(t, f.con.Run(context.Background()))
	assert.Contains(t, f.out.String(), "> ")
}
