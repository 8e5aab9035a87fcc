package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.WaitTimeout())
	assert.True(t, cfg.KillOnExit)
	assert.Equal(t, DefaultPrompt, cfg.Prompt)
	assert.Empty(t, cfg.Breakpoints)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ndbg.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
wait_timeout_ms = 250
kill_on_exit = false
script = "hooks.lua"

[[breakpoint]]
address = "0x401000"

[[breakpoint]]
symbol = "main"
once = true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.WaitTimeout())
	assert.False(t, cfg.KillOnExit)
	assert.Equal(t, DefaultPrompt, cfg.Prompt)
	assert.Equal(t, "hooks.lua", cfg.Script)
	require.Len(t, cfg.Breakpoints, 2)

	addr, err := cfg.Breakpoints[0].Addr()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x401000), addr)
	assert.Equal(t, Breakpoint{Symbol: "main", Once: true}, cfg.Breakpoints[1])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseErrors(t *testing.T) {
	for name, input := range map[string]string{
		"syntax":        "wait_timeout_ms = ",
		"unknown field": "colour = \"red\"",
		"timeout":       "wait_timeout_ms = 0",
		"bad address":   "[[breakpoint]]\naddress = \"main\"",
	} {
		_, err := LoadFromReader(strings.NewReader(input))
		var perr *ParseError
		assert.ErrorAs(t, err, &perr, name)
	}
}

func TestBreakpointNeedsOneTarget(t *testing.T) {
	for _, input := range []string{
		"[[breakpoint]]\nonce = true",
		"[[breakpoint]]\naddress = \"0x10\"\nsymbol = \"main\"",
	} {
		_, err := LoadFromReader(strings.NewReader(input))
		assert.ErrorIs(t, err, ErrInvalidBreakpoint)
	}
}
