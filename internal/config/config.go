// Package config loads the ndbg TOML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const DefaultPrompt = "ndbg> "

var ErrInvalidBreakpoint = errors.New("breakpoint needs exactly one of address or symbol")

type Config struct {
	WaitTimeoutMS int          `toml:"wait_timeout_ms"`
	KillOnExit    bool         `toml:"kill_on_exit"`
	Prompt        string       `toml:"prompt"`
	Script        string       `toml:"script"`
	Breakpoints   []Breakpoint `toml:"breakpoint"`
}

// Breakpoint is planted before the target starts running. Address is a
// number in any base strconv accepts, e.g. "0x401000".
type Breakpoint struct {
	Address string `toml:"address"`
	Symbol  string `toml:"symbol"`
	Once    bool   `toml:"once"`
}

type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func Default() *Config {
	return &Config{
		WaitTimeoutMS: 1000,
		KillOnExit:    true,
		Prompt:        DefaultPrompt,
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	return parse(path, bytes.NewReader(data))
}

func LoadFromReader(r io.Reader) (*Config, error) {
	return parse("<reader>", r)
}

func parse(source string, r io.Reader) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, &ParseError{Path: source, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ParseError{Path: source, Err: err}
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.WaitTimeoutMS <= 0 {
		return fmt.Errorf("wait_timeout_ms must be positive, got %d", c.WaitTimeoutMS)
	}
	for i, bp := range c.Breakpoints {
		if (bp.Address == "") == (bp.Symbol == "") {
			return fmt.Errorf("breakpoint %d: %w", i, ErrInvalidBreakpoint)
		}
		if bp.Address != "" {
			if _, err := bp.Addr(); err != nil {
				return fmt.Errorf("breakpoint %d: %w", i, err)
			}
		}
	}
	return nil
}

func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.WaitTimeoutMS) * time.Millisecond
}

func (bp Breakpoint) Addr() (uint64, error) {
	return strconv.ParseUint(bp.Address, 0, 64)
}
