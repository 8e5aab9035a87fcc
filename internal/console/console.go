// Package console is the line oriented command interface of ndbg.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/wnxd/ndbg/debugger"
	engine "github.com/wnxd/ndbg/internal/debugger"
	"github.com/wnxd/ndbg/internal/display"
	"golang.org/x/term"
)

const (
	Product       = "ndbg"
	Version       = "0.3.0"
	DefaultPrompt = "ndbg> "
)

var ErrDuplicateCommand = errors.New("command registered twice")

// RunFunc carries out a command. args[0] is the command name.
type RunFunc func(c *Console, args []string) error

type Command struct {
	Name  string
	Descr string
	Run   RunFunc
}

type Console struct {
	dbg         *engine.Debugger
	display     *display.Display
	in          io.Reader
	prompt      string
	interactive bool
	commands    []*Command
	byName      map[string]*Command
}

type Option func(*Console)

func WithPrompt(prompt string) Option {
	return func(c *Console) {
		c.prompt = prompt
	}
}

// WithInteractive overrides the terminal check on the input.
func WithInteractive(interactive bool) Option {
	return func(c *Console) {
		c.interactive = interactive
	}
}

func New(dbg *engine.Debugger, in io.Reader, opts ...Option) *Console {
	c := &Console{
		dbg:     dbg,
		display: dbg.Display(),
		in:      in,
		prompt:  DefaultPrompt,
		byName:  make(map[string]*Command),
	}
	if f, ok := in.(*os.File); ok {
		c.interactive = term.IsTerminal(int(f.Fd()))
	}
	for _, opt := range opts {
		opt(c)
	}
	c.registerDefaults()
	return c
}

func (c *Console) Register(name, descr string, run RunFunc) error {
	if _, ok := c.byName[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, name)
	}
	cmd := &Command{Name: name, Descr: descr, Run: run}
	c.commands = append(c.commands, cmd)
	c.byName[name] = cmd
	return nil
}

func (c *Console) Commands() []Command {
	list := make([]Command, len(c.commands))
	for i, cmd := range c.commands {
		list[i] = *cmd
	}
	return list
}

// Execute runs one input line. quit reports that the operator asked to
// leave; the quit request has been sent to the session by then.
func (c *Console) Execute(line string) (quit bool, err error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false, nil
	}
	cmd, ok := c.byName[args[0]]
	if !ok {
		c.display.Error("Unknown command '%s', ignored.", args[0])
		return false, nil
	}
	if cmd.Name == "q" {
		if err = c.dbg.Quit(); errors.Is(err, debugger.ErrSessionInvalid) {
			err = nil
		}
		return true, err
	}
	if cmd.Run == nil {
		return false, fmt.Errorf("%s: %w", cmd.Name, debugger.ErrNotImplemented)
	}
	return false, cmd.Run(c, args)
}

// Run reads commands until q, the end of input or ctx is done. Leaving
// because of the end of input also sends a quit request.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			glog.Warningf("console input: %v", err)
		}
	}()

	c.display.Raw("Type \"help\" for information and \"q\" to quit.\n")
	for {
		if c.interactive {
			c.display.Raw("%s", c.prompt)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				line = "q"
			}
			quit, err := c.Execute(line)
			if err != nil {
				c.display.Error("%v", err)
			}
			if quit {
				return nil
			}
		}
	}
}
