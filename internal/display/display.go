// Package display serializes operator facing output.
package display

import (
	"fmt"
	"io"
	"os"
	"sync"
)

const Prefix = "(ndbg) "

type Display struct {
	mu  sync.Mutex
	out io.Writer
	err io.Writer
}

func New(out, err io.Writer) *Display {
	return &Display{out: out, err: err}
}

func Stdio() *Display {
	return New(os.Stdout, os.Stderr)
}

// Discard returns a Display that drops everything.
func Discard() *Display {
	return New(io.Discard, io.Discard)
}

func (d *Display) Message(format string, args ...any) {
	d.write(d.out, Prefix, format, args...)
}

func (d *Display) Error(format string, args ...any) {
	d.write(d.err, Prefix+"error: ", format, args...)
}

// DebugOut prints text emitted by the target itself.
func (d *Display) DebugOut(format string, args ...any) {
	d.write(d.out, "", format, args...)
}

// Raw writes without prefix or trailing newline.
func (d *Display) Raw(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.out, format, args...)
}

func (d *Display) write(w io.Writer, prefix, format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(w, "%s%s\n", prefix, fmt.Sprintf(format, args...))
}
