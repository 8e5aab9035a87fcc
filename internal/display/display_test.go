package display

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessagePrefix(t *testing.T) {
	var out, errOut bytes.Buffer
	d := New(&out, &errOut)
	d.Message("Loaded '%s'", "libc.so.6")
	d.Error("Unable to obtain context")
	d.DebugOut("hello")
	assert.Equal(t, "(ndbg) Loaded 'libc.so.6'\nhello\n", out.String())
	assert.Equal(t, "(ndbg) error: Unable to obtain context\n", errOut.String())
}

func TestConcurrentLinesStayWhole(t *testing.T) {
	var out bytes.Buffer
	d := New(&out, &out)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Message("line")
		}()
	}
	wg.Wait()
	assert.Equal(t, bytes.Repeat([]byte("(ndbg) line\n"), 50), out.Bytes())
}
