package debugger

import (
	"sync"

	"github.com/wnxd/ndbg/debugger"
	"go.uber.org/atomic"
)

type Process struct {
	mu          sync.Mutex
	info        debugger.ProcessInfo
	nextID      *atomic.Uint32
	libraries   List[debugger.Library]
	threads     List[debugger.Thread]
	sources     List[debugger.SourceFile]
	breakpoints List[debugger.Breakpoint]
	watchpoints List[debugger.Watchpoint]
}

func newProcess(info debugger.ProcessInfo) *Process {
	return &Process{
		info:   info,
		nextID: atomic.NewUint32(0),
	}
}

func (p *Process) allocateID() uint32 {
	return p.nextID.Inc()
}

func (p *Process) Info() debugger.ProcessInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.info
}

func (p *Process) Libraries() []debugger.Library {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.libraries.Values()
}

func (p *Process) Threads() []debugger.Thread {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.threads.Values()
}

func (p *Process) SourceFiles() []debugger.SourceFile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sources.Values()
}

func (p *Process) release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.libraries.Release(nil)
	p.threads.Release(nil)
	p.sources.Release(nil)
	p.breakpoints.Release(nil)
	p.watchpoints.Release(nil)
}
