package debugger

import (
	"sync"

	"github.com/wnxd/ndbg/debugger"
)

// Registry holds the one session a debugger may run at a time.
type Registry struct {
	mu      sync.Mutex
	current *Session
}

func (r *Registry) acquire(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		return debugger.ErrSessionExists
	}
	r.current = s
	return nil
}

func (r *Registry) release(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == s {
		r.current = nil
	}
}

func (r *Registry) Current() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}
