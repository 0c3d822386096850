package cart

import "sync"

type terminalKey struct {
	branch   string
	terminal string
}

// Registry owns one Session per (branch, terminal) and the in-flight
// checkout flag for each terminal.
type Registry struct {
	mu       sync.Mutex
	sessions map[terminalKey]*Session
	inflight map[terminalKey]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: map[terminalKey]*Session{},
		inflight: map[terminalKey]struct{}{},
	}
}

// Session returns the terminal's session, creating an empty one on first use.
func (r *Registry) Session(branch, terminal string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := terminalKey{branch: branch, terminal: terminal}
	s, ok := r.sessions[key]
	if !ok {
		s = NewSession(branch, terminal)
		r.sessions[key] = s
	}
	return s
}

// TryBegin marks a checkout as in flight. It returns false if one already is.
func (r *Registry) TryBegin(branch, terminal string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := terminalKey{branch: branch, terminal: terminal}
	if _, busy := r.inflight[key]; busy {
		return false
	}
	r.inflight[key] = struct{}{}
	return true
}

func (r *Registry) Done(branch, terminal string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, terminalKey{branch: branch, terminal: terminal})
}
