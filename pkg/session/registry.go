package session

import (
	"sync"
	"time"

	"FaceLens/pkg/capture"

	"github.com/patrickmn/go-cache"
)

// Registry hands out one capture state per session. Idle states expire with the session;
// a state pinned by a running loop never does.
type Registry struct {
	mu     sync.Mutex
	states *cache.Cache
	pinned map[string]*pin
}

type pin struct {
	state *capture.State
	count int
}

func NewRegistry(ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		states: cache.New(ttl, 2*ttl),
		pinned: make(map[string]*pin),
	}
}

// State returns the session's capture state, creating a Stopped one on first use.
// Every lookup extends the session's lifetime.
func (r *Registry) State(sessionID string) *capture.State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lookup(sessionID, true)
}

// Peek returns the state without creating one. A hit extends the session's lifetime.
func (r *Registry) Peek(sessionID string) (*capture.State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.lookup(sessionID, false)
	return state, state != nil
}

// Pin returns the session's state and keeps it from expiring until unpin is called.
func (r *Registry) Pin(sessionID string) (*capture.State, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := r.lookup(sessionID, true)
	p, ok := r.pinned[sessionID]
	if !ok {
		p = &pin{state: state}
		r.pinned[sessionID] = p
	}
	p.count++

	var once sync.Once
	return state, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()

			p.count--
			if p.count == 0 {
				delete(r.pinned, sessionID)
				r.states.SetDefault(sessionID, p.state)
			}
		})
	}
}

func (r *Registry) lookup(sessionID string, create bool) *capture.State {
	if p, ok := r.pinned[sessionID]; ok {
		r.states.SetDefault(sessionID, p.state)
		return p.state
	}

	cached, ok := r.states.Get(sessionID)
	if !ok {
		if !create {
			return nil
		}
		cached = &capture.State{}
	}

	state := cached.(*capture.State)
	r.states.SetDefault(sessionID, state)
	return state
}
