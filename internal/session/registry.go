// Package session tracks the set of live client connections (one per
// stdio process or per HTTP+SSE stream) so the server can route
// responses, enforce per-session auth caching, and cancel in-flight work
// on shutdown or disconnect.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one connected client's state.
type Session struct {
	ID         string
	Tier       string
	UserID     string
	CreatedAt  time.Time
	RemoteAddr string

	cancel context.CancelFunc
}

// Cancel terminates the session's context, unblocking any in-flight
// handler that observes it.
func (s *Session) Cancel() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Registry is a concurrency-safe map of live Sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register creates a new Session bound to a child of parent, returning
// the session and a context that is canceled when the session is
// removed or the registry is shut down.
func (r *Registry) Register(parent context.Context, tier, userID, remoteAddr string) (*Session, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	s := &Session{
		ID:         uuid.NewString(),
		Tier:       tier,
		UserID:     userID,
		CreatedAt:  time.Now(),
		RemoteAddr: remoteAddr,
		cancel:     cancel,
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	return s, ctx
}

// Lookup returns the session with the given id, if still registered.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove cancels and forgets the session with the given id. Safe to call
// more than once for the same id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if ok {
		s.Cancel()
	}
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Shutdown cancels every live session's context and clears the registry,
// used during graceful server shutdown.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Cancel()
	}
}

// Each calls fn for every live session. fn is called with the registry's
// read lock held, so it must not call back into Register/Remove.
func (r *Registry) Each(fn func(*Session)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		fn(s)
	}
}
