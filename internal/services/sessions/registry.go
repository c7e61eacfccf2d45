package sessions

import (
	"sort"
	"sync"

	"github.com/unifiedui/chat-gateway/internal/domain/models"
)

// Registry is the process-wide table of sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers s, replacing any session with the same id. The replaced
// session's connection is left alone.
func (r *Registry) Add(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
}

// addIfAbsent registers s unless its id is taken.
func (r *Registry) addIfAbsent(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID()]; ok {
		return false
	}
	r.sessions[s.ID()] = s
	return true
}

// Get returns the session with id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove unregisters id and reports whether it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// removeIf unregisters s only if it is still the registered session for its id.
func (r *Registry) removeIf(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[s.ID()]; !ok || cur != s {
		return false
	}
	delete(r.sessions, s.ID())
	return true
}

// Sessions returns the registered sessions in start order.
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	list := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		list = append(list, s)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].StartedAt().Equal(list[j].StartedAt()) {
			return list[i].ID() < list[j].ID()
		}
		return list[i].StartedAt().Before(list[j].StartedAt())
	})
	return list
}

// List returns summaries of every session ordered by start time.
func (r *Registry) List() []models.SessionSummary {
	sessions := r.Sessions()
	out := make([]models.SessionSummary, len(sessions))
	for i, s := range sessions {
		out[i] = s.Summary()
	}
	return out
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
