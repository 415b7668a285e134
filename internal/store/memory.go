package store

import (
	"context"
	"sync"
)

// MemoryStore keeps markers in process memory. It backs tests and the
// simulator, and serves as the session scope for deployments whose persistent
// scope lives elsewhere.
type MemoryStore struct {
	mu         sync.RWMutex
	persistent map[string]string
	session    map[string]string
}

// NewMemoryStore creates an empty in-memory marker store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		persistent: make(map[string]string),
		session:    make(map[string]string),
	}
}

func (s *MemoryStore) scopeMap(scope Scope) map[string]string {
	if scope == ScopeSession {
		return s.session
	}
	return s.persistent
}

// Get returns the marker value and whether it exists.
func (s *MemoryStore) Get(ctx context.Context, scope Scope, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.scopeMap(scope)[key]
	return v, ok, nil
}

// Set stores a marker value.
func (s *MemoryStore) Set(ctx context.Context, scope Scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopeMap(scope)[key] = value
	return nil
}

// Delete removes a marker.
func (s *MemoryStore) Delete(ctx context.Context, scope Scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.scopeMap(scope), key)
	return nil
}

// ClearSession drops all session-scoped markers, modeling the end of a
// browsing session.
func (s *MemoryStore) ClearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = make(map[string]string)
}

var _ MarkerStore = (*MemoryStore)(nil)
