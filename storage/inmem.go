package storage

import (
	"context"
	"sync"

	"github.com/c360studio/udahub/ticket"
)

// InMemStore is a map-backed Store for tests and throwaway runs. Snapshots
// are deep-copied on both save and load so callers never share state with
// the store.
type InMemStore struct {
	mu       sync.RWMutex
	sessions map[string]*ticket.State
}

// NewInMemStore creates an empty in-memory store.
func NewInMemStore() *InMemStore {
	return &InMemStore{sessions: make(map[string]*ticket.State)}
}

// Load implements Store.
func (s *InMemStore) Load(_ context.Context, sessionID string) (*ticket.State, error) {
	s.mu.RLock()
	st, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return st.Clone()
}

// Save implements Store.
func (s *InMemStore) Save(_ context.Context, sessionID string, st *ticket.State) error {
	snapshot, err := st.Clone()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sessions[sessionID] = snapshot
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions.
func (s *InMemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
