// Package memory provides an in-memory snapshot store used for tests and
// ephemeral boards.
package memory

import (
	"context"
	"sync"

	"schedboard/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.SnapshotStore = (*Store)(nil)

// Store keeps the latest saved payload in process memory.
type Store struct {
	mu    sync.RWMutex
	saved *domain.Payload
	saves int
}

// NewStore returns an empty store.
func NewStore() *Store { return &Store{} }

// Load returns a copy of the last saved payload.
func (s *Store) Load(_ context.Context) (domain.Payload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.saved == nil {
		return domain.Payload{}, domain.ErrNoSnapshot
	}
	return domain.ClonePayload(*s.saved), nil
}

// Save replaces the stored payload with a copy of p.
func (s *Store) Save(_ context.Context, p domain.Payload) error {
	cp := domain.ClonePayload(p)
	s.mu.Lock()
	s.saved = &cp
	s.saves++
	s.mu.Unlock()
	return nil
}

// Saves reports how many times Save has been called.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
