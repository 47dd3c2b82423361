package memory

import (
	"context"
	"sync"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// LiveConfigStore is an in-memory implementation of storage.LiveConfigStore.
type LiveConfigStore struct {
	mu     sync.RWMutex
	cfg    *domain.LiveConfig
	writes int
}

// NewLiveConfigStore creates a new in-memory live config store.
// A nil initial config means Read returns ErrNotFound until the first Write.
func NewLiveConfigStore(initial *domain.LiveConfig) *LiveConfigStore {
	s := &LiveConfigStore{}
	if initial != nil {
		c := initial.Clone()
		s.cfg = &c
	}
	return s
}

// Read returns the current configuration.
func (s *LiveConfigStore) Read(_ context.Context) (*domain.LiveConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.cfg == nil {
		return nil, storage.ErrNotFound
	}
	c := s.cfg.Clone()
	return &c, nil
}

// Write replaces the configuration.
func (s *LiveConfigStore) Write(_ context.Context, cfg *domain.LiveConfig) error {
	if cfg == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := cfg.Clone()
	s.cfg = &c
	s.writes++
	return nil
}

// Writes returns how many times Write succeeded.
func (s *LiveConfigStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Verify interface compliance at compile time.
var _ storage.LiveConfigStore = (*LiveConfigStore)(nil)
