package memory

import (
	"context"
	"sort"
	"sync"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// BacktestResultStore is an in-memory implementation of storage.BacktestResultStore.
type BacktestResultStore struct {
	mu   sync.RWMutex
	data map[string]*domain.BacktestResult // keyed by run_id
}

// NewBacktestResultStore creates a new in-memory backtest result store.
func NewBacktestResultStore() *BacktestResultStore {
	return &BacktestResultStore{
		data: make(map[string]*domain.BacktestResult),
	}
}

// Insert adds a result. Returns ErrDuplicateKey if run_id exists.
func (s *BacktestResultStore) Insert(_ context.Context, r *domain.BacktestResult) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.RunID] = r.Clone()
	return nil
}

// GetByID retrieves a result by run id. Returns ErrNotFound if not exists.
func (s *BacktestResultStore) GetByID(_ context.Context, runID string) (*domain.BacktestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return r.Clone(), nil
}

// ListRecent returns up to limit results ordered by started_at DESC, run_id ASC.
func (s *BacktestResultStore) ListRecent(_ context.Context, limit int) ([]*domain.BacktestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.BacktestResult, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, r.Clone())
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].StartedAt.After(result[j].StartedAt)
		}
		return result[i].RunID < result[j].RunID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.BacktestResultStore = (*BacktestResultStore)(nil)
