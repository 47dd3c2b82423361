package memory

import (
	"context"
	"sort"
	"sync"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// PaperHistoryStore is an in-memory implementation of storage.PaperHistoryStore.
type PaperHistoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]domain.PortfolioSnapshot // keyed by strategy id
	trades    map[string][]domain.SimulatedTrade
}

// NewPaperHistoryStore creates a new in-memory paper history store.
func NewPaperHistoryStore() *PaperHistoryStore {
	return &PaperHistoryStore{
		snapshots: make(map[string][]domain.PortfolioSnapshot),
		trades:    make(map[string][]domain.SimulatedTrade),
	}
}

// AppendSnapshots adds snapshots for a strategy.
func (s *PaperHistoryStore) AppendSnapshots(_ context.Context, strategyID string, snapshots []domain.PortfolioSnapshot) error {
	if strategyID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range snapshots {
		s.snapshots[strategyID] = append(s.snapshots[strategyID], snap.Clone())
	}
	return nil
}

// AppendTrades adds trades for a strategy.
func (s *PaperHistoryStore) AppendTrades(_ context.Context, strategyID string, trades []domain.SimulatedTrade) error {
	if strategyID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades[strategyID] = append(s.trades[strategyID], trades...)
	return nil
}

// GetSnapshots retrieves all snapshots of a strategy ordered by timestamp ASC.
func (s *PaperHistoryStore) GetSnapshots(_ context.Context, strategyID string) ([]domain.PortfolioSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.snapshots[strategyID]
	result := make([]domain.PortfolioSnapshot, len(src))
	for i, snap := range src {
		result[i] = snap.Clone()
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})
	return result, nil
}

// GetTrades retrieves all trades of a strategy ordered by timestamp ASC.
func (s *PaperHistoryStore) GetTrades(_ context.Context, strategyID string) ([]domain.SimulatedTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := append([]domain.SimulatedTrade(nil), s.trades[strategyID]...)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.PaperHistoryStore = (*PaperHistoryStore)(nil)
