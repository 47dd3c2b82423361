package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

// CandidateStore is an in-memory implementation of storage.CandidateStore.
type CandidateStore struct {
	mu   sync.RWMutex
	data map[string]*domain.StrategyCandidate // keyed by id
}

// NewCandidateStore creates a new in-memory candidate store.
func NewCandidateStore() *CandidateStore {
	return &CandidateStore{
		data: make(map[string]*domain.StrategyCandidate),
	}
}

// Insert adds a new candidate. Returns ErrDuplicateKey if id exists.
func (s *CandidateStore) Insert(_ context.Context, c *domain.StrategyCandidate) error {
	if c == nil || c.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[c.ID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	s.data[c.ID] = c.Clone()
	return nil
}

// GetByID retrieves a candidate by its ID. Returns ErrNotFound if not exists.
func (s *CandidateStore) GetByID(_ context.Context, id string) (*domain.StrategyCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return c.Clone(), nil
}

// GetByStatus retrieves candidates with status, ordered by created_at ASC, id ASC.
func (s *CandidateStore) GetByStatus(_ context.Context, status domain.CandidateStatus) ([]*domain.StrategyCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.StrategyCandidate
	for _, c := range s.data {
		if c.Status == status {
			result = append(result, c.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// UpdatePaperResults records the latest paper evaluation of a candidate.
func (s *CandidateStore) UpdatePaperResults(_ context.Context, id string, paperScore float64, paperDays int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	c.PaperScore = &paperScore
	c.PaperDaysTested = paperDays
	return nil
}

// Transition moves a candidate from status from to status to.
func (s *CandidateStore) Transition(_ context.Context, id string, from, to domain.CandidateStatus, at time.Time, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, exists := s.data[id]
	if !exists {
		return storage.ErrNotFound
	}
	if c.Status != from {
		return storage.ErrInvalidTransition
	}

	c.Status = to
	switch to {
	case domain.CandidateStatusPromoted:
		promotedAt := at
		c.PromotedAt = &promotedAt
	case domain.CandidateStatusRejected:
		c.RejectReason = reason
	}
	return nil
}

// Verify interface compliance at compile time.
var _ storage.CandidateStore = (*CandidateStore)(nil)
