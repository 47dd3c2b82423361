package memory

import (
	"context"
	"sort"
	"sync"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

type candleKey struct {
	pair        string
	granularity int64
}

// CandleStore is an in-memory implementation of storage.CandleStore.
type CandleStore struct {
	mu   sync.RWMutex
	data map[candleKey]map[int64]domain.Candle // keyed by (pair, granularity), then start
}

// NewCandleStore creates a new in-memory candle store.
func NewCandleStore() *CandleStore {
	return &CandleStore{
		data: make(map[candleKey]map[int64]domain.Candle),
	}
}

// InsertBulk upserts candles for a pair.
func (s *CandleStore) InsertBulk(_ context.Context, pair string, granularity int64, candles []domain.Candle) error {
	if pair == "" || granularity <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := candleKey{pair: pair, granularity: granularity}
	series, ok := s.data[key]
	if !ok {
		series = make(map[int64]domain.Candle)
		s.data[key] = series
	}
	for _, c := range candles {
		series[c.Start] = c
	}
	return nil
}

// GetByTimeRange retrieves candles within [start, end] (inclusive), ordered by start ASC.
func (s *CandleStore) GetByTimeRange(_ context.Context, pair string, granularity int64, start, end int64) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Candle
	for ts, c := range s.data[candleKey{pair: pair, granularity: granularity}] {
		if ts >= start && ts <= end {
			result = append(result, c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Start < result[j].Start
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.CandleStore = (*CandleStore)(nil)
