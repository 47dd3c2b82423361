// Package marketdata provides historical candle sources for backtests.
package marketdata

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"strategy-lab/internal/domain"
)

// CandleSource returns candles for one pair within [start, end] (Unix seconds).
// Implementations may return candles in any order; callers normalize with
// domain.SortCandles.
type CandleSource interface {
	GetCandles(ctx context.Context, pair string, granularity, start, end int64) ([]domain.Candle, error)
}

// StaticSource serves candles held in memory. Used for tests and replays of
// a captured market window.
type StaticSource struct {
	mu      sync.RWMutex
	candles map[string][]domain.Candle // keyed by pair, sorted by start
	calls   int
}

// NewStaticSource creates a source from per-pair candles.
func NewStaticSource(candles map[string][]domain.Candle) *StaticSource {
	s := &StaticSource{candles: make(map[string][]domain.Candle, len(candles))}
	for pair, cs := range candles {
		s.candles[pair] = domain.SortCandles(cs)
	}
	return s
}

// GetCandles returns the stored candles of pair whose start is within [start, end].
// Granularity is not checked.
func (s *StaticSource) GetCandles(ctx context.Context, pair string, _ int64, start, end int64) ([]domain.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	var out []domain.Candle
	for _, c := range s.candles[pair] {
		if c.Start >= start && c.Start <= end {
			out = append(out, c)
		}
	}
	return out, nil
}

// Calls returns how many GetCandles calls were served.
func (s *StaticSource) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}

// Capture fetches every pair from src once and freezes the result, so repeated
// runs over the returned source see identical data.
func Capture(ctx context.Context, src CandleSource, pairs []string, granularity, start, end int64) (*StaticSource, error) {
	captured := make(map[string][]domain.Candle, len(pairs))
	sorted := append([]string(nil), pairs...)
	sort.Strings(sorted)

	for _, pair := range sorted {
		candles, err := src.GetCandles(ctx, pair, granularity, start, end)
		if err != nil {
			return nil, fmt.Errorf("capture %s: %w", pair, err)
		}
		captured[pair] = candles
	}
	return NewStaticSource(captured), nil
}
