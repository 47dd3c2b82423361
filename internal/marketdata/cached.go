package marketdata

import (
	"context"
	"fmt"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/storage"
)

// CachedSource is a read-through cache over a CandleStore.
// A window is served from the store only when it holds every expected bar;
// otherwise the upstream source is queried and the result written back.
type CachedSource struct {
	upstream CandleSource
	store    storage.CandleStore
}

// NewCachedSource wraps upstream with store as cache.
func NewCachedSource(upstream CandleSource, store storage.CandleStore) *CachedSource {
	return &CachedSource{upstream: upstream, store: store}
}

// GetCandles serves the window from cache when complete, else from upstream.
func (s *CachedSource) GetCandles(ctx context.Context, pair string, granularity, start, end int64) ([]domain.Candle, error) {
	cached, err := s.store.GetByTimeRange(ctx, pair, granularity, start, end)
	if err != nil {
		return nil, fmt.Errorf("read candle cache: %w", err)
	}
	if granularity > 0 && int64(len(cached)) >= expectedBars(granularity, start, end) {
		observability.RecordCacheLookup(true)
		return cached, nil
	}
	observability.RecordCacheLookup(false)

	fresh, err := s.upstream.GetCandles(ctx, pair, granularity, start, end)
	if err != nil {
		return nil, err
	}
	if len(fresh) > 0 {
		if err := s.store.InsertBulk(ctx, pair, granularity, fresh); err != nil {
			return nil, fmt.Errorf("write candle cache: %w", err)
		}
	}
	return fresh, nil
}

// expectedBars counts bar starts aligned to granularity within [start, end].
func expectedBars(granularity, start, end int64) int64 {
	if end < start {
		return 0
	}
	first := (start + granularity - 1) / granularity * granularity
	if first > end {
		return 0
	}
	return (end-first)/granularity + 1
}
