package marketdata

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"strategy-lab/internal/domain"
)

// DefaultFetchBatchSize is the number of pairs fetched concurrently.
const DefaultFetchBatchSize = 2

// FetchOptions controls batched fetching.
type FetchOptions struct {
	BatchSize  int           // pairs per batch, 0 = DefaultFetchBatchSize
	BatchDelay time.Duration // pause between batches
	SourceName string        // reported in ExternalFetchError
}

// FetchAll fetches candles for every pair, BatchSize pairs at a time with
// BatchDelay between batches. Results are sorted ascending and deduplicated.
// Any failure cancels the remaining work and is returned as *domain.ExternalFetchError.
func FetchAll(ctx context.Context, src CandleSource, pairs []string, granularity, start, end int64, opts FetchOptions) (map[string][]domain.Candle, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultFetchBatchSize
	}

	results := make([][]domain.Candle, len(pairs))

	for lo := 0; lo < len(pairs); lo += batchSize {
		if lo > 0 && opts.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(opts.BatchDelay):
			}
		}

		hi := lo + batchSize
		if hi > len(pairs) {
			hi = len(pairs)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := lo; i < hi; i++ {
			i := i
			pair := pairs[i]
			g.Go(func() error {
				candles, err := src.GetCandles(gctx, pair, granularity, start, end)
				if err != nil {
					var fe *domain.ExternalFetchError
					if errors.As(err, &fe) {
						return err
					}
					return &domain.ExternalFetchError{Source: opts.SourceName, Pair: pair, Err: err}
				}
				results[i] = domain.SortCandles(candles)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	out := make(map[string][]domain.Candle, len(pairs))
	for i, pair := range pairs {
		out[pair] = results[i]
	}
	return out, nil
}
