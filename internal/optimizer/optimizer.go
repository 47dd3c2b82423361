package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/storage"
)

// DefaultTopN is the number of ranked results kept with full history.
const DefaultTopN = 10

// ErrNoSuccessfulRuns is returned when every combination failed.
var ErrNoSuccessfulRuns = errors.New("no combination completed successfully")

// Runner executes one backtest. Satisfied by *backtest.Driver.
type Runner interface {
	Run(ctx context.Context, cfg domain.BacktestConfig, params domain.StrategyParams) (*domain.BacktestResult, error)
}

// Options contains configuration for creating an Optimizer.
type Options struct {
	Runner        Runner
	Logger        zerolog.Logger
	Clock         func() time.Time // pins the window when Backtest.EndTime is 0; nil = time.Now
	Workers       int              // concurrent backtests, default 1
	InterRunDelay time.Duration    // minimum spacing between run starts across all workers
	TopN          int              // default DefaultTopN

	// Results receives TopResults once a run is ranked. The Runner should not
	// persist on its own, or every combination's history is stored.
	Results storage.BacktestResultStore
}

// Constraints bound one optimization run.
type Constraints struct {
	Backtest        domain.BacktestConfig  // window and account; Pairs drive weight variants
	MaxCombinations int                    // 0 = no cap
	Seed            int64                  // sampling seed
	Grid            *Grid                  // overrides the mode's default grid
	Center          *domain.StrategyParams // neighborhood center
	Multiplier      float64                // neighborhood step multiplier, 0 = 1
}

// OptimizationResult is the ranked outcome of a run.
// Only TopResults retain trades and snapshots.
type OptimizationResult struct {
	Mode       Mode
	TopResults []*domain.BacktestResult
	BestParams domain.StrategyParams
	BestScore  float64
	Completed  int
	Failed     int
	Total      int
	Duration   time.Duration
}

// Optimizer runs grid searches.
type Optimizer struct {
	runner   Runner
	log      zerolog.Logger
	clock    func() time.Time
	workers  int
	interRun time.Duration
	topN     int
	results  storage.BacktestResultStore
}

// New creates an optimizer.
func New(opts Options) *Optimizer {
	o := &Optimizer{
		runner:   opts.Runner,
		log:      opts.Logger.With().Str("component", "optimizer").Logger(),
		clock:    opts.Clock,
		workers:  opts.Workers,
		interRun: opts.InterRunDelay,
		topN:     opts.TopN,
		results:  opts.Results,
	}
	if o.clock == nil {
		o.clock = time.Now
	}
	if o.workers <= 0 {
		o.workers = 1
	}
	if o.topN <= 0 {
		o.topN = DefaultTopN
	}
	return o
}

type ranked struct {
	index  int
	result *domain.BacktestResult
}

// Run generates the combinations of mode, samples them down to
// MaxCombinations and backtests each one. A failing combination is logged and
// skipped. Results are ranked by combined score descending; equal scores keep
// generation order.
func (o *Optimizer) Run(ctx context.Context, mode Mode, c Constraints) (*OptimizationResult, error) {
	started := o.clock()

	if err := c.Backtest.Validate(); err != nil {
		return nil, err
	}
	combos, err := Generate(mode, c)
	if err != nil {
		return nil, err
	}
	combos = Sample(combos, c.MaxCombinations, rand.New(rand.NewSource(c.Seed)))

	cfg := o.pinWindow(c.Backtest)

	o.log.Info().
		Str("mode", string(mode)).
		Int("combinations", len(combos)).
		Int("workers", o.workers).
		Msg("optimization started")

	limit := rate.Inf
	if o.interRun > 0 {
		limit = rate.Every(o.interRun)
	}
	limiter := rate.NewLimiter(limit, 1)

	var (
		mu        sync.Mutex
		top       []ranked
		completed int
		failed    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, params := range combos {
		i, params := i, params
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return err
			}

			res, err := o.runner.Run(gctx, cfg, params)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				o.log.Warn().Err(err).Int("combination", i).Msg("combination failed")
				observability.RecordOptimizerCombination(string(mode), "failed")
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			observability.RecordOptimizerCombination(string(mode), "completed")

			mu.Lock()
			completed++
			top = insertRanked(top, ranked{index: i, result: res}, o.topN)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if completed == 0 {
		return nil, fmt.Errorf("%w: %d of %d failed", ErrNoSuccessfulRuns, failed, len(combos))
	}

	out := &OptimizationResult{
		Mode:      mode,
		Completed: completed,
		Failed:    failed,
		Total:     len(combos),
		Duration:  o.clock().Sub(started),
	}
	for _, r := range top {
		out.TopResults = append(out.TopResults, r.result)
	}
	out.BestParams = out.TopResults[0].StrategyParams.Clone()
	out.BestScore = out.TopResults[0].Metrics.CombinedScore
	observability.SetOptimizerBestScore(string(mode), out.BestScore)

	if err := o.persist(ctx, out.TopResults); err != nil {
		return nil, err
	}

	o.log.Info().
		Str("mode", string(mode)).
		Int("completed", completed).
		Int("failed", failed).
		Float64("best_score", out.BestScore).
		Msg("optimization finished")

	return out, nil
}

// persist stores the ranked results when a result store is configured.
func (o *Optimizer) persist(ctx context.Context, results []*domain.BacktestResult) error {
	if o.results == nil {
		return nil
	}
	for _, r := range results {
		if err := o.results.Insert(ctx, r); err != nil {
			return fmt.Errorf("persist ranked result %s: %w", r.RunID, err)
		}
	}
	return nil
}

// insertRanked inserts r into top, ordered by score desc then index asc,
// keeping at most n entries.
func insertRanked(top []ranked, r ranked, n int) []ranked {
	score := r.result.Metrics.CombinedScore
	pos := sort.Search(len(top), func(i int) bool {
		s := top[i].result.Metrics.CombinedScore
		return s < score || (s == score && top[i].index > r.index)
	})
	if pos >= n {
		return top
	}
	top = append(top, ranked{})
	copy(top[pos+1:], top[pos:])
	top[pos] = r
	if len(top) > n {
		top = top[:n]
	}
	return top
}

// pinWindow fixes EndTime so every combination sees the same candles.
func (o *Optimizer) pinWindow(cfg domain.BacktestConfig) domain.BacktestConfig {
	out := cfg
	out.Pairs = append([]string(nil), cfg.Pairs...)
	if out.EndTime == 0 {
		now := o.clock().Unix()
		out.EndTime = now - now%cfg.GranularitySeconds
	}
	return out
}
