// Package backtest replays historical candles through the trade simulator
// and produces a scored BacktestResult.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/marketdata"
	"strategy-lab/internal/metrics"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/simulation"
	"strategy-lab/internal/storage"
)

// Options contains configuration for creating a Driver.
type Options struct {
	Source          marketdata.CandleSource
	SourceName      string                      // reported in fetch errors
	ResultStore     storage.BacktestResultStore // optional
	Logger          zerolog.Logger
	Clock           func() time.Time // nil = time.Now
	FetchBatchSize  int
	FetchBatchDelay time.Duration
}

// Driver runs backtests.
type Driver struct {
	source      marketdata.CandleSource
	sourceName  string
	resultStore storage.BacktestResultStore
	log         zerolog.Logger
	clock       func() time.Time
	fetchOpts   marketdata.FetchOptions
}

// NewDriver creates a backtest driver.
func NewDriver(opts Options) *Driver {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Driver{
		source:      opts.Source,
		sourceName:  opts.SourceName,
		resultStore: opts.ResultStore,
		log:         opts.Logger.With().Str("component", "backtest").Logger(),
		clock:       clock,
		fetchOpts: marketdata.FetchOptions{
			BatchSize:  opts.FetchBatchSize,
			BatchDelay: opts.FetchBatchDelay,
			SourceName: opts.SourceName,
		},
	}
}

// Run executes one backtest.
// Steps:
//  1. Validate config and params
//  2. Fetch candles for every pair
//  3. Build the timeline from the union of candle starts
//  4. Feed aligned cross-sections to the simulator
//  5. Compute metrics
//  6. Persist and return the result
//
// Failures after validation are persisted as failed results when a store is
// configured and returned as errors.
func (d *Driver) Run(ctx context.Context, cfg domain.BacktestConfig, params domain.StrategyParams) (*domain.BacktestResult, error) {
	// 1. Validate before any fetch
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	result := &domain.BacktestResult{
		RunID:          uuid.NewString(),
		StartedAt:      d.clock().UTC(),
		Config:         cfg,
		StrategyParams: params.Clone(),
	}
	result.Config.Pairs = append([]string(nil), cfg.Pairs...)

	log := d.log.With().Str("run_id", result.RunID).Logger()
	log.Debug().Strs("pairs", cfg.Pairs).Int("days", cfg.Days).Msg("backtest started")

	err := d.simulate(ctx, result)
	result.CompletedAt = d.clock().UTC()
	duration := result.CompletedAt.Sub(result.StartedAt).Seconds()

	if err != nil {
		result.Status = domain.RunStatusFailed
		result.ErrorMessage = err.Error()
		result.Trades = nil
		result.Snapshots = nil
		result.Metrics = domain.EvaluationMetrics{}
		observability.RecordBacktestRun(string(domain.RunStatusFailed), duration, 0)
		log.Warn().Err(err).Msg("backtest failed")

		if storeErr := d.persist(ctx, result); storeErr != nil {
			return nil, errors.Join(err, storeErr)
		}
		return nil, err
	}

	result.Status = domain.RunStatusCompleted
	observability.RecordBacktestRun(string(domain.RunStatusCompleted), duration, len(result.Trades))
	log.Debug().
		Int("trades", len(result.Trades)).
		Float64("combined_score", result.Metrics.CombinedScore).
		Msg("backtest completed")

	if err := d.persist(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (d *Driver) simulate(ctx context.Context, result *domain.BacktestResult) error {
	cfg := result.Config
	start, end := WindowBounds(cfg, d.clock())
	result.Config.EndTime = end

	// 2. Fetch candles
	series, err := marketdata.FetchAll(ctx, d.source, cfg.Pairs, cfg.GranularitySeconds, start, end, d.fetchOpts)
	if err != nil {
		return err
	}

	// 3. Build timeline
	timeline := BuildTimeline(series)
	if len(timeline) == 0 {
		return &domain.InsufficientDataError{Pairs: cfg.Pairs, Start: start, End: end}
	}

	// 4. Simulate over aligned ticks
	sim := simulation.New(simulation.Config{
		Pairs:              cfg.Pairs,
		InitialCapitalEur:  cfg.InitialCapitalEur,
		MinTradeSizeEur:    cfg.MinTradeSizeEur,
		MaxDrawdownPercent: cfg.MaxDrawdownPercent,
		Params:             result.StrategyParams,
	})

	skipped := 0
	for _, ts := range timeline {
		if err := ctx.Err(); err != nil {
			return err
		}
		prices, recent, ok := crossSection(cfg.Pairs, series, ts)
		if !ok {
			skipped++
			continue
		}
		sim.ProcessCandle(ts, prices, recent)
	}
	if skipped > 0 {
		d.log.Debug().Int("skipped", skipped).Int("ticks", len(timeline)).Msg("skipped incomplete cross-sections")
	}

	// 5. Metrics
	result.Trades = sim.Trades()
	result.Snapshots = sim.Snapshots()
	result.Metrics = metrics.Calculate(result.Snapshots, result.Trades, cfg.InitialCapitalEur)
	return nil
}

func (d *Driver) persist(ctx context.Context, result *domain.BacktestResult) error {
	if d.resultStore == nil {
		return nil
	}
	if err := d.resultStore.Insert(ctx, result); err != nil {
		return fmt.Errorf("persist backtest result %s: %w", result.RunID, err)
	}
	return nil
}
