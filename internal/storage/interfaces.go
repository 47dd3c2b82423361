package storage

import (
	"context"
	"time"

	"strategy-lab/internal/domain"
)

// CandleStore caches historical candles per (pair, granularity).
type CandleStore interface {
	// InsertBulk upserts candles for a pair. Re-inserting an existing start replaces it.
	InsertBulk(ctx context.Context, pair string, granularity int64, candles []domain.Candle) error

	// GetByTimeRange retrieves candles with start within [start, end] (inclusive), ordered by start ASC.
	GetByTimeRange(ctx context.Context, pair string, granularity int64, start, end int64) ([]domain.Candle, error)
}

// BacktestResultStore provides access to backtest_results storage.
type BacktestResultStore interface {
	// Insert adds a result. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.BacktestResult) error

	// GetByID retrieves a result by run id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.BacktestResult, error)

	// ListRecent returns up to limit results ordered by started_at DESC, run_id ASC.
	ListRecent(ctx context.Context, limit int) ([]*domain.BacktestResult, error)
}

// CandidateStore provides access to strategy_candidates storage.
type CandidateStore interface {
	// Insert adds a new candidate. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, c *domain.StrategyCandidate) error

	// GetByID retrieves a candidate by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.StrategyCandidate, error)

	// GetByStatus retrieves candidates with the given status, ordered by created_at ASC, id ASC.
	GetByStatus(ctx context.Context, status domain.CandidateStatus) ([]*domain.StrategyCandidate, error)

	// UpdatePaperResults records the latest paper evaluation of a candidate.
	// Returns ErrNotFound if not exists.
	UpdatePaperResults(ctx context.Context, id string, paperScore float64, paperDays int) error

	// Transition moves a candidate from status from to status to.
	// at is stored as promoted_at when to is promoted; reason as reject_reason when rejected.
	// Returns ErrNotFound if not exists, ErrInvalidTransition if the current status is not from.
	Transition(ctx context.Context, id string, from, to domain.CandidateStatus, at time.Time, reason string) error
}

// PaperHistoryStore provides the live-shadow history recorded by a paper executor.
type PaperHistoryStore interface {
	// AppendSnapshots adds snapshots for a strategy.
	AppendSnapshots(ctx context.Context, strategyID string, snapshots []domain.PortfolioSnapshot) error

	// AppendTrades adds trades for a strategy.
	AppendTrades(ctx context.Context, strategyID string, trades []domain.SimulatedTrade) error

	// GetSnapshots retrieves all snapshots of a strategy ordered by timestamp ASC.
	GetSnapshots(ctx context.Context, strategyID string) ([]domain.PortfolioSnapshot, error)

	// GetTrades retrieves all trades of a strategy ordered by timestamp ASC.
	GetTrades(ctx context.Context, strategyID string) ([]domain.SimulatedTrade, error)
}

// LiveConfigStore holds the single configuration read by the live trading loop.
type LiveConfigStore interface {
	// Read returns the current configuration. Returns ErrNotFound if never written.
	Read(ctx context.Context) (*domain.LiveConfig, error)

	// Write atomically replaces the configuration.
	Write(ctx context.Context, cfg *domain.LiveConfig) error
}
