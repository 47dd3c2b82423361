package metrics

import (
	"context"
	"fmt"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

const secondsPerDay = 86400

// PaperEvaluation is the result of evaluating a strategy's live-shadow history.
type PaperEvaluation struct {
	StrategyID string
	Metrics    domain.EvaluationMetrics
	DaysTested int
	Snapshots  int
}

// PaperEvaluator computes metrics from recorded paper trading history.
type PaperEvaluator struct {
	store storage.PaperHistoryStore
}

// NewPaperEvaluator creates an evaluator reading from store.
func NewPaperEvaluator(store storage.PaperHistoryStore) *PaperEvaluator {
	return &PaperEvaluator{store: store}
}

// Evaluate loads the paper snapshots and trades of strategyID and computes metrics.
// The first paper snapshot's value is the initial capital; DaysTested is the
// number of whole days between the first and last snapshot.
// A strategy without history evaluates to zero metrics and zero days.
func (e *PaperEvaluator) Evaluate(ctx context.Context, strategyID string) (*PaperEvaluation, error) {
	snapshots, err := e.store.GetSnapshots(ctx, strategyID)
	if err != nil {
		return nil, fmt.Errorf("load paper snapshots for %s: %w", strategyID, err)
	}
	trades, err := e.store.GetTrades(ctx, strategyID)
	if err != nil {
		return nil, fmt.Errorf("load paper trades for %s: %w", strategyID, err)
	}

	eval := &PaperEvaluation{StrategyID: strategyID, Snapshots: len(snapshots)}
	if len(snapshots) == 0 {
		return eval, nil
	}

	eval.Metrics = Calculate(snapshots, trades, snapshots[0].TotalValueEur)
	eval.DaysTested = DaysBetween(snapshots[0].Timestamp, snapshots[len(snapshots)-1].Timestamp)
	return eval, nil
}

// DaysBetween returns the whole days from start to end (Unix seconds).
func DaysBetween(start, end int64) int {
	if end <= start {
		return 0
	}
	return int((end - start) / secondsPerDay)
}
