package optimizer

import (
	"context"
	"fmt"
	"math"

	"strategy-lab/internal/domain"
)

// Comparison winners.
const (
	WinnerA   = "A"
	WinnerB   = "B"
	WinnerTie = "tie"
)

// Comparison is the head-to-head outcome of two parameter sets.
type Comparison struct {
	A          *domain.BacktestResult
	B          *domain.BacktestResult
	Difference float64 // score A - score B
	Winner     string
}

// Compare backtests a and b over the same window. A winner is declared only
// when the scores differ by at least MinImprovement.
func (o *Optimizer) Compare(ctx context.Context, a, b domain.StrategyParams, c Constraints) (*Comparison, error) {
	if err := c.Backtest.Validate(); err != nil {
		return nil, err
	}
	cfg := o.pinWindow(c.Backtest)

	resA, err := o.runner.Run(ctx, cfg, a)
	if err != nil {
		return nil, fmt.Errorf("run A: %w", err)
	}
	resB, err := o.runner.Run(ctx, cfg, b)
	if err != nil {
		return nil, fmt.Errorf("run B: %w", err)
	}

	out := &Comparison{
		A:          resA,
		B:          resB,
		Difference: resA.Metrics.CombinedScore - resB.Metrics.CombinedScore,
		Winner:     WinnerTie,
	}
	if math.Abs(out.Difference) >= MinImprovement {
		if out.Difference > 0 {
			out.Winner = WinnerA
		} else {
			out.Winner = WinnerB
		}
	}
	return out, nil
}
