// Package promotion moves strategy candidates from paper testing to the live
// configuration once their backtest and paper results clear fixed thresholds.
package promotion

import (
	"fmt"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/metrics"
)

// Ranking weights for the best-but-not-eligible report.
const (
	BacktestWeight = 0.4
	PaperWeight    = 0.6
)

// Criteria are the promotion thresholds. All must hold at once.
type Criteria struct {
	MinBacktestScore float64 `yaml:"min_backtest_score"`
	MinPaperDays     int     `yaml:"min_paper_days"`
	MinPaperScore    float64 `yaml:"min_paper_score"`
	MaxPaperDrawdown float64 `yaml:"max_paper_drawdown"`
}

// DefaultCriteria returns the production thresholds.
func DefaultCriteria() Criteria {
	return Criteria{
		MinBacktestScore: 0.60,
		MinPaperDays:     7,
		MinPaperScore:    0.55,
		MaxPaperDrawdown: 0.08,
	}
}

// Validate checks that every threshold is within its domain.
func (c Criteria) Validate() error {
	if c.MinBacktestScore < 0 || c.MinBacktestScore > 1 {
		return &domain.InvalidParameterError{Field: "min_backtest_score", Reason: "must be within [0, 1]"}
	}
	if c.MinPaperDays < 0 {
		return &domain.InvalidParameterError{Field: "min_paper_days", Reason: "must be >= 0"}
	}
	if c.MinPaperScore < 0 || c.MinPaperScore > 1 {
		return &domain.InvalidParameterError{Field: "min_paper_score", Reason: "must be within [0, 1]"}
	}
	if c.MaxPaperDrawdown < 0 || c.MaxPaperDrawdown > 1 {
		return &domain.InvalidParameterError{Field: "max_paper_drawdown", Reason: "must be within [0, 1]"}
	}
	return nil
}

// CriterionResult represents pass/fail for one threshold.
type CriterionResult struct {
	Name      string
	Threshold float64
	Actual    float64
	Pass      bool
	Reason    string // set when Pass is false
}

// Evaluation is one candidate checked against Criteria.
type Evaluation struct {
	Candidate     *domain.StrategyCandidate
	PaperMetrics  domain.EvaluationMetrics
	PaperDays     int
	Criteria      []CriterionResult
	Eligible      bool
	WeightedScore float64 // BacktestWeight*backtest + PaperWeight*paper
}

// Reasons returns the human-readable reason of every failed criterion.
func (e *Evaluation) Reasons() []string {
	var out []string
	for _, c := range e.Criteria {
		if !c.Pass {
			out = append(out, c.Reason)
		}
	}
	return out
}

// Evaluate checks a candidate and its paper evaluation against criteria.
// A candidate without a backtest score fails the backtest criterion.
func Evaluate(c *domain.StrategyCandidate, paper *metrics.PaperEvaluation, criteria Criteria) *Evaluation {
	backtest := 0.0
	if c.BacktestScore != nil {
		backtest = *c.BacktestScore
	}
	pm := paper.Metrics

	results := []CriterionResult{
		{
			Name:      "backtest_score",
			Threshold: criteria.MinBacktestScore,
			Actual:    backtest,
			Pass:      c.BacktestScore != nil && backtest >= criteria.MinBacktestScore,
		},
		{
			Name:      "paper_days",
			Threshold: float64(criteria.MinPaperDays),
			Actual:    float64(paper.DaysTested),
			Pass:      paper.DaysTested >= criteria.MinPaperDays,
		},
		{
			Name:      "paper_score",
			Threshold: criteria.MinPaperScore,
			Actual:    pm.CombinedScore,
			Pass:      pm.CombinedScore >= criteria.MinPaperScore,
		},
		{
			Name:      "paper_max_drawdown",
			Threshold: criteria.MaxPaperDrawdown,
			Actual:    pm.MaxDrawdown,
			Pass:      pm.MaxDrawdown <= criteria.MaxPaperDrawdown,
		},
	}
	results[0].Reason = fmt.Sprintf("backtest score %.4f below minimum %.4f", backtest, criteria.MinBacktestScore)
	results[1].Reason = fmt.Sprintf("paper tested %d days, minimum %d", paper.DaysTested, criteria.MinPaperDays)
	results[2].Reason = fmt.Sprintf("paper score %.4f below minimum %.4f", pm.CombinedScore, criteria.MinPaperScore)
	results[3].Reason = fmt.Sprintf("paper drawdown %.4f above maximum %.4f", pm.MaxDrawdown, criteria.MaxPaperDrawdown)

	eligible := true
	for i := range results {
		if results[i].Pass {
			results[i].Reason = ""
		} else {
			eligible = false
		}
	}

	return &Evaluation{
		Candidate:     c,
		PaperMetrics:  pm,
		PaperDays:     paper.DaysTested,
		Criteria:      results,
		Eligible:      eligible,
		WeightedScore: BacktestWeight*backtest + PaperWeight*pm.CombinedScore,
	}
}
