package reporting

import (
	"fmt"
	"strings"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/idhash"
	"strategy-lab/internal/optimizer"
	"strategy-lab/internal/promotion"
)

// Generator builds reports from optimizer and promotion results.
type Generator struct {
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator() *Generator {
	return &Generator{
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Optimization builds the ranking report of an optimizer run.
func (g *Generator) Optimization(res *optimizer.OptimizationResult) *OptimizationReport {
	rows := make([]RankingRow, 0, len(res.TopResults))
	for i, r := range res.TopResults {
		row := rankingRow(r)
		row.Rank = i + 1
		rows = append(rows, row)
	}

	return &OptimizationReport{
		GeneratedAt: g.now(),
		Mode:        string(res.Mode),
		Total:       res.Total,
		Completed:   res.Completed,
		Failed:      res.Failed,
		Duration:    res.Duration,
		Rankings:    rows,
	}
}

// Promotion builds the checklist report of a promotion pass.
func (g *Generator) Promotion(res *promotion.PromotionResult) *PromotionReport {
	report := &PromotionReport{
		GeneratedAt: g.now(),
		Reasons:     append([]string(nil), res.Reasons...),
	}
	if res.Promoted != nil {
		report.PromotedID = res.Promoted.ID
	}

	for _, e := range res.Evaluated {
		section := CandidateSection{
			CandidateID:   e.Candidate.ID,
			ParamsID:      idhash.ShortID(idhash.ParamsID(e.Candidate.StrategyParams)),
			PaperScore:    e.PaperMetrics.CombinedScore,
			PaperDays:     e.PaperDays,
			WeightedScore: e.WeightedScore,
			Eligible:      e.Eligible,
		}
		if e.Candidate.BacktestScore != nil {
			section.BacktestScore = *e.Candidate.BacktestScore
		}
		for _, c := range e.Criteria {
			section.Checks = append(section.Checks, checkRow(c))
		}
		report.Candidates = append(report.Candidates, section)
	}

	return report
}

// Comparison builds the head-to-head report of two backtests.
func (g *Generator) Comparison(c *optimizer.Comparison) *ComparisonReport {
	return &ComparisonReport{
		GeneratedAt: g.now(),
		A:           rankingRow(c.A),
		B:           rankingRow(c.B),
		Difference:  c.Difference,
		Winner:      c.Winner,
	}
}

func rankingRow(r *domain.BacktestResult) RankingRow {
	p := r.StrategyParams
	m := r.Metrics
	return RankingRow{
		ParamsID:        idhash.ShortID(idhash.ParamsID(p)),
		RunID:           r.RunID,
		MaxTradePercent: p.MaxTradePercent,
		StopLossPercent: p.StopLossPercent,
		CooldownMinutes: p.CooldownMinutes,
		RSIOversold:     p.RSIOversoldThreshold,
		RSIOverbought:   p.RSIOverboughtThreshold,
		Weights:         formatWeights(p),
		TotalReturn:     m.TotalReturn,
		SharpeRatio:     m.SharpeRatio,
		MaxDrawdown:     m.MaxDrawdown,
		WinRate:         m.WinRate,
		TotalTrades:     m.TotalTrades,
		Score:           m.CombinedScore,
	}
}

func formatWeights(p domain.StrategyParams) string {
	pairs := p.Pairs()
	parts := make([]string, len(pairs))
	for i, pair := range pairs {
		parts[i] = fmt.Sprintf("%s=%.2f", pair, p.BaseWeights[pair])
	}
	return strings.Join(parts, " ")
}

func checkRow(c promotion.CriterionResult) CheckRow {
	row := CheckRow{Name: c.Name, Pass: c.Pass}
	switch c.Name {
	case "paper_days":
		row.Threshold = fmt.Sprintf(">= %d", int(c.Threshold))
		row.Actual = fmt.Sprintf("%d", int(c.Actual))
	case "paper_max_drawdown":
		row.Threshold = fmt.Sprintf("<= %.4f", c.Threshold)
		row.Actual = fmt.Sprintf("%.4f", c.Actual)
	default:
		row.Threshold = fmt.Sprintf(">= %.4f", c.Threshold)
		row.Actual = fmt.Sprintf("%.4f", c.Actual)
	}
	return row
}
