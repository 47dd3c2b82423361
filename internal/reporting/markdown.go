package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderOptimizationMarkdown renders an optimization report as Markdown string.
func RenderOptimizationMarkdown(r *OptimizationReport) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Optimization Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Mode: %s | Combinations: %d | Completed: %d | Failed: %d | Duration: %s\n\n",
		r.Mode, r.Total, r.Completed, r.Failed, r.Duration.Round(time.Millisecond)))

	// Rankings
	sb.WriteString("## Rankings\n\n")
	if len(r.Rankings) == 0 {
		sb.WriteString("No successful runs.\n\n")
		return sb.String()
	}

	sb.WriteString("| # | Params | MaxTrade | StopLoss | Cooldown | RSI | Weights | Return | Sharpe | MaxDD | WinRate | Trades | Score |\n")
	sb.WriteString("|---|--------|----------|----------|----------|-----|---------|--------|--------|-------|---------|--------|-------|\n")
	for _, row := range r.Rankings {
		sb.WriteString(fmt.Sprintf("| %d | %s | %.2f | %.2f | %d | %.0f/%.0f | %s | %.4f | %.4f | %.4f | %.4f | %d | %.4f |\n",
			row.Rank, row.ParamsID, row.MaxTradePercent, row.StopLossPercent, row.CooldownMinutes,
			row.RSIOversold, row.RSIOverbought, row.Weights,
			row.TotalReturn, row.SharpeRatio, row.MaxDrawdown, row.WinRate, row.TotalTrades, row.Score))
	}
	sb.WriteString("\n")

	best := r.Rankings[0]
	sb.WriteString(fmt.Sprintf("Best: %s (run %s) with score %.4f\n", best.ParamsID, best.RunID, best.Score))

	return sb.String()
}

// RenderPromotionMarkdown renders a promotion report as Markdown string.
func RenderPromotionMarkdown(r *PromotionReport) string {
	var sb strings.Builder

	sb.WriteString("# Promotion Checklist\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.PromotedID != "" {
		sb.WriteString(fmt.Sprintf("## Decision: PROMOTED %s\n\n", r.PromotedID))
	} else {
		sb.WriteString("## Decision: NO PROMOTION\n\n")
	}

	if len(r.Candidates) == 0 {
		sb.WriteString("No candidates in paper testing.\n\n")
	}

	for _, c := range r.Candidates {
		sb.WriteString(fmt.Sprintf("### Candidate %s (%s)\n\n", c.CandidateID, c.ParamsID))
		sb.WriteString(fmt.Sprintf("Backtest: %.4f | Paper: %.4f | Days: %d | Weighted: %.4f\n\n",
			c.BacktestScore, c.PaperScore, c.PaperDays, c.WeightedScore))

		sb.WriteString("| # | Criterion | Threshold | Actual | Pass |\n")
		sb.WriteString("|---|-----------|-----------|--------|------|\n")
		passed := 0
		for i, check := range c.Checks {
			status := "FAIL"
			if check.Pass {
				status = "PASS"
				passed++
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s |\n",
				i+1, check.Name, check.Threshold, check.Actual, status))
		}
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("Criteria: %d/%d passed\n\n", passed, len(c.Checks)))
	}

	if len(r.Reasons) > 0 {
		sb.WriteString("## Summary\n\n")
		for _, reason := range r.Reasons {
			sb.WriteString(fmt.Sprintf("- %s\n", reason))
		}
	}

	return sb.String()
}

// RenderComparisonMarkdown renders a comparison report as Markdown string.
func RenderComparisonMarkdown(r *ComparisonReport) string {
	var sb strings.Builder

	sb.WriteString("# Strategy Comparison\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	sb.WriteString("| Metric | A | B |\n")
	sb.WriteString("|--------|---|---|\n")
	sb.WriteString(fmt.Sprintf("| Params | %s | %s |\n", r.A.ParamsID, r.B.ParamsID))
	sb.WriteString(fmt.Sprintf("| Total Return | %.4f | %.4f |\n", r.A.TotalReturn, r.B.TotalReturn))
	sb.WriteString(fmt.Sprintf("| Sharpe | %.4f | %.4f |\n", r.A.SharpeRatio, r.B.SharpeRatio))
	sb.WriteString(fmt.Sprintf("| Max Drawdown | %.4f | %.4f |\n", r.A.MaxDrawdown, r.B.MaxDrawdown))
	sb.WriteString(fmt.Sprintf("| Win Rate | %.4f | %.4f |\n", r.A.WinRate, r.B.WinRate))
	sb.WriteString(fmt.Sprintf("| Trades | %d | %d |\n", r.A.TotalTrades, r.B.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Score | %.4f | %.4f |\n", r.A.Score, r.B.Score))
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("Difference (A - B): %.4f\n\n", r.Difference))
	sb.WriteString(fmt.Sprintf("Winner: %s\n", r.Winner))

	return sb.String()
}
