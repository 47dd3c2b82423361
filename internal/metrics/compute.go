// Package metrics derives return, risk and combined-score statistics from an
// equity curve and its trades. Metrics are always recomputed from the full
// history; nothing is patched incrementally.
package metrics

import (
	"math"

	"strategy-lab/internal/domain"
)

// SnapshotsPerDay is the annualization assumption for Sharpe.
const SnapshotsPerDay = 6

// MaxAbsSharpe bounds the reported Sharpe ratio.
const MaxAbsSharpe = 3.0

// Combined score weights.
const (
	ReturnWeight   = 0.30
	SharpeWeight   = 0.30
	DrawdownWeight = 0.25
	WinRateWeight  = 0.15
)

// Calculate computes all metrics for a run.
// An empty snapshot sequence yields zero metrics.
func Calculate(snapshots []domain.PortfolioSnapshot, trades []domain.SimulatedTrade, initialCapital float64) domain.EvaluationMetrics {
	if len(snapshots) == 0 {
		return domain.EvaluationMetrics{}
	}

	values := make([]float64, len(snapshots))
	for i, s := range snapshots {
		values[i] = s.TotalValueEur
	}

	m := domain.EvaluationMetrics{
		TotalReturn: TotalReturn(values[len(values)-1], initialCapital),
		SharpeRatio: SharpeRatio(values),
		MaxDrawdown: MaxDrawdown(values),
		WinRate:     WinRate(trades),
		TotalTrades: len(trades),
	}
	m.CombinedScore = CombinedScore(m)
	return m
}

// TotalReturn returns (final - initial) / initial, 0 when initial is not positive.
func TotalReturn(final, initial float64) float64 {
	if initial <= 0 {
		return 0
	}
	return (final - initial) / initial
}

// SharpeRatio annualizes the mean/stddev of consecutive fractional returns.
// Zero stddev yields MaxAbsSharpe for a positive mean, else 0.
func SharpeRatio(values []float64) float64 {
	returns := periodReturns(values)
	mean := computeMean(returns)
	stddev := computeStddev(returns, mean)

	if stddev == 0 {
		if mean > 0 {
			return MaxAbsSharpe
		}
		return 0
	}

	sharpe := mean / stddev * math.Sqrt(SnapshotsPerDay*365)
	return clamp(sharpe, -MaxAbsSharpe, MaxAbsSharpe)
}

// MaxDrawdown returns the largest (peak - value) / peak seen scanning values in order.
func MaxDrawdown(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	peak := values[0]
	maxDD := 0.0
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

type position struct {
	qty   float64
	entry float64 // volume-weighted average entry price
}

// WinRate counts sells above the average entry price of the open position
// and divides by the number of trades of either side.
// A sell without an open position is never a win.
func WinRate(trades []domain.SimulatedTrade) float64 {
	if len(trades) == 0 {
		return 0
	}

	positions := make(map[string]*position)
	wins := 0

	for _, t := range trades {
		if t.Price <= 0 {
			continue
		}
		qty := t.AmountEur / t.Price

		pos, ok := positions[t.Pair]
		if !ok {
			pos = &position{}
			positions[t.Pair] = pos
		}

		switch t.Side {
		case domain.SideBuy:
			total := pos.qty + qty
			if total > 0 {
				pos.entry = (pos.qty*pos.entry + qty*t.Price) / total
			}
			pos.qty = total
		case domain.SideSell:
			if pos.qty <= 0 {
				continue
			}
			if t.Price > pos.entry {
				wins++
			}
			pos.qty -= qty
			if pos.qty <= 0 {
				pos.qty = 0
				pos.entry = 0
			}
		}
	}

	return float64(wins) / float64(len(trades))
}

// CombinedScore weights normalized return, Sharpe, inverted drawdown and win rate.
// Each component is clamped to [0, 1] before weighting.
func CombinedScore(m domain.EvaluationMetrics) float64 {
	returnScore := clamp((m.TotalReturn+0.5)/1.5, 0, 1)
	sharpeScore := clamp((m.SharpeRatio+1)/4, 0, 1)
	drawdownScore := clamp(1-m.MaxDrawdown/0.5, 0, 1)
	winScore := clamp(m.WinRate, 0, 1)

	return ReturnWeight*returnScore +
		SharpeWeight*sharpeScore +
		DrawdownWeight*drawdownScore +
		WinRateWeight*winScore
}

// periodReturns returns fractional changes between consecutive values.
// Steps from a non-positive value are skipped.
func periodReturns(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, 0, len(values)-1)
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 {
			continue
		}
		out = append(out, (values[i]-values[i-1])/values[i-1])
	}
	return out
}

// computeMean calculates arithmetic mean.
func computeMean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// computeStddev calculates population standard deviation (n denominator).
func computeStddev(xs []float64, mean float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
