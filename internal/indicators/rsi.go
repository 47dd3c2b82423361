// Package indicators computes technical indicators from candle sequences.
// All functions are pure and safe for concurrent use.
package indicators

import "strategy-lab/internal/domain"

// DefaultRSIPeriod is the standard Wilder RSI lookback.
const DefaultRSIPeriod = 14

// NeutralRSI is returned when there is not enough history.
const NeutralRSI = 50.0

// RSI computes Wilder's smoothed relative strength index over closes (oldest first).
// Returns NeutralRSI when fewer than period+1 closes are available and 100 when
// the average loss is zero.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 {
		return NeutralRSI
	}

	// Seed with simple averages of the first period changes
	avgGain, avgLoss := 0.0, 0.0
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// Wilder smoothing over the rest
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Closes extracts close prices in input order.
func Closes(candles []domain.Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}
