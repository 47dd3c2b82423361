package indicators

import "strategy-lab/internal/domain"

// MomentumWindow is the number of most recent candles momentum looks at.
const MomentumWindow = 6

// Momentum returns the percent change from the first to the last close of the
// most recent MomentumWindow candles (fewer if unavailable).
// Returns 0 with fewer than 2 candles.
func Momentum(candles []domain.Candle) float64 {
	if len(candles) < 2 {
		return 0
	}

	recent := candles
	if len(recent) > MomentumWindow {
		recent = recent[len(recent)-MomentumWindow:]
	}

	first := recent[0].Close
	last := recent[len(recent)-1].Close
	if first == 0 {
		return 0
	}
	return (last - first) / first * 100
}
