// Package weights turns base allocations and indicators into target portfolio weights.
// The same calculation drives the live loop and the simulator, so it must stay pure.
package weights

import (
	"sort"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/indicators"
)

// Tilt and RSI adjustment constants.
const (
	MaxMomentumTilt      = 0.15 // ±15 percentage points
	OverboughtMultiplier = 0.8
	OversoldMultiplier   = 1.2
)

// Input holds everything the calculator needs for one tick.
type Input struct {
	Pairs         []string
	Prices        map[string]float64
	RecentCandles map[string][]domain.Candle
	BaseWeights   map[string]float64
	RSIOversold   float64
	RSIOverbought float64

	// Advisory weights fully override indicator weighting when non-empty.
	Advisory map[string]float64
}

// Calculate returns normalized target weights keyed by pair.
func Calculate(in Input) map[string]float64 {
	if len(in.Advisory) > 0 {
		return Normalize(in.Advisory)
	}

	pairs := sortedPairs(in.Pairs)
	raw := make(map[string]float64, len(pairs))

	for _, pair := range pairs {
		w := in.BaseWeights[pair]

		candles := in.RecentCandles[pair]
		tilt := indicators.Momentum(candles) / 100
		w += clamp(tilt, -MaxMomentumTilt, MaxMomentumTilt)

		rsi := indicators.RSI(indicators.Closes(candles), indicators.DefaultRSIPeriod)
		switch {
		case rsi > in.RSIOverbought:
			w *= OverboughtMultiplier
		case rsi < in.RSIOversold:
			w *= OversoldMultiplier
		}

		if w < 0 {
			w = 0
		}
		raw[pair] = w
	}

	return normalizeOver(pairs, raw)
}

// Normalize scales weights so they sum to 1.
// Negative entries are floored at 0; an all-zero mapping becomes equal weights.
func Normalize(w map[string]float64) map[string]float64 {
	pairs := make([]string, 0, len(w))
	for pair := range w {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)

	floored := make(map[string]float64, len(w))
	for _, pair := range pairs {
		v := w[pair]
		if v < 0 {
			v = 0
		}
		floored[pair] = v
	}
	return normalizeOver(pairs, floored)
}

func normalizeOver(pairs []string, raw map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(pairs))
	if len(pairs) == 0 {
		return out
	}

	total := 0.0
	for _, pair := range pairs {
		total += raw[pair]
	}

	if total <= 0 {
		equal := 1 / float64(len(pairs))
		for _, pair := range pairs {
			out[pair] = equal
		}
		return out
	}

	for _, pair := range pairs {
		out[pair] = raw[pair] / total
	}
	return out
}

func sortedPairs(pairs []string) []string {
	out := append([]string(nil), pairs...)
	sort.Strings(out)
	return out
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
