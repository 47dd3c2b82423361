package domain

import "sort"

// Candle represents one OHLCV bar for a trading pair.
// Start is the bar open time in Unix seconds.
type Candle struct {
	Start  int64   `json:"start"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// SortCandles returns a copy of candles ordered by Start ASC.
// Exchanges commonly return newest-first; duplicate Start values keep the
// first occurrence in input order.
func SortCandles(candles []Candle) []Candle {
	out := make([]Candle, len(candles))
	copy(out, candles)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})

	deduped := out[:0]
	for i, c := range out {
		if i > 0 && c.Start == deduped[len(deduped)-1].Start {
			continue
		}
		deduped = append(deduped, c)
	}
	return deduped
}
