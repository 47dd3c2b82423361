package backtest

import (
	"sort"
	"time"

	"strategy-lab/internal/domain"
)

// WindowSize is the number of most recent candles visible to indicators.
const WindowSize = 24

// BuildTimeline returns the sorted union of candle starts across all series.
func BuildTimeline(series map[string][]domain.Candle) []int64 {
	seen := make(map[int64]struct{})
	for _, candles := range series {
		for _, c := range candles {
			seen[c.Start] = struct{}{}
		}
	}

	timeline := make([]int64, 0, len(seen))
	for ts := range seen {
		timeline = append(timeline, ts)
	}
	sort.Slice(timeline, func(i, j int) bool { return timeline[i] < timeline[j] })
	return timeline
}

// Window returns the last n candles with start <= ts. candles must be sorted ascending.
// The returned slice aliases candles.
func Window(candles []domain.Candle, ts int64, n int) []domain.Candle {
	idx := sort.Search(len(candles), func(i int) bool { return candles[i].Start > ts })
	lo := idx - n
	if lo < 0 {
		lo = 0
	}
	return candles[lo:idx]
}

// crossSection returns the close of every pair at exactly ts and the visible
// windows. ok is false when any pair has no candle starting at ts.
func crossSection(pairs []string, series map[string][]domain.Candle, ts int64) (prices map[string]float64, recent map[string][]domain.Candle, ok bool) {
	prices = make(map[string]float64, len(pairs))
	recent = make(map[string][]domain.Candle, len(pairs))

	for _, pair := range pairs {
		w := Window(series[pair], ts, WindowSize)
		if len(w) == 0 || w[len(w)-1].Start != ts {
			return nil, nil, false
		}
		prices[pair] = w[len(w)-1].Close
		recent[pair] = w
	}
	return prices, recent, true
}

// WindowBounds returns the [start, end] Unix-second range of a run.
// end is cfg.EndTime, or now when unset, aligned down to the granularity.
func WindowBounds(cfg domain.BacktestConfig, now time.Time) (start, end int64) {
	end = cfg.EndTime
	if end == 0 {
		end = now.Unix()
	}
	if cfg.GranularitySeconds > 0 {
		end -= end % cfg.GranularitySeconds
	}
	start = end - int64(cfg.Days)*86400
	return start, end
}
