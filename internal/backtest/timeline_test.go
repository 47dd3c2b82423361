package backtest

import (
	"testing"
	"time"

	"strategy-lab/internal/domain"
)

func TestBuildTimeline_UnionSorted(t *testing.T) {
	got := BuildTimeline(map[string][]domain.Candle{
		"A": {{Start: 300}, {Start: 100}},
		"B": {{Start: 200}, {Start: 100}},
	})
	want := []int64{100, 200, 300}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %d, got %d", i, want[i], got[i])
		}
	}

	if len(BuildTimeline(nil)) != 0 {
		t.Error("expected empty timeline for no series")
	}
}

func TestWindow_NoLookAhead(t *testing.T) {
	var candles []domain.Candle
	for i := int64(0); i < 40; i++ {
		candles = append(candles, domain.Candle{Start: i * 10})
	}

	w := Window(candles, 105, WindowSize)
	if len(w) != 11 {
		t.Fatalf("expected 11 candles, got %d", len(w))
	}
	if w[len(w)-1].Start != 100 {
		t.Errorf("expected last visible start 100, got %d", w[len(w)-1].Start)
	}

	w = Window(candles, 390, WindowSize)
	if len(w) != WindowSize {
		t.Errorf("expected %d candles, got %d", WindowSize, len(w))
	}
	if w[0].Start != 160 {
		t.Errorf("expected window to start at 160, got %d", w[0].Start)
	}

	if len(Window(candles, -1, WindowSize)) != 0 {
		t.Error("expected empty window before first candle")
	}
}

func TestWindowBounds(t *testing.T) {
	cfg := domain.BacktestConfig{Days: 2, GranularitySeconds: 3600}

	start, end := WindowBounds(cfg, time.Unix(7200+1234, 0))
	if end != 7200 {
		t.Errorf("expected end aligned to 7200, got %d", end)
	}
	if start != 7200-2*86400 {
		t.Errorf("unexpected start %d", start)
	}

	cfg.EndTime = 86400
	_, end = WindowBounds(cfg, time.Unix(999999, 0))
	if end != 86400 {
		t.Errorf("expected explicit end 86400, got %d", end)
	}
}
