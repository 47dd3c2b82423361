package promotion

import (
	"testing"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/metrics"
)

func TestCriteria_Validate(t *testing.T) {
	if err := DefaultCriteria().Validate(); err != nil {
		t.Fatalf("default criteria invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Criteria)
	}{
		{"backtest score above 1", func(c *Criteria) { c.MinBacktestScore = 1.5 }},
		{"negative days", func(c *Criteria) { c.MinPaperDays = -1 }},
		{"negative paper score", func(c *Criteria) { c.MinPaperScore = -0.1 }},
		{"drawdown above 1", func(c *Criteria) { c.MaxPaperDrawdown = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultCriteria()
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestEvaluate_AllPass(t *testing.T) {
	score := 0.7
	c := &domain.StrategyCandidate{ID: "c1", BacktestScore: &score}
	paper := &metrics.PaperEvaluation{
		DaysTested: 7,
		Metrics:    domain.EvaluationMetrics{CombinedScore: 0.55, MaxDrawdown: 0.08},
	}

	ev := Evaluate(c, paper, DefaultCriteria())

	if !ev.Eligible {
		t.Fatalf("expected eligible at exact thresholds, reasons: %v", ev.Reasons())
	}
	if len(ev.Criteria) != 4 {
		t.Fatalf("expected 4 criteria, got %d", len(ev.Criteria))
	}
	if len(ev.Reasons()) != 0 {
		t.Errorf("expected no reasons, got %v", ev.Reasons())
	}
	want := 0.4*0.7 + 0.6*0.55
	if ev.WeightedScore != want {
		t.Errorf("WeightedScore = %v, want %v", ev.WeightedScore, want)
	}
}

func TestEvaluate_Failures(t *testing.T) {
	score := 0.5
	c := &domain.StrategyCandidate{ID: "c1", BacktestScore: &score}
	paper := &metrics.PaperEvaluation{
		DaysTested: 3,
		Metrics:    domain.EvaluationMetrics{CombinedScore: 0.4, MaxDrawdown: 0.2},
	}

	ev := Evaluate(c, paper, DefaultCriteria())

	if ev.Eligible {
		t.Fatal("expected not eligible")
	}
	want := []string{
		"backtest score 0.5000 below minimum 0.6000",
		"paper tested 3 days, minimum 7",
		"paper score 0.4000 below minimum 0.5500",
		"paper drawdown 0.2000 above maximum 0.0800",
	}
	got := ev.Reasons()
	if len(got) != len(want) {
		t.Fatalf("reasons = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("reason %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEvaluate_MissingBacktestScore(t *testing.T) {
	c := &domain.StrategyCandidate{ID: "c1"}
	paper := &metrics.PaperEvaluation{DaysTested: 10, Metrics: domain.EvaluationMetrics{CombinedScore: 0.9}}

	ev := Evaluate(c, paper, Criteria{})
	if ev.Eligible {
		t.Error("candidate without backtest score must not be eligible")
	}
}
