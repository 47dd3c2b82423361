package reporting

import "time"

// OptimizationReport summarizes one optimizer run.
type OptimizationReport struct {
	// Metadata
	GeneratedAt time.Time
	Mode        string

	// Run counts
	Total     int
	Completed int
	Failed    int
	Duration  time.Duration

	// Rankings (score DESC, rank 1 is best)
	Rankings []RankingRow
}

// RankingRow represents one ranked parameter set.
type RankingRow struct {
	Rank            int
	ParamsID        string // short form of idhash.ParamsID
	RunID           string
	MaxTradePercent float64
	StopLossPercent float64
	CooldownMinutes int
	RSIOversold     float64
	RSIOverbought   float64
	Weights         string // pair=weight, sorted by pair
	TotalReturn     float64
	SharpeRatio     float64
	MaxDrawdown     float64
	WinRate         float64
	TotalTrades     int
	Score           float64
}

// PromotionReport is the promotion checklist for one CheckAndPromote pass.
type PromotionReport struct {
	GeneratedAt time.Time
	PromotedID  string // empty when nothing was promoted
	Candidates  []CandidateSection
	Reasons     []string // why nothing was promoted
}

// CandidateSection lists the criteria outcome of one candidate.
type CandidateSection struct {
	CandidateID   string
	ParamsID      string
	BacktestScore float64
	PaperScore    float64
	PaperDays     int
	WeightedScore float64
	Eligible      bool
	Checks        []CheckRow
}

// CheckRow represents one promotion criterion.
type CheckRow struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// ComparisonReport is a head-to-head of two parameter sets over one window.
type ComparisonReport struct {
	GeneratedAt time.Time
	A           RankingRow
	B           RankingRow
	Difference  float64
	Winner      string
}
