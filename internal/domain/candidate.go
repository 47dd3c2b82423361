package domain

import "time"

// CandidateStatus is the promotion lifecycle state of a candidate.
type CandidateStatus string

// Candidate status constants. Promoted and rejected are terminal.
const (
	CandidateStatusPaperTesting CandidateStatus = "paper_testing"
	CandidateStatusPromoted     CandidateStatus = "promoted"
	CandidateStatusRejected     CandidateStatus = "rejected"
)

// StrategyCandidate is a parameter set under paper evaluation.
// Corresponds to the strategy_candidates table.
type StrategyCandidate struct {
	ID              string          `json:"id"`
	CreatedAt       time.Time       `json:"created_at"`
	StrategyParams  StrategyParams  `json:"strategy_params"`
	BacktestScore   *float64        `json:"backtest_score"`    // nullable
	PaperScore      *float64        `json:"paper_score"`       // nullable until evaluated
	PaperDaysTested int             `json:"paper_days_tested"` // whole days of paper history
	Status          CandidateStatus `json:"status"`
	PromotedAt      *time.Time      `json:"promoted_at"` // nullable
	RejectReason    string          `json:"reject_reason,omitempty"`
}

// Clone returns a deep copy of the candidate.
func (c *StrategyCandidate) Clone() *StrategyCandidate {
	out := *c
	out.StrategyParams = c.StrategyParams.Clone()
	if c.BacktestScore != nil {
		v := *c.BacktestScore
		out.BacktestScore = &v
	}
	if c.PaperScore != nil {
		v := *c.PaperScore
		out.PaperScore = &v
	}
	if c.PromotedAt != nil {
		v := *c.PromotedAt
		out.PromotedAt = &v
	}
	return &out
}
