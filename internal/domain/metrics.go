package domain

// EvaluationMetrics holds return, risk and combined-score statistics
// derived from a snapshot/trade history. Always recomputed, never patched.
type EvaluationMetrics struct {
	TotalReturn   float64 `json:"total_return"`   // fraction of initial capital
	SharpeRatio   float64 `json:"sharpe_ratio"`   // annualized, clamped to [-3, 3]
	MaxDrawdown   float64 `json:"max_drawdown"`   // worst peak-to-trough fraction
	WinRate       float64 `json:"win_rate"`       // winning closes / total trades
	TotalTrades   int     `json:"total_trades"`   // all legs, buys and sells
	CombinedScore float64 `json:"combined_score"` // [0, 1]
}
