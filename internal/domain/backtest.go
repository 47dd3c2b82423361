package domain

import "time"

// BacktestConfig describes the market window and account setup of a run.
type BacktestConfig struct {
	Pairs              []string `json:"pairs" yaml:"pairs"`
	Days               int      `json:"days" yaml:"days"`
	GranularitySeconds int64    `json:"granularity_seconds" yaml:"granularity_seconds"`
	InitialCapitalEur  float64  `json:"initial_capital_eur" yaml:"initial_capital_eur"`
	MinTradeSizeEur    float64  `json:"min_trade_size_eur" yaml:"min_trade_size_eur"`
	MaxDrawdownPercent float64  `json:"max_drawdown_percent" yaml:"max_drawdown_percent"`
	EndTime            int64    `json:"end_time" yaml:"end_time"` // Unix seconds, 0 = resolved by the driver clock
}

// Backtest defaults.
const (
	DefaultBacktestDays       = 30
	DefaultGranularitySeconds = 3600
	DefaultInitialCapitalEur  = 1000.0
	DefaultMinTradeSizeEur    = 10.0
	DefaultMaxDrawdownPercent = 0.10
)

// DefaultBacktestConfig returns a config for pairs with default window and account.
func DefaultBacktestConfig(pairs []string) BacktestConfig {
	return BacktestConfig{
		Pairs:              append([]string(nil), pairs...),
		Days:               DefaultBacktestDays,
		GranularitySeconds: DefaultGranularitySeconds,
		InitialCapitalEur:  DefaultInitialCapitalEur,
		MinTradeSizeEur:    DefaultMinTradeSizeEur,
		MaxDrawdownPercent: DefaultMaxDrawdownPercent,
	}
}

// Validate checks the run configuration.
func (c BacktestConfig) Validate() error {
	if len(c.Pairs) == 0 {
		return &InvalidParameterError{Field: "pairs", Reason: "must not be empty"}
	}
	seen := make(map[string]struct{}, len(c.Pairs))
	for _, p := range c.Pairs {
		if p == "" {
			return &InvalidParameterError{Field: "pairs", Reason: "pair must not be empty"}
		}
		if _, dup := seen[p]; dup {
			return &InvalidParameterError{Field: "pairs", Reason: "duplicate pair " + p}
		}
		seen[p] = struct{}{}
	}
	if c.Days <= 0 {
		return &InvalidParameterError{Field: "days", Reason: "must be > 0"}
	}
	if c.GranularitySeconds <= 0 {
		return &InvalidParameterError{Field: "granularity_seconds", Reason: "must be > 0"}
	}
	if c.InitialCapitalEur <= 0 {
		return &InvalidParameterError{Field: "initial_capital_eur", Reason: "must be > 0"}
	}
	if c.MinTradeSizeEur < 0 {
		return &InvalidParameterError{Field: "min_trade_size_eur", Reason: "must be >= 0"}
	}
	if c.MaxDrawdownPercent <= 0 || c.MaxDrawdownPercent > 1 {
		return &InvalidParameterError{Field: "max_drawdown_percent", Reason: "must be within (0, 1]"}
	}
	return nil
}

// RunStatus is the terminal state of a backtest run.
type RunStatus string

// RunStatus constants.
const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// BacktestResult is the full outcome of one backtest run.
// Corresponds to the backtest_results table.
type BacktestResult struct {
	RunID          string              `json:"run_id"`
	StartedAt      time.Time           `json:"started_at"`
	CompletedAt    time.Time           `json:"completed_at"`
	Status         RunStatus           `json:"status"`
	ErrorMessage   string              `json:"error_message,omitempty"`
	Config         BacktestConfig      `json:"config"`
	StrategyParams StrategyParams      `json:"strategy_params"`
	Trades         []SimulatedTrade    `json:"trades"`
	Snapshots      []PortfolioSnapshot `json:"snapshots"`
	Metrics        EvaluationMetrics   `json:"metrics"`
}

// Clone returns a deep copy of the result.
func (r *BacktestResult) Clone() *BacktestResult {
	c := *r
	c.Config.Pairs = append([]string(nil), r.Config.Pairs...)
	c.StrategyParams = r.StrategyParams.Clone()
	c.Trades = append([]SimulatedTrade(nil), r.Trades...)
	if r.Snapshots != nil {
		c.Snapshots = make([]PortfolioSnapshot, len(r.Snapshots))
		for i, s := range r.Snapshots {
			c.Snapshots[i] = s.Clone()
		}
	}
	return &c
}
