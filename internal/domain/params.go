package domain

import (
	"math"
	"sort"
)

// StrategyParams holds the tunable parameters of the rebalancing strategy.
// Immutable once a run starts; use Clone before modifying.
type StrategyParams struct {
	MaxTradePercent        float64            `json:"max_trade_percent"`        // max single trade as fraction of portfolio
	StopLossPercent        float64            `json:"stop_loss_percent"`        // fraction 0-1
	CooldownMinutes        int                `json:"cooldown_minutes"`         // minimum gap between trading ticks
	RSIOversoldThreshold   float64            `json:"rsi_oversold_threshold"`   // 0-100
	RSIOverboughtThreshold float64            `json:"rsi_overbought_threshold"` // 0-100
	BaseWeights            map[string]float64 `json:"base_weights"`             // pair -> fraction, sums to 1
}

// Validate checks parameter ranges.
// Returns *InvalidParameterError describing the first violation.
func (p StrategyParams) Validate() error {
	if !inUnitRange(p.MaxTradePercent) {
		return &InvalidParameterError{Field: "max_trade_percent", Reason: "must be within [0, 1]"}
	}
	if !inUnitRange(p.StopLossPercent) {
		return &InvalidParameterError{Field: "stop_loss_percent", Reason: "must be within [0, 1]"}
	}
	if p.CooldownMinutes < 0 {
		return &InvalidParameterError{Field: "cooldown_minutes", Reason: "must be >= 0"}
	}
	if p.RSIOversoldThreshold < 0 || p.RSIOversoldThreshold > 100 {
		return &InvalidParameterError{Field: "rsi_oversold_threshold", Reason: "must be within [0, 100]"}
	}
	if p.RSIOverboughtThreshold < 0 || p.RSIOverboughtThreshold > 100 {
		return &InvalidParameterError{Field: "rsi_overbought_threshold", Reason: "must be within [0, 100]"}
	}
	if p.RSIOversoldThreshold >= p.RSIOverboughtThreshold {
		return &InvalidParameterError{Field: "rsi_oversold_threshold", Reason: "must be below rsi_overbought_threshold"}
	}
	if len(p.BaseWeights) == 0 {
		return &InvalidParameterError{Field: "base_weights", Reason: "must not be empty"}
	}

	total := 0.0
	for pair, w := range p.BaseWeights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return &InvalidParameterError{Field: "base_weights", Reason: "weight for " + pair + " must be a non-negative number"}
		}
		total += w
	}
	if total <= 0 {
		return &InvalidParameterError{Field: "base_weights", Reason: "weights must sum to a positive total"}
	}

	return nil
}

// Clone returns a deep copy.
func (p StrategyParams) Clone() StrategyParams {
	c := p
	c.BaseWeights = make(map[string]float64, len(p.BaseWeights))
	for k, v := range p.BaseWeights {
		c.BaseWeights[k] = v
	}
	return c
}

// Equal reports full equality, including every base weight.
func (p StrategyParams) Equal(o StrategyParams) bool {
	if p.MaxTradePercent != o.MaxTradePercent ||
		p.StopLossPercent != o.StopLossPercent ||
		p.CooldownMinutes != o.CooldownMinutes ||
		p.RSIOversoldThreshold != o.RSIOversoldThreshold ||
		p.RSIOverboughtThreshold != o.RSIOverboughtThreshold {
		return false
	}
	if len(p.BaseWeights) != len(o.BaseWeights) {
		return false
	}
	for k, v := range p.BaseWeights {
		ov, ok := o.BaseWeights[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// Pairs returns the pairs of BaseWeights in sorted order.
func (p StrategyParams) Pairs() []string {
	pairs := make([]string, 0, len(p.BaseWeights))
	for pair := range p.BaseWeights {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)
	return pairs
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}
