package domain

import "time"

// LiveConfig is the configuration the live trading loop reads.
// Replaced as a whole on every write.
type LiveConfig struct {
	Pairs                  []string           `json:"pairs"`
	Enabled                bool               `json:"enabled"`
	MaxTradePercent        float64            `json:"max_trade_percent"`
	StopLossPercent        float64            `json:"stop_loss_percent"`
	CooldownMinutes        int                `json:"cooldown_minutes"`
	RSIOversoldThreshold   float64            `json:"rsi_oversold_threshold"`
	RSIOverboughtThreshold float64            `json:"rsi_overbought_threshold"`
	BaseWeights            map[string]float64 `json:"base_weights"`
	MinTradeSizeEur        float64            `json:"min_trade_size_eur"`
	MaxDrawdownPercent     float64            `json:"max_drawdown_percent"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// DefaultLiveConfig is the rollback target.
func DefaultLiveConfig() LiveConfig {
	return LiveConfig{
		Pairs:                  []string{"BTC-EUR", "ETH-EUR", "SOL-EUR"},
		Enabled:                false,
		MaxTradePercent:        0.10,
		StopLossPercent:        0.05,
		CooldownMinutes:        60,
		RSIOversoldThreshold:   30,
		RSIOverboughtThreshold: 70,
		BaseWeights: map[string]float64{
			"BTC-EUR": 0.5,
			"ETH-EUR": 0.3,
			"SOL-EUR": 0.2,
		},
		MinTradeSizeEur:    DefaultMinTradeSizeEur,
		MaxDrawdownPercent: DefaultMaxDrawdownPercent,
	}
}

// ApplyTunables returns a copy of c with the promotable fields taken from p:
// trade size, stop loss, cooldown and base weights. Pairs, enable flag and
// other fields are kept.
func (c LiveConfig) ApplyTunables(p StrategyParams) LiveConfig {
	out := c
	out.Pairs = append([]string(nil), c.Pairs...)
	out.MaxTradePercent = p.MaxTradePercent
	out.StopLossPercent = p.StopLossPercent
	out.CooldownMinutes = p.CooldownMinutes
	out.BaseWeights = p.Clone().BaseWeights
	return out
}

// Params returns the StrategyParams view of the live configuration.
func (c LiveConfig) Params() StrategyParams {
	p := StrategyParams{
		MaxTradePercent:        c.MaxTradePercent,
		StopLossPercent:        c.StopLossPercent,
		CooldownMinutes:        c.CooldownMinutes,
		RSIOversoldThreshold:   c.RSIOversoldThreshold,
		RSIOverboughtThreshold: c.RSIOverboughtThreshold,
		BaseWeights:            c.BaseWeights,
	}
	return p.Clone()
}

// Clone returns a deep copy of the configuration.
func (c LiveConfig) Clone() LiveConfig {
	out := c
	out.Pairs = append([]string(nil), c.Pairs...)
	out.BaseWeights = cloneFloatMap(c.BaseWeights)
	return out
}
