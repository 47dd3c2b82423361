// Package simulation replays the rebalancing strategy against a price feed.
//
// The Simulator is driven one tick at a time by ProcessCandle. It never reads
// the wall clock or draws random numbers: the tick timestamp is the only time
// source, so identical inputs produce identical trade and snapshot sequences.
package simulation

import (
	"math"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/rebalance"
	"strategy-lab/internal/weights"
)

// DefaultSlippagePercent is applied against the trader on every leg.
const DefaultSlippagePercent = 0.001

// State is the trading state of a simulator after a tick.
type State string

// State constants. DrawdownPaused is terminal for the run.
const (
	StateActive         State = "active"
	StateCooldown       State = "cooldown"
	StateDrawdownPaused State = "drawdown_paused"
)

// Config contains the account setup and parameters of one simulated run.
type Config struct {
	Pairs              []string
	InitialCapitalEur  float64
	MinTradeSizeEur    float64
	MaxDrawdownPercent float64 // 0 = domain.DefaultMaxDrawdownPercent
	SlippagePercent    float64 // 0 = DefaultSlippagePercent
	Params             domain.StrategyParams
}

// TickOutcome describes what one ProcessCandle call did.
type TickOutcome struct {
	State    State
	Trades   []domain.SimulatedTrade
	Snapshot domain.PortfolioSnapshot
}

// Simulator holds the mutable state of one run. Not safe for concurrent use.
type Simulator struct {
	pairs          []string
	minTradeSize   float64
	maxDrawdown    float64
	slippage       float64
	params         domain.StrategyParams
	cooldownSecond int64

	balances  map[string]float64
	peak      float64
	lastTrade int64
	hasTraded bool
	state     State

	trades    []domain.SimulatedTrade
	snapshots []domain.PortfolioSnapshot
}

// New creates a simulator holding the initial capital in EUR.
func New(cfg Config) *Simulator {
	maxDD := cfg.MaxDrawdownPercent
	if maxDD <= 0 {
		maxDD = domain.DefaultMaxDrawdownPercent
	}
	slippage := cfg.SlippagePercent
	if slippage <= 0 {
		slippage = DefaultSlippagePercent
	}

	pairs := append([]string(nil), cfg.Pairs...)
	if len(pairs) == 0 {
		pairs = cfg.Params.Pairs()
	}

	return &Simulator{
		pairs:          pairs,
		minTradeSize:   cfg.MinTradeSizeEur,
		maxDrawdown:    maxDD,
		slippage:       slippage,
		params:         cfg.Params.Clone(),
		cooldownSecond: int64(cfg.Params.CooldownMinutes) * 60,
		balances:       map[string]float64{domain.QuoteAsset: cfg.InitialCapitalEur},
		peak:           cfg.InitialCapitalEur,
		state:          StateActive,
	}
}

// ProcessCandle advances the simulation by one tick.
// prices holds the close of every pair at timestamp; recent holds the
// candles visible at timestamp used by the indicators.
func (s *Simulator) ProcessCandle(timestamp int64, prices map[string]float64, recent map[string][]domain.Candle) TickOutcome {
	total := s.totalValue(prices)
	if total > s.peak {
		s.peak = total
	}

	if s.state == StateDrawdownPaused {
		return s.snapshotOnly(timestamp, prices)
	}

	if s.peak > 0 && (s.peak-total)/s.peak >= s.maxDrawdown {
		s.state = StateDrawdownPaused
		return s.snapshotOnly(timestamp, prices)
	}

	if s.hasTraded && timestamp-s.lastTrade < s.cooldownSecond {
		s.state = StateCooldown
		return s.snapshotOnly(timestamp, prices)
	}
	s.state = StateActive

	target := weights.Calculate(weights.Input{
		Pairs:         s.pairs,
		Prices:        prices,
		RecentCandles: recent,
		BaseWeights:   s.params.BaseWeights,
		RSIOversold:   s.params.RSIOversoldThreshold,
		RSIOverbought: s.params.RSIOverboughtThreshold,
	})
	current := s.currentWeights(prices, total)

	orders := rebalance.Plan(current, target, total, prices, s.minTradeSize, s.params.MaxTradePercent)

	var executed []domain.SimulatedTrade
	// Sells first so their proceeds fund the buys of the same tick.
	for _, side := range []domain.Side{domain.SideSell, domain.SideBuy} {
		for _, o := range orders {
			if o.Side != side {
				continue
			}
			if trade, ok := s.execute(timestamp, o); ok {
				executed = append(executed, trade)
			}
		}
	}

	if len(executed) > 0 {
		s.lastTrade = timestamp
		s.hasTraded = true
		s.trades = append(s.trades, executed...)
	}

	snap := s.snapshot(timestamp, prices)
	return TickOutcome{State: s.state, Trades: executed, Snapshot: snap}
}

func (s *Simulator) execute(timestamp int64, o rebalance.Order) (domain.SimulatedTrade, bool) {
	asset := domain.BaseAsset(o.Pair)

	switch o.Side {
	case domain.SideBuy:
		exec := o.Price * (1 + s.slippage)
		spend := math.Min(o.AmountEur, s.balances[domain.QuoteAsset])
		if spend <= 0 || exec <= 0 {
			return domain.SimulatedTrade{}, false
		}
		s.balances[domain.QuoteAsset] -= spend
		s.balances[asset] += spend / exec
		return domain.SimulatedTrade{
			Timestamp: timestamp,
			Pair:      o.Pair,
			Side:      domain.SideBuy,
			AmountEur: spend,
			Price:     exec,
			Reason:    o.Reason,
		}, true

	case domain.SideSell:
		exec := o.Price * (1 - s.slippage)
		if exec <= 0 {
			return domain.SimulatedTrade{}, false
		}
		qty := math.Min(o.AmountEur/exec, s.balances[asset])
		if qty <= 0 {
			return domain.SimulatedTrade{}, false
		}
		proceeds := qty * exec
		s.balances[asset] -= qty
		s.balances[domain.QuoteAsset] += proceeds
		return domain.SimulatedTrade{
			Timestamp: timestamp,
			Pair:      o.Pair,
			Side:      domain.SideSell,
			AmountEur: proceeds,
			Price:     exec,
			Reason:    o.Reason,
		}, true
	}

	return domain.SimulatedTrade{}, false
}

func (s *Simulator) snapshotOnly(timestamp int64, prices map[string]float64) TickOutcome {
	return TickOutcome{State: s.state, Snapshot: s.snapshot(timestamp, prices)}
}

func (s *Simulator) snapshot(timestamp int64, prices map[string]float64) domain.PortfolioSnapshot {
	total := s.totalValue(prices)
	snap := domain.PortfolioSnapshot{
		Timestamp:     timestamp,
		Balances:      copyMap(s.balances),
		TotalValueEur: total,
		Weights:       s.currentWeights(prices, total),
	}
	s.snapshots = append(s.snapshots, snap)
	return snap
}

// Trades returns a copy of every executed leg so far.
func (s *Simulator) Trades() []domain.SimulatedTrade {
	return append([]domain.SimulatedTrade(nil), s.trades...)
}

// Snapshots returns a copy of the equity curve so far.
func (s *Simulator) Snapshots() []domain.PortfolioSnapshot {
	out := make([]domain.PortfolioSnapshot, len(s.snapshots))
	for i, snap := range s.snapshots {
		out[i] = snap
		out[i].Balances = copyMap(snap.Balances)
		out[i].Weights = copyMap(snap.Weights)
	}
	return out
}

// PeakValue returns the highest portfolio value observed.
func (s *Simulator) PeakValue() float64 { return s.peak }

// State returns the state after the last tick.
func (s *Simulator) State() State { return s.state }

// Balances returns a copy of asset quantities, including EUR.
func (s *Simulator) Balances() map[string]float64 { return copyMap(s.balances) }
