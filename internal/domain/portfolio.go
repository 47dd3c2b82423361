package domain

import "strings"

// QuoteAsset is the cash asset every pair is quoted in.
const QuoteAsset = "EUR"

// Side is the direction of a trade.
type Side string

// Side constants.
const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// PortfolioSnapshot is the portfolio state after one tick.
// The ordered sequence of snapshots is the run's equity curve.
type PortfolioSnapshot struct {
	Timestamp     int64              `json:"timestamp"`       // Unix seconds
	Balances      map[string]float64 `json:"balances"`        // asset -> quantity, includes EUR
	TotalValueEur float64            `json:"total_value_eur"` // EUR + sum(qty * price)
	Weights       map[string]float64 `json:"weights"`         // pair -> fraction of total
}

// SimulatedTrade is one executed rebalance leg.
type SimulatedTrade struct {
	Timestamp int64   `json:"timestamp"`  // Unix seconds
	Pair      string  `json:"pair"`       // e.g. BTC-EUR
	Side      Side    `json:"side"`       // BUY | SELL
	AmountEur float64 `json:"amount_eur"` // EUR moved by the leg
	Price     float64 `json:"price"`      // post-slippage execution price
	Reason    string  `json:"reason"`
}

// BaseAsset returns the base asset of a pair ("BTC-EUR" -> "BTC").
func BaseAsset(pair string) string {
	if i := strings.IndexAny(pair, "-/"); i > 0 {
		return pair[:i]
	}
	return strings.TrimSuffix(pair, QuoteAsset)
}

// Clone returns a deep copy of the snapshot.
func (s PortfolioSnapshot) Clone() PortfolioSnapshot {
	c := s
	c.Balances = cloneFloatMap(s.Balances)
	c.Weights = cloneFloatMap(s.Weights)
	return c
}

func cloneFloatMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
