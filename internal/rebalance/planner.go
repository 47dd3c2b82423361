// Package rebalance plans the trades that move a portfolio from its current
// weights towards target weights.
package rebalance

import (
	"fmt"
	"math"
	"sort"

	"strategy-lab/internal/domain"
)

// Order is one planned rebalance leg. AmountEur is always positive.
type Order struct {
	Pair      string
	Side      domain.Side
	AmountEur float64
	Price     float64
	Reason    string
}

// Plan compares current and target weights per pair and emits orders for
// drifts worth at least minTradeSize EUR, each capped at
// totalValue * maxTradePercent. Pairs are visited in sorted order.
func Plan(current, target map[string]float64, totalValue float64, prices map[string]float64, minTradeSize, maxTradePercent float64) []Order {
	if totalValue <= 0 {
		return nil
	}

	pairs := make([]string, 0, len(target))
	for pair := range target {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)

	maxAmount := totalValue * maxTradePercent
	var orders []Order

	for _, pair := range pairs {
		price, ok := prices[pair]
		if !ok || price <= 0 {
			continue
		}

		cur := current[pair]
		tgt := target[pair]
		delta := (tgt - cur) * totalValue
		if math.Abs(delta) < minTradeSize {
			continue
		}

		amount := math.Min(math.Abs(delta), maxAmount)
		if amount <= 0 {
			continue
		}

		side := domain.SideBuy
		if delta < 0 {
			side = domain.SideSell
		}

		orders = append(orders, Order{
			Pair:      pair,
			Side:      side,
			AmountEur: amount,
			Price:     price,
			Reason:    fmt.Sprintf("rebalance %.4f->%.4f", cur, tgt),
		})
	}

	return orders
}
