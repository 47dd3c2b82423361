package simulation

import (
	"strategy-lab/internal/domain"
)

// totalValue returns EUR plus every configured holding marked at prices.
// Holdings without a price contribute nothing.
func (s *Simulator) totalValue(prices map[string]float64) float64 {
	total := s.balances[domain.QuoteAsset]
	for _, pair := range s.pairs {
		total += s.balances[domain.BaseAsset(pair)] * prices[pair]
	}
	return total
}

// currentWeights returns the fraction of total held in each pair.
func (s *Simulator) currentWeights(prices map[string]float64, total float64) map[string]float64 {
	w := make(map[string]float64, len(s.pairs))
	for _, pair := range s.pairs {
		if total <= 0 {
			w[pair] = 0
			continue
		}
		w[pair] = s.balances[domain.BaseAsset(pair)] * prices[pair] / total
	}
	return w
}

func copyMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
