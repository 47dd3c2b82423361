package optimizer

import (
	"math/rand"

	"strategy-lab/internal/domain"
)

// Sample returns a uniform random subset of at most max combinations using a
// Fisher–Yates shuffle driven by rng. Combos are returned unchanged when
// max <= 0 or no cap is needed. The input slice is not modified.
func Sample(combos []domain.StrategyParams, max int, rng *rand.Rand) []domain.StrategyParams {
	if max <= 0 || len(combos) <= max {
		return combos
	}

	shuffled := make([]domain.StrategyParams, len(combos))
	copy(shuffled, combos)
	for i := len(shuffled) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:max]
}
