package optimizer

import (
	"context"

	"strategy-lab/internal/domain"
)

// MinImprovement is the score gap between best and runner-up below which
// fine tuning stops and comparisons end in a tie.
const MinImprovement = 0.01

// FineTuneResult holds every round of a fine-tuning session.
type FineTuneResult struct {
	Rounds     []*OptimizationResult
	BestParams domain.StrategyParams
	BestScore  float64
}

// FineTune runs up to rounds neighborhood searches, each centered on the
// previous round's best params. It stops early once the best score leads the
// runner-up by less than MinImprovement.
func (o *Optimizer) FineTune(ctx context.Context, center domain.StrategyParams, rounds int, c Constraints) (*FineTuneResult, error) {
	if rounds <= 0 {
		rounds = 1
	}

	out := &FineTuneResult{BestParams: center.Clone()}
	for round := 1; round <= rounds; round++ {
		rc := c
		p := out.BestParams.Clone()
		rc.Center = &p

		res, err := o.Run(ctx, ModeNeighborhood, rc)
		if err != nil {
			return nil, err
		}
		out.Rounds = append(out.Rounds, res)
		out.BestParams = res.BestParams.Clone()
		out.BestScore = res.BestScore

		gap := 0.0
		if len(res.TopResults) > 1 {
			gap = res.BestScore - res.TopResults[1].Metrics.CombinedScore
		}
		o.log.Info().Int("round", round).Float64("best_score", res.BestScore).Float64("gap", gap).Msg("fine-tune round finished")
		if gap < MinImprovement {
			break
		}
	}
	return out, nil
}
