// Package orchestrator runs one lab cycle end to end.
// It coordinates: optimization → candidate registration → promotion check
package orchestrator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/idhash"
	"strategy-lab/internal/optimizer"
	"strategy-lab/internal/promotion"
)

// Searcher runs a grid search. Satisfied by *optimizer.Optimizer.
type Searcher interface {
	Run(ctx context.Context, mode optimizer.Mode, c optimizer.Constraints) (*optimizer.OptimizationResult, error)
}

// Options for creating Orchestrator.
type Options struct {
	Searcher    Searcher
	Machine     *promotion.Machine
	Mode        optimizer.Mode
	Constraints optimizer.Constraints
	Criteria    promotion.Criteria
	Logger      zerolog.Logger
}

// Orchestrator coordinates one optimization and promotion cycle.
type Orchestrator struct {
	searcher    Searcher
	machine     *promotion.Machine
	mode        optimizer.Mode
	constraints optimizer.Constraints
	criteria    promotion.Criteria
	log         zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		searcher:    opts.Searcher,
		machine:     opts.Machine,
		mode:        opts.Mode,
		constraints: opts.Constraints,
		criteria:    opts.Criteria,
		log:         opts.Logger.With().Str("component", "orchestrator").Logger(),
	}
}

// RunResult contains results from one cycle.
type RunResult struct {
	Optimization *optimizer.OptimizationResult
	Candidate    *domain.StrategyCandidate // nil when the best params were not registered
	SkipReason   string                    // why the best params were not registered
	Promotion    *promotion.PromotionResult
}

// Run executes one cycle.
// Phases:
//  1. Grid search
//  2. Register the best params as a paper candidate, unless below the
//     backtest threshold or already under paper test
//  3. Evaluate paper candidates and promote at most one
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}

	// Phase 1: Optimization
	o.log.Info().Str("mode", string(o.mode)).Msg("phase 1: optimizing")
	opt, err := o.searcher.Run(ctx, o.mode, o.constraints)
	if err != nil {
		return nil, fmt.Errorf("phase 1 (optimize) failed: %w", err)
	}
	result.Optimization = opt
	o.log.Info().Float64("best_score", opt.BestScore).Int("completed", opt.Completed).Msg("optimization done")

	// Phase 2: Candidate registration
	o.log.Info().Msg("phase 2: registering candidate")
	c, reason, err := o.register(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("phase 2 (register) failed: %w", err)
	}
	result.Candidate = c
	result.SkipReason = reason
	if c != nil {
		o.log.Info().Str("candidate_id", c.ID).Msg("candidate registered")
	} else {
		o.log.Info().Str("reason", reason).Msg("candidate skipped")
	}

	// Phase 3: Promotion
	o.log.Info().Msg("phase 3: checking promotion")
	promo, err := o.machine.CheckAndPromote(ctx, o.criteria)
	if err != nil {
		return nil, fmt.Errorf("phase 3 (promote) failed: %w", err)
	}
	result.Promotion = promo

	return result, nil
}

func (o *Orchestrator) register(ctx context.Context, opt *optimizer.OptimizationResult) (*domain.StrategyCandidate, string, error) {
	if opt.BestScore < o.criteria.MinBacktestScore {
		return nil, fmt.Sprintf("best score %.4f below minimum %.4f", opt.BestScore, o.criteria.MinBacktestScore), nil
	}

	active, err := o.machine.Candidates(ctx, domain.CandidateStatusPaperTesting)
	if err != nil {
		return nil, "", err
	}
	bestID := idhash.ParamsID(opt.BestParams)
	for _, existing := range active {
		if idhash.ParamsID(existing.StrategyParams) == bestID {
			return nil, "params already under paper test as " + existing.ID, nil
		}
	}

	c, err := o.machine.AddCandidate(ctx, opt.BestParams, opt.BestScore)
	if err != nil {
		return nil, "", err
	}
	return c, "", nil
}
