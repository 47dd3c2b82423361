package promotion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/metrics"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/storage"
)

// ErrCandidateNotFound is returned when a candidate id doesn't exist.
var ErrCandidateNotFound = errors.New("candidate not found")

// Options contains configuration for creating a Machine.
type Options struct {
	Candidates storage.CandidateStore
	Paper      storage.PaperHistoryStore
	LiveConfig storage.LiveConfigStore
	Logger     zerolog.Logger
	Clock      func() time.Time // nil = time.Now
}

// PromotionResult is the outcome of one CheckAndPromote call.
type PromotionResult struct {
	Promoted        *domain.StrategyCandidate // nil when nothing was promoted
	Evaluated       []*Evaluation
	BestNotEligible *Evaluation // set only when nothing was promoted
	Reasons         []string
}

// Machine drives candidates through paper_testing -> promoted | rejected.
type Machine struct {
	candidates storage.CandidateStore
	paper      *metrics.PaperEvaluator
	live       storage.LiveConfigStore
	log        zerolog.Logger
	clock      func() time.Time
}

// NewMachine creates a promotion state machine.
func NewMachine(opts Options) *Machine {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Machine{
		candidates: opts.Candidates,
		paper:      metrics.NewPaperEvaluator(opts.Paper),
		live:       opts.LiveConfig,
		log:        opts.Logger.With().Str("component", "promotion").Logger(),
		clock:      clock,
	}
}

// AddCandidate registers params with their backtest score for paper testing.
func (m *Machine) AddCandidate(ctx context.Context, params domain.StrategyParams, backtestScore float64) (*domain.StrategyCandidate, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	score := backtestScore
	c := &domain.StrategyCandidate{
		ID:             uuid.NewString(),
		CreatedAt:      m.clock().UTC(),
		StrategyParams: params.Clone(),
		BacktestScore:  &score,
		Status:         domain.CandidateStatusPaperTesting,
	}
	if err := m.candidates.Insert(ctx, c); err != nil {
		return nil, fmt.Errorf("insert candidate: %w", err)
	}

	observability.RecordPromotionAction("add")
	m.log.Info().Str("candidate_id", c.ID).Float64("backtest_score", score).Msg("candidate added")
	return c.Clone(), nil
}

// Candidates returns candidates with status, oldest first.
func (m *Machine) Candidates(ctx context.Context, status domain.CandidateStatus) ([]*domain.StrategyCandidate, error) {
	return m.candidates.GetByStatus(ctx, status)
}

// CheckAndPromote evaluates every paper_testing candidate with a backtest
// score, persists its paper score and days, and promotes the first eligible
// candidate in creation order. At most one candidate is promoted per call.
// When none is eligible, the best weighted candidate with enough paper days is
// reported with the reasons it failed and nothing changes state.
func (m *Machine) CheckAndPromote(ctx context.Context, criteria Criteria) (*PromotionResult, error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	pending, err := m.candidates.GetByStatus(ctx, domain.CandidateStatusPaperTesting)
	if err != nil {
		return nil, fmt.Errorf("list paper candidates: %w", err)
	}

	result := &PromotionResult{}
	for _, c := range pending {
		if c.BacktestScore == nil {
			continue
		}

		paper, err := m.paper.Evaluate(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if err := m.candidates.UpdatePaperResults(ctx, c.ID, paper.Metrics.CombinedScore, paper.DaysTested); err != nil {
			return nil, fmt.Errorf("update paper results of %s: %w", c.ID, err)
		}
		score := paper.Metrics.CombinedScore
		c.PaperScore = &score
		c.PaperDaysTested = paper.DaysTested

		result.Evaluated = append(result.Evaluated, Evaluate(c, paper, criteria))
	}

	for _, ev := range result.Evaluated {
		if !ev.Eligible {
			continue
		}
		promoted, err := m.promote(ctx, ev.Candidate, "promote")
		if err != nil {
			return nil, err
		}
		result.Promoted = promoted
		return result, nil
	}

	for _, ev := range result.Evaluated {
		if ev.PaperDays < criteria.MinPaperDays {
			continue
		}
		if result.BestNotEligible == nil || ev.WeightedScore > result.BestNotEligible.WeightedScore {
			result.BestNotEligible = ev
		}
	}
	if result.BestNotEligible != nil {
		result.Reasons = result.BestNotEligible.Reasons()
	} else {
		result.Reasons = []string{fmt.Sprintf("no candidate has at least %d paper days", criteria.MinPaperDays)}
	}

	m.log.Info().Int("evaluated", len(result.Evaluated)).Strs("reasons", result.Reasons).Msg("no candidate eligible")
	return result, nil
}

// ForcePromote promotes a paper_testing candidate regardless of criteria.
func (m *Machine) ForcePromote(ctx context.Context, id string) (*domain.StrategyCandidate, error) {
	c, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.promote(ctx, c, "force_promote")
}

// Reject moves a paper_testing candidate to rejected with reason.
// Rejecting an already rejected candidate is a no-op.
func (m *Machine) Reject(ctx context.Context, id, reason string) error {
	c, err := m.get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status == domain.CandidateStatusRejected {
		return nil
	}

	err = m.candidates.Transition(ctx, id, domain.CandidateStatusPaperTesting, domain.CandidateStatusRejected, m.clock().UTC(), reason)
	if err != nil {
		return fmt.Errorf("reject %s (status %s): %w", id, c.Status, err)
	}

	observability.RecordPromotionAction("reject")
	m.log.Info().Str("candidate_id", id).Str("reason", reason).Msg("candidate rejected")
	return nil
}

// Rollback replaces the live configuration with domain.DefaultLiveConfig.
// Candidate statuses are not touched.
func (m *Machine) Rollback(ctx context.Context) error {
	cfg := domain.DefaultLiveConfig()
	cfg.UpdatedAt = m.clock().UTC()
	if err := m.live.Write(ctx, &cfg); err != nil {
		return fmt.Errorf("write default live config: %w", err)
	}

	observability.RecordPromotionAction("rollback")
	m.log.Info().Msg("live config rolled back to defaults")
	return nil
}

// promote writes c's tunables into the live configuration with a single
// replace, then transitions c to promoted. A failed write leaves c in
// paper_testing; a lost transition restores the previous configuration.
func (m *Machine) promote(ctx context.Context, c *domain.StrategyCandidate, action string) (*domain.StrategyCandidate, error) {
	if c.Status != domain.CandidateStatusPaperTesting {
		return nil, fmt.Errorf("promote %s (status %s): %w", c.ID, c.Status, storage.ErrInvalidTransition)
	}

	current, err := m.live.Read(ctx)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		def := domain.DefaultLiveConfig()
		current = &def
	case err != nil:
		return nil, fmt.Errorf("read live config: %w", err)
	}

	now := m.clock().UTC()
	next := current.ApplyTunables(c.StrategyParams)
	next.UpdatedAt = now
	if err := m.live.Write(ctx, &next); err != nil {
		return nil, fmt.Errorf("write live config for %s: %w", c.ID, err)
	}

	if err := m.candidates.Transition(ctx, c.ID, domain.CandidateStatusPaperTesting, domain.CandidateStatusPromoted, now, ""); err != nil {
		if restoreErr := m.live.Write(ctx, current); restoreErr != nil {
			m.log.Error().Err(restoreErr).Str("candidate_id", c.ID).Msg("restore live config after failed promotion")
			return nil, fmt.Errorf("promote %s: %w (restore live config: %v)", c.ID, err, restoreErr)
		}
		return nil, fmt.Errorf("promote %s (status %s): %w", c.ID, c.Status, err)
	}

	promoted := c.Clone()
	promoted.Status = domain.CandidateStatusPromoted
	promoted.PromotedAt = &now

	observability.RecordPromotionAction(action)
	m.log.Info().Str("candidate_id", c.ID).Str("action", action).Msg("candidate promoted")
	return promoted, nil
}

func (m *Machine) get(ctx context.Context, id string) (*domain.StrategyCandidate, error) {
	c, err := m.candidates.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s: %w", ErrCandidateNotFound, id, err)
		}
		return nil, err
	}
	return c, nil
}
