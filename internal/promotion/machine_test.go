package promotion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
	"strategy-lab/internal/storage/memory"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	machine    *Machine
	candidates *memory.CandidateStore
	paper      *memory.PaperHistoryStore
	live       *memory.LiveConfigStore
	tick       time.Duration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	initial := domain.DefaultLiveConfig()
	initial.Enabled = true
	f := &fixture{
		candidates: memory.NewCandidateStore(),
		paper:      memory.NewPaperHistoryStore(),
		live:       memory.NewLiveConfigStore(&initial),
	}
	f.machine = NewMachine(Options{
		Candidates: f.candidates,
		Paper:      f.paper,
		LiveConfig: f.live,
		Logger:     zerolog.Nop(),
		// Advance per call so created_at order follows insertion order
		Clock: func() time.Time {
			f.tick += time.Second
			return now.Add(f.tick)
		},
	})
	return f
}

func params(trade float64) domain.StrategyParams {
	return domain.StrategyParams{
		MaxTradePercent:        trade,
		StopLossPercent:        0.04,
		CooldownMinutes:        90,
		RSIOversoldThreshold:   25,
		RSIOverboughtThreshold: 75,
		BaseWeights:            map[string]float64{"BTC-EUR": 0.6, "ETH-EUR": 0.4},
	}
}

// writePaper records days of 4-hourly paper snapshots. A good history grows
// steadily; a bad one drops 15% after the first snapshot and stays flat.
func (f *fixture) writePaper(t *testing.T, id string, days int, good bool) {
	t.Helper()
	start := now.Unix() - int64(days)*86400
	var snaps []domain.PortfolioSnapshot
	for i := 0; i <= days*6; i++ {
		v := 1000 + float64(i)
		if !good {
			v = 850
			if i == 0 {
				v = 1000
			}
		}
		snaps = append(snaps, domain.PortfolioSnapshot{Timestamp: start + int64(i)*4*3600, TotalValueEur: v})
	}
	require.NoError(t, f.paper.AppendSnapshots(context.Background(), id, snaps))
}

func (f *fixture) add(t *testing.T, trade, backtestScore float64) *domain.StrategyCandidate {
	t.Helper()
	c, err := f.machine.AddCandidate(context.Background(), params(trade), backtestScore)
	require.NoError(t, err)
	return c
}

func (f *fixture) status(t *testing.T, id string) domain.CandidateStatus {
	t.Helper()
	c, err := f.candidates.GetByID(context.Background(), id)
	require.NoError(t, err)
	return c.Status
}

func TestAddCandidate(t *testing.T) {
	f := newFixture(t)
	c := f.add(t, 0.2, 0.7)

	assert.NotEmpty(t, c.ID)
	assert.Equal(t, domain.CandidateStatusPaperTesting, c.Status)
	require.NotNil(t, c.BacktestScore)
	assert.Equal(t, 0.7, *c.BacktestScore)
	assert.Nil(t, c.PaperScore)

	_, err := f.machine.AddCandidate(context.Background(), domain.StrategyParams{}, 0.7)
	var invalid *domain.InvalidParameterError
	assert.True(t, errors.As(err, &invalid))
}

func TestCheckAndPromote_PromotesEligible(t *testing.T) {
	f := newFixture(t)
	c := f.add(t, 0.2, 0.7)
	f.writePaper(t, c.ID, 10, true)

	res, err := f.machine.CheckAndPromote(context.Background(), DefaultCriteria())
	require.NoError(t, err)

	require.NotNil(t, res.Promoted)
	assert.Equal(t, c.ID, res.Promoted.ID)
	assert.Nil(t, res.BestNotEligible)
	assert.Equal(t, domain.CandidateStatusPromoted, f.status(t, c.ID))

	stored, err := f.candidates.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PromotedAt)
	require.NotNil(t, stored.PaperScore)
	assert.GreaterOrEqual(t, *stored.PaperScore, 0.55)
	assert.Equal(t, 10, stored.PaperDaysTested)

	live, err := f.live.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.live.Writes())
	assert.Equal(t, 0.2, live.MaxTradePercent)
	assert.Equal(t, 0.04, live.StopLossPercent)
	assert.Equal(t, 90, live.CooldownMinutes)
	assert.Equal(t, map[string]float64{"BTC-EUR": 0.6, "ETH-EUR": 0.4}, live.BaseWeights)

	// Pairs, enable flag and RSI thresholds are not promotable
	def := domain.DefaultLiveConfig()
	assert.Equal(t, def.Pairs, live.Pairs)
	assert.True(t, live.Enabled)
	assert.Equal(t, def.RSIOversoldThreshold, live.RSIOversoldThreshold)
}

func TestCheckAndPromote_OnePromotionPerCall(t *testing.T) {
	f := newFixture(t)
	first := f.add(t, 0.2, 0.7)
	second := f.add(t, 0.3, 0.9)
	f.writePaper(t, first.ID, 10, true)
	f.writePaper(t, second.ID, 10, true)

	res, err := f.machine.CheckAndPromote(context.Background(), DefaultCriteria())
	require.NoError(t, err)

	require.NotNil(t, res.Promoted)
	assert.Equal(t, first.ID, res.Promoted.ID)
	assert.Equal(t, domain.CandidateStatusPaperTesting, f.status(t, second.ID))
	assert.Equal(t, 1, f.live.Writes())

	// The next call promotes the remaining candidate
	res, err = f.machine.CheckAndPromote(context.Background(), DefaultCriteria())
	require.NoError(t, err)
	require.NotNil(t, res.Promoted)
	assert.Equal(t, second.ID, res.Promoted.ID)
}

func TestCheckAndPromote_PaperDaysGate(t *testing.T) {
	f := newFixture(t)
	c := f.add(t, 0.2, 0.9)
	f.writePaper(t, c.ID, 5, true)

	res, err := f.machine.CheckAndPromote(context.Background(), DefaultCriteria())
	require.NoError(t, err)

	assert.Nil(t, res.Promoted)
	assert.Nil(t, res.BestNotEligible)
	assert.Equal(t, []string{"no candidate has at least 7 paper days"}, res.Reasons)
	assert.Equal(t, domain.CandidateStatusPaperTesting, f.status(t, c.ID))
	assert.Equal(t, 0, f.live.Writes())

	require.Len(t, res.Evaluated, 1)
	assert.False(t, res.Evaluated[0].Criteria[1].Pass)
	assert.Equal(t, 5.0, res.Evaluated[0].Criteria[1].Actual)
}

func TestCheckAndPromote_BestNotEligible(t *testing.T) {
	f := newFixture(t)
	lowBacktest := f.add(t, 0.2, 0.55)
	badPaper := f.add(t, 0.3, 0.90)
	f.writePaper(t, lowBacktest.ID, 10, true)
	f.writePaper(t, badPaper.ID, 10, false)

	res, err := f.machine.CheckAndPromote(context.Background(), DefaultCriteria())
	require.NoError(t, err)

	assert.Nil(t, res.Promoted)
	require.NotNil(t, res.BestNotEligible)
	assert.Equal(t, lowBacktest.ID, res.BestNotEligible.Candidate.ID)
	assert.Equal(t, []string{"backtest score 0.5500 below minimum 0.6000"}, res.Reasons)

	assert.Equal(t, domain.CandidateStatusPaperTesting, f.status(t, lowBacktest.ID))
	assert.Equal(t, domain.CandidateStatusPaperTesting, f.status(t, badPaper.ID))
	assert.Equal(t, 0, f.live.Writes())

	var bad *Evaluation
	for _, ev := range res.Evaluated {
		if ev.Candidate.ID == badPaper.ID {
			bad = ev
		}
	}
	require.NotNil(t, bad)
	assert.InDelta(t, 0.15, bad.PaperMetrics.MaxDrawdown, 1e-12)
	assert.Len(t, bad.Reasons(), 2)
}

func TestCheckAndPromote_SkipsCandidatesWithoutBacktestScore(t *testing.T) {
	f := newFixture(t)
	c := &domain.StrategyCandidate{
		ID:             "manual",
		CreatedAt:      now,
		StrategyParams: params(0.2),
		Status:         domain.CandidateStatusPaperTesting,
	}
	require.NoError(t, f.candidates.Insert(context.Background(), c))
	f.writePaper(t, c.ID, 10, true)

	res, err := f.machine.CheckAndPromote(context.Background(), DefaultCriteria())
	require.NoError(t, err)

	assert.Empty(t, res.Evaluated)
	assert.Nil(t, res.Promoted)
}

func TestCheckAndPromote_InvalidCriteria(t *testing.T) {
	f := newFixture(t)
	crit := DefaultCriteria()
	crit.MinPaperDays = -1

	_, err := f.machine.CheckAndPromote(context.Background(), crit)
	var invalid *domain.InvalidParameterError
	assert.True(t, errors.As(err, &invalid))
}

func TestForcePromote(t *testing.T) {
	f := newFixture(t)
	c := f.add(t, 0.25, 0.1)

	promoted, err := f.machine.ForcePromote(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CandidateStatusPromoted, promoted.Status)
	require.NotNil(t, promoted.PromotedAt)

	live, err := f.live.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.25, live.MaxTradePercent)

	_, err = f.machine.ForcePromote(context.Background(), c.ID)
	assert.True(t, errors.Is(err, storage.ErrInvalidTransition))
	assert.Equal(t, 1, f.live.Writes())

	_, err = f.machine.ForcePromote(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrCandidateNotFound))
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestForcePromote_WithoutLiveConfig(t *testing.T) {
	candidates := memory.NewCandidateStore()
	live := memory.NewLiveConfigStore(nil)
	m := NewMachine(Options{Candidates: candidates, Paper: memory.NewPaperHistoryStore(), LiveConfig: live})

	c, err := m.AddCandidate(context.Background(), params(0.3), 0.8)
	require.NoError(t, err)
	_, err = m.ForcePromote(context.Background(), c.ID)
	require.NoError(t, err)

	cfg, err := live.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultLiveConfig().Pairs, cfg.Pairs)
	assert.Equal(t, 0.3, cfg.MaxTradePercent)
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	c := f.add(t, 0.2, 0.7)

	require.NoError(t, f.machine.Reject(context.Background(), c.ID, "too volatile"))
	require.NoError(t, f.machine.Reject(context.Background(), c.ID, "second reason"))

	stored, err := f.candidates.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CandidateStatusRejected, stored.Status)
	assert.Equal(t, "too volatile", stored.RejectReason)

	// Rejected candidates are out of the paper pool
	f.writePaper(t, c.ID, 10, true)
	res, err := f.machine.CheckAndPromote(context.Background(), DefaultCriteria())
	require.NoError(t, err)
	assert.Nil(t, res.Promoted)
	assert.Empty(t, res.Evaluated)

	promoted := f.add(t, 0.3, 0.7)
	_, err = f.machine.ForcePromote(context.Background(), promoted.ID)
	require.NoError(t, err)
	err = f.machine.Reject(context.Background(), promoted.ID, "late")
	assert.True(t, errors.Is(err, storage.ErrInvalidTransition))

	assert.True(t, errors.Is(f.machine.Reject(context.Background(), "missing", "x"), ErrCandidateNotFound))
}

func TestRollback(t *testing.T) {
	f := newFixture(t)
	c := f.add(t, 0.25, 0.7)
	_, err := f.machine.ForcePromote(context.Background(), c.ID)
	require.NoError(t, err)

	require.NoError(t, f.machine.Rollback(context.Background()))

	live, err := f.live.Read(context.Background())
	require.NoError(t, err)
	def := domain.DefaultLiveConfig()
	assert.Equal(t, def.MaxTradePercent, live.MaxTradePercent)
	assert.Equal(t, def.BaseWeights, live.BaseWeights)
	assert.False(t, live.Enabled)
	assert.Equal(t, domain.CandidateStatusPromoted, f.status(t, c.ID))
}

type failingLiveConfig struct {
	*memory.LiveConfigStore
	err error
}

func (s *failingLiveConfig) Write(ctx context.Context, cfg *domain.LiveConfig) error {
	if s.err != nil {
		return s.err
	}
	return s.LiveConfigStore.Write(ctx, cfg)
}

func TestForcePromote_WriteFailureKeepsCandidatePending(t *testing.T) {
	initial := domain.DefaultLiveConfig()
	candidates := memory.NewCandidateStore()
	live := &failingLiveConfig{LiveConfigStore: memory.NewLiveConfigStore(&initial), err: errors.New("disk full")}
	m := NewMachine(Options{Candidates: candidates, Paper: memory.NewPaperHistoryStore(), LiveConfig: live})

	c, err := m.AddCandidate(context.Background(), params(0.3), 0.8)
	require.NoError(t, err)

	_, err = m.ForcePromote(context.Background(), c.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, live.err)
	assert.Zero(t, live.Writes())

	stored, err := candidates.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CandidateStatusPaperTesting, stored.Status)
	assert.Nil(t, stored.PromotedAt)

	// Retry succeeds once the store recovers
	live.err = nil
	promoted, err := m.ForcePromote(context.Background(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CandidateStatusPromoted, promoted.Status)

	cfg, err := live.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.3, cfg.MaxTradePercent)
}

type racingCandidates struct {
	*memory.CandidateStore
}

func (s *racingCandidates) Transition(ctx context.Context, id string, _, to domain.CandidateStatus, at time.Time, reason string) error {
	// Another process rejects the candidate between read and transition
	if err := s.CandidateStore.Transition(ctx, id, domain.CandidateStatusPaperTesting, domain.CandidateStatusRejected, at, "rejected elsewhere"); err != nil {
		return err
	}
	return s.CandidateStore.Transition(ctx, id, domain.CandidateStatusPaperTesting, to, at, reason)
}

func TestForcePromote_LostTransitionRestoresLiveConfig(t *testing.T) {
	initial := domain.DefaultLiveConfig()
	initial.Enabled = true
	initial.MaxTradePercent = 0.15
	candidates := &racingCandidates{CandidateStore: memory.NewCandidateStore()}
	live := memory.NewLiveConfigStore(&initial)
	m := NewMachine(Options{Candidates: candidates, Paper: memory.NewPaperHistoryStore(), LiveConfig: live})

	c, err := m.AddCandidate(context.Background(), params(0.3), 0.8)
	require.NoError(t, err)

	_, err = m.ForcePromote(context.Background(), c.ID)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)

	cfg, err := live.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.15, cfg.MaxTradePercent)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 2, live.Writes())
}
