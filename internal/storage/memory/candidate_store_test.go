package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

func makeCandidate(id string, createdAt time.Time) *domain.StrategyCandidate {
	score := 0.7
	return &domain.StrategyCandidate{
		ID:        id,
		CreatedAt: createdAt,
		StrategyParams: domain.StrategyParams{
			MaxTradePercent:        0.1,
			StopLossPercent:        0.05,
			CooldownMinutes:        60,
			RSIOversoldThreshold:   30,
			RSIOverboughtThreshold: 70,
			BaseWeights:            map[string]float64{"BTC-EUR": 1},
		},
		BacktestScore: &score,
		Status:        domain.CandidateStatusPaperTesting,
	}
}

func TestCandidateStore_InsertAndGet(t *testing.T) {
	store := NewCandidateStore()
	ctx := context.Background()

	c := makeCandidate("c1", time.Unix(1000, 0))
	if err := store.Insert(ctx, c); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByID(ctx, "c1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.ID != "c1" {
		t.Errorf("ID mismatch: got %s", got.ID)
	}
	if *got.BacktestScore != 0.7 {
		t.Errorf("BacktestScore mismatch: got %f", *got.BacktestScore)
	}

	// Mutating the returned copy must not affect the store
	got.StrategyParams.BaseWeights["BTC-EUR"] = 0
	again, _ := store.GetByID(ctx, "c1")
	if again.StrategyParams.BaseWeights["BTC-EUR"] != 1 {
		t.Error("store returned shared map")
	}
}

func TestCandidateStore_DuplicateKey(t *testing.T) {
	store := NewCandidateStore()
	ctx := context.Background()

	if err := store.Insert(ctx, makeCandidate("c1", time.Unix(1000, 0))); err != nil {
		t.Fatalf("first Insert failed: %v", err)
	}
	err := store.Insert(ctx, makeCandidate("c1", time.Unix(2000, 0)))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestCandidateStore_NotFound(t *testing.T) {
	store := NewCandidateStore()
	ctx := context.Background()

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.UpdatePaperResults(ctx, "missing", 0.5, 3); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	err := store.Transition(ctx, "missing", domain.CandidateStatusPaperTesting, domain.CandidateStatusRejected, time.Now(), "")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCandidateStore_GetByStatusOrdering(t *testing.T) {
	store := NewCandidateStore()
	ctx := context.Background()

	_ = store.Insert(ctx, makeCandidate("b", time.Unix(2000, 0)))
	_ = store.Insert(ctx, makeCandidate("a", time.Unix(2000, 0)))
	_ = store.Insert(ctx, makeCandidate("c", time.Unix(1000, 0)))

	got, err := store.GetByStatus(ctx, domain.CandidateStatusPaperTesting)
	if err != nil {
		t.Fatalf("GetByStatus failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
	want := []string{"c", "a", "b"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}

	promoted, _ := store.GetByStatus(ctx, domain.CandidateStatusPromoted)
	if len(promoted) != 0 {
		t.Errorf("expected no promoted candidates, got %d", len(promoted))
	}
}

func TestCandidateStore_Transition(t *testing.T) {
	store := NewCandidateStore()
	ctx := context.Background()
	_ = store.Insert(ctx, makeCandidate("c1", time.Unix(1000, 0)))

	at := time.Unix(5000, 0).UTC()
	if err := store.Transition(ctx, "c1", domain.CandidateStatusPaperTesting, domain.CandidateStatusPromoted, at, ""); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}

	got, _ := store.GetByID(ctx, "c1")
	if got.Status != domain.CandidateStatusPromoted {
		t.Errorf("expected promoted, got %s", got.Status)
	}
	if got.PromotedAt == nil || !got.PromotedAt.Equal(at) {
		t.Errorf("expected promoted_at %v, got %v", at, got.PromotedAt)
	}

	// Second transition out of paper_testing must fail
	err := store.Transition(ctx, "c1", domain.CandidateStatusPaperTesting, domain.CandidateStatusRejected, at, "late")
	if !errors.Is(err, storage.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCandidateStore_ConcurrentTransitionSingleWinner(t *testing.T) {
	store := NewCandidateStore()
	ctx := context.Background()
	_ = store.Insert(ctx, makeCandidate("c1", time.Unix(1000, 0)))

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Transition(ctx, "c1", domain.CandidateStatusPaperTesting, domain.CandidateStatusPromoted, time.Unix(2000, 0), "")
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly 1 successful transition, got %d", successes)
	}
}

func TestCandidateStore_UpdatePaperResults(t *testing.T) {
	store := NewCandidateStore()
	ctx := context.Background()
	_ = store.Insert(ctx, makeCandidate("c1", time.Unix(1000, 0)))

	if err := store.UpdatePaperResults(ctx, "c1", 0.62, 9); err != nil {
		t.Fatalf("UpdatePaperResults failed: %v", err)
	}

	got, _ := store.GetByID(ctx, "c1")
	if got.PaperScore == nil || *got.PaperScore != 0.62 {
		t.Errorf("expected paper score 0.62, got %v", got.PaperScore)
	}
	if got.PaperDaysTested != 9 {
		t.Errorf("expected 9 paper days, got %d", got.PaperDaysTested)
	}
}
