package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/storage"
)

func TestCandleStore_UpsertAndRange(t *testing.T) {
	store := NewCandleStore()
	ctx := context.Background()

	candles := []domain.Candle{
		{Start: 7200, Close: 3},
		{Start: 0, Close: 1},
		{Start: 3600, Close: 2},
	}
	if err := store.InsertBulk(ctx, "BTC-EUR", 3600, candles); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}
	// Replace one bar
	if err := store.InsertBulk(ctx, "BTC-EUR", 3600, []domain.Candle{{Start: 3600, Close: 20}}); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByTimeRange(ctx, "BTC-EUR", 3600, 0, 3600)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(got))
	}
	if got[0].Start != 0 || got[1].Close != 20 {
		t.Errorf("unexpected candles: %+v", got)
	}

	other, _ := store.GetByTimeRange(ctx, "BTC-EUR", 60, 0, 7200)
	if len(other) != 0 {
		t.Errorf("expected granularity isolation, got %d candles", len(other))
	}

	if err := store.InsertBulk(ctx, "", 3600, candles); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestBacktestResultStore(t *testing.T) {
	store := NewBacktestResultStore()
	ctx := context.Background()

	older := &domain.BacktestResult{RunID: "r1", StartedAt: time.Unix(1000, 0), Status: domain.RunStatusCompleted}
	newer := &domain.BacktestResult{RunID: "r2", StartedAt: time.Unix(2000, 0), Status: domain.RunStatusFailed, ErrorMessage: "boom"}

	for _, r := range []*domain.BacktestResult{older, newer} {
		if err := store.Insert(ctx, r); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	if err := store.Insert(ctx, older); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}

	got, err := store.GetByID(ctx, "r2")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.ErrorMessage != "boom" {
		t.Errorf("expected error message, got %q", got.ErrorMessage)
	}

	recent, _ := store.ListRecent(ctx, 1)
	if len(recent) != 1 || recent[0].RunID != "r2" {
		t.Errorf("expected r2 first, got %+v", recent)
	}

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPaperHistoryStore_OrderedByTimestamp(t *testing.T) {
	store := NewPaperHistoryStore()
	ctx := context.Background()

	_ = store.AppendSnapshots(ctx, "s1", []domain.PortfolioSnapshot{
		{Timestamp: 200, TotalValueEur: 1010},
		{Timestamp: 100, TotalValueEur: 1000},
	})
	_ = store.AppendTrades(ctx, "s1", []domain.SimulatedTrade{
		{Timestamp: 150, Pair: "BTC-EUR", Side: domain.SideBuy, AmountEur: 10, Price: 100},
	})

	snaps, err := store.GetSnapshots(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSnapshots failed: %v", err)
	}
	if len(snaps) != 2 || snaps[0].Timestamp != 100 {
		t.Errorf("unexpected snapshots: %+v", snaps)
	}

	trades, _ := store.GetTrades(ctx, "s1")
	if len(trades) != 1 {
		t.Errorf("expected 1 trade, got %d", len(trades))
	}

	empty, _ := store.GetSnapshots(ctx, "other")
	if len(empty) != 0 {
		t.Errorf("expected no snapshots for unknown strategy, got %d", len(empty))
	}
}

func TestLiveConfigStore(t *testing.T) {
	ctx := context.Background()

	empty := NewLiveConfigStore(nil)
	if _, err := empty.Read(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	initial := domain.DefaultLiveConfig()
	store := NewLiveConfigStore(&initial)

	cfg, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	cfg.MaxTradePercent = 0.25
	cfg.BaseWeights["BTC-EUR"] = 1

	// Read returned a copy
	again, _ := store.Read(ctx)
	if again.MaxTradePercent != 0.10 || again.BaseWeights["BTC-EUR"] != 0.5 {
		t.Errorf("store was mutated through Read result: %+v", again)
	}

	if err := store.Write(ctx, cfg); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	after, _ := store.Read(ctx)
	if after.MaxTradePercent != 0.25 {
		t.Errorf("expected 0.25 after write, got %f", after.MaxTradePercent)
	}
	if store.Writes() != 1 {
		t.Errorf("expected 1 write, got %d", store.Writes())
	}
}
