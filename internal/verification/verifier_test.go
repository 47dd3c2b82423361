package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"strategy-lab/internal/backtest"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/marketdata"
	"strategy-lab/internal/storage/memory"
)

const end = int64(1_699_999_200)

func testSetup(store *memory.BacktestResultStore) (*backtest.Driver, domain.BacktestConfig, domain.StrategyParams) {
	cfg := domain.DefaultBacktestConfig([]string{"BTC-EUR", "ETH-EUR"})
	cfg.Days = 3
	cfg.EndTime = end
	start := end - 3*86400

	candles := map[string][]domain.Candle{}
	for ts, i := start, 0; ts <= end; ts, i = ts+3600, i+1 {
		candles["BTC-EUR"] = append(candles["BTC-EUR"], domain.Candle{Start: ts, Close: 50000 + float64(i%13)*90})
		candles["ETH-EUR"] = append(candles["ETH-EUR"], domain.Candle{Start: ts, Close: 3000 - float64(i%5)*20})
	}

	opts := backtest.Options{
		Source: marketdata.NewStaticSource(candles),
		Logger: zerolog.Nop(),
		Clock:  func() time.Time { return time.Unix(end, 0) },
	}
	if store != nil {
		opts.ResultStore = store
	}

	params := domain.StrategyParams{
		MaxTradePercent:        0.2,
		StopLossPercent:        0.05,
		CooldownMinutes:        60,
		RSIOversoldThreshold:   30,
		RSIOverboughtThreshold: 70,
		BaseWeights:            map[string]float64{"BTC-EUR": 0.6, "ETH-EUR": 0.4},
	}
	return backtest.NewDriver(opts), cfg, params
}

func TestVerifyDeterminism_Match(t *testing.T) {
	driver, cfg, params := testSetup(nil)

	res, err := VerifyDeterminism(context.Background(), driver, cfg, params)
	if err != nil {
		t.Fatalf("VerifyDeterminism failed: %v", err)
	}
	if !res.Match {
		t.Errorf("expected match, got divergences: %+v", res.Divergences)
	}
	if res.ExpectedFingerprint != res.ActualFingerprint {
		t.Errorf("fingerprints differ: %s vs %s", res.ExpectedFingerprint, res.ActualFingerprint)
	}
	if res.RunID == res.ReplayRunID {
		t.Error("expected distinct run ids")
	}
}

func TestVerifyStored(t *testing.T) {
	ctx := context.Background()
	store := memory.NewBacktestResultStore()
	driver, cfg, params := testSetup(store)

	original, err := driver.Run(ctx, cfg, params)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	res, err := VerifyStored(ctx, store, driver, original.RunID)
	if err != nil {
		t.Fatalf("VerifyStored failed: %v", err)
	}
	if !res.Match {
		t.Errorf("expected stored run to replay identically: %+v", res.Divergences)
	}

	if _, err := VerifyStored(ctx, store, driver, "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestCompareTrades_Divergence(t *testing.T) {
	a := []domain.SimulatedTrade{{Timestamp: 1, Pair: "BTC-EUR", Side: domain.SideBuy, AmountEur: 10, Price: 100}}
	b := []domain.SimulatedTrade{{Timestamp: 1, Pair: "BTC-EUR", Side: domain.SideBuy, AmountEur: 10, Price: 100.0000001}}

	divs := CompareTrades(a, b)
	if len(divs) != 1 || divs[0].Field != "Trades[0].Price" {
		t.Errorf("expected single price divergence, got %+v", divs)
	}

	divs = CompareTrades(a, nil)
	if len(divs) != 1 || divs[0].Field != "len(Trades)" {
		t.Errorf("expected length divergence, got %+v", divs)
	}
}

func TestCompareMetrics_Tolerance(t *testing.T) {
	m := domain.EvaluationMetrics{CombinedScore: 0.5, TotalTrades: 3}
	within := m
	within.CombinedScore += 1e-9
	if divs := CompareMetrics(m, within); len(divs) != 0 {
		t.Errorf("expected no divergence within tolerance, got %+v", divs)
	}

	outside := m
	outside.CombinedScore += 1e-3
	outside.TotalTrades = 4
	if divs := CompareMetrics(m, outside); len(divs) != 2 {
		t.Errorf("expected 2 divergences, got %+v", divs)
	}
}
