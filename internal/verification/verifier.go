// Package verification checks that backtests are reproducible: the same
// inputs must yield bit-identical trade and snapshot sequences.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/idhash"
	"strategy-lab/internal/storage"
)

// FloatTolerance is the tolerance for metric comparisons.
const FloatTolerance = 1e-7

// ErrRunNotFound is returned when a stored run id doesn't exist.
var ErrRunNotFound = errors.New("backtest run not found")

// Runner executes one backtest. Satisfied by *backtest.Driver.
type Runner interface {
	Run(ctx context.Context, cfg domain.BacktestConfig, params domain.StrategyParams) (*domain.BacktestResult, error)
}

// FieldDivergence represents a mismatch between expected and actual values.
type FieldDivergence struct {
	Field    string      // field path, e.g. Trades[3].Price
	Expected interface{} // reference value
	Actual   interface{} // replayed value
}

// VerificationResult compares a reference run with a replay.
type VerificationResult struct {
	RunID               string
	ReplayRunID         string
	Match               bool
	ExpectedFingerprint string
	ActualFingerprint   string
	Divergences         []FieldDivergence
}

// VerifyDeterminism runs the same backtest twice and compares the outputs.
// runner should read from a frozen source such as marketdata.StaticSource so
// both runs see identical candles.
func VerifyDeterminism(ctx context.Context, runner Runner, cfg domain.BacktestConfig, params domain.StrategyParams) (*VerificationResult, error) {
	first, err := runner.Run(ctx, cfg, params)
	if err != nil {
		return nil, fmt.Errorf("first run: %w", err)
	}

	// Pin the window so both runs cover the same candles
	pinned := cfg
	pinned.EndTime = first.Config.EndTime

	second, err := runner.Run(ctx, pinned, params)
	if err != nil {
		return nil, fmt.Errorf("second run: %w", err)
	}

	return compare(first, second), nil
}

// VerifyStored replays a persisted run with its own config and params and
// compares the replay against what was stored.
func VerifyStored(ctx context.Context, store storage.BacktestResultStore, runner Runner, runID string) (*VerificationResult, error) {
	stored, err := store.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	if stored.Status != domain.RunStatusCompleted {
		return nil, fmt.Errorf("run %s has status %s", runID, stored.Status)
	}

	replayed, err := runner.Run(ctx, stored.Config, stored.StrategyParams)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", runID, err)
	}

	return compare(stored, replayed), nil
}

func compare(expected, actual *domain.BacktestResult) *VerificationResult {
	res := &VerificationResult{
		RunID:               expected.RunID,
		ReplayRunID:         actual.RunID,
		ExpectedFingerprint: idhash.ResultFingerprint(expected.Trades, expected.Snapshots),
		ActualFingerprint:   idhash.ResultFingerprint(actual.Trades, actual.Snapshots),
	}

	res.Divergences = append(res.Divergences, CompareTrades(expected.Trades, actual.Trades)...)
	res.Divergences = append(res.Divergences, CompareSnapshots(expected.Snapshots, actual.Snapshots)...)
	res.Divergences = append(res.Divergences, CompareMetrics(expected.Metrics, actual.Metrics)...)
	res.Match = res.ExpectedFingerprint == res.ActualFingerprint && len(res.Divergences) == 0
	return res
}

// CompareTrades compares trade sequences field by field with exact equality.
func CompareTrades(expected, actual []domain.SimulatedTrade) []FieldDivergence {
	var divergences []FieldDivergence

	if len(expected) != len(actual) {
		divergences = append(divergences, FieldDivergence{
			Field:    "len(Trades)",
			Expected: len(expected),
			Actual:   len(actual),
		})
	}

	n := min(len(expected), len(actual))
	for i := 0; i < n; i++ {
		e, a := expected[i], actual[i]
		prefix := fmt.Sprintf("Trades[%d].", i)
		if e.Timestamp != a.Timestamp {
			divergences = append(divergences, FieldDivergence{Field: prefix + "Timestamp", Expected: e.Timestamp, Actual: a.Timestamp})
		}
		if e.Pair != a.Pair {
			divergences = append(divergences, FieldDivergence{Field: prefix + "Pair", Expected: e.Pair, Actual: a.Pair})
		}
		if e.Side != a.Side {
			divergences = append(divergences, FieldDivergence{Field: prefix + "Side", Expected: e.Side, Actual: a.Side})
		}
		if e.AmountEur != a.AmountEur {
			divergences = append(divergences, FieldDivergence{Field: prefix + "AmountEur", Expected: e.AmountEur, Actual: a.AmountEur})
		}
		if e.Price != a.Price {
			divergences = append(divergences, FieldDivergence{Field: prefix + "Price", Expected: e.Price, Actual: a.Price})
		}
	}

	return divergences
}

// CompareSnapshots compares equity curves with exact equality of timestamps and values.
func CompareSnapshots(expected, actual []domain.PortfolioSnapshot) []FieldDivergence {
	var divergences []FieldDivergence

	if len(expected) != len(actual) {
		divergences = append(divergences, FieldDivergence{
			Field:    "len(Snapshots)",
			Expected: len(expected),
			Actual:   len(actual),
		})
	}

	n := min(len(expected), len(actual))
	for i := 0; i < n; i++ {
		e, a := expected[i], actual[i]
		prefix := fmt.Sprintf("Snapshots[%d].", i)
		if e.Timestamp != a.Timestamp {
			divergences = append(divergences, FieldDivergence{Field: prefix + "Timestamp", Expected: e.Timestamp, Actual: a.Timestamp})
		}
		if e.TotalValueEur != a.TotalValueEur {
			divergences = append(divergences, FieldDivergence{Field: prefix + "TotalValueEur", Expected: e.TotalValueEur, Actual: a.TotalValueEur})
		}
	}

	return divergences
}

// CompareMetrics compares metrics within FloatTolerance.
func CompareMetrics(expected, actual domain.EvaluationMetrics) []FieldDivergence {
	var divergences []FieldDivergence

	check := func(field string, e, a float64) {
		if !floatEquals(e, a) {
			divergences = append(divergences, FieldDivergence{Field: "Metrics." + field, Expected: e, Actual: a})
		}
	}
	check("TotalReturn", expected.TotalReturn, actual.TotalReturn)
	check("SharpeRatio", expected.SharpeRatio, actual.SharpeRatio)
	check("MaxDrawdown", expected.MaxDrawdown, actual.MaxDrawdown)
	check("WinRate", expected.WinRate, actual.WinRate)
	check("CombinedScore", expected.CombinedScore, actual.CombinedScore)

	if expected.TotalTrades != actual.TotalTrades {
		divergences = append(divergences, FieldDivergence{Field: "Metrics.TotalTrades", Expected: expected.TotalTrades, Actual: actual.TotalTrades})
	}

	return divergences
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
