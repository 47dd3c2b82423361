package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"strategy-lab/internal/app"
	"strategy-lab/internal/backtest"
	"strategy-lab/internal/config"
	"strategy-lab/internal/logging"
	"strategy-lab/internal/marketdata"
	"strategy-lab/internal/verification"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config")
	runID := flag.String("run-id", "", "Re-run a stored backtest and compare (default: run twice and compare)")
	window := app.RegisterBacktestFlags(flag.CommandLine)
	params := app.RegisterParamsFlags(flag.CommandLine, "")
	outputJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty, os.Stderr).With().Str("cmd", "verify").Logger()

	ctx, cancel := app.SignalContext(logger)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open stores")
	}
	defer stores.Close()

	src, name := app.NewSource(cfg.MarketData, stores.Candles)

	var result *verification.VerificationResult
	if *runID != "" {
		driver := app.NewDriver(cfg, src, name, nil, logger)
		result, err = verification.VerifyStored(ctx, stores.Results, driver, *runID)
	} else {
		btCfg, werr := window.Apply(cfg.Backtest)
		if werr != nil {
			logger.Fatal().Err(werr).Msg("invalid backtest window")
		}
		p, perr := params.Params(btCfg.Pairs)
		if perr != nil {
			logger.Fatal().Err(perr).Msg("invalid params")
		}

		// Both runs read one captured candle set so only the engine is under test.
		start, end := backtest.WindowBounds(btCfg, time.Now())
		btCfg.EndTime = end
		captured, cerr := marketdata.Capture(ctx, src, btCfg.Pairs, btCfg.GranularitySeconds, start, end)
		if cerr != nil {
			logger.Fatal().Err(cerr).Msg("capture candles")
		}
		driver := app.NewDriver(cfg, captured, name, nil, logger)
		result, err = verification.VerifyDeterminism(ctx, driver, btCfg, p)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("verification failed")
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
	} else {
		fmt.Printf("\n=== Verification ===\n")
		fmt.Printf("Run ID:        %s\n", result.RunID)
		fmt.Printf("Replay Run ID: %s\n", result.ReplayRunID)
		fmt.Printf("Expected:      %s\n", result.ExpectedFingerprint)
		fmt.Printf("Actual:        %s\n", result.ActualFingerprint)
		fmt.Printf("Match:         %t\n", result.Match)
		for _, d := range result.Divergences {
			fmt.Printf("  %s: expected %v, got %v\n", d.Field, d.Expected, d.Actual)
		}
	}

	if !result.Match {
		os.Exit(1)
	}
}
