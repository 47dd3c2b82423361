package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"strategy-lab/internal/app"
	"strategy-lab/internal/backtest"
	"strategy-lab/internal/config"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/idhash"
	"strategy-lab/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config")
	window := app.RegisterBacktestFlags(flag.CommandLine)
	params := app.RegisterParamsFlags(flag.CommandLine, "")
	outputJSON := flag.Bool("json", false, "Output full result as JSON")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty, os.Stderr).With().Str("cmd", "backtest").Logger()

	btCfg, err := window.Apply(cfg.Backtest)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid backtest window")
	}
	p, err := params.Params(btCfg.Pairs)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid strategy params")
	}

	ctx, cancel := app.SignalContext(logger)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open stores")
	}
	defer stores.Close()

	src, name := app.NewSource(cfg.MarketData, stores.Candles)
	driver := app.NewDriver(cfg, src, name, stores.Results, logger)

	result, err := driver.Run(ctx, btCfg, p)
	if err != nil {
		var insufficient *domain.InsufficientDataError
		if errors.As(err, &insufficient) {
			logger.Error().Strs("pairs", insufficient.Pairs).Msg("not enough candles for the window")
		}
		logger.Fatal().Err(err).Msg("backtest failed")
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(output))
		return
	}

	m := result.Metrics
	fmt.Printf("\n=== Backtest Result ===\n")
	fmt.Printf("Run ID:        %s\n", result.RunID)
	fmt.Printf("Params:        %s\n", idhash.ShortID(idhash.ParamsID(result.StrategyParams)))
	start, end := backtest.WindowBounds(result.Config, result.StartedAt)
	fmt.Printf("Window:        %s .. %s\n",
		time.Unix(start, 0).UTC().Format(time.RFC3339),
		time.Unix(end, 0).UTC().Format(time.RFC3339))
	fmt.Printf("Snapshots:     %d\n", len(result.Snapshots))
	fmt.Printf("Trades:        %d\n", m.TotalTrades)
	fmt.Printf("Total Return:  %.4f\n", m.TotalReturn)
	fmt.Printf("Sharpe:        %.4f\n", m.SharpeRatio)
	fmt.Printf("Max Drawdown:  %.4f\n", m.MaxDrawdown)
	fmt.Printf("Win Rate:      %.4f\n", m.WinRate)
	fmt.Printf("Score:         %.4f\n", m.CombinedScore)
}
