package main

import (
	"flag"
	"fmt"
	"os"

	"strategy-lab/internal/app"
	"strategy-lab/internal/config"
	"strategy-lab/internal/logging"
	"strategy-lab/internal/reporting"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config")
	window := app.RegisterBacktestFlags(flag.CommandLine)
	a := app.RegisterParamsFlags(flag.CommandLine, "a-")
	b := app.RegisterParamsFlags(flag.CommandLine, "b-")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty, os.Stderr).With().Str("cmd", "compare").Logger()

	cfg.Backtest, err = window.Apply(cfg.Backtest)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid backtest window")
	}
	pa, err := a.Params(cfg.Backtest.Pairs)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid params A")
	}
	pb, err := b.Params(cfg.Backtest.Pairs)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid params B")
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
	opt := app.NewOptimizer(cfg.Optimizer, driver, nil, logger)

	cmp, err := opt.Compare(ctx, pa, pb, app.Constraints(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("compare failed")
	}

	fmt.Print(reporting.RenderComparisonMarkdown(reporting.NewGenerator().Comparison(cmp)))
}
