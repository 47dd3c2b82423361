package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"strategy-lab/internal/app"
	"strategy-lab/internal/config"
	"strategy-lab/internal/logging"
	"strategy-lab/internal/observability"
	"strategy-lab/internal/optimizer"
	"strategy-lab/internal/orchestrator"
	"strategy-lab/internal/reporting"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config")
	mode := flag.String("mode", "", "Grid mode: full, reduced, neighborhood (default from config)")
	workers := flag.Int("workers", 0, "Concurrent backtests (default from config)")
	maxCombinations := flag.Int("max-combinations", -1, "Sample at most N combinations, 0 = all (default from config)")
	seed := flag.Int64("seed", 0, "Sampling seed (default from config)")
	topN := flag.Int("top", 0, "Number of ranked results to keep (default from config)")
	rounds := flag.Int("fine-tune", 0, "Run N neighborhood rounds around the center instead of a single search")
	window := app.RegisterBacktestFlags(flag.CommandLine)
	center := app.RegisterParamsFlags(flag.CommandLine, "center-")
	cycle := flag.Bool("cycle", false, "Register the best params as a paper candidate and run a promotion check")
	reportMD := flag.String("report-md", "", "Write the ranking report as Markdown to this path")
	reportCSV := flag.String("report-csv", "", "Write the rankings as CSV to this path")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty, os.Stderr).With().Str("cmd", "optimize").Logger()

	if *mode != "" {
		m, err := optimizer.ParseMode(*mode)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid mode")
		}
		cfg.Optimizer.Mode = m
	}
	if *workers > 0 {
		cfg.Optimizer.Workers = *workers
	}
	if *maxCombinations >= 0 {
		cfg.Optimizer.MaxCombinations = *maxCombinations
	}
	if *seed != 0 {
		cfg.Optimizer.Seed = *seed
	}
	if cfg.Optimizer.Seed == 0 {
		cfg.Optimizer.Seed = time.Now().UnixNano()
		logger.Info().Int64("seed", cfg.Optimizer.Seed).Msg("using time-derived sampling seed")
	}
	if *topN > 0 {
		cfg.Optimizer.TopN = *topN
	}

	cfg.Backtest, err = window.Apply(cfg.Backtest)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid backtest window")
	}

	ctx, cancel := app.SignalContext(logger)
	defer cancel()

	if *metricsAddr != "" {
		srv := serveMetrics(*metricsAddr, logger)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	stores, err := app.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open stores")
	}
	defer stores.Close()

	src, name := app.NewSource(cfg.MarketData, stores.Candles)
	driver := app.NewDriver(cfg, src, name, nil, logger)
	opt := app.NewOptimizer(cfg.Optimizer, driver, stores.Results, logger)

	constraints := app.Constraints(cfg)
	centerParams, err := center.Params(cfg.Backtest.Pairs)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid center params")
	}

	if cfg.Optimizer.Mode == optimizer.ModeNeighborhood {
		constraints.Center = &centerParams
	}

	var (
		result   *optimizer.OptimizationResult
		cycleRes *orchestrator.RunResult
	)
	switch {
	case *cycle && *rounds > 0:
		logger.Fatal().Msg("--cycle and --fine-tune are mutually exclusive")

	case *cycle:
		orch := orchestrator.New(orchestrator.Options{
			Searcher:    opt,
			Machine:     app.NewMachine(stores, logger),
			Mode:        cfg.Optimizer.Mode,
			Constraints: constraints,
			Criteria:    cfg.Promotion,
			Logger:      logger,
		})
		cycleRes, err = orch.Run(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("cycle failed")
		}
		result = cycleRes.Optimization

	case *rounds > 0:
		ft, err := opt.FineTune(ctx, centerParams, *rounds, constraints)
		if err != nil {
			logger.Fatal().Err(err).Msg("fine tune failed")
		}
		result = ft.Rounds[len(ft.Rounds)-1]
		logger.Info().Int("rounds", len(ft.Rounds)).Float64("best_score", ft.BestScore).Msg("fine tune finished")

	default:
		result, err = opt.Run(ctx, cfg.Optimizer.Mode, constraints)
		if err != nil {
			if errors.Is(err, optimizer.ErrNoSuccessfulRuns) {
				logger.Error().Msg("every combination failed, check market data access")
			}
			logger.Fatal().Err(err).Msg("optimization failed")
		}
	}

	report := reporting.NewGenerator().Optimization(result)
	fmt.Print(reporting.RenderOptimizationMarkdown(report))

	if *reportMD != "" {
		writeFile(*reportMD, reporting.RenderOptimizationMarkdown(report), logger)
	}
	if *reportCSV != "" {
		writeFile(*reportCSV, reporting.RenderRankingsCSV(report.Rankings), logger)
	}

	if cycleRes != nil {
		if cycleRes.Candidate != nil {
			fmt.Printf("\nCandidate added: %s\n\n", cycleRes.Candidate.ID)
		} else {
			fmt.Printf("\nCandidate skipped: %s\n\n", cycleRes.SkipReason)
		}
		fmt.Print(reporting.RenderPromotionMarkdown(reporting.NewGenerator().Promotion(cycleRes.Promotion)))
	}
}

func serveMetrics(addr string, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()
	return srv
}

func writeFile(path, content string, logger zerolog.Logger) {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		logger.Fatal().Err(err).Str("path", path).Msg("write report")
	}
	logger.Info().Str("path", path).Msg("report written")
}
