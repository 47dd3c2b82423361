package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"strategy-lab/internal/app"
	"strategy-lab/internal/config"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/idhash"
	"strategy-lab/internal/logging"
	"strategy-lab/internal/promotion"
	"strategy-lab/internal/reporting"
)

const usage = `usage: promote [flags] <command> [args]

commands:
  check              evaluate paper candidates and promote the first eligible one
  list [status]      list candidates (paper_testing, promoted, rejected)
  add                register params (see -score and parameter flags) as a candidate
  force <id>         promote a paper-testing candidate without criteria
  reject <id>        reject a candidate (see -reason)
  rollback           reset the live config to defaults
`

func main() {
	configPath := flag.String("config", "", "Path to YAML config")
	score := flag.Float64("score", 0, "Backtest score for add")
	reason := flag.String("reason", "manual rejection", "Reason for reject")
	pairs := flag.String("pairs", "", "Pairs for default equal weights on add")
	reportMD := flag.String("report-md", "", "Write the check report as Markdown to this path")
	params := app.RegisterParamsFlags(flag.CommandLine, "")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Pretty, os.Stderr).With().Str("cmd", "promote").Logger()

	ctx, cancel := app.SignalContext(logger)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open stores")
	}
	defer stores.Close()

	machine := app.NewMachine(stores, logger)

	cmd := flag.Arg(0)
	if cmd == "" {
		cmd = "check"
	}

	switch cmd {
	case "check":
		check(ctx, machine, cfg.Promotion, *reportMD, logger)

	case "list":
		status := domain.CandidateStatusPaperTesting
		if flag.Arg(1) != "" {
			status = domain.CandidateStatus(flag.Arg(1))
		}
		list(ctx, machine, status, logger)

	case "add":
		pairList := app.ParsePairs(*pairs)
		if len(pairList) == 0 {
			pairList = cfg.Backtest.Pairs
		}
		p, err := params.Params(pairList)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid params")
		}
		c, err := machine.AddCandidate(ctx, p, *score)
		if err != nil {
			logger.Fatal().Err(err).Msg("add candidate")
		}
		fmt.Printf("Candidate added: %s (%s)\n", c.ID, idhash.ShortID(idhash.ParamsID(p)))

	case "force":
		id := requireArg(logger, "force")
		c, err := machine.ForcePromote(ctx, id)
		if err != nil {
			logger.Fatal().Err(err).Str("candidate_id", id).Msg("force promote")
		}
		fmt.Printf("Promoted: %s\n", c.ID)

	case "reject":
		id := requireArg(logger, "reject")
		if err := machine.Reject(ctx, id, *reason); err != nil {
			logger.Fatal().Err(err).Str("candidate_id", id).Msg("reject")
		}
		fmt.Printf("Rejected: %s\n", id)

	case "rollback":
		if err := machine.Rollback(ctx); err != nil {
			logger.Fatal().Err(err).Msg("rollback")
		}
		fmt.Println("Live config reset to defaults")

	default:
		flag.Usage()
		os.Exit(2)
	}
}

func check(ctx context.Context, machine *promotion.Machine, criteria promotion.Criteria, reportPath string, logger zerolog.Logger) {
	res, err := machine.CheckAndPromote(ctx, criteria)
	if err != nil {
		logger.Fatal().Err(err).Msg("check and promote")
	}

	md := reporting.RenderPromotionMarkdown(reporting.NewGenerator().Promotion(res))
	fmt.Print(md)

	if reportPath != "" {
		if err := os.WriteFile(reportPath, []byte(md), 0o644); err != nil {
			logger.Fatal().Err(err).Str("path", reportPath).Msg("write report")
		}
	}
}

func list(ctx context.Context, machine *promotion.Machine, status domain.CandidateStatus, logger zerolog.Logger) {
	candidates, err := machine.Candidates(ctx, status)
	if err != nil {
		logger.Fatal().Err(err).Msg("list candidates")
	}

	fmt.Printf("%-36s  %-12s  %-9s  %-9s  %s\n", "ID", "PARAMS", "BACKTEST", "PAPER", "DAYS")
	for _, c := range candidates {
		fmt.Printf("%-36s  %-12s  %-9s  %-9s  %d\n",
			c.ID,
			idhash.ShortID(idhash.ParamsID(c.StrategyParams)),
			formatScore(c.BacktestScore),
			formatScore(c.PaperScore),
			c.PaperDaysTested)
	}
}

func formatScore(s *float64) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *s)
}

func requireArg(logger zerolog.Logger, cmd string) string {
	id := flag.Arg(1)
	if id == "" {
		logger.Fatal().Msgf("%s requires a candidate id", cmd)
	}
	return id
}
