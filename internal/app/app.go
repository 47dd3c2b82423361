// Package app wires configuration into stores, candle sources and services
// shared by the command-line tools.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"strategy-lab/internal/backtest"
	"strategy-lab/internal/config"
	"strategy-lab/internal/domain"
	"strategy-lab/internal/marketdata"
	"strategy-lab/internal/optimizer"
	"strategy-lab/internal/promotion"
	"strategy-lab/internal/storage"
	chstore "strategy-lab/internal/storage/clickhouse"
	"strategy-lab/internal/storage/influx"
	"strategy-lab/internal/storage/memory"
	"strategy-lab/internal/storage/migrations"
	pgstore "strategy-lab/internal/storage/postgres"
)

// Stores groups the storage backends selected by configuration.
type Stores struct {
	Results    storage.BacktestResultStore
	Candidates storage.CandidateStore
	LiveConfig storage.LiveConfigStore
	Paper      storage.PaperHistoryStore
	Candles    storage.CandleStore // nil when no candle cache is configured

	closers []func()
}

// Close releases all open connections in reverse order.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// OpenStores connects the configured backends and applies migrations.
// PostgreSQL backs results, candidates, live config and paper history;
// ClickHouse caches candles; InfluxDB, when set, replaces paper history.
// Without DSNs everything runs in memory with the default live config.
func OpenStores(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (*Stores, error) {
	live := domain.DefaultLiveConfig()
	s := &Stores{
		Results:    memory.NewBacktestResultStore(),
		Candidates: memory.NewCandidateStore(),
		LiveConfig: memory.NewLiveConfigStore(&live),
		Paper:      memory.NewPaperHistoryStore(),
	}

	if cfg.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN, pgstore.PoolOptions{
			MaxConns:         cfg.PostgresPool.MaxConns,
			MinConns:         cfg.PostgresPool.MinConns,
			MaxConnLifetime:  cfg.PostgresPool.MaxConnLifetime,
			MaxConnIdleTime:  cfg.PostgresPool.MaxConnIdleTime,
			ConnectTimeout:   cfg.PostgresPool.ConnectTimeout,
			StatementTimeout: cfg.PostgresPool.StatementTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			s.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}

		s.Results = pgstore.NewBacktestResultStore(pool)
		s.Candidates = pgstore.NewCandidateStore(pool)
		s.LiveConfig = pgstore.NewLiveConfigStore(pool)
		s.Paper = pgstore.NewPaperHistoryStore(pool)
		logger.Info().Msg("using postgres storage")
	} else {
		logger.Info().Msg("using in-memory storage")
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("clickhouse: %w", err)
		}
		s.closers = append(s.closers, func() { _ = conn.Close() })

		s.Candles = chstore.NewCandleStore(conn)
		logger.Info().Msg("using clickhouse candle cache")
	}

	if cfg.Influx.Enabled() {
		client, err := influx.NewClient(ctx, cfg.Influx.URL, cfg.Influx.Token)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, client.Close)

		s.Paper = influx.NewPaperHistoryStore(client, cfg.Influx.Org, cfg.Influx.Bucket)
		logger.Info().Str("bucket", cfg.Influx.Bucket).Msg("using influx paper history")
	}

	return s, nil
}

// NewSource builds the configured candle source, wrapped in a read-through
// cache when candles is non-nil. Returns the source and its name for errors.
func NewSource(cfg config.MarketDataConfig, candles storage.CandleStore) (marketdata.CandleSource, string) {
	var (
		src  marketdata.CandleSource
		name = cfg.Source
	)
	switch cfg.Source {
	case config.SourceBinance:
		src = marketdata.NewBinanceSource(marketdata.BinanceConfig{
			APIKey:    cfg.BinanceAPIKey,
			APISecret: cfg.BinanceAPISecret,
			BaseURL:   cfg.BaseURL,
		})
	default:
		name = config.SourceCoinbase
		src = marketdata.NewCoinbaseSource(marketdata.CoinbaseOptions{
			BaseURL:         cfg.BaseURL,
			Timeout:         cfg.RequestTimeout,
			RequestsPerSec:  cfg.RequestsPerSec,
			MaxRetryElapsed: cfg.MaxRetryElapsed,
		})
	}

	if candles != nil {
		src = marketdata.NewCachedSource(src, candles)
	}
	return src, name
}

// NewDriver builds a backtest driver persisting every run into results.
// Pass nil results when the driver feeds an optimizer.
func NewDriver(cfg *config.Config, src marketdata.CandleSource, sourceName string, results storage.BacktestResultStore, logger zerolog.Logger) *backtest.Driver {
	return backtest.NewDriver(backtest.Options{
		Source:          src,
		SourceName:      sourceName,
		ResultStore:     results,
		Logger:          logger,
		FetchBatchSize:  cfg.MarketData.FetchBatchSize,
		FetchBatchDelay: cfg.MarketData.FetchBatchDelay,
	})
}

// NewOptimizer builds an optimizer over runner with the configured pool
// settings. Only ranked top results are stored into results.
func NewOptimizer(cfg config.OptimizerConfig, runner optimizer.Runner, results storage.BacktestResultStore, logger zerolog.Logger) *optimizer.Optimizer {
	return optimizer.New(optimizer.Options{
		Runner:        runner,
		Results:       results,
		Logger:        logger,
		Workers:       cfg.Workers,
		InterRunDelay: cfg.InterRunDelay,
		TopN:          cfg.TopN,
	})
}

// Constraints builds optimizer constraints from configuration.
func Constraints(cfg *config.Config) optimizer.Constraints {
	return optimizer.Constraints{
		Backtest:        cfg.Backtest,
		MaxCombinations: cfg.Optimizer.MaxCombinations,
		Seed:            cfg.Optimizer.Seed,
		Grid:            cfg.Optimizer.Grid,
		Multiplier:      cfg.Optimizer.Multiplier,
	}
}

// NewMachine builds the promotion state machine over stores.
func NewMachine(stores *Stores, logger zerolog.Logger) *promotion.Machine {
	return promotion.NewMachine(promotion.Options{
		Candidates: stores.Candidates,
		Paper:      stores.Paper,
		LiveConfig: stores.LiveConfig,
		Logger:     logger,
	})
}
