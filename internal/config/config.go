// Package config loads the lab configuration from YAML, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/optimizer"
	"strategy-lab/internal/promotion"
)

// Market data sources.
const (
	SourceCoinbase = "coinbase"
	SourceBinance  = "binance"
)

// Config holds all application configuration.
type Config struct {
	Storage    StorageConfig         `yaml:"storage"`
	MarketData MarketDataConfig      `yaml:"market_data"`
	Backtest   domain.BacktestConfig `yaml:"backtest"`
	Optimizer  OptimizerConfig       `yaml:"optimizer"`
	Promotion  promotion.Criteria    `yaml:"promotion"`
	Log        LogConfig             `yaml:"log"`
}

// StorageConfig selects the storage backends. Empty DSNs fall back to memory.
type StorageConfig struct {
	PostgresDSN   string             `yaml:"postgres_dsn"`
	PostgresPool  PostgresPoolConfig `yaml:"postgres_pool"`
	ClickhouseDSN string             `yaml:"clickhouse_dsn"`
	Influx        InfluxConfig       `yaml:"influx"`
}

// PostgresPoolConfig sizes the Postgres connection pool. Zero keeps the
// driver default.
type PostgresPoolConfig struct {
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// InfluxConfig holds InfluxDB connection settings for paper history.
type InfluxConfig struct {
	URL    string `yaml:"url"`
	Token  string `yaml:"token"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
}

// Enabled reports whether paper history should be read from InfluxDB.
func (c InfluxConfig) Enabled() bool {
	return c.URL != ""
}

// MarketDataConfig configures the candle source.
type MarketDataConfig struct {
	Source           string        `yaml:"source"`
	BaseURL          string        `yaml:"base_url"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	RequestsPerSec   int           `yaml:"requests_per_second"`
	MaxRetryElapsed  time.Duration `yaml:"max_retry_elapsed"`
	FetchBatchSize   int           `yaml:"fetch_batch_size"`
	FetchBatchDelay  time.Duration `yaml:"fetch_batch_delay"`
	BinanceAPIKey    string        `yaml:"binance_api_key"`
	BinanceAPISecret string        `yaml:"binance_api_secret"`
}

// OptimizerConfig configures grid search.
type OptimizerConfig struct {
	Mode            optimizer.Mode  `yaml:"mode"`
	Workers         int             `yaml:"workers"`
	InterRunDelay   time.Duration   `yaml:"inter_run_delay"`
	MaxCombinations int             `yaml:"max_combinations"`
	Seed            int64           `yaml:"seed"`
	TopN            int             `yaml:"top_n"`
	Multiplier      float64         `yaml:"neighborhood_multiplier"`
	Grid            *optimizer.Grid `yaml:"grid"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			PostgresPool: PostgresPoolConfig{
				MaxConns:         4,
				MaxConnLifetime:  30 * time.Minute,
				ConnectTimeout:   10 * time.Second,
				StatementTimeout: 30 * time.Second,
			},
		},
		MarketData: MarketDataConfig{
			Source:          SourceCoinbase,
			RequestTimeout:  30 * time.Second,
			RequestsPerSec:  5,
			MaxRetryElapsed: 2 * time.Minute,
			FetchBatchSize:  2,
			FetchBatchDelay: time.Second,
		},
		Backtest: domain.DefaultBacktestConfig(domain.DefaultLiveConfig().Pairs),
		Optimizer: OptimizerConfig{
			Mode:          optimizer.ModeReduced,
			Workers:       1,
			InterRunDelay: 500 * time.Millisecond,
			TopN:          optimizer.DefaultTopN,
			Multiplier:    1,
		},
		Promotion: promotion.DefaultCriteria(),
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration in order: defaults, YAML file at path (optional),
// then environment overrides. A .env file in the working directory is loaded
// into the environment first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setFromEnv(&c.Storage.PostgresDSN, "POSTGRES_DSN")
	setFromEnv(&c.Storage.ClickhouseDSN, "CLICKHOUSE_DSN")
	setFromEnv(&c.Storage.Influx.URL, "INFLUX_URL")
	setFromEnv(&c.Storage.Influx.Token, "INFLUX_TOKEN")
	setFromEnv(&c.Storage.Influx.Org, "INFLUX_ORG")
	setFromEnv(&c.Storage.Influx.Bucket, "INFLUX_BUCKET")
	setFromEnv(&c.Log.Level, "LOG_LEVEL")
	setFromEnv(&c.MarketData.BinanceAPIKey, "BINANCE_API_KEY")
	setFromEnv(&c.MarketData.BinanceAPISecret, "BINANCE_API_SECRET")
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch strings.ToLower(c.MarketData.Source) {
	case SourceCoinbase, SourceBinance:
		c.MarketData.Source = strings.ToLower(c.MarketData.Source)
	default:
		return fmt.Errorf("market_data.source: unknown source %q", c.MarketData.Source)
	}
	if c.MarketData.RequestTimeout <= 0 {
		return errors.New("market_data.request_timeout: must be > 0")
	}
	if c.MarketData.RequestsPerSec <= 0 {
		return errors.New("market_data.requests_per_second: must be > 0")
	}
	if c.MarketData.FetchBatchSize < 0 || c.MarketData.FetchBatchDelay < 0 {
		return errors.New("market_data: fetch batch size and delay must be >= 0")
	}

	if err := c.Backtest.Validate(); err != nil {
		return fmt.Errorf("backtest: %w", err)
	}

	if _, err := optimizer.ParseMode(string(c.Optimizer.Mode)); err != nil {
		return fmt.Errorf("optimizer.mode: %w", err)
	}
	if c.Optimizer.Workers < 1 {
		return errors.New("optimizer.workers: must be >= 1")
	}
	if c.Optimizer.InterRunDelay < 0 {
		return errors.New("optimizer.inter_run_delay: must be >= 0")
	}
	if c.Optimizer.MaxCombinations < 0 || c.Optimizer.TopN < 0 {
		return errors.New("optimizer: max_combinations and top_n must be >= 0")
	}
	if c.Optimizer.Multiplier < 0 {
		return errors.New("optimizer.neighborhood_multiplier: must be >= 0")
	}

	if err := c.Promotion.Validate(); err != nil {
		return fmt.Errorf("promotion: %w", err)
	}

	pp := c.Storage.PostgresPool
	if pp.MaxConns < 0 || pp.MinConns < 0 || (pp.MaxConns > 0 && pp.MinConns > pp.MaxConns) {
		return errors.New("storage.postgres_pool: conns must be >= 0 and min_conns <= max_conns")
	}
	if pp.MaxConnLifetime < 0 || pp.MaxConnIdleTime < 0 || pp.ConnectTimeout < 0 || pp.StatementTimeout < 0 {
		return errors.New("storage.postgres_pool: durations must be >= 0")
	}

	if c.Storage.Influx.Enabled() && (c.Storage.Influx.Org == "" || c.Storage.Influx.Bucket == "") {
		return errors.New("storage.influx: org and bucket are required when url is set")
	}

	return nil
}
