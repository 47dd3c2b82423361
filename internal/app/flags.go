package app

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"strategy-lab/internal/domain"
)

// ParamsFlags binds the strategy parameters to command-line flags.
type ParamsFlags struct {
	maxTrade   *float64
	stopLoss   *float64
	cooldown   *int
	oversold   *float64
	overbought *float64
	weights    *string
}

// RegisterParamsFlags registers parameter flags on fs with the given name prefix
// ("" or e.g. "a-"). Defaults come from the default live configuration.
func RegisterParamsFlags(fs *flag.FlagSet, prefix string) *ParamsFlags {
	def := domain.DefaultLiveConfig()
	return &ParamsFlags{
		maxTrade:   fs.Float64(prefix+"max-trade", def.MaxTradePercent, "Max single trade as fraction of portfolio"),
		stopLoss:   fs.Float64(prefix+"stop-loss", def.StopLossPercent, "Stop-loss fraction"),
		cooldown:   fs.Int(prefix+"cooldown", def.CooldownMinutes, "Cooldown between trading ticks (minutes)"),
		oversold:   fs.Float64(prefix+"rsi-oversold", def.RSIOversoldThreshold, "RSI oversold threshold"),
		overbought: fs.Float64(prefix+"rsi-overbought", def.RSIOverboughtThreshold, "RSI overbought threshold"),
		weights:    fs.String(prefix+"weights", "", "Base weights as PAIR=W,... (default: equal over pairs)"),
	}
}

// Params builds validated strategy params. Empty weights mean equal weights over pairs.
func (f *ParamsFlags) Params(pairs []string) (domain.StrategyParams, error) {
	weights, err := ParseWeights(*f.weights)
	if err != nil {
		return domain.StrategyParams{}, err
	}
	if len(weights) == 0 {
		weights = make(map[string]float64, len(pairs))
		for _, p := range pairs {
			weights[p] = 1 / float64(len(pairs))
		}
	}

	p := domain.StrategyParams{
		MaxTradePercent:        *f.maxTrade,
		StopLossPercent:        *f.stopLoss,
		CooldownMinutes:        *f.cooldown,
		RSIOversoldThreshold:   *f.oversold,
		RSIOverboughtThreshold: *f.overbought,
		BaseWeights:            weights,
	}
	if err := p.Validate(); err != nil {
		return domain.StrategyParams{}, err
	}
	return p, nil
}

// BacktestFlags overrides the configured backtest window from flags.
type BacktestFlags struct {
	pairs       *string
	days        *int
	granularity *int64
	end         *string
}

// RegisterBacktestFlags registers window flags on fs. Zero values keep the configured value.
func RegisterBacktestFlags(fs *flag.FlagSet) *BacktestFlags {
	return &BacktestFlags{
		pairs:       fs.String("pairs", "", "Comma-separated pairs, e.g. BTC-EUR,ETH-EUR"),
		days:        fs.Int("days", 0, "Lookback window in days"),
		granularity: fs.Int64("granularity", 0, "Candle granularity in seconds"),
		end:         fs.String("end", "", "Window end (RFC3339), default now aligned to granularity"),
	}
}

// Apply returns cfg with flag overrides applied and validated.
func (f *BacktestFlags) Apply(cfg domain.BacktestConfig) (domain.BacktestConfig, error) {
	out := cfg
	out.Pairs = append([]string(nil), cfg.Pairs...)

	if pairs := ParsePairs(*f.pairs); len(pairs) > 0 {
		out.Pairs = pairs
	}
	if *f.days > 0 {
		out.Days = *f.days
	}
	if *f.granularity > 0 {
		out.GranularitySeconds = *f.granularity
	}
	if *f.end != "" {
		t, err := time.Parse(time.RFC3339, *f.end)
		if err != nil {
			return out, fmt.Errorf("parse end: %w", err)
		}
		out.EndTime = t.Unix()
	}

	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

// ParseWeights parses "BTC-EUR=0.6,ETH-EUR=0.4" into a weight map.
func ParseWeights(s string) (map[string]float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	weights := make(map[string]float64)
	for _, part := range strings.Split(s, ",") {
		pair, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || pair == "" {
			return nil, fmt.Errorf("weights: expected PAIR=WEIGHT, got %q", part)
		}
		w, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("weights: %s: %w", pair, err)
		}
		if _, dup := weights[pair]; dup {
			return nil, fmt.Errorf("weights: duplicate pair %s", pair)
		}
		weights[pair] = w
	}
	return weights, nil
}

// ParsePairs splits a comma-separated pair list. Empty input returns nil.
func ParsePairs(s string) []string {
	var pairs []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			pairs = append(pairs, strings.ToUpper(p))
		}
	}
	return pairs
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Warn().Str("signal", sig.String()).Msg("shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}
