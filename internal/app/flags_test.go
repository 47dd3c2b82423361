package app

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"strategy-lab/internal/domain"
)

func TestParamsFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	a := RegisterParamsFlags(fs, "a-")
	b := RegisterParamsFlags(fs, "b-")

	require.NoError(t, fs.Parse([]string{"-a-max-trade", "0.2", "-b-weights", "BTC-EUR=0.7,ETH-EUR=0.3", "-b-cooldown", "120"}))

	pa, err := a.Params([]string{"BTC-EUR", "ETH-EUR"})
	require.NoError(t, err)
	assert.Equal(t, 0.2, pa.MaxTradePercent)
	assert.Equal(t, 60, pa.CooldownMinutes)
	assert.Equal(t, map[string]float64{"BTC-EUR": 0.5, "ETH-EUR": 0.5}, pa.BaseWeights)

	pb, err := b.Params([]string{"BTC-EUR", "ETH-EUR"})
	require.NoError(t, err)
	assert.Equal(t, 0.1, pb.MaxTradePercent)
	assert.Equal(t, 120, pb.CooldownMinutes)
	assert.Equal(t, map[string]float64{"BTC-EUR": 0.7, "ETH-EUR": 0.3}, pb.BaseWeights)
}

func TestParamsFlags_Invalid(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := RegisterParamsFlags(fs, "")
	require.NoError(t, fs.Parse([]string{"-rsi-oversold", "80"}))

	_, err := f.Params([]string{"BTC-EUR"})
	var ipe *domain.InvalidParameterError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "rsi_oversold_threshold", ipe.Field)
}

func TestParseWeights(t *testing.T) {
	w, err := ParseWeights(" BTC-EUR=0.6, SOL-EUR=0.4 ")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"BTC-EUR": 0.6, "SOL-EUR": 0.4}, w)

	w, err = ParseWeights("")
	require.NoError(t, err)
	assert.Nil(t, w)

	for _, bad := range []string{"BTC-EUR", "=0.5", "BTC-EUR=x", "BTC-EUR=0.5,BTC-EUR=0.5"} {
		_, err := ParseWeights(bad)
		assert.Error(t, err, bad)
	}
}

func TestParsePairs(t *testing.T) {
	assert.Equal(t, []string{"BTC-EUR", "ETH-EUR"}, ParsePairs("btc-eur, ETH-EUR,,"))
	assert.Nil(t, ParsePairs(""))
}

func TestBacktestFlags_Apply(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := RegisterBacktestFlags(fs)
	require.NoError(t, fs.Parse([]string{"-pairs", "btc-eur", "-days", "7", "-end", "2026-01-10T00:00:00Z"}))

	base := domain.DefaultBacktestConfig([]string{"BTC-EUR", "ETH-EUR"})
	cfg, err := f.Apply(base)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC-EUR"}, cfg.Pairs)
	assert.Equal(t, 7, cfg.Days)
	assert.Equal(t, int64(3600), cfg.GranularitySeconds)
	assert.Equal(t, int64(1768003200), cfg.EndTime)
	assert.Equal(t, []string{"BTC-EUR", "ETH-EUR"}, base.Pairs, "base config is not modified")
}

func TestBacktestFlags_BadEnd(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := RegisterBacktestFlags(fs)
	require.NoError(t, fs.Parse([]string{"-end", "yesterday"}))

	_, err := f.Apply(domain.DefaultBacktestConfig([]string{"BTC-EUR"}))
	assert.Error(t, err)
}
