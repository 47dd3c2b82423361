package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/observability"
)

// BinanceMaxKlines is the page size of the klines endpoint.
const BinanceMaxKlines = 1000

const binanceSourceName = "binance"

var binanceIntervals = map[int64]string{
	60:     "1m",
	300:    "5m",
	900:    "15m",
	1800:   "30m",
	3600:   "1h",
	7200:   "2h",
	14400:  "4h",
	21600:  "6h",
	43200:  "12h",
	86400:  "1d",
	604800: "1w",
}

// BinanceConfig holds Binance client settings.
type BinanceConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string // empty = production spot API
}

// BinanceSource fetches spot klines from Binance.
type BinanceSource struct {
	client *binance.Client
}

// NewBinanceSource creates a Binance candle source. Public klines need no key.
func NewBinanceSource(cfg BinanceConfig) *BinanceSource {
	client := binance.NewClient(cfg.APIKey, cfg.APISecret)
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}
	return &BinanceSource{client: client}
}

// BinanceSymbol maps "BTC-EUR" to "BTCEUR".
func BinanceSymbol(pair string) string {
	return strings.ToUpper(strings.NewReplacer("-", "", "/", "").Replace(pair))
}

// GetCandles pages klines over [start, end] in BinanceMaxKlines chunks.
func (s *BinanceSource) GetCandles(ctx context.Context, pair string, granularity, start, end int64) ([]domain.Candle, error) {
	interval, ok := binanceIntervals[granularity]
	if !ok {
		return nil, &domain.InvalidParameterError{Field: "granularity", Reason: fmt.Sprintf("unsupported by binance: %d", granularity)}
	}

	begin := time.Now()
	candles, err := s.fetch(ctx, BinanceSymbol(pair), interval, granularity, start, end)
	observability.RecordCandleFetch(binanceSourceName, time.Since(begin).Seconds(), err)
	if err != nil {
		return nil, &domain.ExternalFetchError{Source: binanceSourceName, Pair: pair, Err: err}
	}
	return domain.SortCandles(candles), nil
}

func (s *BinanceSource) fetch(ctx context.Context, symbol, interval string, granularity, start, end int64) ([]domain.Candle, error) {
	var all []domain.Candle

	for cursor := start; cursor <= end; {
		klines, err := s.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(cursor * 1000).
			EndTime(end * 1000).
			Limit(BinanceMaxKlines).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("klines %s: %w", symbol, err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			c, err := parseKline(k)
			if err != nil {
				return nil, err
			}
			all = append(all, c)
		}

		last := klines[len(klines)-1].OpenTime / 1000
		if len(klines) < BinanceMaxKlines || last+granularity <= cursor {
			break
		}
		cursor = last + granularity
	}

	return all, nil
}

func parseKline(k *binance.Kline) (domain.Candle, error) {
	fields := []string{k.Open, k.High, k.Low, k.Close, k.Volume}
	vals := make([]float64, len(fields))
	for i, f := range fields {
		d, err := decimal.NewFromString(f)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("parse kline field %q: %w", f, err)
		}
		vals[i] = d.InexactFloat64()
	}
	return domain.Candle{
		Start:  k.OpenTime / 1000,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
