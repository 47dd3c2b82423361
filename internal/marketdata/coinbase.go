package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"strategy-lab/internal/domain"
	"strategy-lab/internal/observability"
)

// Coinbase defaults.
const (
	DefaultCoinbaseURL  = "https://api.exchange.coinbase.com"
	CoinbaseMaxCandles  = 300
	coinbaseSourceName  = "coinbase"
	defaultHTTPTimeout  = 30 * time.Second
	defaultRequestsPerS = 5
)

// CoinbaseOptions holds options for creating a CoinbaseSource.
type CoinbaseOptions struct {
	BaseURL         string
	Timeout         time.Duration
	RequestsPerSec  int
	MaxRetryElapsed time.Duration
	InitialInterval time.Duration // first retry delay, 0 = backoff default
}

// CoinbaseSource fetches candles from the Coinbase Exchange REST API.
type CoinbaseSource struct {
	baseURL         string
	httpClient      *http.Client
	limiter         *rate.Limiter
	maxRetryElapsed time.Duration
	initialInterval time.Duration
}

// HTTPStatusError represents a non-200 HTTP response.
type HTTPStatusError struct {
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return "non-200 status code: " + strconv.Itoa(e.StatusCode) + " " + http.StatusText(e.StatusCode)
}

// NewCoinbaseSource creates a Coinbase candle source with rate limiting and retries.
func NewCoinbaseSource(opts CoinbaseOptions) *CoinbaseSource {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultCoinbaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultHTTPTimeout
	}
	if opts.RequestsPerSec == 0 {
		opts.RequestsPerSec = defaultRequestsPerS
	}
	if opts.MaxRetryElapsed == 0 {
		opts.MaxRetryElapsed = 30 * time.Second
	}

	return &CoinbaseSource{
		baseURL:         opts.BaseURL,
		httpClient:      &http.Client{Timeout: opts.Timeout},
		limiter:         rate.NewLimiter(rate.Every(time.Second/time.Duration(opts.RequestsPerSec)), opts.RequestsPerSec),
		maxRetryElapsed: opts.MaxRetryElapsed,
		initialInterval: opts.InitialInterval,
	}
}

// GetCandles pages through [start, end] in windows of CoinbaseMaxCandles bars.
func (s *CoinbaseSource) GetCandles(ctx context.Context, pair string, granularity, start, end int64) ([]domain.Candle, error) {
	if granularity <= 0 || end < start {
		return nil, &domain.InvalidParameterError{Field: "window", Reason: "granularity must be > 0 and end >= start"}
	}

	begin := time.Now()
	var all []domain.Candle
	var err error

	for pageStart := start; pageStart <= end; pageStart += granularity * CoinbaseMaxCandles {
		pageEnd := pageStart + granularity*(CoinbaseMaxCandles-1)
		if pageEnd > end {
			pageEnd = end
		}

		var page []domain.Candle
		page, err = s.fetchPage(ctx, pair, granularity, pageStart, pageEnd)
		if err != nil {
			break
		}
		all = append(all, page...)
	}

	observability.RecordCandleFetch(coinbaseSourceName, time.Since(begin).Seconds(), err)
	if err != nil {
		return nil, &domain.ExternalFetchError{Source: coinbaseSourceName, Pair: pair, Err: err}
	}
	return domain.SortCandles(all), nil
}

func (s *CoinbaseSource) fetchPage(ctx context.Context, pair string, granularity, start, end int64) ([]domain.Candle, error) {
	q := url.Values{}
	q.Set("granularity", strconv.FormatInt(granularity, 10))
	q.Set("start", time.Unix(start, 0).UTC().Format(time.RFC3339))
	q.Set("end", time.Unix(end, 0).UTC().Format(time.RFC3339))
	endpoint := fmt.Sprintf("%s/products/%s/candles?%s", s.baseURL, url.PathEscape(pair), q.Encode())

	var rows [][]json.Number
	operation := func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			statusErr := &HTTPStatusError{StatusCode: resp.StatusCode}
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(statusErr)
			}
			return statusErr
		}

		dec := json.NewDecoder(resp.Body)
		dec.UseNumber()
		rows = nil
		if err := dec.Decode(&rows); err != nil {
			return backoff.Permanent(fmt.Errorf("decode candles: %w", err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = s.maxRetryElapsed
	if s.initialInterval > 0 {
		b.InitialInterval = s.initialInterval
	}
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(rows))
	for _, row := range rows {
		c, err := parseCoinbaseRow(row)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// parseCoinbaseRow parses [time, low, high, open, close, volume].
func parseCoinbaseRow(row []json.Number) (domain.Candle, error) {
	if len(row) < 6 {
		return domain.Candle{}, fmt.Errorf("malformed candle row: %d fields", len(row))
	}

	ts, err := row[0].Int64()
	if err != nil {
		return domain.Candle{}, fmt.Errorf("parse candle time %q: %w", row[0], err)
	}

	vals := make([]float64, 5)
	for i := 1; i < 6; i++ {
		d, err := decimal.NewFromString(row[i].String())
		if err != nil {
			return domain.Candle{}, fmt.Errorf("parse candle field %d %q: %w", i, row[i], err)
		}
		vals[i-1] = d.InexactFloat64()
	}

	return domain.Candle{
		Start:  ts,
		Low:    vals[0],
		High:   vals[1],
		Open:   vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}
