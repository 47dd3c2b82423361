// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Backtest metrics
	BacktestRunsTotal *prometheus.CounterVec
	BacktestDuration  prometheus.Histogram
	TradesSimulated   prometheus.Counter

	// Optimizer metrics
	OptimizerCombinations *prometheus.CounterVec
	OptimizerBestScore    *prometheus.GaugeVec

	// Promotion metrics
	PromotionActions *prometheus.CounterVec

	// Market data metrics
	CandleFetchLatency *prometheus.HistogramVec
	CandleFetchErrors  *prometheus.CounterVec
	CandleCacheHits    *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "strategy_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		BacktestRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		BacktestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest run duration in seconds, including candle fetch",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
		TradesSimulated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backtest",
			Name:      "trades_simulated_total",
			Help:      "Total number of simulated trade legs",
		}),

		OptimizerCombinations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "combinations_total",
			Help:      "Total number of parameter combinations evaluated by outcome",
		}, []string{"mode", "outcome"}),
		OptimizerBestScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "best_score",
			Help:      "Best combined score of the last optimization run",
		}, []string{"mode"}),

		PromotionActions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "promotion",
			Name:      "actions_total",
			Help:      "Total number of promotion state machine actions",
		}, []string{"action"}),

		CandleFetchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "fetch_latency_seconds",
			Help:      "Candle fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		CandleFetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed candle fetches",
		}, []string{"source"}),
		CandleCacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "cache_lookups_total",
			Help:      "Candle cache lookups by result",
		}, []string{"result"}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordBacktestRun records a finished backtest run.
func RecordBacktestRun(status string, durationSeconds float64, trades int) {
	DefaultMetrics.BacktestRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.BacktestDuration.Observe(durationSeconds)
	DefaultMetrics.TradesSimulated.Add(float64(trades))
}

// RecordOptimizerCombination records the outcome of one optimizer combination.
func RecordOptimizerCombination(mode, outcome string) {
	DefaultMetrics.OptimizerCombinations.WithLabelValues(mode, outcome).Inc()
}

// SetOptimizerBestScore sets the best score gauge for a mode.
func SetOptimizerBestScore(mode string, score float64) {
	DefaultMetrics.OptimizerBestScore.WithLabelValues(mode).Set(score)
}

// RecordPromotionAction records a promotion state machine action.
func RecordPromotionAction(action string) {
	DefaultMetrics.PromotionActions.WithLabelValues(action).Inc()
}

// RecordCandleFetch records candle fetch metrics.
func RecordCandleFetch(source string, seconds float64, err error) {
	DefaultMetrics.CandleFetchLatency.WithLabelValues(source).Observe(seconds)
	if err != nil {
		DefaultMetrics.CandleFetchErrors.WithLabelValues(source).Inc()
	}
}

// RecordCacheLookup records a candle cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	DefaultMetrics.CandleCacheHits.WithLabelValues(result).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
