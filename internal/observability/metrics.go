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
	// Run metrics
	RunsTotal       *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	RunsActive      prometheus.Gauge
	PauseWaits      prometheus.Counter
	AbortsRequested prometheus.Counter

	// Simulation metrics
	SimulationsTotal   *prometheus.CounterVec
	SimulationDuration prometheus.Histogram
	TradesExecuted     prometheus.Counter
	TokensSkipped      *prometheus.CounterVec

	// Prediction metrics
	PredictionCalls     *prometheus.CounterVec
	PredictionCacheHits prometheus.Counter
	PredictionLatency   *prometheus.HistogramVec

	// Event metrics
	EventsPublished *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_strategy_lab"
	}

	return &Metrics{
		// Run metrics
		RunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "runs_total",
			Help:      "Total number of runs by terminal status",
		}, []string{"status"}),
		RunDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of completed runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 4, 8),
		}),
		RunsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "runs_active",
			Help:      "Number of runs currently sweeping",
		}),
		PauseWaits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "pause_waits_total",
			Help:      "Total number of simulations that blocked on a pause",
		}),
		AbortsRequested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runner",
			Name:      "aborts_requested_total",
			Help:      "Total number of abort requests received",
		}),

		// Simulation metrics
		SimulationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "simulations_total",
			Help:      "Total number of per-token simulations by outcome",
		}, []string{"outcome"}),
		SimulationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "duration_seconds",
			Help:      "Per-token simulation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		TradesExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "trades_executed_total",
			Help:      "Total number of simulated buy and sell transactions",
		}),
		TokensSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulation",
			Name:      "tokens_skipped_total",
			Help:      "Total number of tokens ended by an exit event, by code",
		}, []string{"exit_code"}),

		// Prediction metrics
		PredictionCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prediction",
			Name:      "calls_total",
			Help:      "Total number of predictor HTTP calls by model and status",
		}, []string{"model", "status"}),
		PredictionCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prediction",
			Name:      "cache_hits_total",
			Help:      "Total number of prediction cache hits",
		}),
		PredictionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "prediction",
			Name:      "call_latency_seconds",
			Help:      "Predictor HTTP call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model"}),

		// Event metrics
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of progress events published by type",
		}, []string{"event_type"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "query_duration_seconds",
			Help:      "Store operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "query_errors_total",
			Help:      "Total number of failed store operations",
		}, []string{"store", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRunFinished records a run reaching a terminal status.
func RecordRunFinished(status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
}

// RecordRunStarted increments the active runs gauge.
func RecordRunStarted() {
	DefaultMetrics.RunsActive.Inc()
}

// RecordRunEnded decrements the active runs gauge.
func RecordRunEnded() {
	DefaultMetrics.RunsActive.Dec()
}

// RecordPauseWait increments the pause wait counter.
func RecordPauseWait() {
	DefaultMetrics.PauseWaits.Inc()
}

// RecordAbort increments the abort request counter.
func RecordAbort() {
	DefaultMetrics.AbortsRequested.Inc()
}

// RecordSimulation records one per-token simulation.
func RecordSimulation(outcome string, durationSeconds float64) {
	DefaultMetrics.SimulationsTotal.WithLabelValues(outcome).Inc()
	DefaultMetrics.SimulationDuration.Observe(durationSeconds)
}

// RecordTrade increments the executed transactions counter.
func RecordTrade() {
	DefaultMetrics.TradesExecuted.Inc()
}

// RecordTokenSkipped records a token that ended on an exit event.
func RecordTokenSkipped(exitCode string) {
	DefaultMetrics.TokensSkipped.WithLabelValues(exitCode).Inc()
}

// RecordPredictionCall records one predictor HTTP call.
func RecordPredictionCall(model, status string, seconds float64) {
	DefaultMetrics.PredictionCalls.WithLabelValues(model, status).Inc()
	DefaultMetrics.PredictionLatency.WithLabelValues(model).Observe(seconds)
}

// RecordPredictionCacheHit increments the prediction cache hit counter.
func RecordPredictionCacheHit() {
	DefaultMetrics.PredictionCacheHits.Inc()
}

// RecordEventPublished records a published progress event.
func RecordEventPublished(eventType string) {
	DefaultMetrics.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordDBQuery records store operation metrics.
func RecordDBQuery(store, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(store, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(store, operation).Inc()
	}
}
