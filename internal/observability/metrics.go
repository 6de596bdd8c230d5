// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	// Ingestion metrics
	QuoteUpserts       *prometheus.CounterVec
	FetchFailures      *prometheus.CounterVec
	MalformedPayloads  *prometheus.CounterVec
	StreamReconnects   *prometheus.CounterVec
	RegistrySize       prometheus.Gauge

	// Mempool metrics
	LogsClassified prometheus.Counter
	LogsTagged     prometheus.Counter
	MempoolSize    prometheus.Gauge

	// Detection metrics
	OpportunitiesDetected *prometheus.CounterVec
	PotentialProfit       *prometheus.CounterVec
	DetectorTickDuration  *prometheus.HistogramVec
	HistorySize           *prometheus.GaugeVec

	// Event bus metrics
	EventsPublished prometheus.Counter
	EventsDropped   prometheus.Counter

	// Retention metrics
	RecordsPurged prometheus.Counter

	// Health metrics
	EngineState   prometheus.Gauge
	UptimeSeconds prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "mev_engine"
	}

	return &Metrics{
		// Ingestion metrics
		QuoteUpserts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "quote_upserts_total",
			Help:      "Total number of quote registry upserts by exchange",
		}, []string{"exchange"}),
		FetchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "fetch_failures_total",
			Help:      "Total number of failed REST fetches by exchange",
		}, []string{"exchange"}),
		MalformedPayloads: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "malformed_payloads_total",
			Help:      "Total number of dropped malformed payloads by source",
		}, []string{"source"}),
		StreamReconnects: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "stream_reconnects_total",
			Help:      "Total number of stream reconnect attempts by stream",
		}, []string{"stream"}),
		RegistrySize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "registry_size",
			Help:      "Current number of quotes in the registry",
		}),

		// Mempool metrics
		LogsClassified: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "logs_classified_total",
			Help:      "Total number of transaction logs classified",
		}),
		LogsTagged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "logs_tagged_total",
			Help:      "Total number of logs tagged as DEX interactions",
		}),
		MempoolSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "mempool",
			Name:      "buffer_size",
			Help:      "Current number of entries in the mempool buffer",
		}),

		// Detection metrics
		OpportunitiesDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "opportunities_total",
			Help:      "Total number of opportunities detected by kind",
		}, []string{"kind"}),
		PotentialProfit: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "potential_profit_usd_total",
			Help:      "Cumulative estimated profit in USD by kind",
		}, []string{"kind"}),
		DetectorTickDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "tick_duration_seconds",
			Help:      "Detector tick duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"detector"}),
		HistorySize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "detection",
			Name:      "history_size",
			Help:      "Current number of retained opportunities by kind",
		}, []string{"kind"}),

		// Event bus metrics
		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of opportunities published on the bus",
		}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Total number of deliveries dropped by slow subscribers",
		}),

		// Retention metrics
		RecordsPurged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "records_purged_total",
			Help:      "Total number of records removed by the retention manager",
		}),

		// Health metrics
		EngineState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "engine_state",
			Help:      "Engine lifecycle state (0=stopped 1=starting 2=running 3=stopping)",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordOpportunity records a detected opportunity and its estimated profit.
func RecordOpportunity(kind string, profit float64) {
	DefaultMetrics.OpportunitiesDetected.WithLabelValues(kind).Inc()
	if profit > 0 {
		DefaultMetrics.PotentialProfit.WithLabelValues(kind).Add(profit)
	}
}

// RecordQuoteUpsert increments the quote upsert counter for an exchange.
func RecordQuoteUpsert(exchange string) {
	DefaultMetrics.QuoteUpserts.WithLabelValues(exchange).Inc()
}

// RecordFetchFailure increments the fetch failure counter for an exchange.
func RecordFetchFailure(exchange string) {
	DefaultMetrics.FetchFailures.WithLabelValues(exchange).Inc()
}

// RecordStreamReconnect increments the reconnect counter for a stream.
func RecordStreamReconnect(stream string) {
	DefaultMetrics.StreamReconnects.WithLabelValues(stream).Inc()
}

// RecordPurged adds to the retention purge counter.
func RecordPurged(n int) {
	if n > 0 {
		DefaultMetrics.RecordsPurged.Add(float64(n))
	}
}

// SetEngineState updates the lifecycle state gauge.
func SetEngineState(state float64) {
	DefaultMetrics.EngineState.Set(state)
}

// RecordMalformed counts a dropped malformed payload from a source.
func RecordMalformed(source string) {
	DefaultMetrics.MalformedPayloads.WithLabelValues(source).Inc()
}

// RecordLogClassified counts one classified transaction log.
func RecordLogClassified(tagged bool) {
	DefaultMetrics.LogsClassified.Inc()
	if tagged {
		DefaultMetrics.LogsTagged.Inc()
	}
}

// RecordEventPublished counts one opportunity published on the bus.
func RecordEventPublished() {
	DefaultMetrics.EventsPublished.Inc()
}

// RecordEventDropped counts one delivery dropped by a slow subscriber.
func RecordEventDropped() {
	DefaultMetrics.EventsDropped.Inc()
}

// ObserveTickDuration records one detector tick's duration.
func ObserveTickDuration(detector string, seconds float64) {
	DefaultMetrics.DetectorTickDuration.WithLabelValues(detector).Observe(seconds)
}

// SetRegistrySize updates the quote registry size gauge.
func SetRegistrySize(n int) {
	DefaultMetrics.RegistrySize.Set(float64(n))
}

// SetMempoolSize updates the mempool buffer size gauge.
func SetMempoolSize(n int) {
	DefaultMetrics.MempoolSize.Set(float64(n))
}

// SetHistorySize updates the retained-opportunity gauge for a kind.
func SetHistorySize(kind string, n int) {
	DefaultMetrics.HistorySize.WithLabelValues(kind).Set(float64(n))
}
