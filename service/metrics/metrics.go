package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the watcher.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC metrics
	rpcCallsTotal        *prometheus.CounterVec
	rpcCallDuration      *prometheus.HistogramVec
	rpcRateLimitHits     *prometheus.CounterVec
	rpcRetries           *prometheus.CounterVec
	rpcSignaturesPerCall prometheus.Histogram

	// Polling metrics
	pollCyclesTotal   *prometheus.CounterVec
	pollCycleDuration *prometheus.HistogramVec
	cursorSaves       *prometheus.CounterVec
	cursorSeeds       *prometheus.CounterVec

	// Classification and dispatch metrics
	eventsClassified   *prometheus.CounterVec
	notificationsTotal *prometheus.CounterVec
	eventsPublished    *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		rpcCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solwatch_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		rpcCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solwatch_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		rpcRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solwatch_rpc_rate_limit_hits_total",
				Help: "Total number of 429 responses by endpoint",
			},
			[]string{"endpoint"},
		),
		rpcRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solwatch_rpc_retries_total",
				Help: "Total number of RPC retries by method and reason",
			},
			[]string{"method", "reason"},
		),
		rpcSignaturesPerCall: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "solwatch_rpc_signatures_per_call",
				Help:    "Number of signatures returned per GetSignaturesForAddress call",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
		),
		pollCyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solwatch_poll_cycles_total",
				Help: "Total number of poll cycles by wallet",
			},
			[]string{"wallet"},
		),
		pollCycleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solwatch_poll_cycle_duration_seconds",
				Help:    "Duration of poll cycles in seconds",
				Buckets: []float64{0.1, 0.5, 1.0, 5.0, 15.0, 30.0, 60.0, 120.0},
			},
			[]string{"wallet"},
		),
		cursorSaves: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solwatch_cursor_saves_total",
				Help: "Total number of cursor saves by status",
			},
			[]string{"status"},
		),
		cursorSeeds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solwatch_cursor_seeds_total",
				Help: "Total number of cursors seeded for previously-unseen addresses",
			},
			[]string{"wallet"},
		),
		eventsClassified: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solwatch_events_classified_total",
				Help: "Total number of classified events by wallet and kind",
			},
			[]string{"wallet", "kind"},
		),
		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solwatch_notifications_total",
				Help: "Total number of notification attempts by kind and status",
			},
			[]string{"kind", "status"},
		),
		eventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solwatch_events_published_total",
				Help: "Total number of events published to the stream by status",
			},
			[]string{"status"},
		),
	}
}

// RecordRPCCall records a completed RPC call.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, durationSeconds float64) {
	m.rpcCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.rpcCallDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordRateLimitHit records a 429 response from an endpoint.
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.rpcRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordRPCRetry records a retry attempt.
func (m *Metrics) RecordRPCRetry(method, reason string) {
	m.rpcRetries.WithLabelValues(method, reason).Inc()
}

// RecordSignaturesPerCall records the size of a signature listing.
func (m *Metrics) RecordSignaturesPerCall(count float64) {
	m.rpcSignaturesPerCall.Observe(count)
}

// RecordPollCycle records a completed poll cycle for a wallet.
func (m *Metrics) RecordPollCycle(wallet string, durationSeconds float64) {
	m.pollCyclesTotal.WithLabelValues(wallet).Inc()
	m.pollCycleDuration.WithLabelValues(wallet).Observe(durationSeconds)
}

// RecordCursorSave records a cursor persistence attempt.
func (m *Metrics) RecordCursorSave(status string) {
	m.cursorSaves.WithLabelValues(status).Inc()
}

// RecordCursorSeed records a cursor seeded for a new address.
func (m *Metrics) RecordCursorSeed(wallet string) {
	m.cursorSeeds.WithLabelValues(wallet).Inc()
}

// RecordEventClassified records a classified event.
func (m *Metrics) RecordEventClassified(wallet, kind string) {
	m.eventsClassified.WithLabelValues(wallet, kind).Inc()
}

// RecordNotification records a notification attempt.
func (m *Metrics) RecordNotification(kind, status string) {
	m.notificationsTotal.WithLabelValues(kind, status).Inc()
}

// RecordEventPublished records a stream publish attempt.
func (m *Metrics) RecordEventPublished(status string) {
	m.eventsPublished.WithLabelValues(status).Inc()
}
