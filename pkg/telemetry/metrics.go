package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the case store.
type Metrics struct {
	config MetricsConfig

	// Case lifecycle metrics
	casesCreated   prometheus.Counter
	duplicateCases prometheus.Counter
	statusUpdates  *prometheus.CounterVec

	// Lookup metrics
	lookups        *prometheus.CounterVec
	lookupDuration *prometheus.HistogramVec

	// Error metrics
	storeErrors *prometheus.CounterVec

	registry *prometheus.Registry
	server   *http.Server
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		casesCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cases_created_total",
				Help:      "Total number of fraud cases created",
			},
		),
		duplicateCases: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "duplicate_cases_total",
				Help:      "Total number of case creations rejected as duplicates",
			},
		),
		statusUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "status_updates_total",
				Help:      "Total number of case status updates by outcome",
			},
			[]string{"outcome"},
		),
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lookups_total",
				Help:      "Total number of case lookups by method and outcome",
			},
			[]string{"method", "outcome"},
		),
		lookupDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "lookup_duration_seconds",
				Help:      "Duration of case lookups in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		storeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Total number of underlying storage failures by operation",
			},
			[]string{"operation"},
		),
	}

	collectors := []prometheus.Collector{
		m.casesCreated,
		m.duplicateCases,
		m.statusUpdates,
		m.lookups,
		m.lookupDuration,
		m.storeErrors,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	return m, nil
}

// RecordCaseCreated increments the case creation counter.
func (m *Metrics) RecordCaseCreated() {
	if m.registry == nil {
		return
	}
	m.casesCreated.Inc()
}

// RecordDuplicateCase increments the duplicate rejection counter.
func (m *Metrics) RecordDuplicateCase() {
	if m.registry == nil {
		return
	}
	m.duplicateCases.Inc()
}

// RecordStatusUpdate records a status update with its outcome
// ("ok" or "not_found").
func (m *Metrics) RecordStatusUpdate(outcome string) {
	if m.registry == nil {
		return
	}
	m.statusUpdates.WithLabelValues(outcome).Inc()
}

// RecordLookup records a case lookup with its method ("by_id" or
// "by_name"), outcome ("hit" or "miss"), and duration.
func (m *Metrics) RecordLookup(method, outcome string, d time.Duration) {
	if m.registry == nil {
		return
	}
	m.lookups.WithLabelValues(method, outcome).Inc()
	m.lookupDuration.WithLabelValues(method).Observe(d.Seconds())
}

// RecordStoreError records an underlying storage failure for the named
// store operation.
func (m *Metrics) RecordStoreError(operation string) {
	if m.registry == nil {
		return
	}
	m.storeErrors.WithLabelValues(operation).Inc()
}

// Handler returns the HTTP handler serving the metrics registry, or nil
// when metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartMetricsServer starts the metrics HTTP server if metrics are
// enabled. It returns immediately; the server runs until StopMetricsServer.
func (m *Metrics) StartMetricsServer() error {
	if m.registry == nil {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	m.server = &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			NewDefaultLogger().WithError(err).Error("metrics server failed")
		}
	}()

	return nil
}

// StopMetricsServer shuts down the metrics HTTP server.
func (m *Metrics) StopMetricsServer() error {
	if m.server == nil {
		return nil
	}
	return m.server.Close()
}

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
