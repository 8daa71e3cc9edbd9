package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for cirrus.
type Metrics struct {
	config MetricsConfig

	// Synthesis metrics
	synthesesTotal      *prometheus.CounterVec
	synthesisDuration   *prometheus.HistogramVec
	resourcesSynthesized *prometheus.GaugeVec

	// Diff metrics
	diffsTotal   prometheus.Counter
	diffDuration prometheus.Histogram
	diffChanges  *prometheus.CounterVec

	// Validation metrics
	validationFailures *prometheus.CounterVec

	// Manifest metrics
	manifestsLoaded  *prometheus.CounterVec
	manifestDuration prometheus.Histogram

	// Snapshot store metrics
	snapshotsSaved *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// No-op instance: every record method checks for nil collectors.
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		synthesesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "syntheses_total",
				Help:      "Total number of synthesis runs",
			},
			[]string{"status"},
		),
		synthesisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "synthesis_duration_seconds",
				Help:      "Duration of synthesis runs in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		resourcesSynthesized: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "resources_synthesized",
				Help:      "Number of resources in the last synthesized template per stack",
			},
			[]string{"stack"},
		),

		diffsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "diffs_total",
				Help:      "Total number of template diffs computed",
			},
		),
		diffDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "diff_duration_seconds",
				Help:      "Duration of template diff computation in seconds",
				Buckets:   buckets,
			},
		),
		diffChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "diff_changes_total",
				Help:      "Total number of diff entries by operation and classification",
			},
			[]string{"operation", "classification"},
		),

		validationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_failures_total",
				Help:      "Total number of construct validation failures",
			},
			[]string{"stack"},
		),

		manifestsLoaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "manifests_loaded_total",
				Help:      "Total number of manifests loaded",
			},
			[]string{"format", "status"},
		),
		manifestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "manifest_load_duration_seconds",
				Help:      "Duration of manifest parsing and evaluation in seconds",
				Buckets:   buckets,
			},
		),

		snapshotsSaved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshots_saved_total",
				Help:      "Total number of stack snapshots persisted",
			},
			[]string{"stack"},
		),
	}

	registry.MustRegister(
		m.synthesesTotal,
		m.synthesisDuration,
		m.resourcesSynthesized,
		m.diffsTotal,
		m.diffDuration,
		m.diffChanges,
		m.validationFailures,
		m.manifestsLoaded,
		m.manifestDuration,
		m.snapshotsSaved,
	)

	return m, nil
}

// RecordSynthesis records one synthesis run with its status and duration.
func (m *Metrics) RecordSynthesis(status string, duration time.Duration) {
	if m.synthesesTotal == nil {
		return
	}
	m.synthesesTotal.WithLabelValues(status).Inc()
	m.synthesisDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// SetResourceCount sets the resource count of the last synthesized template.
func (m *Metrics) SetResourceCount(stack string, count float64) {
	if m.resourcesSynthesized == nil {
		return
	}
	m.resourcesSynthesized.WithLabelValues(stack).Set(count)
}

// RecordDiff records one diff computation.
func (m *Metrics) RecordDiff(duration time.Duration) {
	if m.diffsTotal == nil {
		return
	}
	m.diffsTotal.Inc()
	m.diffDuration.Observe(duration.Seconds())
}

// RecordDiffChange records one diff entry by operation and classification.
func (m *Metrics) RecordDiffChange(operation, classification string) {
	if m.diffChanges == nil {
		return
	}
	m.diffChanges.WithLabelValues(operation, classification).Inc()
}

// RecordValidationFailures records construct validation failures for a stack.
func (m *Metrics) RecordValidationFailures(stack string, count int) {
	if m.validationFailures == nil {
		return
	}
	m.validationFailures.WithLabelValues(stack).Add(float64(count))
}

// RecordManifestLoad records one manifest load attempt.
func (m *Metrics) RecordManifestLoad(format, status string, duration time.Duration) {
	if m.manifestsLoaded == nil {
		return
	}
	m.manifestsLoaded.WithLabelValues(format, status).Inc()
	m.manifestDuration.Observe(duration.Seconds())
}

// RecordSnapshotSaved records one persisted stack snapshot.
func (m *Metrics) RecordSnapshotSaved(stack string) {
	if m.snapshotsSaved == nil {
		return
	}
	m.snapshotsSaved.WithLabelValues(stack).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
