package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for Atelier.
type Metrics struct {
	config MetricsConfig

	// Solve metrics
	solvesStarted   *prometheus.CounterVec
	solvesCompleted *prometheus.CounterVec
	solveDuration   *prometheus.HistogramVec

	// Phase metrics
	phaseDuration *prometheus.HistogramVec

	// Model metrics
	modelVariables   prometheus.Histogram
	modelConstraints prometheus.Histogram

	// Backend metrics
	backendSolves   *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	backendErrors   *prometheus.CounterVec

	// Policy metrics
	policyDenials *prometheus.CounterVec

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	// System metrics
	activeSolves prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	// Create a new registry
	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		// Solve metrics
		solvesStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "solves_started_total",
				Help:      "Total number of solves started",
			},
			[]string{"kind"},
		),
		solvesCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "solves_completed_total",
				Help:      "Total number of solves completed",
			},
			[]string{"status"},
		),
		solveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "solve_duration_seconds",
				Help:      "End-to-end duration of solves in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		// Phase metrics
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of solve pipeline phases in seconds",
				Buckets:   buckets,
			},
			[]string{"phase"},
		),

		// Model metrics
		modelVariables: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "model_variables",
				Help:      "Number of variables in compiled models",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
			},
		),
		modelConstraints: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "model_constraints",
				Help:      "Number of constraints in compiled models",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
			},
		),

		// Backend metrics
		backendSolves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_solves_total",
				Help:      "Total number of backend solver invocations",
			},
			[]string{"backend"},
		),
		backendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_solve_duration_seconds",
				Help:      "Duration of backend solver invocations in seconds",
				Buckets:   buckets,
			},
			[]string{"backend"},
		),
		backendErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_errors_total",
				Help:      "Total number of backend solver errors",
			},
			[]string{"backend"},
		),

		// Policy metrics
		policyDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_denials_total",
				Help:      "Total number of solves denied by admission policy",
			},
			[]string{"policy"},
		),

		// Error metrics
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),

		// System metrics
		activeSolves: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_solves",
				Help:      "Current number of in-flight solves",
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.solvesStarted,
		m.solvesCompleted,
		m.solveDuration,
		m.phaseDuration,
		m.modelVariables,
		m.modelConstraints,
		m.backendSolves,
		m.backendDuration,
		m.backendErrors,
		m.policyDenials,
		m.errorsByClass,
		m.errorsByCode,
		m.activeSolves,
	)

	return m, nil
}

// Solve Metrics

// RecordSolveStarted increments the counter for started solves.
func (m *Metrics) RecordSolveStarted(kind string) {
	if m.solvesStarted == nil {
		return
	}
	m.solvesStarted.WithLabelValues(kind).Inc()
	m.activeSolves.Inc()
}

// RecordSolveCompleted records a completed solve with its status and duration.
func (m *Metrics) RecordSolveCompleted(status string, duration time.Duration) {
	if m.solvesCompleted == nil {
		return
	}
	m.solvesCompleted.WithLabelValues(status).Inc()
	m.solveDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeSolves.Dec()
}

// Phase Metrics

// RecordPhase records the duration of a solve pipeline phase.
func (m *Metrics) RecordPhase(phase string, duration time.Duration) {
	if m.phaseDuration == nil {
		return
	}
	m.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// Model Metrics

// ObserveModelSize records the size of a compiled model.
func (m *Metrics) ObserveModelSize(variables, constraints int) {
	if m.modelVariables == nil {
		return
	}
	m.modelVariables.Observe(float64(variables))
	m.modelConstraints.Observe(float64(constraints))
}

// Backend Metrics

// RecordBackendSolve records a backend solver invocation with its duration.
func (m *Metrics) RecordBackendSolve(backend string, duration time.Duration) {
	if m.backendSolves == nil {
		return
	}
	m.backendSolves.WithLabelValues(backend).Inc()
	m.backendDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordBackendError records a backend solver error.
func (m *Metrics) RecordBackendError(backend string) {
	if m.backendErrors == nil {
		return
	}
	m.backendErrors.WithLabelValues(backend).Inc()
}

// Policy Metrics

// RecordPolicyDenial records a solve denied by admission policy.
func (m *Metrics) RecordPolicyDenial(policy string) {
	if m.policyDenials == nil {
		return
	}
	m.policyDenials.WithLabelValues(policy).Inc()
}

// Error Metrics

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" && m.errorsByCode != nil {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// System Metrics

// SetActiveSolves sets the current number of in-flight solves.
func (m *Metrics) SetActiveSolves(count float64) {
	if m.activeSolves == nil {
		return
	}
	m.activeSolves.Set(count)
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
			// Log error but don't fail the application
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
