// Package metrics owns the Prometheus collectors of the service. All methods
// are safe on a nil *Metrics so callers can run without instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stemsi/exstem-assess/internal/model"
)

const namespace = "exstem_assess"

// Declaration run outcomes.
const (
	RunCompleted = "completed"
	RunStalled   = "stalled"
	RunFailed    = "failed"
)

// Metrics groups HTTP and domain collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	httpDuration *prometheus.SummaryVec
	httpRequests *prometheus.CounterVec

	submissions    *prometheus.CounterVec
	declared       prometheus.Counter
	emails         *prometheus.CounterVec
	failedAttempts prometheus.Counter
	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpDuration: f.NewSummaryVec(prometheus.SummaryOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Objectives: map[float64]float64{
				0.5:  0.05,
				0.9:  0.01,
				0.95: 0.005,
				0.99: 0.001,
			},
		}, []string{"method", "path", "status_code"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status_code"}),
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_graded_total",
			Help:      "Graded submissions by pass/fail status",
		}, []string{"status"}),
		declared: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_declared_total",
			Help:      "Results marked as declared",
		}),
		emails: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_emails_total",
			Help:      "Result notification emails by outcome",
		}, []string{"outcome"}),
		failedAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "declaration_failed_attempts_total",
			Help:      "Results that could not be declared during a run",
		}),
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "declaration_runs_total",
			Help:      "Bulk declaration runs by outcome",
		}, []string{"outcome"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "declaration_run_duration_seconds",
			Help:      "Wall time of bulk declaration runs",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}),
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one finished request.
func (m *Metrics) ObserveHTTP(method, path, statusCode string, took time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, path, statusCode).Observe(took.Seconds())
	m.httpRequests.WithLabelValues(method, path, statusCode).Inc()
}

// SubmissionGraded counts a persisted submission.
func (m *Metrics) SubmissionGraded(status model.ResultStatus) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(string(status)).Inc()
}

// ResultDeclared counts one claimed result and its email outcome.
func (m *Metrics) ResultDeclared(emailSent bool) {
	if m == nil {
		return
	}
	m.declared.Inc()
	if emailSent {
		m.emails.WithLabelValues("sent").Inc()
	} else {
		m.emails.WithLabelValues("failed").Inc()
	}
}

// DeclarationAttemptFailed counts a result the run could not persist.
func (m *Metrics) DeclarationAttemptFailed() {
	if m == nil {
		return
	}
	m.failedAttempts.Inc()
}

// DeclarationRun records a finished run.
func (m *Metrics) DeclarationRun(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(took.Seconds())
}
