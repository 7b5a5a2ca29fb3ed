// Package metrics provides Prometheus metrics for the workflow runner.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "stepflow"
	subsystem = "runner"

	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Metrics groups the runner collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	RunsActive   prometheus.Gauge
	RunsTotal    *prometheus.CounterVec
	RunsRejected prometheus.Counter
	RunDuration  *prometheus.HistogramVec
	StepsTotal   *prometheus.CounterVec
	StepDuration *prometheus.HistogramVec
	EventsTotal  *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec
}

// New registers the runner collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RunsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runs_active",
			Help:      "Number of currently running runs",
		}),
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runs_total",
			Help:      "Total number of runs by final status",
		}, []string{"status"}),
		RunsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runs_rejected_total",
			Help:      "Total number of runs refused because the runner was busy",
		}),
		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "run_duration_seconds",
			Help:      "Run execution duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"status"}),
		StepsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "steps_total",
			Help:      "Total number of steps executed by status",
		}, []string{"status"}),
		StepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "step_duration_seconds",
			Help:      "Step execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_total",
			Help:      "Total number of run events published",
		}, []string{"type"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
	}
}

func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}

	m.RunsActive.Inc()
}

func (m *Metrics) RunFinished(status string, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.RunsActive.Dec()
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

func (m *Metrics) RunRejected() {
	if m == nil {
		return
	}

	m.RunsRejected.Inc()
}

func (m *Metrics) StepFinished(stepType, status string, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.StepsTotal.WithLabelValues(status).Inc()
	m.StepDuration.WithLabelValues(stepType).Observe(elapsed.Seconds())
}

func (m *Metrics) EventPublished(eventType string) {
	if m == nil {
		return
	}

	m.EventsTotal.WithLabelValues(eventType).Inc()
}

func (m *Metrics) HTTPRequest(method, path, status string) {
	if m == nil {
		return
	}

	m.HTTPRequests.WithLabelValues(method, path, status).Inc()
}
