// internal/metrics/metrics.go

// Package metrics defines the Prometheus collectors shared by the harness components.
//
// Every recording method is safe to call on a nil *Metrics, so components can be
// built without metrics in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "uiharness"

// Metrics holds the collectors registered against one registry.
type Metrics struct {
	registry *prometheus.Registry

	SessionsActive  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionFailures prometheus.Counter

	WaitOutcomes *prometheus.CounterVec
	WaitDuration *prometheus.HistogramVec

	NavigationFailures *prometheus.CounterVec
	Captures           *prometheus.CounterVec
	PageBuilds         *prometheus.CounterVec
	Cases              *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of browser sessions currently bound to a worker.",
		}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "created_total",
			Help:      "Total number of browser sessions bound to a worker.",
		}),
		SessionFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "creation_failures_total",
			Help:      "Total number of browser sessions that could not be started.",
		}),

		WaitOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wait",
			Name:      "outcomes_total",
			Help:      "Total number of element waits by condition and outcome.",
		}, []string{"condition", "outcome"}),
		WaitDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "wait",
			Name:      "duration_seconds",
			Help:      "Time spent polling for an element condition.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"condition"}),

		NavigationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "navigation",
			Name:      "failures_total",
			Help:      "Total number of failed navigations by category.",
		}, []string{"category"}),
		Captures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "failure",
			Name:      "captures_total",
			Help:      "Total number of screenshot captures by target and result.",
		}, []string{"target", "result"}), // target: file|inline, result: ok|error|timeout
		PageBuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pages",
			Name:      "builds_total",
			Help:      "Total number of page objects constructed by the cache.",
		}, []string{"page"}),
		Cases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "suite",
			Name:      "cases_total",
			Help:      "Total number of executed test cases by status.",
		}, []string{"status"}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SessionBound counts a new session and raises the active gauge. Every
// recording method is a no-op on a nil *Metrics.
func (m *Metrics) SessionBound() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
	m.SessionsActive.Inc()
}

func (m *Metrics) SessionReleased() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

func (m *Metrics) SessionFailed() {
	if m == nil {
		return
	}
	m.SessionFailures.Inc()
}

// ObserveWait records the outcome and duration of one element wait.
func (m *Metrics) ObserveWait(condition, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.WaitOutcomes.WithLabelValues(condition, outcome).Inc()
	m.WaitDuration.WithLabelValues(condition).Observe(elapsed.Seconds())
}

func (m *Metrics) NavigationFailed(category string) {
	if m == nil {
		return
	}
	m.NavigationFailures.WithLabelValues(category).Inc()
}

func (m *Metrics) Captured(target, result string) {
	if m == nil {
		return
	}
	m.Captures.WithLabelValues(target, result).Inc()
}

func (m *Metrics) PageBuilt(page string) {
	if m == nil {
		return
	}
	m.PageBuilds.WithLabelValues(page).Inc()
}

// CaseFinished counts a finished case by report status.
func (m *Metrics) CaseFinished(status string) {
	if m == nil {
		return
	}
	m.Cases.WithLabelValues(status).Inc()
}
