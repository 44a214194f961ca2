// Package metrics exposes Prometheus collectors for actions, functions and
// the HTTP surface. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ontology"

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeDenied   = "denied"
	OutcomeInvalid  = "invalid"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Metrics holds every collector the engine updates.
type Metrics struct {
	gatherer prometheus.Gatherer

	actions         *prometheus.CounterVec
	actionDuration  *prometheus.HistogramVec
	actionRetries   *prometheus.CounterVec
	functions       *prometheus.CounterVec
	functionLatency *prometheus.HistogramVec
	requests        *prometheus.CounterVec
	requestLatency  *prometheus.HistogramVec
	instances       *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry, together with the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWith(reg, reg)
}

// NewWith registers the collectors on r and serves g.
func NewWith(r prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: g,
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_invocations_total",
			Help:      "Action invocations by action and outcome.",
		}, []string{"action", "outcome"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Action execution latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		actionRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_retries_total",
			Help:      "Action attempts retried after a concurrent modification.",
		}, []string{"action"}),
		functions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "function_evaluations_total",
			Help:      "Function evaluations by function and outcome.",
		}, []string{"function", "outcome"}),
		functionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "function_duration_seconds",
			Help:      "Function evaluation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"function"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		instances: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "instances",
			Help:      "Stored instances per object type.",
		}, []string{"type"}),
	}
	r.MustRegister(
		m.actions, m.actionDuration, m.actionRetries,
		m.functions, m.functionLatency,
		m.requests, m.requestLatency,
		m.instances,
	)
	return m
}

// ObserveAction records one finished invocation.
func (m *Metrics) ObserveAction(action, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, outcome).Inc()
	m.actionDuration.WithLabelValues(action).Observe(d.Seconds())
}

// ActionRetried records one retry.
func (m *Metrics) ActionRetried(action string) {
	if m == nil {
		return
	}
	m.actionRetries.WithLabelValues(action).Inc()
}

// ObserveFunction records one finished evaluation.
func (m *Metrics) ObserveFunction(function, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.functions.WithLabelValues(function, outcome).Inc()
	m.functionLatency.WithLabelValues(function).Observe(d.Seconds())
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

// SetInstances sets the instance gauge of an object type.
func (m *Metrics) SetInstances(typeName string, n int) {
	if m == nil {
		return
	}
	m.instances.WithLabelValues(typeName).Set(float64(n))
}

// Handler serves the collected metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
