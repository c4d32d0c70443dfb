// Package metrics owns the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry       *prometheus.Registry
	toolCalls      *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
	upstream       *prometheus.CounterVec
	authorizations *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "costgate_tool_calls_total",
			Help: "Tool calls by tool name and outcome.",
		}, []string{"tool", "status"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "costgate_tool_call_duration_seconds",
			Help:    "Tool call latency including the upstream request.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "costgate_upstream_requests_total",
			Help: "Requests sent to the upstream API by method and HTTP status.",
		}, []string{"method", "status"}),
		authorizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "costgate_authorizations_total",
			Help: "Consent flow outcomes.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.toolCalls, m.toolDuration, m.upstream, m.authorizations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ToolCall(tool, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// UpstreamRequest records one upstream round trip. A status of 0 means the
// request never got a response.
func (m *Metrics) UpstreamRequest(method string, status int) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.upstream.WithLabelValues(method, label).Inc()
}

func (m *Metrics) Authorization(outcome string) {
	if m == nil {
		return
	}
	m.authorizations.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
