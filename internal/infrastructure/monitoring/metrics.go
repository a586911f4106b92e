// Package monitoring exposes Prometheus metrics for the content provider,
// the call bridge, and the websocket transport.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors. Each Metrics instance owns its
// registry so tests can construct as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Bridge metrics
	BridgeCalls    *prometheus.CounterVec
	BridgeDuration *prometheus.HistogramVec
	DecodeFailures *prometheus.CounterVec

	// Transport metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec
	EvalsPushed   prometheus.Counter

	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector backed by a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{
		registry:  registry,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webpane_http_requests_total",
				Help: "Total number of HTTP requests served",
			},
			[]string{"method", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webpane_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webpane_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method"},
		),

		BridgeCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webpane_bridge_calls_total",
				Help: "Bridge invocations by bound function and outcome",
			},
			[]string{"function", "outcome"},
		),
		BridgeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webpane_bridge_call_duration_seconds",
				Help:    "Bridge call duration in seconds, decode included",
				Buckets: []float64{.0001, .001, .01, .1, 1, 10},
			},
			[]string{"function"},
		),
		DecodeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webpane_bridge_decode_failures_total",
				Help: "Argument decode failures by reason class",
			},
			[]string{"reason"},
		),

		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "webpane_ws_connections",
				Help: "Active websocket transport connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webpane_ws_messages_total",
				Help: "Websocket frames by direction",
			},
			[]string{"direction"},
		),
		EvalsPushed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "webpane_evals_pushed_total",
				Help: "Scripts pushed into the front-end",
			},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "webpane_uptime_seconds",
				Help: "Host uptime in seconds",
			},
		),
	}

	return m
}

// Handler returns an http.Handler serving this collector's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records one served HTTP exchange.
func (m *Metrics) RecordRequest(method, status string, duration time.Duration, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, status).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
	if respSize > 0 {
		m.ResponseSize.WithLabelValues(method).Observe(float64(respSize))
	}
	m.Uptime.Set(time.Since(m.startTime).Seconds())
}

// RecordCall records one completed bridge invocation.
func (m *Metrics) RecordCall(function, outcome string, duration time.Duration) {
	m.BridgeCalls.WithLabelValues(function, outcome).Inc()
	m.BridgeDuration.WithLabelValues(function).Observe(duration.Seconds())
}

// RecordDecodeFailure records an argument decode failure.
func (m *Metrics) RecordDecodeFailure(reason string) {
	m.DecodeFailures.WithLabelValues(reason).Inc()
}
