// Package metrics exposes Prometheus collectors for the API, the update
// cycle and trade execution. All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the application's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestCount    *prometheus.CounterVec

	cycleDuration prometheus.Histogram
	cycleRuns     *prometheus.CounterVec
	cycleErrors   *prometheus.CounterVec
	lastCycle     prometheus.Gauge

	trades       *prometheus.CounterVec
	wsClients    prometheus.Gauge
	droppedSends prometheus.Counter
}

// New registers every collector under namespace on a fresh registry.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"route", "method", "status"},
		),
		requestCount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),

		cycleDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "update_cycle_duration_seconds",
				Help:      "Duration of price update cycles",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		cycleRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "update_cycles_total",
				Help:      "Update cycles by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),
		cycleErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "update_cycle_item_errors_total",
				Help:      "Per-asset and per-account failures during update cycles",
			},
			[]string{"phase"},
		),
		lastCycle: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "update_cycle_last_completed_timestamp_seconds",
				Help:      "Unix time of the last completed update cycle",
			},
		),

		trades: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_total",
				Help:      "Executed trades by side and category",
			},
			[]string{"side", "category"},
		),
		wsClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_clients",
				Help:      "Connected websocket clients",
			},
		),
		droppedSends: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_dropped_messages_total",
				Help:      "Events dropped because a client buffer was full",
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(route, method, code).Observe(d.Seconds())
	m.requestCount.WithLabelValues(route, method, code).Inc()
}

// ObserveCycle records a finished update cycle.
func (m *Metrics) ObserveCycle(trigger string, d time.Duration, assetErrors, accountErrors int, completedAt time.Time) {
	if m == nil {
		return
	}
	outcome := "ok"
	if assetErrors+accountErrors > 0 {
		outcome = "partial"
	}
	m.cycleRuns.WithLabelValues(trigger, outcome).Inc()
	m.cycleDuration.Observe(d.Seconds())
	m.cycleErrors.WithLabelValues("asset").Add(float64(assetErrors))
	m.cycleErrors.WithLabelValues("account").Add(float64(accountErrors))
	m.lastCycle.Set(float64(completedAt.Unix()))
}

// CycleRejected counts a trigger refused because a cycle was already running.
func (m *Metrics) CycleRejected(trigger string) {
	if m == nil {
		return
	}
	m.cycleRuns.WithLabelValues(trigger, "rejected").Inc()
}

// RecordTrade counts an executed trade.
func (m *Metrics) RecordTrade(side, category string) {
	if m == nil {
		return
	}
	m.trades.WithLabelValues(side, category).Inc()
}

// ClientConnected adjusts the websocket client gauge by delta.
func (m *Metrics) ClientConnected(delta int) {
	if m == nil {
		return
	}
	m.wsClients.Add(float64(delta))
}

// MessageDropped counts an event dropped for a slow client.
func (m *Metrics) MessageDropped() {
	if m == nil {
		return
	}
	m.droppedSends.Inc()
}

// Middleware records request counts and latencies by route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
