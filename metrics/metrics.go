// Package metrics exports Prometheus metrics for editor synchronization
// events and backend HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/meikuraledutech/hookgraph/editor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors. All methods are safe for concurrent use.
type Metrics struct {
	gatherer prometheus.Gatherer

	syncOps      *prometheus.CounterVec
	syncDuration *prometheus.HistogramVec
	requests     *prometheus.CounterVec
	reqDuration  *prometheus.HistogramVec
}

// New registers the collectors with a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors with reg and serves them from g.
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: g,
		syncOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hookgraph",
			Subsystem: "editor",
			Name:      "sync_total",
			Help:      "Synchronization operations by op and outcome (ok, failed, dropped).",
		}, []string{"op", "outcome"}),
		syncDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hookgraph",
			Subsystem: "editor",
			Name:      "sync_duration_seconds",
			Help:      "Duration of synchronization round trips.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hookgraph",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		reqDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hookgraph",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Emit implements editor.Emitter.
func (m *Metrics) Emit(e editor.Event) {
	outcome := "ok"
	switch {
	case e.Err != nil && e.Dropped:
		outcome = "dropped"
	case e.Err != nil:
		outcome = "failed"
	}
	m.syncOps.WithLabelValues(string(e.Op), outcome).Inc()
	m.syncDuration.WithLabelValues(string(e.Op)).Observe(e.Duration.Seconds())
}

// Middleware records every request handled by a fiber app.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		code := c.Response().StatusCode()
		m.requests.WithLabelValues(c.Method(), route, strconv.Itoa(code)).Inc()
		m.reqDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
