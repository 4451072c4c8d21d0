package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefront"

// auth outcome results
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// prometheus collectors for the auth service; a nil *Metrics is a no-op
type Metrics struct {
	registry *prometheus.Registry

	authAttempts    *prometheus.CounterVec
	authzDenials    *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
}

// creates the collectors on a dedicated registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		authAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_attempts_total",
				Help:      "Credential strategy executions by strategy and result.",
			},
			[]string{"strategy", "result"},
		),
		authzDenials: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "authorization_denials_total",
				Help:      "Requests rejected by an authorization gate.",
			},
			[]string{"gate"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latencies in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "In-flight HTTP requests.",
		}),
	}
}

func (m *Metrics) AuthAttempt(strategy, result string) {
	if m == nil {
		return
	}

	m.authAttempts.WithLabelValues(strategy, result).Inc()
}

func (m *Metrics) AuthorizationDenied(gate string) {
	if m == nil {
		return
	}

	m.authzDenials.WithLabelValues(gate).Inc()
}

// exposes the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// records count, latency and in-flight requests per matched route
func (m *Metrics) Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		status := strconv.Itoa(c.Writer.Status())
		m.requestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.requestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
	}
}
