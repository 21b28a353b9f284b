package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. Each
// collector owns its registry, so tests can create as many as they like.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Persistence metrics
	GatewayCalls    *prometheus.CounterVec
	GatewayDuration *prometheus.HistogramVec

	// Domain metrics
	LayoutRuns     *prometheus.CounterVec
	LayoutDuration *prometheus.HistogramVec
	LayoutNodes    prometheus.Histogram
	ReviewGrades   *prometheus.CounterVec
}

// NewCollector creates a new metrics collector with the given namespace
func NewCollector(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		GatewayCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_calls_total",
				Help:      "Total number of remote store calls",
			},
			[]string{"operation", "status"},
		),
		GatewayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_call_duration_seconds",
				Help:      "Remote store call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		LayoutRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "layout_runs_total",
				Help:      "Total number of auto-layout runs",
			},
			[]string{"algorithm"},
		),
		LayoutDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "layout_duration_seconds",
				Help:      "Auto-layout computation time in seconds",
				Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"algorithm"},
		),
		LayoutNodes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "layout_nodes",
				Help:      "Number of nodes positioned per layout run",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
			},
		),
		ReviewGrades: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "review_grades_total",
				Help:      "Total number of review grades submitted",
			},
			[]string{"grade"},
		),
	}

	c.registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.GatewayCalls,
		c.GatewayDuration,
		c.LayoutRuns,
		c.LayoutDuration,
		c.LayoutNodes,
		c.ReviewGrades,
	)
	return c
}

// Registry returns the registry the metrics live in
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one served request
func (c *Collector) ObserveHTTP(method, route, status string, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveGatewayCall implements ports.Metrics
func (c *Collector) ObserveGatewayCall(operation string, duration time.Duration, err error) {
	c.GatewayCalls.WithLabelValues(operation, statusOf(err)).Inc()
	c.GatewayDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveLayout implements ports.Metrics
func (c *Collector) ObserveLayout(algorithm string, nodes int, duration time.Duration) {
	c.LayoutRuns.WithLabelValues(algorithm).Inc()
	c.LayoutDuration.WithLabelValues(algorithm).Observe(duration.Seconds())
	c.LayoutNodes.Observe(float64(nodes))
}

// IncReviewGrade implements ports.Metrics
func (c *Collector) IncReviewGrade(grade string) {
	c.ReviewGrades.WithLabelValues(grade).Inc()
}

func statusOf(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
