// Package metrics exposes Prometheus metrics for the HTTP server and the
// concept map pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeEmpty     = "empty_text"
	OutcomeBusy      = "busy"
	OutcomeHTTPError = "http_error"
	OutcomeMalformed = "malformed"
	OutcomeTransport = "transport"
	OutcomeRejected  = "rejected_file"
)

// Collector holds all Prometheus metrics for the application.
type Collector struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	Submissions        *prometheus.CounterVec
	Generations        *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	GraphNodes         prometheus.Histogram
	GraphEdges         prometheus.Histogram
	DiagramClients     prometheus.Gauge
}

// NewCollector creates a collector with its own registry, so tests can
// create as many as they need.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
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
		Submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Input panel submissions by outcome",
			},
			[]string{"outcome"},
		),
		Generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Concept map generations by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		GenerationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Time spent generating a concept map",
				Buckets:   prometheus.DefBuckets,
			},
		),
		GraphNodes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graph_nodes",
				Help:      "Number of nodes in generated graphs",
				Buckets:   []float64{0, 1, 2, 5, 10, 15, 25, 50, 100},
			},
		),
		GraphEdges: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graph_edges",
				Help:      "Number of edges in generated graphs",
				Buckets:   []float64{0, 1, 2, 5, 10, 15, 25, 50, 100},
			},
		),
		DiagramClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "diagram_clients",
				Help:      "Connected diagram websocket clients",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests, c.HTTPDuration,
		c.Submissions, c.Generations, c.GenerationDuration,
		c.GraphNodes, c.GraphEdges, c.DiagramClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and durations by route template.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			status := ctx.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if sc, ok := err.(statusCoder); ok {
					status = sc.StatusCode()
				} else if status < http.StatusBadRequest {
					status = http.StatusInternalServerError
				}
			}
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			method := ctx.Request().Method
			c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			c.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// statusCoder is implemented by handler errors that carry their own status.
type statusCoder interface {
	StatusCode() int
}

// ObserveSubmission counts one input panel submission.
func (c *Collector) ObserveSubmission(outcome string) {
	if c == nil {
		return
	}
	c.Submissions.WithLabelValues(outcome).Inc()
}

// ObserveGeneration records a finished generation.
func (c *Collector) ObserveGeneration(endpoint string, err error, d time.Duration, nodes, edges int) {
	if c == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.Generations.WithLabelValues(endpoint, status).Inc()
	if err != nil {
		return
	}
	c.GenerationDuration.Observe(d.Seconds())
	c.GraphNodes.Observe(float64(nodes))
	c.GraphEdges.Observe(float64(edges))
}

// ClientConnected adjusts the websocket client gauge.
func (c *Collector) ClientConnected(delta int) {
	if c == nil {
		return
	}
	c.DiagramClients.Add(float64(delta))
}
