package observability

import (
	"context"
	"net/http"
	"time"

	pkgerrors "bobbin-backend/pkg/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics for the knowledge graph service.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry
	sink     *CloudWatchSink

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Access layer metrics
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Business metrics
	SuggestionsReturned prometheus.Histogram
	EventsPublished     *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry. sink may be nil.
func NewCollector(namespace string, sink *CloudWatchSink) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		sink:     sink,
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
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graph_operations_total",
				Help:      "Total number of knowledge graph operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "graph_operation_duration_seconds",
				Help:      "Knowledge graph operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		SuggestionsReturned: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "connection_suggestions_returned",
				Help:      "Number of connection suggestions yielded per request",
				Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
			},
		),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "domain_events_published_total",
				Help:      "Domain events handed to the publisher by outcome",
			},
			[]string{"event_type", "outcome"},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Operations,
		c.OperationDuration,
		c.SuggestionsReturned,
		c.EventsPublished,
		collectors.NewGoCollector(),
	)

	return c
}

// Registry exposes the underlying registry, mainly for tests
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordOperation records the outcome and latency of one access-layer call
func (c *Collector) RecordOperation(ctx context.Context, operation string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	outcome := Outcome(err)
	c.Operations.WithLabelValues(operation, outcome).Inc()
	c.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())

	if c.sink != nil {
		c.sink.RecordOperation(ctx, operation, outcome, duration)
	}
}

// RecordHTTPRequest records one served request
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, http.StatusText(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordSuggestions records how many suggestions a request yielded
func (c *Collector) RecordSuggestions(n int) {
	if c == nil {
		return
	}
	c.SuggestionsReturned.Observe(float64(n))
}

// RecordEventPublish records one publish attempt
func (c *Collector) RecordEventPublish(eventType string, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	c.EventsPublished.WithLabelValues(eventType, outcome).Inc()
}

// Outcome maps an error onto a low-cardinality label value
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return string(pkgerrors.TypeOf(err))
}
