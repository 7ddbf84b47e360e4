package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. A nil
// *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Engine metrics
	Commands        *prometheus.CounterVec
	Queries         *prometheus.CounterVec
	Placements      *prometheus.CounterVec
	Reconciliations *prometheus.CounterVec
	NodesGenerated  prometheus.Counter

	// Persistence metrics
	StoreOperations *prometheus.CounterVec
	StoreDuration   *prometheus.HistogramVec
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
}

// NewCollector creates a collector with its own registry
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
		Commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Commands dispatched, by type and outcome",
			},
			[]string{"command", "status"},
		),
		Queries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queries_total",
				Help:      "Queries answered, by type and outcome",
			},
			[]string{"query", "status"},
		),
		Placements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "placements_total",
				Help:      "Node placements, by winning search strategy",
			},
			[]string{"strategy"},
		),
		Reconciliations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconciliations_total",
				Help:      "Surface reconciliations, by outcome",
			},
			[]string{"outcome"},
		),
		NodesGenerated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_generated_total",
				Help:      "Nodes created from suggestion trees",
			},
		),
		StoreOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_operations_total",
				Help:      "Board store operations",
			},
			[]string{"operation", "backend", "status"},
		),
		StoreDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_operation_duration_seconds",
				Help:      "Board store operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "backend"},
		),
		CacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Total number of local cache hits",
			},
		),
		CacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Total number of local cache misses",
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Commands,
		c.Queries,
		c.Placements,
		c.Reconciliations,
		c.NodesGenerated,
		c.StoreOperations,
		c.StoreDuration,
		c.CacheHits,
		c.CacheMisses,
	)

	return c
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the collector's metrics
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served request
func (c *Collector) RecordHTTPRequest(method, route, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, status).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordCommand records a dispatched command
func (c *Collector) RecordCommand(command string, err error) {
	if c == nil {
		return
	}
	c.Commands.WithLabelValues(command, statusOf(err)).Inc()
}

// RecordQuery records an answered query
func (c *Collector) RecordQuery(query string, err error) {
	if c == nil {
		return
	}
	c.Queries.WithLabelValues(query, statusOf(err)).Inc()
}

// RecordPlacement records the strategy that resolved a placement
func (c *Collector) RecordPlacement(strategy string) {
	if c == nil {
		return
	}
	c.Placements.WithLabelValues(strategy).Inc()
}

// RecordReconciliation records a reconcile outcome: applied, unchanged or deferred
func (c *Collector) RecordReconciliation(outcome string) {
	if c == nil {
		return
	}
	c.Reconciliations.WithLabelValues(outcome).Inc()
}

// RecordGenerated counts nodes created from suggestions
func (c *Collector) RecordGenerated(n int) {
	if c == nil {
		return
	}
	c.NodesGenerated.Add(float64(n))
}

// RecordStoreOperation records a board store call
func (c *Collector) RecordStoreOperation(operation, backend string, err error, d time.Duration) {
	if c == nil {
		return
	}
	c.StoreOperations.WithLabelValues(operation, backend, statusOf(err)).Inc()
	c.StoreDuration.WithLabelValues(operation, backend).Observe(d.Seconds())
}

// RecordCache records a cache lookup
func (c *Collector) RecordCache(hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.CacheHits.Inc()
	} else {
		c.CacheMisses.Inc()
	}
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
