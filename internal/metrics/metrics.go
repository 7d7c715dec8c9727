// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coursemate"

// Metrics owns a private registry so tests can build as many as they like.
// All recording methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	recommendations *prometheus.CounterVec
	enrichCache     *prometheus.CounterVec
	enrichUpstream  *prometheus.CounterVec
	catalogItems    prometheus.Gauge
	vectorsLoaded   prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
		recommendations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recommendations_total",
				Help:      "Recommendation requests by mode and fallback taken",
			},
			[]string{"mode", "fallback"},
		),
		enrichCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "enrichment_cache_total",
				Help:      "Enrichment cache hits and misses",
			},
			[]string{"result"}, // "hit" / "miss"
		),
		enrichUpstream: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "enrichment_upstream_total",
				Help:      "Metadata provider calls by outcome",
			},
			[]string{"outcome"},
		),
		catalogItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_items",
			Help:      "Items loaded into the catalog",
		}),
		vectorsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_vectors_loaded",
			Help:      "1 when the feature matrix is loaded, 0 in degraded mode",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.recommendations,
		m.enrichCache,
		m.enrichUpstream,
		m.catalogItems,
		m.vectorsLoaded,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Recommendation counts one served recommendation request.
func (m *Metrics) Recommendation(mode, fallback string) {
	if m == nil {
		return
	}
	if fallback == "" {
		fallback = "none"
	}
	m.recommendations.WithLabelValues(mode, fallback).Inc()
}

// CacheResult counts an enrichment cache lookup.
func (m *Metrics) CacheResult(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.enrichCache.WithLabelValues("hit").Inc()
		return
	}
	m.enrichCache.WithLabelValues("miss").Inc()
}

// Upstream counts a provider call outcome: ok, timeout, error or open.
func (m *Metrics) Upstream(outcome string) {
	if m == nil {
		return
	}
	m.enrichUpstream.WithLabelValues(outcome).Inc()
}

// CatalogLoaded records the catalog size and whether vectors are present.
func (m *Metrics) CatalogLoaded(items int, vectors bool) {
	if m == nil {
		return
	}
	m.catalogItems.Set(float64(items))
	if vectors {
		m.vectorsLoaded.Set(1)
	} else {
		m.vectorsLoaded.Set(0)
	}
}
