// Package metrics holds the Prometheus collectors of the service.
//
// A *Metrics may be nil; every recording method is then a no-op so components
// and tests need not wire a registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vidtags"

// Metrics owns a private registry and the collectors registered on it.
type Metrics struct {
	registry *prometheus.Registry

	cacheLookups   *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec

	operations *prometheus.CounterVec
	opDuration *prometheus.HistogramVec
	cleaned    *prometheus.CounterVec

	eventsPublished *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
	handlerFailures *prometheus.CounterVec

	metadataFetches *prometheus.CounterVec
}

// New creates the collectors and registers them with Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by scope and result (hit|miss).",
		}, []string{"scope", "result"}),
		cacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Cache entries evicted by scope.",
		}, []string{"scope"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Orchestrator operations by name and outcome.",
		}, []string{"op", "outcome"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Orchestrator operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		cleaned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_rows_total",
			Help:      "Rows garbage-collected by kind (user_tag|tag|video).",
		}, []string{"kind"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Events accepted by the dispatcher.",
		}, []string{"type"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Events dropped because the buffer was full or the dispatcher closed.",
		}, []string{"type"}),
		handlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "handler_failures_total",
			Help:      "Handler errors and panics.",
		}, []string{"type"}),
		metadataFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "fetches_total",
			Help:      "Metadata provider calls by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cacheLookups, m.cacheEvictions,
		m.operations, m.opDuration, m.cleaned,
		m.eventsPublished, m.eventsDropped, m.handlerFailures,
		m.metadataFetches,
	)
	return m
}

// Registry exposes the registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CacheHit(scope string) {
	if m != nil {
		m.cacheLookups.WithLabelValues(scope, "hit").Inc()
	}
}

func (m *Metrics) CacheMiss(scope string) {
	if m != nil {
		m.cacheLookups.WithLabelValues(scope, "miss").Inc()
	}
}

func (m *Metrics) CacheEvicted(scope string, n int) {
	if m != nil && n > 0 {
		m.cacheEvictions.WithLabelValues(scope).Add(float64(n))
	}
}

// Operation records one orchestrator call.
func (m *Metrics) Operation(op string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.opDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// Cleaned counts garbage-collected rows.
func (m *Metrics) Cleaned(userTags, tags, videos int) {
	if m == nil {
		return
	}
	m.cleaned.WithLabelValues("user_tag").Add(float64(userTags))
	m.cleaned.WithLabelValues("tag").Add(float64(tags))
	m.cleaned.WithLabelValues("video").Add(float64(videos))
}

func (m *Metrics) EventPublished(typ string) {
	if m != nil {
		m.eventsPublished.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) EventDropped(typ string) {
	if m != nil {
		m.eventsDropped.WithLabelValues(typ).Inc()
	}
}

func (m *Metrics) HandlerFailed(typ string) {
	if m != nil {
		m.handlerFailures.WithLabelValues(typ).Inc()
	}
}

// MetadataFetch records a provider call outcome (ok|invalid|error|rejected).
func (m *Metrics) MetadataFetch(outcome string) {
	if m != nil {
		m.metadataFetches.WithLabelValues(outcome).Inc()
	}
}
