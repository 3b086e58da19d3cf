// Package observability exposes server metrics in Prometheus format.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Amogh-2404/Tez/core/cache"
	"github.com/Amogh-2404/Tez/core/pools"
)

const namespace = "tez"

// Metrics holds the server's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	accepted       prometheus.Counter
	rejected       prometheus.Counter
	activeSessions prometheus.Gauge
}

// NewMetrics creates the collectors and registers them, together with the
// Go runtime and process collectors, in a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Requests answered, by dispatch kind and status code",
	}, []string{"kind", "code"})

	m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time from parsed request to computed response",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"kind"})

	m.accepted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "conn",
		Name:      "accepted_total",
		Help:      "Connections accepted by the listener",
	})

	m.rejected = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "conn",
		Name:      "rejected_total",
		Help:      "Accepted connections closed because the worker pool was shut down",
	})

	m.activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "conn",
		Name:      "active_sessions",
		Help:      "Connections currently owned by a worker",
	})

	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.accepted,
		m.rejected,
		m.activeSessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one answered request.
func (m *Metrics) ObserveRequest(kind string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(kind, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ConnAccepted counts an accepted connection.
func (m *Metrics) ConnAccepted() {
	if m == nil {
		return
	}
	m.accepted.Inc()
}

// ConnRejected counts a connection closed without a session.
func (m *Metrics) ConnRejected() {
	if m == nil {
		return
	}
	m.rejected.Inc()
}

// SessionStarted and SessionFinished track the active session gauge.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) SessionFinished() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

// RegisterCache exports the counters of a cache under the label cache=name.
func (m *Metrics) RegisterCache(name string, stats func() cache.Stats) {
	if m == nil {
		return
	}

	labels := prometheus.Labels{"cache": name}
	counter := func(metric, help string, get func(cache.Stats) uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        metric,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(get(stats())) })
	}

	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        "entries",
			Help:        "Entries currently held, expired ones included until touched",
			ConstLabels: labels,
		}, func() float64 { return float64(stats().Size) }),
		counter("hits_total", "Lookups answered from the cache", func(s cache.Stats) uint64 { return s.Hits }),
		counter("misses_total", "Lookups not answered from the cache", func(s cache.Stats) uint64 { return s.Misses }),
		counter("expirations_total", "Entries dropped on lookup after their TTL", func(s cache.Stats) uint64 { return s.Expirations }),
		counter("evictions_total", "Entries evicted to make room", func(s cache.Stats) uint64 { return s.Evictions }),
	)
}

// RegisterPool exports worker pool statistics.
func (m *Metrics) RegisterPool(stats func() pools.WorkerPoolStats) {
	if m == nil {
		return
	}

	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "workers",
			Help:      "Worker goroutines in the pool",
		}, func() float64 { return float64(stats().NumWorkers) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "queued_tasks",
			Help:      "Sessions waiting for a free worker",
		}, func() float64 { return float64(stats().TasksQueued) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "completed_tasks_total",
			Help:      "Sessions run to completion",
		}, func() float64 { return float64(stats().TasksCompleted) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "panicked_tasks_total",
			Help:      "Sessions that ended in a recovered panic",
		}, func() float64 { return float64(stats().TasksPanicked) }),
	)
}
