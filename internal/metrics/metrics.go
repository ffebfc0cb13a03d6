// Package metrics exposes lease lifecycle counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "leasekeeper"

// Registry owns the Prometheus registry the service exposes on /metrics.
type Registry struct {
	registry *prometheus.Registry
}

// NewRegistry creates a registry with Go runtime and process collectors.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return &Registry{registry: reg}
}

// MustRegister registers collectors and panics on duplicates.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.registry.MustRegister(cs...)
}

// Handler serves the registry in Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Gatherer returns the underlying prometheus.Gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// LockMetrics implements leaselock.Observer with counters.
type LockMetrics struct {
	acquired       *prometheus.CounterVec
	contention     prometheus.Counter
	released       prometheus.Counter
	releaseFailed  prometheus.Counter
	saveRejected   prometheus.Counter
	retryExhausted prometheus.Counter
}

// NewLockMetrics creates the lock counters and registers them with reg.
func NewLockMetrics(reg *Registry) *LockMetrics {
	m := &LockMetrics{
		acquired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_acquired_total",
			Help:      "Leases won, by acquisition path.",
		}, []string{"path"}),
		contention: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_contention_total",
			Help:      "Acquisition passes that found a live lease.",
		}),
		released: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_released_total",
			Help:      "Leases released cleanly.",
		}),
		releaseFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_release_failed_total",
			Help:      "Releases that found the lease expired or taken over.",
		}),
		saveRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "save_rejected_total",
			Help:      "Read-modify-write results discarded because the lease was lost.",
		}),
		retryExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_exhausted_total",
			Help:      "Acquisitions abandoned after the retry budget ran out.",
		}),
	}
	reg.MustRegister(
		m.acquired,
		m.contention,
		m.released,
		m.releaseFailed,
		m.saveRejected,
		m.retryExhausted,
	)
	return m
}

func (m *LockMetrics) LeaseAcquired(_ string, stolen bool) {
	path := "fast"
	if stolen {
		path = "steal"
	}
	m.acquired.WithLabelValues(path).Inc()
}

func (m *LockMetrics) LeaseContended(string) { m.contention.Inc() }
func (m *LockMetrics) LeaseReleased(string)  { m.released.Inc() }
func (m *LockMetrics) ReleaseFailed(string)  { m.releaseFailed.Inc() }
func (m *LockMetrics) SaveRejected(string)   { m.saveRejected.Inc() }
func (m *LockMetrics) RetryExhausted(string) { m.retryExhausted.Inc() }

// HTTPMetrics counts and times API requests.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTPMetrics creates the request collectors and registers them with reg.
func NewHTTPMetrics(reg *Registry) *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(m.requests, m.duration)
	return m
}

// Observe records one finished request.
func (m *HTTPMetrics) Observe(method, route, status string, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, status).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
