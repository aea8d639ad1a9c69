// Package metrics exposes Prometheus instrumentation for the media service.
//
// Collectors live on a private registry so tests and multiple servers in one
// process do not collide on the global default registerer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jukebox"

// Metrics holds every collector the service reports.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	streamResponses *prometheus.CounterVec
	streamBytes     prometheus.Counter
	ingestJobs      *prometheus.CounterVec
	ingestBytes     prometheus.Counter
	ingestDuration  prometheus.Histogram
}

// New registers all collectors, plus the Go runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Time to serve HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		streamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "responses_total",
			Help:      "Track playback responses by status code.",
		}, []string{"status"}),
		streamBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "bytes_total",
			Help:      "Track bytes written to clients.",
		}),
		ingestJobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "jobs_total",
			Help:      "Finished ingest jobs by outcome.",
		}, []string{"outcome"}),
		ingestBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "bytes_total",
			Help:      "Bytes published to the music directory by ingest jobs.",
		}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Wall time of ingest jobs from submission to terminal state.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.streamResponses,
		m.streamBytes,
		m.ingestJobs,
		m.ingestBytes,
		m.ingestDuration,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one HTTP request. route should be the matched pattern, not the raw path.
func (m *Metrics) ObserveRequest(method, route string, status int, took time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

// ObserveStream implements [streaming.Observer].
func (m *Metrics) ObserveStream(status int, written int64) {
	m.streamResponses.WithLabelValues(strconv.Itoa(status)).Inc()
	m.streamBytes.Add(float64(written))
}

// ObserveIngest implements [tasks.Recorder].
func (m *Metrics) ObserveIngest(outcome string, written int64, took time.Duration) {
	m.ingestJobs.WithLabelValues(outcome).Inc()
	m.ingestBytes.Add(float64(written))
	m.ingestDuration.Observe(took.Seconds())
}
