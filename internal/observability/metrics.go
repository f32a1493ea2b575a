// Package observability exposes the Prometheus metrics of the NOTAM service.
package observability

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "co_notam"

// Metrics holds the counters, histograms and gauges of the refresh loop and the HTTP API.
type Metrics struct {
	registry *prometheus.Registry

	// Refresh loop
	RefreshTotal          *prometheus.CounterVec // labels: outcome={success,partial,error}
	RefreshDuration       prometheus.Histogram
	SourceFetches         *prometheus.CounterVec // labels: source, outcome={success,error}
	RecordsRejected       prometheus.Counter
	CategorizationFailure prometheus.Counter
	NotamsLoaded          prometheus.Gauge
	NotamsByCategory      *prometheus.GaugeVec // labels: category
	LastRefresh           prometheus.Gauge

	// HTTP API
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
}

// NewMetrics creates all metrics on a private registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_total",
			Help:      "NOTAM refresh cycles by outcome.",
		}, []string{"outcome"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete fetch-categorize-store cycle.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      "NOTAM source fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		RecordsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_rejected_total",
			Help:      "Raw records that could not be normalized into NOTAMs.",
		}),
		CategorizationFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "categorization_failures_total",
			Help:      "NOTAMs left uncategorized because a categorizer failed.",
		}),
		NotamsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notams_loaded",
			Help:      "NOTAMs in the current collection.",
		}),
		NotamsByCategory: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notams_by_category",
			Help:      "NOTAMs in the current collection by primary category.",
		}, []string{"category"}),
		LastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_refresh_timestamp_seconds",
			Help:      "Unix time of the last successful refresh.",
		}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		requestInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RefreshTotal,
		m.RefreshDuration,
		m.SourceFetches,
		m.RecordsRejected,
		m.CategorizationFailure,
		m.NotamsLoaded,
		m.NotamsByCategory,
		m.LastRefresh,
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
	)

	return m
}

// Registry returns the registry backing these metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRefresh observes one refresh cycle
func (m *Metrics) RecordRefresh(outcome string, duration time.Duration, at time.Time) {
	m.RefreshTotal.WithLabelValues(outcome).Inc()
	m.RefreshDuration.Observe(duration.Seconds())
	if outcome != "error" {
		m.LastRefresh.Set(float64(at.Unix()))
	}
}

// RecordSourceFetch counts one fetch of a named source
func (m *Metrics) RecordSourceFetch(source string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.SourceFetches.WithLabelValues(source, outcome).Inc()
}

// SetCollection publishes the size and category breakdown of the live collection.
// The empty category key is reported as "uncategorized".
func (m *Metrics) SetCollection(total int, byCategory map[string]int) {
	m.NotamsLoaded.Set(float64(total))
	m.NotamsByCategory.Reset()
	for category, count := range byCategory {
		if category == "" {
			category = "uncategorized"
		}
		m.NotamsByCategory.WithLabelValues(category).Set(float64(count))
	}
}

// Middleware records request counts and latency
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses path parameters to keep label cardinality bounded
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/notams/"):
		return "/api/v1/notams/{id}"
	case strings.HasPrefix(path, "/api/v1/airports/"):
		return "/api/v1/airports/{icao}"
	case strings.HasPrefix(path, "/api/v1/briefing/"):
		return "/api/v1/briefing/{icao}"
	case strings.HasPrefix(path, "/api/"), path == "/ws", path == "/metrics", path == "/health":
		return path
	default:
		return "static"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack keeps websocket upgrades working behind the middleware
func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
