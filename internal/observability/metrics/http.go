package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPServerMetrics covers the chat API: HTTP traffic, chat outcomes and
// the retrieval pipeline. It implements ports.RetrievalMetrics.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	chatRequestsTotal *prometheus.CounterVec
	chatSources       *prometheus.HistogramVec
	chatDuration      *prometheus.HistogramVec

	cacheLookupsTotal *prometheus.CounterVec
	branchTotal       *prometheus.CounterVec
	retrievalDuration prometheus.Histogram
	retrievalDocs     *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "oncare",
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Total HTTP requests processed.",
			ConstLabels: constLabels,
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "oncare",
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "oncare",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: constLabels,
		},
	)
	chatRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "oncare",
			Subsystem:   "chat",
			Name:        "requests_total",
			Help:        "Total finished chat requests by category and answer mode.",
			ConstLabels: constLabels,
		},
		[]string{"category", "mode"},
	)
	chatSources := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "oncare",
			Subsystem:   "chat",
			Name:        "cited_sources",
			Help:        "Distribution of cited sources per chat answer.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8},
			ConstLabels: constLabels,
		},
		[]string{"category"},
	)
	chatDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "oncare",
			Subsystem:   "chat",
			Name:        "stream_duration_seconds",
			Help:        "Full chat stream duration in seconds.",
			Buckets:     []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
			ConstLabels: constLabels,
		},
		[]string{"category"},
	)
	cacheLookupsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "oncare",
			Subsystem:   "retrieval",
			Name:        "cache_lookups_total",
			Help:        "Retrieval cache lookups by result.",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)
	branchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "oncare",
			Subsystem:   "retrieval",
			Name:        "branch_total",
			Help:        "Retrieval branch executions by branch and status.",
			ConstLabels: constLabels,
		},
		[]string{"branch", "status"},
	)
	retrievalDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "oncare",
			Subsystem:   "retrieval",
			Name:        "duration_seconds",
			Help:        "Hybrid retrieval duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
	)
	retrievalDocs := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "oncare",
			Subsystem:   "retrieval",
			Name:        "documents",
			Help:        "Documents per retrieval before and after truncation.",
			Buckets:     []float64{0, 1, 2, 3, 5, 8, 13, 21},
			ConstLabels: constLabels,
		},
		[]string{"stage"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		chatRequestsTotal,
		chatSources,
		chatDuration,
		cacheLookupsTotal,
		branchTotal,
		retrievalDuration,
		retrievalDocs,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		chatRequestsTotal: chatRequestsTotal,
		chatSources:       chatSources,
		chatDuration:      chatDuration,
		cacheLookupsTotal: cacheLookupsTotal,
		branchTotal:       branchTotal,
		retrievalDuration: retrievalDuration,
		retrievalDocs:     retrievalDocs,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
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

// normalizePath keeps label cardinality bounded to the known routes.
func normalizePath(path string) string {
	switch path {
	case "/", "/chat", "/healthz", "/metrics":
		return path
	default:
		return "other"
	}
}

// RecordChatRequest counts a finished chat by category and answer mode
// (grounded, fallback or blocked).
func (m *HTTPServerMetrics) RecordChatRequest(category, mode string) {
	if mode == "" {
		mode = "unknown"
	}
	m.chatRequestsTotal.WithLabelValues(category, mode).Inc()
}

func (m *HTTPServerMetrics) RecordChatStream(category string, sources int, duration time.Duration) {
	m.chatSources.WithLabelValues(category).Observe(float64(sources))
	m.chatDuration.WithLabelValues(category).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) ObserveCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookupsTotal.WithLabelValues(result).Inc()
}

func (m *HTTPServerMetrics) ObserveBranch(branch string, failed bool) {
	status := "ok"
	if failed {
		status = "failed"
	}
	m.branchTotal.WithLabelValues(branch, status).Inc()
}

func (m *HTTPServerMetrics) ObserveRetrieval(merged, returned int, seconds float64) {
	m.retrievalDocs.WithLabelValues("merged").Observe(float64(merged))
	m.retrievalDocs.WithLabelValues("returned").Observe(float64(returned))
	m.retrievalDuration.Observe(seconds)
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// Flush must pass through so chat streaming keeps working behind the
// middleware.
func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
