package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers the ingestion worker.
type WorkerMetrics struct {
	registry *prometheus.Registry

	batchTotal    *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	batchInFlight prometheus.Gauge
	itemsIngested prometheus.Counter
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	batchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "oncare",
			Subsystem:   "ingest",
			Name:        "batch_total",
			Help:        "Total processed ingest batches by status.",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	batchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "oncare",
			Subsystem:   "ingest",
			Name:        "batch_duration_seconds",
			Help:        "Ingest batch processing duration in seconds by status.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	batchInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "oncare",
			Subsystem:   "ingest",
			Name:        "batch_in_flight",
			Help:        "Number of ingest batches currently being processed.",
			ConstLabels: constLabels,
		},
	)
	itemsIngested := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "oncare",
			Subsystem:   "ingest",
			Name:        "items_total",
			Help:        "Total content items chunked, embedded and stored.",
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(batchTotal, batchDuration, batchInFlight, itemsIngested)

	return &WorkerMetrics{
		registry:      registry,
		batchTotal:    batchTotal,
		batchDuration: batchDuration,
		batchInFlight: batchInFlight,
		itemsIngested: itemsIngested,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartBatch() {
	m.batchInFlight.Inc()
}

func (m *WorkerMetrics) FinishBatch(duration time.Duration, items int, err error) {
	m.batchInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.batchTotal.WithLabelValues(status).Inc()
	m.batchDuration.WithLabelValues(status).Observe(duration.Seconds())
	if err == nil && items > 0 {
		m.itemsIngested.Add(float64(items))
	}
}
