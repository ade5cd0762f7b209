package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	*AIMetrics

	registry *prometheus.Registry

	syncTotal    *prometheus.CounterVec
	syncDuration *prometheus.HistogramVec
	syncInFlight prometheus.Gauge
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	syncTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "photo_sync_total",
			Help:      "Uploaded photos synced by status.",
		},
		[]string{"service", "status"},
	)
	syncDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "photo_sync_duration_seconds",
			Help:      "Uploaded photo sync duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	syncInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "photo_sync_in_flight",
			Help:      "Number of in-flight uploaded photo syncs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(syncTotal, syncDuration, syncInFlight)

	return &WorkerMetrics{
		AIMetrics:    newAIMetrics(registry, service),
		registry:     registry,
		syncTotal:    syncTotal,
		syncDuration: syncDuration,
		syncInFlight: syncInFlight,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartSync() {
	m.syncInFlight.Inc()
}

func (m *WorkerMetrics) FinishSync(duration time.Duration, err error) {
	m.syncInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.syncTotal.WithLabelValues(m.service, status).Inc()
	m.syncDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}
