package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "photoblog_ai"

// AIMetrics covers model calls and regeneration runs. Both binaries register
// it next to their own collectors.
type AIMetrics struct {
	service string

	modelCallsTotal      *prometheus.CounterVec
	modelCallDuration    *prometheus.HistogramVec
	fieldResultsTotal    *prometheus.CounterVec
	regenerationProgress prometheus.Gauge
	regenerationBatches  *prometheus.CounterVec
	regenerationRuns     *prometheus.CounterVec
}

func newAIMetrics(registry *prometheus.Registry, service string) *AIMetrics {
	modelCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "calls_total",
			Help:      "Model calls by mode and outcome.",
		},
		[]string{"service", "mode", "outcome"},
	)
	modelCallDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "call_duration_seconds",
			Help:      "Model call latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		},
		[]string{"service", "mode"},
	)
	fieldResultsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fields",
			Name:      "results_total",
			Help:      "Generated field outcomes per auto-generated field.",
		},
		[]string{"service", "field", "outcome"},
	)
	regenerationProgress := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "regeneration",
			Name:      "progress_ratio",
			Help:      "Progress of the current regeneration run in [0,1].",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	regenerationBatches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regeneration",
			Name:      "batches_total",
			Help:      "Regeneration batches by outcome.",
		},
		[]string{"service", "outcome"},
	)
	regenerationRuns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "regeneration",
			Name:      "runs_total",
			Help:      "Finished regeneration runs by final state.",
		},
		[]string{"service", "state"},
	)

	registry.MustRegister(
		modelCallsTotal,
		modelCallDuration,
		fieldResultsTotal,
		regenerationProgress,
		regenerationBatches,
		regenerationRuns,
	)

	return &AIMetrics{
		service:              service,
		modelCallsTotal:      modelCallsTotal,
		modelCallDuration:    modelCallDuration,
		fieldResultsTotal:    fieldResultsTotal,
		regenerationProgress: regenerationProgress,
		regenerationBatches:  regenerationBatches,
		regenerationRuns:     regenerationRuns,
	}
}

func (m *AIMetrics) ObserveModelCall(mode, outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.modelCallsTotal.WithLabelValues(m.service, mode, outcome).Inc()
	m.modelCallDuration.WithLabelValues(m.service, mode).Observe(duration.Seconds())
}

func (m *AIMetrics) RecordFieldResult(field, outcome string) {
	m.fieldResultsTotal.WithLabelValues(m.service, field, outcome).Inc()
}

func (m *AIMetrics) SetRegenerationProgress(progress float64) {
	m.regenerationProgress.Set(progress)
}

func (m *AIMetrics) RecordRegenerationBatch(err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.regenerationBatches.WithLabelValues(m.service, outcome).Inc()
}

func (m *AIMetrics) RecordRegenerationRun(state string) {
	m.regenerationRuns.WithLabelValues(m.service, state).Inc()
}
