package hooks

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Skryldev/media-ingest/core"
)

// PrometheusMetrics exports pipeline observations as Prometheus collectors.
type PrometheusMetrics struct {
	stepDuration   *prometheus.HistogramVec
	bytesProcessed prometheus.Counter
	decodeAttempts *prometheus.CounterVec
	errors         *prometheus.CounterVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg
// (prometheus.DefaultRegisterer when nil).
func NewPrometheusMetrics(reg prometheus.Registerer) (*PrometheusMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &PrometheusMetrics{
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mediaingest_step_duration_seconds",
				Help:    "Duration of each ingestion phase and normalization step in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"step"},
		),
		bytesProcessed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mediaingest_input_bytes_total",
				Help: "Total raw bytes of successfully ingested uploads",
			},
		),
		decodeAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediaingest_decode_attempts_total",
				Help: "Decode strategy attempts by outcome",
			},
			[]string{"strategy", "status"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediaingest_errors_total",
				Help: "Failed phases by error category",
			},
			[]string{"step", "category"},
		),
	}
	for _, c := range []prometheus.Collector{m.stepDuration, m.bytesProcessed, m.decodeAttempts, m.errors} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PrometheusMetrics) RecordProcessingTime(stepName string, d interface{ Seconds() float64 }) {
	m.stepDuration.WithLabelValues(stepName).Observe(d.Seconds())
}

func (m *PrometheusMetrics) RecordThroughput(bytes int64) {
	m.bytesProcessed.Add(float64(bytes))
}

func (m *PrometheusMetrics) RecordDecodeAttempt(strategy string, ok bool) {
	status := "failed"
	if ok {
		status = "ok"
	}
	m.decodeAttempts.WithLabelValues(strategy, status).Inc()
}

func (m *PrometheusMetrics) RecordError(stepName string, category string) {
	m.errors.WithLabelValues(stepName, category).Inc()
}

var _ core.MetricsCollector = (*PrometheusMetrics)(nil)
