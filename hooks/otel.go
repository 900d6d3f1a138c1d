package hooks

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Skryldev/media-ingest/core"
)

// MeterName is the instrumentation scope used when no meter is supplied.
const MeterName = "github.com/Skryldev/media-ingest"

// OtelMetrics records pipeline observations through the OpenTelemetry
// metric API.  Exporting is the caller's concern.
type OtelMetrics struct {
	stepDuration   metric.Float64Histogram
	bytesProcessed metric.Int64Counter
	decodeAttempts metric.Int64Counter
	errors         metric.Int64Counter
}

// NewOtelMetrics creates the instruments on meter (the global provider's
// meter when nil).
func NewOtelMetrics(meter metric.Meter) (*OtelMetrics, error) {
	if meter == nil {
		meter = otel.Meter(MeterName)
	}

	stepDuration, err := meter.Float64Histogram(
		"mediaingest.step.duration",
		metric.WithDescription("Duration of each ingestion phase and normalization step"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	bytesProcessed, err := meter.Int64Counter(
		"mediaingest.input.bytes",
		metric.WithDescription("Raw bytes of successfully ingested uploads"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}
	decodeAttempts, err := meter.Int64Counter(
		"mediaingest.decode.attempts",
		metric.WithDescription("Decode strategy attempts by outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}
	errs, err := meter.Int64Counter(
		"mediaingest.errors",
		metric.WithDescription("Failed phases by error category"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &OtelMetrics{
		stepDuration:   stepDuration,
		bytesProcessed: bytesProcessed,
		decodeAttempts: decodeAttempts,
		errors:         errs,
	}, nil
}

func (m *OtelMetrics) RecordProcessingTime(stepName string, d interface{ Seconds() float64 }) {
	m.stepDuration.Record(context.Background(), d.Seconds(),
		metric.WithAttributes(attribute.String("step", stepName)))
}

func (m *OtelMetrics) RecordThroughput(bytes int64) {
	m.bytesProcessed.Add(context.Background(), bytes)
}

func (m *OtelMetrics) RecordDecodeAttempt(strategy string, ok bool) {
	m.decodeAttempts.Add(context.Background(), 1, metric.WithAttributeSet(attribute.NewSet(
		attribute.String("strategy", strategy),
		attribute.Bool("ok", ok),
	)))
}

func (m *OtelMetrics) RecordError(stepName string, category string) {
	m.errors.Add(context.Background(), 1, metric.WithAttributeSet(attribute.NewSet(
		attribute.String("step", stepName),
		attribute.String("category", category),
	)))
}

var _ core.MetricsCollector = (*OtelMetrics)(nil)
