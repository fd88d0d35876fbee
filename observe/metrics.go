package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records computation and cache lookup metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordComputation records one computation with its duration and error status.
	RecordComputation(ctx context.Context, meta Meta, duration time.Duration, err error)

	// RecordLookup records a cache lookup for a computation.
	RecordLookup(ctx context.Context, meta Meta, hit bool)
}

type metricsImpl struct {
	meter        metric.Meter
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	hitCount     metric.Int64Counter
	missCount    metric.Int64Counter
}

// NewMetrics creates Metrics backed by meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	totalCount, err := meter.Int64Counter(
		"compute.total",
		metric.WithDescription("Total number of computations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"compute.errors",
		metric.WithDescription("Total number of failed computations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"compute.duration_ms",
		metric.WithDescription("Computation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	hitCount, err := meter.Int64Counter(
		"cache.hits",
		metric.WithDescription("Cache lookups answered from a stored result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	missCount, err := meter.Int64Counter(
		"cache.misses",
		metric.WithDescription("Cache lookups that required a computation"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:        meter,
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		hitCount:     hitCount,
		missCount:    missCount,
	}, nil
}

func attrsFor(meta Meta) metric.MeasurementOption {
	attrs := []attribute.KeyValue{
		attribute.String("comp.id", meta.ID()),
		attribute.String("comp.kind", meta.Kind),
	}
	if meta.Storage != "" {
		attrs = append(attrs, attribute.String("comp.storage", meta.Storage))
	}
	return metric.WithAttributes(attrs...)
}

func (m *metricsImpl) RecordComputation(ctx context.Context, meta Meta, duration time.Duration, err error) {
	opt := attrsFor(meta)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordLookup(ctx context.Context, meta Meta, hit bool) {
	if hit {
		m.hitCount.Add(ctx, 1, attrsFor(meta))
		return
	}
	m.missCount.Add(ctx, 1, attrsFor(meta))
}

// NopMetrics returns Metrics that records nothing.
func NopMetrics() Metrics { return noopMetrics{} }

type noopMetrics struct{}

func (noopMetrics) RecordComputation(context.Context, Meta, time.Duration, error) {}
func (noopMetrics) RecordLookup(context.Context, Meta, bool)                      {}
