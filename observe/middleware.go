package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// ExecuteFunc is the signature of an observed computation.
type ExecuteFunc func(ctx context.Context, meta Meta) (any, error)

// Middleware wraps computations with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe ExecuteFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from wrapped function are recorded and propagated unchanged.
//   - Ownership: Results are passed through without modification.
type Middleware struct {
	tracer   Tracer
	metrics  Metrics
	logger   Logger
	classify func(result any) string
}

// NewMiddleware creates a new Middleware. Nil components are replaced by
// their no-op counterparts.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// WithClassifier returns a copy of m that fills Meta.Storage from the result
// of each successful computation whose meta leaves it empty. fn returns ""
// for results it cannot classify.
func (m *Middleware) WithClassifier(fn func(result any) string) *Middleware {
	c := *m
	c.classify = fn
	return &c
}

// Metrics returns the metrics sink used by m.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// Wrap wraps fn with tracing, metrics and logging.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, meta Meta) (any, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)

		start := time.Now()
		result, err := fn(ctx, meta)
		duration := time.Since(start)

		if err == nil && meta.Storage == "" && m.classify != nil {
			if storage := m.classify(result); storage != "" {
				meta.Storage = storage
				span.SetAttributes(attribute.String("comp.storage", storage))
			}
		}

		m.tracer.EndSpan(span, err)
		m.metrics.RecordComputation(ctx, meta, duration, err)

		log := m.logger.WithComputation(meta)
		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
		}

		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			log.Error(ctx, "computation failed", fields...)
		} else {
			log.Debug(ctx, "computation completed", fields...)
		}

		return result, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
