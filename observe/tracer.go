package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Meta describes a computation for telemetry purposes.
type Meta struct {
	Kind    string // computation kind: assemble, solve
	Name    string // name of the operator or discretization (optional)
	Storage string // storage class of the result, when known (optional)
}

// ID returns kind.name, or just the kind when the name is empty.
func (m Meta) ID() string {
	if m.Name != "" {
		return m.Kind + "." + m.Name
	}
	return m.Kind
}

// SpanName returns the deterministic span name for this computation.
// Format: compute.<kind>.<name> or compute.<kind>
func (m Meta) SpanName() string {
	return "compute." + m.ID()
}

// Tracer wraps OpenTelemetry tracing with computation span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a computation.
	StartSpan(ctx context.Context, meta Meta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta Meta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("comp.id", meta.ID()),
		attribute.String("comp.kind", meta.Kind),
		attribute.Bool("comp.error", false),
	}
	if meta.Name != "" {
		attrs = append(attrs, attribute.String("comp.name", meta.Name))
	}
	if meta.Storage != "" {
		attrs = append(attrs, attribute.String("comp.storage", meta.Storage))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("comp.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NopTracer returns a tracer whose spans record nothing.
func NopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta Meta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
