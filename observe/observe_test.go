package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"default", func(*Config) {}, nil},
		{"missing service", func(c *Config) { c.ServiceName = "" }, ErrMissingServiceName},
		{"bad tracing exporter", func(c *Config) {
			c.Tracing = TracingConfig{Enabled: true, Exporter: "jaeger", SamplePct: 1}
		}, ErrInvalidTracingExporter},
		{"bad sample pct", func(c *Config) {
			c.Tracing = TracingConfig{Enabled: true, Exporter: "stdout", SamplePct: 1.5}
		}, ErrInvalidSamplePct},
		{"bad metrics exporter", func(c *Config) {
			c.Metrics = MetricsConfig{Enabled: true, Exporter: "statsd"}
		}, ErrInvalidMetricsExporter},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, ErrInvalidLogLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNewObserver_DefaultConfig(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Output = &buf

	obs, err := NewObserver(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewObserver: %v", err)
	}
	defer func() { _ = obs.Shutdown(context.Background()) }()

	if obs.Tracer() == nil || obs.Meter() == nil || obs.Logger() == nil {
		t.Fatal("expected non-nil telemetry primitives")
	}

	obs.Logger().Info(context.Background(), "hello", F("n", 3))
	if !strings.Contains(buf.String(), `"msg":"hello"`) {
		t.Errorf("expected log line in output, got %q", buf.String())
	}
}

func TestNewObserver_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServiceName = ""
	if _, err := NewObserver(context.Background(), cfg); !errors.Is(err, ErrMissingServiceName) {
		t.Fatalf("expected ErrMissingServiceName, got %v", err)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("warn", &buf)

	log.Debug(context.Background(), "debug")
	log.Info(context.Background(), "info")
	log.Warn(context.Background(), "warn")
	log.Error(context.Background(), "error")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
}

func TestLogger_WithComputation(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter("debug", &buf).WithComputation(Meta{Kind: "solve", Name: "heat"})

	log.Info(context.Background(), "solving", F("err", errors.New("boom")))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if entry["comp.kind"] != "solve" || entry["comp.name"] != "heat" || entry["comp.id"] != "solve.heat" {
		t.Errorf("unexpected computation fields: %v", entry)
	}
	if entry["err"] != "boom" {
		t.Errorf("expected error rendered as string, got %v", entry["err"])
	}
	if entry["level"] != "info" {
		t.Errorf("expected level info, got %v", entry["level"])
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, s := range []string{"debug", "info", "warn", "error"} {
		if got := ParseLogLevel(s).String(); got != s {
			t.Errorf("ParseLogLevel(%q).String() = %q", s, got)
		}
	}
	if ParseLogLevel("bogus") != LevelInfo {
		t.Error("unknown level should default to info")
	}
}

func TestMeta_SpanName(t *testing.T) {
	if got := (Meta{Kind: "assemble", Name: "laplace"}).SpanName(); got != "compute.assemble.laplace" {
		t.Errorf("unexpected span name %q", got)
	}
	if got := (Meta{Kind: "solve"}).SpanName(); got != "compute.solve" {
		t.Errorf("unexpected span name %q", got)
	}
}

func TestTracer_EndSpanRecordsError(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	tr := NewTracer(tp.Tracer("test"))

	_, span := tr.StartSpan(context.Background(), Meta{Kind: "solve", Name: "heat", Storage: "sparse"})
	tr.EndSpan(span, errors.New("singular"))

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status().Code)
	}
	found := false
	for _, kv := range spans[0].Attributes() {
		if kv.Key == attribute.Key("comp.error") && kv.Value.AsBool() {
			found = true
		}
	}
	if !found {
		t.Error("expected comp.error=true attribute")
	}
}

func TestMiddleware_RecordsTelemetry(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	mw := NewMiddleware(NewTracer(tp.Tracer("test")), metrics, nil)
	wantErr := errors.New("boom")
	fn := mw.Wrap(func(ctx context.Context, meta Meta) (any, error) {
		if meta.Name == "bad" {
			return nil, wantErr
		}
		return 42, nil
	})

	got, err := fn(context.Background(), Meta{Kind: "assemble", Name: "good"})
	if err != nil || got != 42 {
		t.Fatalf("unexpected result %v, %v", got, err)
	}
	if _, err := fn(context.Background(), Meta{Kind: "assemble", Name: "bad"}); !errors.Is(err, wantErr) {
		t.Fatalf("expected error to propagate unchanged, got %v", err)
	}
	metrics.RecordLookup(context.Background(), Meta{Kind: "assemble"}, true)

	if n := len(rec.Ended()); n != 2 {
		t.Fatalf("expected 2 spans, got %d", n)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	for _, name := range []string{"compute.total", "compute.errors", "compute.duration_ms", "cache.hits"} {
		if findMetric(rm, name) == nil {
			t.Errorf("metric %s not found", name)
		}
	}
	if total := sumInt64(findMetric(rm, "compute.total")); total != 2 {
		t.Errorf("expected compute.total 2, got %d", total)
	}
}

func TestMiddleware_ClassifierSetsStorage(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	base := NewMiddleware(NewTracer(tp.Tracer("test")), metrics, nil)
	mw := base.WithClassifier(func(any) string { return "dense" })
	fn := mw.Wrap(func(context.Context, Meta) (any, error) { return 1, nil })
	if _, err := fn(context.Background(), Meta{Kind: "assemble", Name: "k"}); err != nil {
		t.Fatal(err)
	}
	if base.classify != nil {
		t.Error("WithClassifier modified its receiver")
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if !hasAttr(spans[0].Attributes(), "comp.storage", "dense") {
		t.Errorf("span attributes %v lack comp.storage=dense", spans[0].Attributes())
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	sum, ok := findMetric(rm, "compute.total").Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 {
		t.Fatalf("unexpected compute.total data %+v", sum)
	}
	if v, ok := sum.DataPoints[0].Attributes.Value("comp.storage"); !ok || v.AsString() != "dense" {
		t.Errorf("compute.total comp.storage = %v, %v", v, ok)
	}
}

func hasAttr(attrs []attribute.KeyValue, key, value string) bool {
	for _, kv := range attrs {
		if kv.Key == attribute.Key(key) && kv.Value.AsString() == value {
			return true
		}
	}
	return false
}

func TestNopMetrics(t *testing.T) {
	m := NopMetrics()
	m.RecordComputation(context.Background(), Meta{Kind: "solve"}, time.Millisecond, nil)
	m.RecordLookup(context.Background(), Meta{Kind: "solve"}, false)
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumInt64(m *metricdata.Metrics) int64 {
	if m == nil {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return 0
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}
