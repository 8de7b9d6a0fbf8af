package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// useTestTracer installs an in-memory tracer provider as the global one for
// the duration of the test.
func useTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

func TestCorrelationID_EmptyWithoutSpan(t *testing.T) {
	t.Parallel()

	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID = %q, want empty", got)
	}
}

func TestStartSpan_RecordsAndCorrelates(t *testing.T) {
	exp := useTestTracer(t)

	ctx, span := StartSpan(context.Background(), "assistant.ask")
	cid := CorrelationID(ctx)
	span.End()

	if len(cid) != 32 {
		t.Fatalf("correlation ID length = %d, want 32", len(cid))
	}
	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name != "assistant.ask" {
		t.Errorf("span name = %q", spans[0].Name)
	}
	if spans[0].SpanContext.TraceID().String() != cid {
		t.Errorf("span trace ID %s != correlation ID %s", spans[0].SpanContext.TraceID(), cid)
	}
}

func TestCorrelationID_DistinctPerTrace(t *testing.T) {
	useTestTracer(t)

	ctx1, s1 := StartSpan(context.Background(), "a")
	ctx2, s2 := StartSpan(context.Background(), "b")
	defer s1.End()
	defer s2.End()

	if CorrelationID(ctx1) == CorrelationID(ctx2) {
		t.Error("independent root spans share a trace ID")
	}
}

func TestLogger_AddsTraceFields(t *testing.T) {
	useTestTracer(t)

	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(orig) })

	ctx, span := StartSpan(context.Background(), "narration.synthesize")
	defer span.End()
	Logger(ctx).Info("synthesizing")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["trace_id"] != CorrelationID(ctx) {
		t.Errorf("trace_id = %v, want %s", line["trace_id"], CorrelationID(ctx))
	}
	if id, _ := line["span_id"].(string); len(id) != 16 {
		t.Errorf("span_id = %v, want 16 hex chars", line["span_id"])
	}
}

func TestLogger_NoSpanIsDefault(t *testing.T) {
	t.Parallel()

	if Logger(context.Background()) != slog.Default() {
		t.Error("Logger without span should return slog.Default()")
	}
}
