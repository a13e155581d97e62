package httpapi

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestHandlerSpanWithoutParentIsInert(t *testing.T) {
	t.Parallel()

	ctx, span := handlerSpan(context.Background(), "Healthz")
	defer span.End()

	if span.SpanContext().IsValid() {
		t.Fatalf("expected inert span without a parent")
	}
	traceID, spanID := traceIDs(ctx)
	if traceID != "" || spanID != "" {
		t.Fatalf("unexpected trace ids: got=%q/%q want empty", traceID, spanID)
	}
}

func TestTraceIDsFromRemoteParent(t *testing.T) {
	t.Parallel()

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x0a, 0x0b},
		SpanID:     trace.SpanID{0x01},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), sc)

	traceID, spanID := traceIDs(ctx)
	if traceID != sc.TraceID().String() || spanID != sc.SpanID().String() {
		t.Fatalf("unexpected trace ids: got=%s/%s", traceID, spanID)
	}
}
