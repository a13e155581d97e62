package httpapi

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var handlerTracer = otel.Tracer("matchday-pipeline/httpapi")

// handlerSpan opens a child span for one handler operation. Requests that
// otelhttp filtered out, such as /healthz, get the inert span from ctx.
func handlerSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	parent := trace.SpanFromContext(ctx)
	if !parent.SpanContext().IsValid() {
		return ctx, parent
	}
	return handlerTracer.Start(ctx, "httpapi.Handler."+operation,
		trace.WithAttributes(attribute.String("pipeline.operation", operation)),
	)
}

func traceIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
