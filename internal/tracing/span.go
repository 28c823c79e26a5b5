package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Noop returns a tracer that records nothing.
func Noop() trace.Tracer {
	return noop.NewTracerProvider().Tracer(instrumentationName)
}

// StartOperationSpan starts a client span for one logical database
// operation, covering every retry attempt.
func StartOperationSpan(ctx context.Context, tracer trace.Tracer, system, operation, statement string) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = Noop()
	}
	ctx, span := tracer.Start(ctx, system+" "+operation,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("db.system", system),
		attribute.String("db.operation.name", operation),
	)
	if statement != "" {
		span.SetAttributes(attribute.String("db.query.text", statement))
	}
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
