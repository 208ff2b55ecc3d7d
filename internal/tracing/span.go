package tracing

import (
	"context"
	"net/http"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// StartRequestSpan starts a client span for one HTTP attempt. Every tag is
// recorded as an "evload.<key>" attribute.
func StartRequestSpan(ctx context.Context, tracer trace.Tracer, method string, tags map[string]string) (context.Context, trace.Span) {
	spanName := "HTTP " + method
	if endpoint := tags["endpoint"]; endpoint != "" {
		spanName = method + " " + endpoint
	}
	ctx, span := tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(attribute.String("http.request.method", method))

	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		span.SetAttributes(attribute.String("evload."+key, tags[key]))
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

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
