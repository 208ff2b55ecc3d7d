// Package tracing exports one client span per evidence request over OTLP and
// carries W3C trace context to the service under test.
package tracing

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/attestify/evload/internal/config"
)

const (
	instrumentationName = "evload"
	runIDKey            = attribute.Key("evload.run_id")
)

type exporterFactory func(ctx context.Context, endpoint string, plaintext bool) (sdktrace.SpanExporter, error)

var exporters = map[string]exporterFactory{
	"grpc": func(ctx context.Context, endpoint string, plaintext bool) (sdktrace.SpanExporter, error) {
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if plaintext {
			opts = append(opts,
				otlptracegrpc.WithInsecure(),
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			)
		}
		return otlptracegrpc.New(ctx, opts...)
	},
	"http": func(ctx context.Context, endpoint string, plaintext bool) (sdktrace.SpanExporter, error) {
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if plaintext {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	},
}

// Provider owns the span pipeline for one run. The zero value and nil are
// valid and trace nothing.
type Provider struct {
	tp        *sdktrace.TracerProvider
	tracer    trace.Tracer
	propagate bool
}

// Init builds the span pipeline described by cfg. Without an OTLP endpoint
// the provider only decides header propagation. Every exported span carries
// runID as a resource attribute.
func Init(ctx context.Context, cfg config.TracingConfig, runID string) (*Provider, error) {
	endpoint := firstNonEmpty(strings.TrimSpace(cfg.Endpoint), os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	if endpoint == "" {
		return &Provider{propagate: cfg.ShouldPropagate()}, nil
	}

	sampler, err := samplerFor(cfg.SampleRate)
	if err != nil {
		return nil, err
	}

	protocol := strings.ToLower(firstNonEmpty(cfg.Protocol, "grpc"))
	factory, ok := exporters[protocol]
	if !ok {
		return nil, fmt.Errorf("unsupported OTLP protocol %q: use \"grpc\" or \"http\"", cfg.Protocol)
	}
	exporter, err := factory(ctx, endpoint, cfg.Insecure)
	if err != nil {
		return nil, fmt.Errorf("tracing exporter: %w", err)
	}

	res, err := runResource(ctx, cfg.ServiceName, runID)
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sampler)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		tp:        tp,
		tracer:    tp.Tracer(instrumentationName),
		propagate: cfg.ShouldPropagate(),
	}, nil
}

// samplerFor maps sample_rate onto a root sampler. Zero drops every root span.
func samplerFor(rate float64) (sdktrace.Sampler, error) {
	switch {
	case rate < 0 || rate > 1:
		return nil, fmt.Errorf("tracing sample_rate must be between 0.0 and 1.0, got %g", rate)
	case rate == 0:
		return sdktrace.NeverSample(), nil
	case rate == 1:
		return sdktrace.AlwaysSample(), nil
	default:
		return sdktrace.TraceIDRatioBased(rate), nil
	}
}

func runResource(ctx context.Context, serviceName, runID string) (*resource.Resource, error) {
	serviceName = firstNonEmpty(serviceName, os.Getenv("OTEL_SERVICE_NAME"), instrumentationName)
	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	if runID != "" {
		attrs = append(attrs, runIDKey.String(runID))
	}
	return resource.New(ctx, resource.WithAttributes(attrs...))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Tracer returns the run's tracer, or a no-op tracer when nothing is exported.
func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return p.tracer
}

// ShouldPropagate reports whether outgoing requests get traceparent headers.
func (p *Provider) ShouldPropagate() bool {
	return p != nil && p.propagate
}

// Shutdown flushes buffered spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}
