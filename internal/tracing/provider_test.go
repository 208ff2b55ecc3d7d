package tracing_test

import (
	"context"
	"testing"

	"github.com/attestify/evload/internal/config"
	"github.com/attestify/evload/internal/tracing"
)

func TestInitOutcomes(t *testing.T) {
	off := false
	tests := []struct {
		name          string
		cfg           config.TracingConfig
		wantErr       bool
		wantPropagate bool
	}{
		{name: "no endpoint", cfg: config.TracingConfig{}},
		{name: "grpc collector", cfg: config.TracingConfig{Endpoint: "localhost:4317", Insecure: true, SampleRate: 1}, wantPropagate: true},
		{name: "http collector", cfg: config.TracingConfig{Endpoint: "localhost:4318", Protocol: "HTTP", Insecure: true}, wantPropagate: true},
		{name: "export without headers", cfg: config.TracingConfig{Endpoint: "localhost:4317", Insecure: true, Propagate: &off}},
		{name: "unknown protocol", cfg: config.TracingConfig{Endpoint: "localhost:4317", Protocol: "zipkin"}, wantErr: true},
		{name: "rate below zero", cfg: config.TracingConfig{Endpoint: "localhost:4317", SampleRate: -0.1}, wantErr: true},
		{name: "rate above one", cfg: config.TracingConfig{Endpoint: "localhost:4317", SampleRate: 1.5}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
			p, err := tracing.Init(context.Background(), tt.cfg, "01J9RUNIDEXAMPLE")
			if tt.wantErr {
				if err == nil {
					t.Fatal("Init() error = nil, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
			if got := p.ShouldPropagate(); got != tt.wantPropagate {
				t.Errorf("ShouldPropagate() = %v, want %v", got, tt.wantPropagate)
			}
		})
	}
}

func TestInitReadsEndpointFromEnvironment(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	p, err := tracing.Init(context.Background(), config.TracingConfig{Insecure: true}, "")
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	if !p.ShouldPropagate() {
		t.Error("ShouldPropagate() = false with OTEL_EXPORTER_OTLP_ENDPOINT set")
	}
}

func TestNilProviderTracesNothing(t *testing.T) {
	var p *tracing.Provider
	if p.ShouldPropagate() {
		t.Error("nil provider propagates headers")
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	_, span := p.Tracer().Start(context.Background(), "verify")
	if span.SpanContext().IsValid() {
		t.Error("nil provider produced a recording span context")
	}
	span.End()
}
