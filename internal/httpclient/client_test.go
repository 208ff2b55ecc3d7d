package httpclient

import (
	"context"
	"io"
	"net/http"
	"testing"
)

func TestBuildRequestWithHeaders(t *testing.T) {
	body := `{"hello":"world"}`
	builder, err := NewRequestBuilder("post", "http://example.com/verify/tdx-quote", map[string]string{
		"content-type": "application/json",
		"X-Trace-Id":   "12345",
	}, &inlineBodySource{data: []byte(body)})
	if err != nil {
		t.Fatalf("expected builder, got error: %v", err)
	}

	req, err := builder.Build(context.Background())
	if err != nil {
		t.Fatalf("expected request, got error: %v", err)
	}

	if req.Method != http.MethodPost {
		t.Fatalf("expected method POST, got %s", req.Method)
	}
	if req.URL.String() != "http://example.com/verify/tdx-quote" {
		t.Fatalf("unexpected URL %s", req.URL.String())
	}
	if req.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("expected canonical Content-Type header, got %q", req.Header.Get("Content-Type"))
	}
	if req.Header.Get("X-Trace-Id") != "12345" {
		t.Fatalf("expected X-Trace-Id header, got %q", req.Header.Get("X-Trace-Id"))
	}

	bodyBytes, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("read body failed: %v", err)
	}
	if string(bodyBytes) != body {
		t.Fatalf("expected body %q, got %q", body, string(bodyBytes))
	}
	if req.ContentLength != int64(len(body)) {
		t.Fatalf("expected content length %d, got %d", len(body), req.ContentLength)
	}

	if req.GetBody == nil {
		t.Fatalf("expected request to support body replay")
	}
	replay, err := req.GetBody()
	if err != nil {
		t.Fatalf("expected replay body, got error: %v", err)
	}
	replayBytes, _ := io.ReadAll(replay)
	if string(replayBytes) != body {
		t.Fatalf("expected replay body %q, got %q", body, string(replayBytes))
	}
}

func TestRequestBuilderHeadersNotShared(t *testing.T) {
	builder, err := NewRequestBuilder("POST", "http://example.com", map[string]string{"X-A": "1"}, nil)
	if err != nil {
		t.Fatalf("NewRequestBuilder() error = %v", err)
	}
	first, _ := builder.Build(context.Background())
	first.Header.Set("X-A", "mutated")
	second, _ := builder.Build(context.Background())
	if got := second.Header.Get("X-A"); got != "1" {
		t.Fatalf("expected builder headers to be copied per request, got %q", got)
	}
}

func TestRequestBuilderValidation(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		headers map[string]string
	}{
		{"empty target", "  ", nil},
		{"empty header key", "http://example.com", map[string]string{"": "value"}},
		{"newline in key", "http://example.com", map[string]string{"Bad\nKey": "value"}},
		{"newline in value", "http://example.com", map[string]string{"X-Key": "a\r\nb"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRequestBuilder("POST", tt.target, tt.headers, nil); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRequestBuilderMethodDefaultsToPost(t *testing.T) {
	builder, err := NewRequestBuilder("", "http://example.com", nil, nil)
	if err != nil {
		t.Fatalf("NewRequestBuilder() error = %v", err)
	}
	req, err := builder.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if req.Method != http.MethodPost {
		t.Fatalf("expected POST, got %s", req.Method)
	}
	if builder.Target() != "http://example.com" {
		t.Fatalf("Target() = %q", builder.Target())
	}
}

func TestNewClientNegativeTimeout(t *testing.T) {
	client := NewClient(-1)
	if client.Timeout != 0 {
		t.Fatalf("expected negative timeout to clamp to 0, got %s", client.Timeout)
	}
	if _, ok := client.Transport.(*http.Transport); !ok {
		t.Fatalf("expected *http.Transport, got %T", client.Transport)
	}
}
