package httpclient

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/attestify/evload/internal/tracing"
)

// StatusTransportError is the status carried by outcomes that never received
// an HTTP response (timeouts, refused connections, DNS failures).
const StatusTransportError = 0

const maxBodyReadSize = 1024 * 1024

// Tags are opaque labels attached to a request and copied onto its outcome.
type Tags map[string]string

// Clone returns an independent copy of t.
func (t Tags) Clone() Tags {
	if t == nil {
		return nil
	}
	out := make(Tags, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// With returns a copy of t with key set to value.
func (t Tags) With(key, value string) Tags {
	out := t.Clone()
	if out == nil {
		out = Tags{}
	}
	out[key] = value
	return out
}

// Request describes a single call issued by the Executor.
type Request struct {
	Builder *RequestBuilder
	Timeout time.Duration
	Tags    Tags
}

// Outcome is the immutable result of one request attempt.
type Outcome struct {
	Status   int
	Body     []byte
	Duration time.Duration
	Tags     Tags
	TimedOut bool
	Err      error
}

// OK reports whether the status is in the 2xx range.
func (o Outcome) OK() bool {
	return o.Status >= 200 && o.Status <= 299
}

// StatusLabel renders the status for logs and metric labels.
func (o Outcome) StatusLabel() string {
	switch {
	case o.TimedOut:
		return "timeout"
	case o.Status == StatusTransportError:
		return "transport_error"
	default:
		return strconv.Itoa(o.Status)
	}
}

// Executor issues single HTTP requests. It never retries.
type Executor struct {
	client    *http.Client
	tracer    trace.Tracer
	propagate bool
}

// NewExecutor wraps client. A nil provider disables tracing.
func NewExecutor(client *http.Client, provider *tracing.Provider) *Executor {
	if client == nil {
		client = NewClient(0)
	}
	e := &Executor{
		client: client,
		tracer: noop.NewTracerProvider().Tracer("evload"),
	}
	if provider != nil {
		e.tracer = provider.Tracer()
		e.propagate = provider.ShouldPropagate()
	}
	return e
}

// Execute performs req within req.Timeout. Failures are reported in the
// returned Outcome; Execute never panics on transport errors.
func (e *Executor) Execute(ctx context.Context, req Request) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	outcome := Outcome{Tags: req.Tags.Clone()}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	method := http.MethodPost
	if req.Builder != nil {
		method = req.Builder.method
	}
	ctx, span := tracing.StartRequestSpan(ctx, e.tracer, method, req.Tags)

	start := time.Now()
	httpReq, err := req.Builder.Build(ctx)
	if err != nil {
		outcome.Duration = time.Since(start)
		outcome.Err = err
		tracing.EndSpan(span, err)
		return outcome
	}
	if e.propagate {
		tracing.InjectHTTPHeaders(ctx, httpReq.Header)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		outcome.Duration = time.Since(start)
		outcome.Err = err
		outcome.TimedOut = isTimeout(err)
		tracing.EndSpan(span, err, attribute.Bool("evload.timed_out", outcome.TimedOut))
		return outcome
	}
	defer resp.Body.Close()

	// Body read errors are non-fatal; the status is still authoritative.
	body, bodyErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyReadSize))
	_, _ = io.Copy(io.Discard, resp.Body)
	outcome.Duration = time.Since(start)
	outcome.Status = resp.StatusCode
	if bodyErr == nil {
		outcome.Body = body
	}

	var spanErr error
	if !outcome.OK() {
		spanErr = errors.New(resp.Status)
	}
	tracing.EndSpan(span, spanErr, attribute.Int("http.response.status_code", resp.StatusCode))
	return outcome
}

// Target binds an Executor to one endpoint so scenarios can invoke it with
// their own tags.
type Target struct {
	Executor *Executor
	Builder  *RequestBuilder
	Timeout  time.Duration
	Tags     Tags
}

// Do executes the bound request. Tags passed in are layered over the
// target's own tags.
func (t *Target) Do(ctx context.Context, tags Tags) Outcome {
	merged := t.Tags.Clone()
	if merged == nil {
		merged = Tags{}
	}
	for k, v := range tags {
		merged[k] = v
	}
	return t.Executor.Execute(ctx, Request{
		Builder: t.Builder,
		Timeout: t.Timeout,
		Tags:    merged,
	})
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
