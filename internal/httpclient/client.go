package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// RequestBuilder produces identical requests for one endpoint.
type RequestBuilder struct {
	method  string
	target  string
	headers http.Header
	body    BodySource
}

func NewRequestBuilder(method, target string, headers map[string]string, body BodySource) (*RequestBuilder, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, errors.New("target URL is required")
	}

	method = strings.TrimSpace(method)
	if method == "" {
		method = http.MethodPost
	}
	method = strings.ToUpper(method)

	if body == nil {
		body = emptyBodySource{}
	}

	canonical := http.Header{}
	for key, value := range headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		if strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}
		canonical.Set(canonicalKey, value)
	}

	return &RequestBuilder{
		method:  method,
		target:  target,
		headers: canonical,
		body:    body,
	}, nil
}

// Target returns the URL requests are sent to.
func (b *RequestBuilder) Target() string {
	if b == nil {
		return ""
	}
	return b.target
}

func (b *RequestBuilder) Build(ctx context.Context) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	reader, err := b.body.NewReader()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, b.method, b.target, reader)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}

	req.Header = b.headers.Clone()
	if req.Header == nil {
		req.Header = http.Header{}
	}

	if length, ok := b.body.ContentLength(); ok {
		req.ContentLength = length
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return b.body.NewReader()
	}

	return req, nil
}

// NewClient returns a pooled client. Per-request deadlines are applied by
// the Executor through the request context, so timeout is only a backstop.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
