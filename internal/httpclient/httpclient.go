// Copyright (c) 2025 Justin Cranford

// Package httpclient defines the generic HTTP capability the registration
// and service layers consume, and a default implementation instrumented
// with otelhttp so every round trip — the suspension point named in
// spec.md §5(i) — produces a span automatically.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"mfacore/internal/apperr"
)

// Request is a typed request descriptor. Body, when non-nil, is marshaled
// as JSON. Headers are applied verbatim (e.g. "Authorization").
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
}

// Response is the typed result of a request, carrying the raw body bytes so
// callers can decode it twice when a spec step requires it (spec.md §4.4
// "Response is decoded twice from the same bytes").
type Response struct {
	StatusCode int
	Body       []byte
}

// IsSuccess reports whether StatusCode is 2xx — the sole success criterion
// this core applies to transport results (spec.md §7).
func (r Response) IsSuccess() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Decode unmarshals the response body into v.
func (r Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return apperr.DataDecodingFailed(err)
	}

	return nil
}

// Client is the capability interface the core consumes for every outbound
// HTTP call; it is the sole collaborator treated as "out of scope" for
// transport per spec.md §1.
type Client interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// defaultClient wraps net/http.Client with otelhttp instrumentation.
type defaultClient struct {
	inner *http.Client
}

// New builds the default Client. trustAll, when true, configures the
// transport to skip TLS certificate verification. The registration
// providers never call New themselves: the on-premise provider records a
// bootstrap's "ignoreSslCerts=true" as TrustAllTLS but sends every request
// through the Client in its Deps, whatever that flag says. Hosts SHOULD
// reserve trustAll for development/test backends only.
func New(trustAll bool) Client {
	transport := &http.Transport{}
	if trustAll {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit on-premise opt-in, spec.md §4.5
	}

	return &defaultClient{
		inner: &http.Client{
			Transport: otelhttp.NewTransport(transport),
			Timeout:   30 * time.Second,
		},
	}
}

func (c *defaultClient) Do(ctx context.Context, req Request) (Response, error) {
	var bodyReader io.Reader

	if req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return Response{}, apperr.UnderlyingError(err)
		}

		bodyReader = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return Response{}, apperr.UnderlyingError(err)
	}

	if bodyReader != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.inner.Do(httpReq)
	if err != nil {
		return Response{}, apperr.UnderlyingError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, apperr.UnderlyingError(err)
	}

	return Response{StatusCode: resp.StatusCode, Body: body}, nil
}
