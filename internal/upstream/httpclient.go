// Package upstream is the shared JSON HTTP client for third-party APIs.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pastportals/backend/internal/metrics"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("pastportals/upstream")

// ErrCircuitOpen is returned without issuing a request while the breaker is open.
var ErrCircuitOpen = errors.New("upstream circuit open")

// StatusError is a non-2xx response.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return e.Status
	}
	return e.Status + ": " + e.Body
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// BreakerSettings configures the circuit breaker. A zero FailureThreshold
// disables it.
type BreakerSettings struct {
	FailureThreshold uint32
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
}

// Options for NewHTTPClient.
type Options struct {
	Name    string // label used in metrics, spans and breaker name
	Timeout time.Duration
	Retries int
	Backoff time.Duration
	Headers map[string]string // sent on every request
	Breaker BreakerSettings
	// Transport overrides the default transport, mostly for tests.
	Transport http.RoundTripper
}

type HTTPClient struct {
	name    string
	client  *http.Client
	retries int
	backoff time.Duration
	headers map[string]string
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewHTTPClient(opts Options) *HTTPClient {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	if opts.Backoff == 0 {
		opts.Backoff = 300 * time.Millisecond
	}
	if opts.Name == "" {
		opts.Name = "upstream"
	}
	c := &HTTPClient{
		name:    opts.Name,
		client:  &http.Client{Timeout: opts.Timeout, Transport: opts.Transport},
		retries: opts.Retries,
		backoff: opts.Backoff,
		headers: opts.Headers,
	}
	if bs := opts.Breaker; bs.FailureThreshold > 0 {
		c.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
			Name:        opts.Name,
			MaxRequests: bs.MaxRequests,
			Interval:    bs.Interval,
			Timeout:     bs.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= bs.FailureThreshold
			},
			// Client errors say nothing about upstream health.
			IsSuccessful: func(err error) bool {
				if err == nil {
					return true
				}
				code := StatusCode(err)
				return code >= 400 && code < 500
			},
		})
	}
	return c
}

// DoJSON sends body as JSON (when non-nil) and decodes a 2xx response into
// out (when non-nil). Transport errors and 5xx responses are retried with
// exponential backoff; other statuses return a *StatusError immediately.
// operation labels metrics and spans.
func (c *HTTPClient) DoJSON(ctx context.Context, operation, method, url string, headers map[string]string, body any, out any) error {
	ctx, span := tracer.Start(ctx, c.name+"."+operation, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("http.url", url))

	started := time.Now()
	var err error
	if c.breaker == nil {
		err = c.do(ctx, method, url, headers, body, out)
	} else {
		_, err = c.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, c.do(ctx, method, url, headers, body, out)
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%s: %w", c.name, ErrCircuitOpen)
		}
	}
	metrics.ObserveUpstream(c.name, operation, outcome(err), started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	switch code := StatusCode(err); {
	case code >= 500:
		return "http_5xx"
	case code >= 400:
		return "http_4xx"
	}
	return "error"
}

func (c *HTTPClient) do(ctx context.Context, method, url string, headers map[string]string, body any, out any) error {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = b
	}

	var lastErr error
	tries := c.retries + 1
	for attempt := 0; attempt < tries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		if payload != nil && req.Header.Get("Content-Type") == "" {
			req.Header.Set("Content-Type", "application/json")
		}

		retry, err := c.roundTrip(req, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			return err
		}

		if attempt < tries-1 {
			select {
			case <-time.After(c.backoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

// roundTrip performs one attempt and reports whether a failure is retryable.
func (c *HTTPClient) roundTrip(req *http.Request, out any) (bool, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return false, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("decode %s response: %w", c.name, err)
		}
		return false, nil
	}
	// read response body (best-effort) to include in error
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode >= 500, &StatusError{Code: resp.StatusCode, Status: resp.Status, Body: string(b)}
}
