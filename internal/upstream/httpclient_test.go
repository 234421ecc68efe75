package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoJSONDecodesAndSendsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PastPortals/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "yes", r.Header.Get("X-Extra"))
		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["prompt"]})
	}))
	defer srv.Close()

	c := NewHTTPClient(Options{Name: "test", Headers: map[string]string{"User-Agent": "PastPortals/1.0"}})
	var out struct{ Echo string }
	err := c.DoJSON(context.Background(), "echo", http.MethodPost, srv.URL, map[string]string{"X-Extra": "yes"}, map[string]string{"prompt": "hi"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Echo)
}

func TestDoJSONRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(Options{Retries: 2, Backoff: time.Millisecond})
	require.NoError(t, c.DoJSON(context.Background(), "op", http.MethodGet, srv.URL, nil, nil, nil))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestDoJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPClient(Options{Retries: 3, Backoff: time.Millisecond})
	err := c.DoJSON(context.Background(), "op", http.MethodGet, srv.URL, nil, nil, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient(Options{Breaker: BreakerSettings{FailureThreshold: 2, Timeout: time.Minute}})
	for i := 0; i < 2; i++ {
		err := c.DoJSON(context.Background(), "op", http.MethodGet, srv.URL, nil, nil, nil)
		assert.Equal(t, http.StatusBadGateway, StatusCode(err))
	}
	err := c.DoJSON(context.Background(), "op", http.MethodGet, srv.URL, nil, nil, nil)
	assert.True(t, errors.Is(err, ErrCircuitOpen), "got %v", err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestBreakerIgnoresNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPClient(Options{Breaker: BreakerSettings{FailureThreshold: 1, Timeout: time.Minute}})
	for i := 0; i < 3; i++ {
		err := c.DoJSON(context.Background(), "op", http.MethodGet, srv.URL, nil, nil, nil)
		assert.Equal(t, http.StatusNotFound, StatusCode(err))
	}
}

func TestDoJSONHonoursContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(Options{Retries: 2, Backoff: time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := c.DoJSON(ctx, "op", http.MethodGet, srv.URL, nil, nil, nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, "timeout", outcome(context.DeadlineExceeded))
}
