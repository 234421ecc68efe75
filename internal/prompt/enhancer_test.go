package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gemini-1.5-flash",
	"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "  A crowd gathers at the Red Fort at dawn.  "}}]
}`

func newEnhancer(t *testing.T, h http.HandlerFunc) *Enhancer {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	e, err := NewEnhancer(Config{APIKey: "test", BaseURL: srv.URL + "/", RetryDelay: time.Millisecond}, zerolog.Nop())
	require.NoError(t, err)
	return e
}

func TestEnhanceSendsInstruction(t *testing.T) {
	e := newEnhancer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test", r.Header.Get("Authorization"))
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, DefaultModel, body.Model)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "user", body.Messages[0].Role)
		assert.Equal(t, "Turn this historical Wikipedia summary into a visual scene prompt for video generation:\n\nIndia became independent.", body.Messages[0].Content)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	})

	out, err := e.Enhance(context.Background(), " India became independent. ")
	require.NoError(t, err)
	assert.Equal(t, "A crowd gathers at the Red Fort at dawn.", out)
}

func TestEnhanceRetriesOnlyServiceUnavailable(t *testing.T) {
	var calls int32
	e := newEnhancer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
			return
		}
		_, _ = w.Write([]byte(completionBody))
	})

	out, err := e.Enhance(context.Background(), "text")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestEnhanceGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	e := newEnhancer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	})

	_, err := e.Enhance(context.Background(), "text")
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestEnhanceDoesNotRetryOtherErrors(t *testing.T) {
	var calls int32
	e := newEnhancer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad"}}`))
	})

	_, err := e.Enhance(context.Background(), "text")
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestEnhanceValidation(t *testing.T) {
	_, err := NewEnhancer(Config{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrNotConfigured)

	e, err := NewEnhancer(Config{APIKey: "k"}, zerolog.Nop())
	require.NoError(t, err)
	_, err = e.Enhance(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyText)
}
