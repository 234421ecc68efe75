// Package prompt turns encyclopedic text into a visual scene prompt through
// an OpenAI-compatible chat completion API.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/pastportals/backend/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	DefaultModel = "gemini-1.5-flash"

	instruction = "Turn this historical Wikipedia summary into a visual scene prompt for video generation:\n\n"
)

var (
	ErrEmptyText     = errors.New("wikipediaText is required")
	ErrNotConfigured = errors.New("prompt generation is not configured")
	// ErrUnavailable is returned once retries are exhausted or on any
	// non-retryable provider failure.
	ErrUnavailable = errors.New("generative API is temporarily unavailable, please try again later")
)

type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxAttempts int
	RetryDelay  time.Duration // wait before attempt n+1 is RetryDelay*n
	Timeout     time.Duration
}

// Enhancer calls the chat completion endpoint.
type Enhancer struct {
	client      openai.Client
	model       string
	maxAttempts int
	retryDelay  time.Duration
	timeout     time.Duration
	logger      zerolog.Logger
}

func NewEnhancer(cfg Config, logger zerolog.Logger) (*Enhancer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// retries are handled here so only 503 is retried
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Enhancer{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		timeout:     cfg.Timeout,
		logger:      logger,
	}, nil
}

// Enhance returns a scene prompt for text. Only 503 responses are retried.
func (e *Enhancer) Enhance(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(instruction + text),
		},
	}

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		started := time.Now()
		out, err := e.complete(ctx, params)
		if err == nil {
			metrics.ObserveUpstream("llm", "enhance", "ok", started)
			return out, nil
		}
		status := statusOf(err)
		metrics.ObserveUpstream("llm", "enhance", fmt.Sprintf("status_%d", status), started)
		e.logger.Warn().Err(err).Int("attempt", attempt).Int("status", status).Msg("prompt generation attempt failed")

		if status != http.StatusServiceUnavailable || attempt == e.maxAttempts {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		select {
		case <-time.After(e.retryDelay * time.Duration(attempt)):
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		}
	}
	return "", ErrUnavailable
}

func (e *Enhancer) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	completion, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

func statusOf(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
