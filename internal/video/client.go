// Package video calls the external video generator.
package video

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pastportals/backend/internal/upstream"
)

var (
	ErrNotConfigured = errors.New("video generator endpoint not configured")
	ErrNoVideo       = errors.New("no video returned from generator")
)

type Config struct {
	Endpoint  string
	Timeout   time.Duration
	Breaker   upstream.BreakerSettings
	Transport http.RoundTripper
}

// Client posts prompts to the generator and returns the produced location.
type Client struct {
	http     *upstream.HTTPClient
	endpoint string
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	return &Client{
		http: upstream.NewHTTPClient(upstream.Options{
			Name:      "video",
			Timeout:   cfg.Timeout,
			Breaker:   cfg.Breaker,
			Transport: cfg.Transport,
		}),
		endpoint: strings.TrimSpace(cfg.Endpoint),
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	VideoPath string `json:"video_path"`
}

// Generate blocks until the generator answers.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.endpoint == "" {
		return "", ErrNotConfigured
	}
	var out generateResponse
	if err := c.http.DoJSON(ctx, "generate", http.MethodPost, c.endpoint, nil, generateRequest{Prompt: prompt}, &out); err != nil {
		return "", fmt.Errorf("video generator: %w", err)
	}
	if strings.TrimSpace(out.VideoPath) == "" {
		return "", ErrNoVideo
	}
	return out.VideoPath, nil
}
