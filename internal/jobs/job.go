// Package jobs tracks video generation requests from submission to a
// terminal outcome.
package jobs

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

var (
	ErrEmptyPrompt = errors.New("prompt is required")
	ErrNotFound    = errors.New("job not found")
	ErrNotReady    = errors.New("video not ready")
	ErrQueueFull   = errors.New("video generation queue is full")
	ErrClosed      = errors.New("job tracker is shutting down")
)

// Job is one tracked generation request.
type Job struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Prompt    string    `json:"prompt"`
	ResultURL string    `json:"resultUrl,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Terminal reports whether the job reached done or failed.
func (j Job) Terminal() bool {
	return j.Status == StatusDone || j.Status == StatusFailed
}

// Store persists jobs. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, id string) (Job, error)
	Set(ctx context.Context, job Job) error
	// ListExpired returns ids whose retention ended before now.
	ListExpired(ctx context.Context, now time.Time) ([]string, error)
	Delete(ctx context.Context, id string) error
}

// Generator turns a prompt into a video location.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
