package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pastportals/backend/internal/metrics"
	"github.com/rs/zerolog"
)

// Options configure a Tracker.
type Options struct {
	// Async runs generation on background workers and returns from Submit
	// immediately. When false Submit blocks until the job is terminal.
	Async     bool
	Workers   int
	QueueSize int
}

// Tracker owns the job state machine: in_progress -> done | failed.
type Tracker struct {
	store  Store
	gen    Generator
	opts   Options
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	closed bool
	queue  chan Job
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewTracker(store Store, gen Generator, opts Options, logger zerolog.Logger) *Tracker {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 32
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tracker{
		store:  store,
		gen:    gen,
		opts:   opts,
		logger: logger,
		now:    time.Now,
		ctx:    ctx,
		cancel: cancel,
	}
	if opts.Async {
		t.queue = make(chan Job, opts.QueueSize)
		for i := 0; i < opts.Workers; i++ {
			t.wg.Add(1)
			go t.worker()
		}
	}
	return t
}

// Submit records a new in_progress job and starts generation.
func (t *Tracker) Submit(ctx context.Context, prompt string) (Job, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return Job{}, ErrEmptyPrompt
	}
	now := t.now()
	job := Job{
		ID:        uuid.NewString(),
		Status:    StatusInProgress,
		Prompt:    prompt,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if !t.opts.Async {
		if err := t.store.Set(ctx, job); err != nil {
			return Job{}, fmt.Errorf("store job: %w", err)
		}
		t.started(job)
		return t.run(ctx, job), nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return Job{}, ErrClosed
	}
	if err := t.store.Set(ctx, job); err != nil {
		return Job{}, fmt.Errorf("store job: %w", err)
	}
	t.started(job)
	select {
	case t.queue <- job:
		return job, nil
	default:
		failed := t.finish(ctx, job, "", ErrQueueFull)
		return failed, ErrQueueFull
	}
}

// Get returns the stored job.
func (t *Tracker) Get(ctx context.Context, id string) (Job, error) {
	return t.store.Get(ctx, id)
}

// Status returns the current state of a job.
func (t *Tracker) Status(ctx context.Context, id string) (Status, error) {
	job, err := t.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return job.Status, nil
}

// Result returns the video location of a finished job.
func (t *Tracker) Result(ctx context.Context, id string) (string, error) {
	job, err := t.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if job.Status != StatusDone {
		return "", ErrNotReady
	}
	return job.ResultURL, nil
}

// Close stops accepting jobs and waits for queued ones to finish. When ctx
// expires first, running generations are cancelled and recorded as failed.
func (t *Tracker) Close(ctx context.Context) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	if t.queue != nil {
		close(t.queue)
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		t.cancel()
		return nil
	case <-ctx.Done():
		t.cancel()
		<-done
		return ctx.Err()
	}
}

func (t *Tracker) worker() {
	defer t.wg.Done()
	for job := range t.queue {
		t.run(t.ctx, job)
	}
}

func (t *Tracker) run(ctx context.Context, job Job) Job {
	path, err := t.gen.Generate(ctx, job.Prompt)
	if err == nil && strings.TrimSpace(path) == "" {
		err = errors.New("no video returned from generator")
	}
	// the terminal write must land even if the caller went away
	return t.finish(context.WithoutCancel(ctx), job, path, err)
}

// finish applies the single terminal transition of job.
func (t *Tracker) finish(ctx context.Context, job Job, path string, genErr error) Job {
	if current, err := t.store.Get(ctx, job.ID); err == nil && current.Terminal() {
		t.logger.Warn().Str("job_id", job.ID).Str("status", string(current.Status)).Msg("job already terminal")
		return current
	}
	job.UpdatedAt = t.now()
	if genErr != nil {
		job.Status = StatusFailed
		job.Error = genErr.Error()
		t.logger.Warn().Err(genErr).Str("job_id", job.ID).Msg("video generation failed")
	} else {
		job.Status = StatusDone
		job.ResultURL = path
		t.logger.Info().Str("job_id", job.ID).Str("video_path", path).Msg("video generation finished")
	}
	if err := t.store.Set(ctx, job); err != nil {
		t.logger.Error().Err(err).Str("job_id", job.ID).Msg("store terminal job state")
	}
	metrics.JobTransitions.WithLabelValues(string(job.Status)).Inc()
	metrics.JobsInFlight.Dec()
	return job
}

func (t *Tracker) started(job Job) {
	metrics.JobTransitions.WithLabelValues(string(StatusInProgress)).Inc()
	metrics.JobsInFlight.Inc()
	t.logger.Info().Str("job_id", job.ID).Msg("video job submitted")
}
