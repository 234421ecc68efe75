package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/rs/zerolog"
)

// Sweeper deletes expired jobs on a cron schedule.
type Sweeper struct {
	store  Store
	expr   *cronexpr.Expression
	logger zerolog.Logger
	now    func() time.Time
}

func NewSweeper(store Store, spec string, logger zerolog.Logger) (*Sweeper, error) {
	expr, err := cronexpr.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", spec, err)
	}
	return &Sweeper{store: store, expr: expr, logger: logger, now: time.Now}, nil
}

// Run sweeps at every scheduled time until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		now := s.now()
		next := s.expr.Next(now)
		if next.IsZero() {
			return
		}
		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if n, err := s.Sweep(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("job sweep failed")
		} else if n > 0 {
			s.logger.Info().Int("evicted", n).Msg("expired jobs evicted")
		}
	}
}

// Sweep deletes every expired job once and returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ids, err := s.store.ListExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if err := s.store.Delete(ctx, id); err != nil {
			return n, fmt.Errorf("delete job %s: %w", id, err)
		}
		n++
	}
	return n, nil
}
