package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pastportals/backend/config"
	"github.com/pastportals/backend/internal/jobs"
	"github.com/pastportals/backend/internal/logging"
	"github.com/pastportals/backend/internal/prompt"
	"github.com/pastportals/backend/internal/search"
	"github.com/pastportals/backend/internal/server"
	"github.com/pastportals/backend/internal/store"
	"github.com/pastportals/backend/internal/upstream"
	"github.com/pastportals/backend/internal/video"
	"github.com/pastportals/backend/internal/wikipedia"
	"github.com/pastportals/backend/internal/yearsummary"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var serveAddr string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.address)")

	return serve
}

func breaker(b config.BreakerConfig) upstream.BreakerSettings {
	return upstream.BreakerSettings{
		FailureThreshold: b.FailureThreshold,
		MaxRequests:      b.MaxRequests,
		Interval:         b.Interval,
		Timeout:          b.Timeout,
	}
}

// run wires every component from cfg and serves until ctx is done.
func run(ctx context.Context, cfg *config.Config) error {
	logging.Init(logging.Config{Level: cfg.General.LogLevel, Format: cfg.General.LogFormat})
	logger := logging.Component("serve")
	checks := map[string]server.Check{}

	var rdb redis.UniversalClient
	if cfg.Storage.Redis.Enabled() {
		rc := cfg.Storage.Redis
		client := redis.NewClient(&redis.Options{
			Addr:         rc.Addr(),
			Password:     rc.Password,
			DB:           rc.DB,
			DialTimeout:  rc.Timeout,
			ReadTimeout:  rc.Timeout,
			WriteTimeout: rc.Timeout,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		rdb = client
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	var history *store.Store
	if cfg.Storage.Postgres.Enabled() {
		st, err := store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
		if err != nil {
			return err
		}
		defer st.Close()
		history = st
		checks["postgres"] = st.Ping
	}

	wiki := wikipedia.NewClient(wikipedia.Config{
		RestURL:   cfg.Wikipedia.RestURL,
		ActionURL: cfg.Wikipedia.ActionURL,
		PageURL:   cfg.Wikipedia.PageURL,
		UserAgent: cfg.Wikipedia.UserAgent,
		Timeout:   cfg.Wikipedia.Timeout,
		Breaker:   breaker(cfg.Wikipedia.Breaker),
	}, logging.Component("wikipedia"))

	opts := []yearsummary.Option{
		yearsummary.WithCallTimeout(cfg.Pipeline.CallTimeout),
		yearsummary.WithLogger(logging.Component("yearsummary")),
	}
	if rdb != nil && cfg.Pipeline.CacheTTL > 0 {
		opts = append(opts, yearsummary.WithCache(yearsummary.NewRedisCache(rdb, cfg.Pipeline.CacheTTL)))
	}
	if history != nil {
		opts = append(opts, yearsummary.WithRecorder(history))
	}
	builder := yearsummary.NewBuilder(wiki, opts...)

	var jobStore jobs.Store = jobs.NewMemoryStore(cfg.Jobs.TTL)
	if cfg.Jobs.Store == "redis" {
		jobStore = jobs.NewRedisStore(rdb, cfg.Jobs.TTL)
	}
	if cfg.Video.Endpoint == "" {
		logger.Warn().Msg("video.endpoint not set; video jobs will fail")
	}
	gen := video.NewClient(video.Config{
		Endpoint: cfg.Video.Endpoint,
		Timeout:  cfg.Video.Timeout,
		Breaker:  breaker(cfg.Video.Breaker),
	})
	tracker := jobs.NewTracker(jobStore, gen, jobs.Options{
		Async:     cfg.Jobs.Async,
		Workers:   cfg.Jobs.Workers,
		QueueSize: cfg.Jobs.QueueSize,
	}, logging.Component("jobs"))

	sweeper, err := jobs.NewSweeper(jobStore, cfg.Jobs.SweepCron, logging.Component("sweeper"))
	if err != nil {
		return err
	}
	go sweeper.Run(ctx)

	deps := server.Deps{
		Years:  builder,
		Search: search.NewService(wiki, logging.Component("search")),
		Jobs:   tracker,
		Checks: checks,
	}
	if history != nil {
		deps.History = history
	}
	if cfg.LLM.Enabled() {
		enhancer, err := prompt.NewEnhancer(prompt.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			MaxAttempts: cfg.LLM.MaxAttempts,
			RetryDelay:  cfg.LLM.RetryDelay,
			Timeout:     cfg.LLM.Timeout,
		}, logging.Component("prompt"))
		if err != nil {
			return err
		}
		deps.Prompts = enhancer
	}

	serveErr := server.New(cfg, deps).Run(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := tracker.Close(drainCtx); err != nil {
		logger.Warn().Err(err).Msg("video workers did not drain")
	}
	return serveErr
}
