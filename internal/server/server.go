package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pastportals/backend/config"
	"github.com/pastportals/backend/internal/jobs"
	"github.com/pastportals/backend/internal/logging"
	"github.com/pastportals/backend/internal/search"
	"github.com/pastportals/backend/internal/store"
	"github.com/pastportals/backend/internal/yearsummary"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// YearSummaries builds the year overview served by /wikipedia/year.
type YearSummaries interface {
	ParseYear(raw string) (int, error)
	Build(ctx context.Context, year int) (yearsummary.Summary, error)
}

// Searcher answers the free-text and by-date lookups.
type Searcher interface {
	Events(ctx context.Context, query, year string) ([]search.Result, int, error)
	People(ctx context.Context, query, era, occupation string) ([]search.Person, int, error)
	PeopleByEra(ctx context.Context, era string) ([]search.EraPerson, error)
	DayEvents(ctx context.Context, month, day int) ([]search.DayEvent, error)
	Details(ctx context.Context, query string) (search.Details, error)
}

type JobTracker interface {
	Submit(ctx context.Context, prompt string) (jobs.Job, error)
	Status(ctx context.Context, id string) (jobs.Status, error)
	Result(ctx context.Context, id string) (string, error)
}

type PromptEnhancer interface {
	Enhance(ctx context.Context, text string) (string, error)
}

type HistoryReader interface {
	RecentYearLookups(ctx context.Context, limit int) ([]store.HistoryRecord, error)
}

// Check reports the health of one backing service.
type Check func(ctx context.Context) error

// Deps are the collaborators behind the HTTP surface. Prompts and History
// are optional; their routes answer 503 when unset.
type Deps struct {
	Years   YearSummaries
	Search  Searcher
	Jobs    JobTracker
	Prompts PromptEnhancer
	History HistoryReader
	Checks  map[string]Check
}

type Server struct {
	e          *echo.Echo
	cfg        config.ServerConfig
	production bool
	metrics    bool
	deps       Deps
	logger     zerolog.Logger
}

// New builds the echo instance with middleware and every route mounted.
func New(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		e:          echo.New(),
		cfg:        cfg.Server,
		production: cfg.General.Production(),
		metrics:    cfg.Telemetry.MetricsEnabled,
		deps:       deps,
		logger:     logging.Component("http"),
	}
	e := s.e
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.errorHandler
	e.Validator = newRequestValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.requestLogger())
	if s.metrics {
		e.Use(instrument)
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.cfg.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	if s.cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(s.cfg.BodyLimit))
	}

	e.GET("/", s.index)
	e.GET("/health", s.health)
	e.GET("/healthz", s.health)
	if s.metrics {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	limiter := videoRateLimiter(s.cfg.VideoRateLimit, s.cfg.VideoRateWindow)
	wiki := &WikipediaHandler{Years: deps.Years, Search: deps.Search, History: deps.History}
	video := &VideoHandler{Jobs: deps.Jobs, Limiter: limiter}
	ai := &AIHandler{Prompts: deps.Prompts}
	for _, g := range []*echo.Group{e.Group("/api"), e.Group("")} {
		wiki.Register(g)
		video.Register(g)
		ai.Register(g)
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

// Run serves until ctx is cancelled, then shuts down within the configured
// timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", s.cfg.Address).Msg("http server listening")
		if err := s.e.Start(s.cfg.Address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	s.logger.Info().Msg("http server shutting down")
	return s.e.Shutdown(shutdownCtx)
}

func (s *Server) index(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Pastportals API is running!",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"features":  []string{"Wikipedia year summaries", "Historical search", "AI video generation", "AI prompt generation"},
		"endpoints": map[string]string{
			"yearSummary":     "GET /api/wikipedia/year/:year",
			"aiVideoGenerate": "POST /api/ai-video/generate",
			"aiVideoStatus":   "GET /api/ai-video/status/:jobId",
			"aiVideoDownload": "GET /api/ai-video/download/:jobId",
			"health":          "GET /health",
		},
	})
}

func (s *Server) health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	services := make(map[string]bool, len(s.deps.Checks)+1)
	services["aiPrompt"] = s.deps.Prompts != nil
	for name, check := range s.deps.Checks {
		err := check(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Str("service", name).Msg("health check failed")
		}
		services[name] = err == nil
	}
	return c.JSON(http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Server is running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  services,
	})
}
