package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/trapwatch/trapwatch/internal/api/middleware"
	v2 "github.com/trapwatch/trapwatch/internal/api/v2"
	"github.com/trapwatch/trapwatch/internal/errors"
	"github.com/trapwatch/trapwatch/internal/logger"
	"github.com/trapwatch/trapwatch/internal/observability"
)

// Server is the HTTP server hosting the v2 API and the metrics endpoint.
type Server struct {
	echo   *echo.Echo
	config *Config
	log    logger.Logger

	visits   v2.VisitService
	taxonomy v2.AncestorFinder
	health   v2.HealthChecker
	metrics  *observability.Metrics
	version  string

	apiController *v2.Controller

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithTaxonomy sets the common ancestor lookup served by the API.
func WithTaxonomy(f v2.AncestorFinder) ServerOption {
	return func(s *Server) {
		s.taxonomy = f
	}
}

// WithHealthChecker sets the datastore probe.
func WithHealthChecker(h v2.HealthChecker) ServerOption {
	return func(s *Server) {
		s.health = h
	}
}

// WithMetrics sets the shared metrics instance.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) ServerOption {
	return func(s *Server) {
		s.version = v
	}
}

// New creates a Server answering visit queries through svc.
func New(config *Config, svc v2.VisitService, opts ...ServerOption) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}
	if svc == nil {
		return nil, fmt.Errorf("visit service is required")
	}

	s := &Server{
		config: config,
		visits: svc,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Global().Module("api")
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Listen),
		logger.Bool("metrics", s.metricsEnabled()),
		logger.Float64("rate_limit_rps", config.RateLimitRPS))

	return s, nil
}

func (s *Server) metricsEnabled() bool {
	return s.metrics != nil && s.config.MetricsPath != ""
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestID())
	if s.metrics != nil {
		s.echo.Use(mw.NewMetrics(s.metrics.HTTP))
	}
	s.echo.Use(mw.NewRequestLogger(s.log.Module("http")))
	s.echo.Use(echomw.BodyLimit(s.config.BodyLimit))
}

func (s *Server) setupRoutes() {
	opts := []v2.Option{
		v2.WithLogger(s.log.Module("v2")),
		v2.WithCacheTTL(s.config.CacheTTL),
		v2.WithVersion(s.version),
	}
	if s.taxonomy != nil {
		opts = append(opts, v2.WithTaxonomy(s.taxonomy))
	}
	if s.health != nil {
		opts = append(opts, v2.WithHealthChecker(s.health))
	}
	if s.metrics != nil {
		opts = append(opts, v2.WithCacheRecorder(s.metrics.HTTP))
	}

	s.apiController = v2.New(s.echo, s.visits, opts,
		mw.NewRateLimiter(s.config.RateLimitRPS, s.config.RateLimitBurst))

	if s.metricsEnabled() {
		s.echo.GET(s.config.MetricsPath, echo.WrapHandler(s.metrics.Handler()))
	}
}

// Echo exposes the router, mainly for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Listen, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.echo.Listener = ln
	s.mu.Unlock()

	s.wg.Go(func() {
		s.log.Info("HTTP server starting", logger.String("address", ln.Addr().String()))
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server error", logger.Error(err))
		}
	})
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully stops the server within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if s.apiController != nil {
		s.apiController.Shutdown()
	}

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.wg.Wait()

	s.log.Info("HTTP server shutdown complete")
	return nil
}
