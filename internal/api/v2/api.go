// Package api provides the v2 JSON endpoints of the trapwatch monitoring API.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/patrickmn/go-cache"

	"github.com/trapwatch/trapwatch/internal/logger"
	"github.com/trapwatch/trapwatch/internal/visits"
)

// DefaultCacheTTL is used when no response cache TTL is configured.
const DefaultCacheTTL = time.Minute

// VisitService generates visits for a criteria.
type VisitService interface {
	Visits(ctx context.Context, criteria visits.Criteria) (visits.Result, error)
}

// AncestorFinder resolves the common ancestor of a set of labels.
type AncestorFinder interface {
	CommonAncestor(labels []string) string
}

// PathFinder is optionally implemented by an AncestorFinder that can list
// the root-to-label path of a label.
type PathFinder interface {
	Path(label string) []string
}

// HealthChecker reports datastore availability.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// CacheRecorder receives response cache statistics.
type CacheRecorder interface {
	RecordCacheLookup(endpoint string, hit bool)
}

// Controller manages the API routes and handlers
type Controller struct {
	Echo  *echo.Echo
	Group *echo.Group

	visits   VisitService
	taxonomy AncestorFinder
	health   HealthChecker
	cacheRec CacheRecorder
	version  string

	log           logger.Logger
	responseCache *cache.Cache
	cacheTTL      time.Duration
	startTime     time.Time
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithTaxonomy sets the common ancestor lookup.
func WithTaxonomy(f AncestorFinder) Option {
	return func(c *Controller) {
		c.taxonomy = f
	}
}

// WithHealthChecker sets the datastore probe used by /health.
func WithHealthChecker(h HealthChecker) Option {
	return func(c *Controller) {
		c.health = h
	}
}

// WithCacheTTL sets how long visit responses are cached. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Controller) {
		c.cacheTTL = ttl
	}
}

// WithCacheRecorder sets the sink for response cache statistics.
func WithCacheRecorder(r CacheRecorder) Option {
	return func(c *Controller) {
		c.cacheRec = r
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(c *Controller) {
		c.version = v
	}
}

// New creates the API controller and registers its routes under /api/v2.
// Group level middleware is passed in mw.
func New(e *echo.Echo, svc VisitService, opts []Option, mw ...echo.MiddlewareFunc) *Controller {
	c := &Controller{
		Echo:      e,
		visits:    svc,
		log:       logger.Global().Module("api"),
		cacheTTL:  DefaultCacheTTL,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cacheTTL > 0 {
		c.responseCache = cache.New(c.cacheTTL, 2*c.cacheTTL)
	}

	c.Group = e.Group("/api/v2")
	c.Group.Use(middleware.Recover())
	c.Group.Use(mw...)

	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)
	c.Group.GET("/monitoring/visits", c.GetVisits)
	c.Group.GET("/taxonomy/ancestor", c.GetCommonAncestor)
}

// HealthCheck reports service and datastore status.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":         "healthy",
		"version":        c.version,
		"uptime_seconds": time.Since(c.startTime).Seconds(),
	}

	if c.health != nil {
		if err := c.health.Ping(ctx.Request().Context()); err != nil {
			response["status"] = "unhealthy"
			response["database_status"] = "disconnected"
			response["database_error"] = err.Error()
			return ctx.JSON(http.StatusServiceUnavailable, response)
		}
		response["database_status"] = "connected"
	}

	return ctx.JSON(http.StatusOK, response)
}

// Shutdown releases controller resources.
func (c *Controller) Shutdown() {
	if c.responseCache != nil {
		c.responseCache.Flush()
	}
}

// ErrorResponse represents a standardized error response for the API
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// HandleError logs err and writes a JSON error response. The request id
// doubles as the correlation id.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	correlationID := ctx.Response().Header().Get(echo.HeaderXRequestID)
	if correlationID == "" {
		correlationID = ctx.Request().Header.Get(echo.HeaderXRequestID)
	}

	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}

	fields := []logger.Field{
		logger.String("correlation_id", correlationID),
		logger.String("message", message),
		logger.String("error", errorStr),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("ip", ctx.RealIP()),
	}
	if code >= http.StatusInternalServerError {
		c.log.Error("API error", fields...)
	} else {
		c.log.Debug("API error", fields...)
	}

	return ctx.JSON(code, &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	})
}
