package visits

import (
	"context"
	"time"

	"github.com/trapwatch/trapwatch/internal/errors"
	"github.com/trapwatch/trapwatch/internal/logger"
)

// Query is what the service asks a RecordingFetcher for.
type Query struct {
	Window   Window
	GroupID  int64
	Stations []int64
	Types    []RecordingType
	Limit    int
}

// RecordingFetcher loads recordings with their used, non-archived tracks
// and tags. Results must be ordered newest first and capped at q.Limit.
type RecordingFetcher interface {
	QueryRecordings(ctx context.Context, q Query) ([]Recording, error)
}

// MetricsRecorder receives per-request pipeline statistics.
type MetricsRecorder interface {
	RecordVisitGeneration(status string, duration time.Duration, recordings, visits, unsupported int)
}

type noopRecorder struct{}

func (noopRecorder) RecordVisitGeneration(string, time.Duration, int, int, int) {}

// Service answers visit queries by fetching a snapshot and running the
// engine over it.
type Service struct {
	fetcher RecordingFetcher
	engine  *Engine
	metrics MetricsRecorder
	log     logger.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewService creates a Service.
func NewService(fetcher RecordingFetcher, engine *Engine, opts ...Option) *Service {
	s := &Service{
		fetcher: fetcher,
		engine:  engine,
		metrics: noopRecorder{},
		log:     logger.Global().Module("visits"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the underlying engine.
func (s *Service) Engine() *Engine {
	return s.engine
}

// Visits returns the visits that start inside the criteria's search window.
func (s *Service) Visits(ctx context.Context, criteria Criteria) (Result, error) {
	if err := criteria.Validate(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	cfg := s.engine.Config()
	q := Query{
		Window:   cfg.WidenWindow(criteria.Search()),
		GroupID:  criteria.GroupID,
		Stations: criteria.Stations,
		Types:    criteria.Types,
		Limit:    cfg.FetchLimit,
	}

	recordings, err := s.fetcher.QueryRecordings(ctx, q)
	if err != nil {
		s.metrics.RecordVisitGeneration("error", time.Since(start), 0, 0, 0)
		return Result{}, errors.New(err).
			Component("visits").
			Category(errors.CategoryDatabase).
			Context("group_id", criteria.GroupID).
			Context("stations", criteria.Stations).
			Timing("fetch_recordings", time.Since(start)).
			Build()
	}

	result := s.engine.GenerateContext(ctx, recordings, criteria)
	elapsed := time.Since(start)
	s.metrics.RecordVisitGeneration("success", elapsed, result.Recordings, len(result.Visits), len(result.Unsupported))

	s.log.WithContext(ctx).Debug("generated visits",
		logger.Int64("group_id", criteria.GroupID),
		logger.Int("stations", len(criteria.Stations)),
		logger.Int("recordings", result.Recordings),
		logger.Int("clusters", result.Clusters),
		logger.Int("visits", len(result.Visits)),
		logger.Int("unsupported", len(result.Unsupported)),
		logger.Duration("elapsed", elapsed))

	if len(result.Unsupported) > 0 {
		s.log.Warn("clusters with tied user tags were not classified",
			logger.Int("count", len(result.Unsupported)))
	}
	if result.Recordings >= cfg.FetchLimit {
		s.log.Info("recording fetch hit limit, oldest visits may be incomplete",
			logger.Int("limit", cfg.FetchLimit))
	}

	return result, nil
}
