// Package observability provides Prometheus metrics functionality for monitoring trapwatch.
// Sentry-related error telemetry is handled in the telemetry package.
package observability

import (
	"fmt"
	stdlog "log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trapwatch/trapwatch/internal/logger"
	"github.com/trapwatch/trapwatch/internal/observability/metrics"
)

var log = logger.Global().Module("telemetry")

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry  *prometheus.Registry
	Visits    *metrics.VisitsMetrics
	Datastore *metrics.DatastoreMetrics
	HTTP      *metrics.HTTPMetrics
	Digest    *metrics.DigestMetrics
}

// NewMetrics creates a new instance of Metrics on a private registry.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	visitsMetrics, err := metrics.NewVisitsMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create visits metrics: %w", err)
	}

	datastoreMetrics, err := metrics.NewDatastoreMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore metrics: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP metrics: %w", err)
	}

	digestMetrics, err := metrics.NewDigestMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create digest metrics: %w", err)
	}

	return &Metrics{
		registry:  registry,
		Visits:    visitsMetrics,
		Datastore: datastoreMetrics,
		HTTP:      httpMetrics,
		Digest:    digestMetrics,
	}, nil
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterTaxonomyCache exposes the ancestor cache counters of source.
func (m *Metrics) RegisterTaxonomyCache(source metrics.CacheStatsSource) error {
	if _, err := metrics.NewTaxonomyMetrics(m.registry, source); err != nil {
		return fmt.Errorf("failed to create taxonomy metrics: %w", err)
	}
	return nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      stdlog.New(os.Stderr, "metrics handler: ", stdlog.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// LogSummary writes the registered metric family count at debug level.
func (m *Metrics) LogSummary() {
	families, err := m.registry.Gather()
	if err != nil {
		log.Warn("failed to gather metrics", logger.Error(err))
		return
	}
	log.Debug("metrics registry ready", logger.Int("families", len(families)))
}
