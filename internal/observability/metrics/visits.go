package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// VisitsMetrics tracks visit generation. It satisfies visits.MetricsRecorder.
type VisitsMetrics struct {
	generationsTotal   *prometheus.CounterVec
	generationDuration prometheus.Histogram
	recordingsFetched  prometheus.Histogram
	visitsGenerated    prometheus.Counter
	unsupportedTotal   prometheus.Counter

	collectors []prometheus.Collector
}

// NewVisitsMetrics creates and registers visit generation metrics.
func NewVisitsMetrics(registry *prometheus.Registry) (*VisitsMetrics, error) {
	m := &VisitsMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *VisitsMetrics) initMetrics() {
	m.generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trapwatch_visit_generations_total",
			Help: "Total number of visit generation requests",
		},
		[]string{"status"},
	)
	m.generationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trapwatch_visit_generation_duration_seconds",
			Help:    "Time taken to fetch recordings and build visits",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount15),
		},
	)
	m.recordingsFetched = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trapwatch_visit_recordings_fetched",
			Help:    "Number of recordings fetched per visit generation",
			Buckets: prometheus.ExponentialBuckets(BucketStart1, BucketFactor2, BucketCount12),
		},
	)
	m.visitsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trapwatch_visits_generated_total",
			Help: "Total number of visits returned",
		},
	)
	m.unsupportedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trapwatch_visit_clusters_unsupported_total",
			Help: "Total number of clusters skipped because of conflicting user tags",
		},
	)

	m.collectors = []prometheus.Collector{
		m.generationsTotal,
		m.generationDuration,
		m.recordingsFetched,
		m.visitsGenerated,
		m.unsupportedTotal,
	}
}

// Describe implements the prometheus.Collector interface.
func (m *VisitsMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *VisitsMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// RecordVisitGeneration records one visit generation request.
func (m *VisitsMetrics) RecordVisitGeneration(status string, duration time.Duration, recordings, visits, unsupported int) {
	m.generationsTotal.WithLabelValues(status).Inc()
	m.generationDuration.Observe(duration.Seconds())
	if status != StatusSuccess {
		return
	}
	m.recordingsFetched.Observe(float64(recordings))
	m.visitsGenerated.Add(float64(visits))
	m.unsupportedTotal.Add(float64(unsupported))
}
