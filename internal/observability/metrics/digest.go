package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DigestMetrics tracks the scheduled visit digest and its outbound sinks.
type DigestMetrics struct {
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	visitsPublished prometheus.Counter
	deliveriesTotal *prometheus.CounterVec
	lastRunTime     prometheus.Gauge

	collectors []prometheus.Collector
}

// NewDigestMetrics creates and registers digest metrics.
func NewDigestMetrics(registry *prometheus.Registry) (*DigestMetrics, error) {
	m := &DigestMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DigestMetrics) initMetrics() {
	m.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trapwatch_digest_runs_total",
			Help: "Total number of digest runs",
		},
		[]string{"status"},
	)
	m.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trapwatch_digest_run_duration_seconds",
			Help:    "Time taken for a digest run",
			Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount12),
		},
	)
	m.visitsPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trapwatch_digest_visits_new_total",
			Help: "Visits seen for the first time by the digest",
		},
	)
	m.deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trapwatch_digest_deliveries_total",
			Help: "Outbound deliveries by sink",
		},
		[]string{"sink", "status"}, // sink: mqtt, notification
	)
	m.lastRunTime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "trapwatch_digest_last_run_timestamp_seconds",
			Help: "Unix time of the last completed digest run",
		},
	)

	m.collectors = []prometheus.Collector{
		m.runsTotal,
		m.runDuration,
		m.visitsPublished,
		m.deliveriesTotal,
		m.lastRunTime,
	}
}

// Describe implements the prometheus.Collector interface.
func (m *DigestMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range m.collectors {
		c.Describe(ch)
	}
}

// Collect implements the prometheus.Collector interface.
func (m *DigestMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, c := range m.collectors {
		c.Collect(ch)
	}
}

// RecordRun records one digest run.
func (m *DigestMetrics) RecordRun(status string, duration time.Duration, newVisits int) {
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.visitsPublished.Add(float64(newVisits))
	m.lastRunTime.SetToCurrentTime()
}

// RecordDelivery records one outbound message.
func (m *DigestMetrics) RecordDelivery(sink string, err error) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.deliveriesTotal.WithLabelValues(sink, status).Inc()
}
