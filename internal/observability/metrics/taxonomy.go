package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CacheStatsSource exposes memoization counters, such as taxonomy.CachedFinder.
type CacheStatsSource interface {
	Stats() (hits, misses int64)
	Size() int
}

// TaxonomyMetrics reports common ancestor cache statistics at scrape time.
type TaxonomyMetrics struct {
	source CacheStatsSource

	hitsDesc   *prometheus.Desc
	missesDesc *prometheus.Desc
	sizeDesc   *prometheus.Desc
}

// NewTaxonomyMetrics creates and registers the taxonomy cache collector.
func NewTaxonomyMetrics(registry *prometheus.Registry, source CacheStatsSource) (*TaxonomyMetrics, error) {
	m := &TaxonomyMetrics{
		source: source,
		hitsDesc: prometheus.NewDesc(
			"trapwatch_taxonomy_cache_hits_total",
			"Common ancestor lookups answered from cache",
			nil, nil),
		missesDesc: prometheus.NewDesc(
			"trapwatch_taxonomy_cache_misses_total",
			"Common ancestor lookups passed to the taxonomy source",
			nil, nil),
		sizeDesc: prometheus.NewDesc(
			"trapwatch_taxonomy_cache_entries",
			"Memoized common ancestor answers",
			nil, nil),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements the prometheus.Collector interface.
func (m *TaxonomyMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.hitsDesc
	ch <- m.missesDesc
	ch <- m.sizeDesc
}

// Collect implements the prometheus.Collector interface.
func (m *TaxonomyMetrics) Collect(ch chan<- prometheus.Metric) {
	if m.source == nil {
		return
	}
	hits, misses := m.source.Stats()
	ch <- prometheus.MustNewConstMetric(m.hitsDesc, prometheus.CounterValue, float64(hits))
	ch <- prometheus.MustNewConstMetric(m.missesDesc, prometheus.CounterValue, float64(misses))
	ch <- prometheus.MustNewConstMetric(m.sizeDesc, prometheus.GaugeValue, float64(m.source.Size()))
}
