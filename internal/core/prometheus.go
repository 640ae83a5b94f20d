package core

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"seem/internal/scaling"
)

// PrometheusMetricsRecorder exports operation counters and latency
// histograms.
type PrometheusMetricsRecorder struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewPrometheusMetricsRecorder registers its collectors with reg.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	r := &PrometheusMetricsRecorder{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "seem",
				Subsystem: "service",
				Name:      "operations_total",
				Help:      "Total volume service operations.",
			},
			[]string{"operation", "success"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "seem",
				Subsystem: "service",
				Name:      "operation_duration_seconds",
				Help:      "Volume service operation duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
	for _, c := range []prometheus.Collector{r.operations, r.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	r.operations.WithLabelValues(operation, strconv.FormatBool(success)).Inc()
	r.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// TableStatsCollector reports cache activity of every table a catalog has
// built, read at scrape time.
type TableStatsCollector struct {
	catalog  *scaling.Catalog
	cells    *prometheus.Desc
	computed *prometheus.Desc
	hits     *prometheus.Desc
	misses   *prometheus.Desc
}

func NewTableStatsCollector(catalog *scaling.Catalog) *TableStatsCollector {
	labels := []string{"species", "policy"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName("seem", "volume_table", name), help, labels, nil)
	}
	return &TableStatsCollector{
		catalog:  catalog,
		cells:    desc("cells", "Grid points in the volume table."),
		computed: desc("computed_cells", "Grid points simulated or restored."),
		hits:     desc("hits_total", "Cell reads served from cache."),
		misses:   desc("misses_total", "Cell reads that simulated a tree."),
	}
}

// Describe implements prometheus.Collector.
func (c *TableStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cells
	ch <- c.computed
	ch <- c.hits
	ch <- c.misses
}

// Collect implements prometheus.Collector.
func (c *TableStatsCollector) Collect(ch chan<- prometheus.Metric) {
	for _, table := range c.catalog.Tables() {
		stats := table.Stats()
		species, policy := string(table.Species()), table.Policy().Name
		ch <- prometheus.MustNewConstMetric(c.cells, prometheus.GaugeValue, float64(stats.Cells), species, policy)
		ch <- prometheus.MustNewConstMetric(c.computed, prometheus.GaugeValue, float64(stats.Computed), species, policy)
		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(stats.Hits), species, policy)
		ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(stats.Misses), species, policy)
	}
}
