package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PercentageFactor converts a ratio to a percentage.
const PercentageFactor = 100

// DiskManagerMetrics contains Prometheus metrics for the disk species summary.
type DiskManagerMetrics struct {
	registry *prometheus.Registry

	diskUsageBytes            prometheus.Gauge
	diskTotalBytes            prometheus.Gauge
	diskUtilizationPercentage prometheus.Gauge
	speciesOnDisk             prometheus.Gauge
	filesOnDisk               prometheus.Gauge
	summaryDurationSeconds    prometheus.Histogram
	summaryCacheTotal         *prometheus.CounterVec
}

// NewDiskManagerMetrics creates and registers new disk manager metrics
func NewDiskManagerMetrics(registry *prometheus.Registry) (*DiskManagerMetrics, error) {
	m := &DiskManagerMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DiskManagerMetrics) initMetrics() {
	m.diskUsageBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "diskmanager_disk_usage_bytes",
		Help: "Used bytes on the filesystem holding the storage root",
	})

	m.diskTotalBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "diskmanager_disk_total_bytes",
		Help: "Total bytes on the filesystem holding the storage root",
	})

	m.diskUtilizationPercentage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "diskmanager_disk_utilization_percentage",
		Help: "Current disk utilization as a percentage",
	})

	m.speciesOnDisk = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "diskmanager_species_on_disk",
		Help: "Species with at least one recording on disk",
	})

	m.filesOnDisk = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "diskmanager_files_on_disk",
		Help: "Recordings found by the last species summary",
	})

	m.summaryDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "diskmanager_summary_duration_seconds",
		Help:    "Time taken to walk the storage root for a species summary",
		Buckets: prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount10), // 10ms to ~10s
	})

	m.summaryCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diskmanager_summary_cache_total",
			Help: "Species summary cache lookups",
		},
		[]string{"result"}, // result: hit, miss
	)
}

// Describe implements the Collector interface
func (m *DiskManagerMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.diskUsageBytes.Describe(ch)
	m.diskTotalBytes.Describe(ch)
	m.diskUtilizationPercentage.Describe(ch)
	m.speciesOnDisk.Describe(ch)
	m.filesOnDisk.Describe(ch)
	m.summaryDurationSeconds.Describe(ch)
	m.summaryCacheTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *DiskManagerMetrics) Collect(ch chan<- prometheus.Metric) {
	m.diskUsageBytes.Collect(ch)
	m.diskTotalBytes.Collect(ch)
	m.diskUtilizationPercentage.Collect(ch)
	m.speciesOnDisk.Collect(ch)
	m.filesOnDisk.Collect(ch)
	m.summaryDurationSeconds.Collect(ch)
	m.summaryCacheTotal.Collect(ch)
}

// UpdateDiskUsage updates disk usage metrics
func (m *DiskManagerMetrics) UpdateDiskUsage(usedBytes, totalBytes uint64) {
	if m == nil {
		return
	}
	m.diskUsageBytes.Set(float64(usedBytes))
	m.diskTotalBytes.Set(float64(totalBytes))

	var utilizationPercentage float64
	if totalBytes > 0 {
		utilizationPercentage = float64(usedBytes) / float64(totalBytes) * PercentageFactor
	}
	m.diskUtilizationPercentage.Set(utilizationPercentage)
}

// RecordSummary records the totals and walk time of a computed summary.
func (m *DiskManagerMetrics) RecordSummary(species, files int, duration time.Duration) {
	if m == nil {
		return
	}
	m.speciesOnDisk.Set(float64(species))
	m.filesOnDisk.Set(float64(files))
	m.summaryDurationSeconds.Observe(duration.Seconds())
}

// RecordCacheLookup records a summary cache hit or miss.
func (m *DiskManagerMetrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.summaryCacheTotal.WithLabelValues(result).Inc()
}
