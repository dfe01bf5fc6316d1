package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SpeciesMetrics records species preview and delete outcomes.
// All methods are safe on a nil receiver, which records nothing.
type SpeciesMetrics struct {
	registry *prometheus.Registry

	operationsTotal          *prometheus.CounterVec
	operationDurationSeconds *prometheus.HistogramVec
	filesDeletedTotal        prometheus.Counter
	rowsDeletedTotal         prometheus.Counter
	containmentViolations    *prometheus.CounterVec
	fileDeleteErrorsTotal    *prometheus.CounterVec
}

// NewSpeciesMetrics creates and registers species metrics.
func NewSpeciesMetrics(registry *prometheus.Registry) (*SpeciesMetrics, error) {
	m := &SpeciesMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *SpeciesMetrics) initMetrics() {
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "species_operations_total",
			Help: "Total number of species operations",
		},
		[]string{"operation", "status"}, // status: success, error, rejected
	)

	m.operationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "species_operation_duration_seconds",
			Help:    "Time taken by species operations",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount12), // 1ms to ~4s
		},
		[]string{"operation"},
	)

	m.filesDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "species_files_deleted_total",
		Help: "Total number of recordings deleted by species deletes",
	})

	m.rowsDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "species_rows_deleted_total",
		Help: "Total number of detection rows deleted by species deletes",
	})

	m.containmentViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "species_containment_violations_total",
			Help: "Candidate paths rejected for resolving outside the storage root",
		},
		[]string{"stage"},
	)

	m.fileDeleteErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "species_file_delete_errors_total",
			Help: "Files that could not be deleted",
		},
		[]string{"kind"}, // kind: file, sidecar
	)
}

// Describe implements the Collector interface
func (m *SpeciesMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.operationsTotal.Describe(ch)
	m.operationDurationSeconds.Describe(ch)
	m.filesDeletedTotal.Describe(ch)
	m.rowsDeletedTotal.Describe(ch)
	m.containmentViolations.Describe(ch)
	m.fileDeleteErrorsTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *SpeciesMetrics) Collect(ch chan<- prometheus.Metric) {
	m.operationsTotal.Collect(ch)
	m.operationDurationSeconds.Collect(ch)
	m.filesDeletedTotal.Collect(ch)
	m.rowsDeletedTotal.Collect(ch)
	m.containmentViolations.Collect(ch)
	m.fileDeleteErrorsTotal.Collect(ch)
}

// RecordOperation records one finished operation and its duration.
func (m *SpeciesMetrics) RecordOperation(operation, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordDeleted adds achieved delete counts.
func (m *SpeciesMetrics) RecordDeleted(rows int64, files int) {
	if m == nil {
		return
	}
	m.rowsDeletedTotal.Add(float64(rows))
	m.filesDeletedTotal.Add(float64(files))
}

// RecordContainmentViolation counts a rejected candidate path.
func (m *SpeciesMetrics) RecordContainmentViolation(stage string) {
	if m == nil {
		return
	}
	m.containmentViolations.WithLabelValues(stage).Inc()
}

// RecordFileDeleteError counts a failed file or sidecar removal.
func (m *SpeciesMetrics) RecordFileDeleteError(kind string) {
	if m == nil {
		return
	}
	m.fileDeleteErrorsTotal.WithLabelValues(kind).Inc()
}
