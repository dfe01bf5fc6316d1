package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpeciesMetrics_Record(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewSpeciesMetrics(registry)
	require.NoError(t, err)

	m.RecordOperation(OpDelete, StatusSuccess, 15*time.Millisecond)
	m.RecordOperation(OpDelete, StatusRejected, time.Millisecond)
	m.RecordDeleted(12, 4)
	m.RecordContainmentViolation(StageCollect)
	m.RecordContainmentViolation(StageCollect)
	m.RecordFileDeleteError(KindSidecar)

	assert.InDelta(t, 1, testutil.ToFloat64(m.operationsTotal.WithLabelValues(OpDelete, StatusSuccess)), 0)
	assert.InDelta(t, 12, testutil.ToFloat64(m.rowsDeletedTotal), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.filesDeletedTotal), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.containmentViolations.WithLabelValues(StageCollect)), 0)

	expected := `
# HELP species_file_delete_errors_total Files that could not be deleted
# TYPE species_file_delete_errors_total counter
species_file_delete_errors_total{kind="sidecar"} 1
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "species_file_delete_errors_total"))
}

func TestSpeciesMetrics_NilIsNoop(t *testing.T) {
	t.Parallel()

	var m *SpeciesMetrics
	assert.NotPanics(t, func() {
		m.RecordOperation(OpPreview, StatusSuccess, time.Second)
		m.RecordDeleted(1, 1)
		m.RecordContainmentViolation(StageDelete)
		m.RecordFileDeleteError(KindFile)
	})

	var d *DiskManagerMetrics
	assert.NotPanics(t, func() {
		d.UpdateDiskUsage(1, 2)
		d.RecordSummary(1, 2, time.Second)
		d.RecordCacheLookup(true)
	})
}

func TestDoubleRegistrationFails(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewDiskManagerMetrics(registry)
	require.NoError(t, err)
	_, err = NewDiskManagerMetrics(registry)
	require.Error(t, err)
}

func TestDiskManagerMetrics_UpdateDiskUsage(t *testing.T) {
	t.Parallel()

	m, err := NewDiskManagerMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	m.UpdateDiskUsage(25, 100)
	assert.InDelta(t, 25, testutil.ToFloat64(m.diskUtilizationPercentage), 0.001)

	m.UpdateDiskUsage(0, 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.diskUtilizationPercentage), 0)
}
