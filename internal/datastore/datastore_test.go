package datastore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdnetpi/speciestools/internal/conf"
	"github.com/birdnetpi/speciestools/internal/errors"
)

// openTestStore opens a migrated SQLite store in a temp dir.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	settings := &conf.Settings{}
	settings.Database.Type = conf.DatabaseSQLite
	settings.Database.AutoMigrate = true
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "birds.db")

	store := &SQLiteStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seed(t *testing.T, store *SQLiteStore, rows ...Detection) {
	t.Helper()
	for i := range rows {
		require.NoError(t, store.DB.Create(&rows[i]).Error)
	}
}

func detection(date, com, sci, file string) Detection {
	return Detection{
		Date:           DetectionDate(date),
		Time:           "06:12:01",
		CommonName:     com,
		ScientificName: sci,
		Confidence:     0.91,
		FileName:       file,
	}
}

func TestSpeciesDetections_ExactMatch(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	seed(t, store,
		detection("2024-01-01", "American Robin", "Turdus migratorius", "a.wav"),
		detection("2024-01-02", "American Robin", "Turdus migratorius", "b.wav"),
		detection("2024-01-02", "american robin", "Turdus migratorius", "c.wav"),
		detection("2024-01-02", "Bob's Bird", "Avis roberti", "d.wav"),
	)

	rows, err := store.SpeciesDetections(context.Background(), "American Robin")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, DetectionDate("2024-01-01"), rows[0].Date)
	assert.Equal(t, "Turdus migratorius", rows[0].ScientificName)

	rows, err = store.SpeciesDetections(context.Background(), "Bob's Bird")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "d.wav", rows[0].FileName)
}

func TestDeleteSpeciesDetections(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	seed(t, store,
		detection("2024-01-01", "Blue Jay", "Cyanocitta cristata", "a.wav"),
		detection("2024-01-01", "Blue Jay", "Cyanocitta cristata", "b.wav"),
		detection("2024-01-01", "Pica pica", "Pica pica", "c.wav"),
	)
	ctx := context.Background()

	n, err := store.DeleteSpeciesDetections(ctx, "Blue Jay")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = store.DeleteSpeciesDetections(ctx, "Blue Jay")
	require.NoError(t, err)
	assert.Zero(t, n)

	rows, err := store.SpeciesDetections(ctx, "Pica pica")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSpeciesSummary_OrderedByCount(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	seed(t, store,
		detection("2024-01-01", "Blue Jay", "Cyanocitta cristata", "a.wav"),
		detection("2024-01-01", "Great Tit", "Parus major", "b.wav"),
		detection("2024-01-02", "Great Tit", "Parus major", "c.wav"),
	)

	counts, err := store.SpeciesSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, SpeciesCount{CommonName: "Great Tit", ScientificName: "Parus major", Count: 2}, counts[0])
	assert.Equal(t, "Blue Jay", counts[1].CommonName)
}

func TestEmptyCommonNameRejected(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	_, err := store.SpeciesDetections(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	_, err = store.DeleteSpeciesDetections(context.Background(), "")
	require.Error(t, err)
}

func TestOpen_MissingDatabaseWithoutMigration(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "missing.db")

	store := &SQLiteStore{Settings: settings}
	err := store.Open()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
	assert.NoFileExists(t, settings.Database.SQLite.Path)
}

func TestClosedStoreFailsWithDatabaseCategory(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)
	require.NoError(t, store.Close())

	_, err := store.SpeciesDetections(context.Background(), "Blue Jay")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryDatabase))
}

func TestUninitializedStore(t *testing.T) {
	t.Parallel()

	store := &SQLiteStore{}
	_, err := store.DeleteSpeciesDetections(context.Background(), "Blue Jay")
	require.ErrorIs(t, err, ErrNotInitialized)
	require.Error(t, validateSQLiteConfig(nil))
}

func TestDetectionDate_Scan(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  any
		want DetectionDate
	}{
		{"string", "2024-05-06", "2024-05-06"},
		{"bytes", []byte("2024-05-06"), "2024-05-06"},
		{"time", time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), "2024-05-06"},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var d DetectionDate
			require.NoError(t, d.Scan(tt.src))
			assert.Equal(t, tt.want, d)
		})
	}

	var d DetectionDate
	require.Error(t, d.Scan(42))
}

func TestDSNs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/data/birds.db?_busy_timeout=1000", sqliteDSN("/data/birds.db", 0))
	assert.Equal(t, "/data/birds.db?_busy_timeout=250", sqliteDSN("/data/birds.db", 250))
	assert.Equal(t,
		"birdnet:pw@tcp(db:3306)/birds?charset=utf8mb4&parseTime=True&loc=Local",
		mysqlDSN(conf.MySQLSettings{Host: "db", Username: "birdnet", Password: "pw", Database: "birds"}))
}

func TestNewSelectsBackend(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Database.Type = conf.DatabaseMySQL
	assert.IsType(t, &MySQLStore{}, New(settings))

	settings.Database.Type = conf.DatabaseSQLite
	assert.IsType(t, &SQLiteStore{}, New(settings))
}
