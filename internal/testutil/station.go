// Package testutil provides shared test utilities for speciestools.
// These helpers build a throwaway BirdNET-Pi station layout on disk.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/birdnetpi/speciestools/internal/conf"
	"github.com/birdnetpi/speciestools/internal/datastore"
)

// Common test timeout constants.
const (
	// DefaultTestTimeout is the standard timeout for most async test operations.
	DefaultTestTimeout = 5 * time.Second

	// ShortTestTimeout is for operations expected to complete quickly.
	ShortTestTimeout = 1 * time.Second
)

// Station is a temporary station: a By_Date recordings root, a scripts
// directory with birds.db and the species lists, and settings pointing at
// them.
type Station struct {
	Settings *conf.Settings
	Base     string // storage root
	ListsDir string
}

// NewStation creates the station layout under t.TempDir(). The detections
// table is created on first open.
func NewStation(t *testing.T) *Station {
	t.Helper()

	dir := t.TempDir()
	s := &Station{
		Base:     filepath.Join(dir, "BirdSongs", "Extracted", "By_Date"),
		ListsDir: filepath.Join(dir, "BirdNET-Pi", "scripts"),
	}
	require.NoError(t, os.MkdirAll(s.Base, 0o755))
	require.NoError(t, os.MkdirAll(s.ListsDir, 0o755))

	settings := &conf.Settings{}
	settings.Storage.Root = s.Base
	settings.Storage.Layouts = conf.KnownLayouts
	settings.Database.Type = conf.DatabaseSQLite
	settings.Database.AutoMigrate = true
	settings.Database.SQLite.Path = filepath.Join(s.ListsDir, "birds.db")
	settings.Lists = conf.ListSettings{
		Dir:       s.ListsDir,
		Confirmed: "confirmed_species_list.txt",
		Exclude:   "exclude_species_list.txt",
		Whitelist: "whitelist_species_list.txt",
	}
	settings.WebServer.RateLimit = 100
	s.Settings = settings
	return s
}

// Seed inserts detection rows through a short-lived connection.
func (s *Station) Seed(t *testing.T, rows ...datastore.Detection) {
	t.Helper()
	store := &datastore.SQLiteStore{Settings: s.Settings}
	require.NoError(t, store.Open())
	defer func() { _ = store.Close() }()
	for i := range rows {
		require.NoError(t, store.DB.Create(&rows[i]).Error)
	}
}

// File writes a placeholder recording at rel below the storage root and
// returns its path.
func (s *Station) File(t *testing.T, rel ...string) string {
	t.Helper()
	path := filepath.Join(append([]string{s.Base}, rel...)...)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))
	return path
}

// ListFile returns the contents of a species list file, empty when missing.
func (s *Station) ListFile(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(s.ListsDir, name))
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

// Detection returns a detection row with plausible defaults.
func Detection(date, commonName, scientificName, fileName string) datastore.Detection {
	return datastore.Detection{
		Date:           datastore.DetectionDate(date),
		Time:           "06:12:01",
		CommonName:     commonName,
		ScientificName: scientificName,
		Confidence:     0.9,
		FileName:       fileName,
	}
}

// WaitForChannel waits for a signal on the channel or fails after timeout.
func WaitForChannel(t *testing.T, ch <-chan struct{}, timeout time.Duration, msg string) {
	t.Helper()
	select {
	case <-ch:
		// Success
	case <-time.After(timeout):
		require.Fail(t, msg)
	}
}
