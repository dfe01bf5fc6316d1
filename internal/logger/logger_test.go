package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birdnetpi/speciestools/internal/logger"
)

func TestSlogLogger_LevelFiltering(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelInfo, time.UTC)

	log.Debug("hidden debug")
	log.Trace("hidden trace")
	log.Info("visible info")
	log.Warn("visible warn")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible info")
	assert.Contains(t, out, "visible warn")
}

func TestSlogLogger_TraceLevelName(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelTrace, time.UTC)
	log.Trace("sql statement")

	assert.Contains(t, buf.String(), "level=TRACE")
}

func TestSlogLogger_ModuleNesting(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelDebug, time.UTC)
	log.Module("datastore").Module("sqlite").Info("opened")

	assert.Contains(t, buf.String(), "module=datastore.sqlite")
}

func TestSlogLogger_Fields(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelDebug, time.UTC)
	log.With(logger.String("species", "Turdus migratorius")).Info("deleted",
		logger.Int("files", 3),
		logger.Int64("rows", 12),
		logger.Bool("dry_run", false),
		logger.Error(errors.New("boom")),
		logger.Uint64("free_bytes", 1<<40),
		logger.Float64("used_percent", 68.75),
		logger.Time("at", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)),
		logger.Any("layouts", []string{"by_date", "shifted"}),
	)

	out := buf.String()
	assert.Contains(t, out, `species="Turdus migratorius"`)
	assert.Contains(t, out, "files=3")
	assert.Contains(t, out, "rows=12")
	assert.Contains(t, out, "dry_run=false")
	assert.Contains(t, out, "error=boom")
	assert.Contains(t, out, "free_bytes=1099511627776")
	assert.Contains(t, out, "used_percent=68.75")
	assert.Contains(t, out, "at=2024-01-02T03:04:05.000Z")
	assert.Contains(t, out, "layouts=\"[by_date shifted]\"")
}

func TestSlogLogger_WithContextAddsTraceID(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log := logger.NewSlogLogger(buf, logger.LogLevelInfo, time.UTC)
	ctx := logger.WithTraceID(context.Background(), "req-42")

	log.WithContext(ctx).Info("handled")
	log.WithContext(context.Background()).Info("untraced")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "trace_id=req-42")
	assert.NotContains(t, lines[1], "trace_id")
	assert.Equal(t, "req-42", logger.TraceIDFromContext(ctx))
}

func TestErrorField_Nil(t *testing.T) {
	t.Parallel()

	f := logger.Error(nil)
	assert.Equal(t, "error", f.Key)
	assert.Nil(t, f.Value)
}

func TestCentralLogger_ModuleFileOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mainPath := filepath.Join(dir, "main.log")
	speciesPath := filepath.Join(dir, "species.log")

	cl, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel: "debug",
		Timezone:     "UTC",
		Console:      &logger.ConsoleOutput{Enabled: false},
		FileOutput:   &logger.FileOutput{Enabled: true, Path: mainPath, Level: "debug", MaxSize: 1},
		ModuleOutputs: map[string]logger.ModuleOutput{
			"species": {Enabled: true, FilePath: speciesPath, Level: "info"},
		},
	})
	require.NoError(t, err)

	cl.Module("species").Info("species deleted", logger.String("species", "Pica pica"))
	cl.Module("species").Debug("filtered by module level")
	cl.Module("conf").Info("config loaded")
	require.NoError(t, cl.Close())

	speciesData, err := os.ReadFile(speciesPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(speciesData)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "species deleted", entry["msg"])
	assert.Equal(t, "species", entry["module"])
	assert.Equal(t, "Pica pica", entry["species"])

	mainData, err := os.ReadFile(mainPath)
	require.NoError(t, err)
	assert.Contains(t, string(mainData), "config loaded")
	assert.NotContains(t, string(mainData), "species deleted")
}

func TestCentralLogger_ModuleLevels(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	mainPath := filepath.Join(dir, "main.log")

	cl, err := logger.NewCentralLogger(&logger.LoggingConfig{
		DefaultLevel:  "trace",
		Console:       &logger.ConsoleOutput{Enabled: false},
		FileOutput:    &logger.FileOutput{Enabled: true, Path: mainPath, Level: "trace"},
		ModuleOutputs: map[string]logger.ModuleOutput{},
		ModuleLevels:  map[string]string{"datastore": "warn"},
	})
	require.NoError(t, err)

	cl.Module("datastore").Module("sqlite").Info("quiet")
	cl.Module("datastore").Warn("loud")
	cl.Module("api").Trace("very verbose")
	require.NoError(t, cl.Close())

	data, err := os.ReadFile(mainPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "quiet")
	assert.Contains(t, string(data), "loud")
	assert.Contains(t, string(data), "very verbose")
}

func TestCentralLogger_InvalidTimezone(t *testing.T) {
	t.Parallel()

	_, err := logger.NewCentralLogger(&logger.LoggingConfig{
		Timezone:   "Mars/Olympus_Mons",
		Console:    &logger.ConsoleOutput{Enabled: false},
		FileOutput: &logger.FileOutput{Enabled: false},
	})
	require.Error(t, err)
}
