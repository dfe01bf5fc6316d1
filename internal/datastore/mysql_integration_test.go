//go:build integration

package datastore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/birdnetpi/speciestools/internal/conf"
)

func TestMySQLStore_Integration(t *testing.T) {
	ctx := context.Background()

	container, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("birdnet"),
		mysql.WithUsername("birdnet"),
		mysql.WithPassword("birdnet"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	settings := &conf.Settings{}
	settings.Database.Type = conf.DatabaseMySQL
	settings.Database.AutoMigrate = true
	settings.Database.MySQL = conf.MySQLSettings{
		Host:     host,
		Port:     port.Port(),
		Username: "birdnet",
		Password: "birdnet",
		Database: "birdnet",
	}

	store := &MySQLStore{Settings: settings}
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.DB.Create(&Detection{
		Date: "2024-01-01", Time: "05:00:00",
		CommonName: "American Robin", ScientificName: "Turdus migratorius",
		FileName: "American_Robin-91-2024-01-01-birdnet-05:00:00.mp3",
	}).Error)

	rows, err := store.SpeciesDetections(ctx, "American Robin")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, DetectionDate("2024-01-01"), rows[0].Date)

	n, err := store.DeleteSpeciesDetections(ctx, "American Robin")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
