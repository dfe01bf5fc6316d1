package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/birdnetpi/speciestools/internal/conf"
	"github.com/birdnetpi/speciestools/internal/errors"
	"github.com/birdnetpi/speciestools/internal/logger"
)

// defaultBusyTimeout is how long SQLite waits on a locked database, in milliseconds.
const defaultBusyTimeout = 1000

// SQLiteStore implements Interface for the BirdNET-Pi birds.db file.
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

func validateSQLiteConfig(settings *conf.Settings) error {
	if settings == nil || settings.Database.SQLite.Path == "" {
		return validationError("sqlite database path is not configured", "database.sqlite.path", "")
	}
	return nil
}

// sqliteDSN builds the connection string. Contention past the busy timeout
// fails the statement instead of retrying.
func sqliteDSN(path string, busyTimeout int) string {
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}
	return fmt.Sprintf("%s?_busy_timeout=%d", path, busyTimeout)
}

// Open connects to the SQLite database. Unless auto-migration is enabled the
// file must already exist; it is never created implicitly.
func (store *SQLiteStore) Open() error {
	if err := validateSQLiteConfig(store.Settings); err != nil {
		return err
	}
	if store.Logger == nil {
		store.Logger = GetLogger().Module("sqlite")
	}

	path, err := filepath.Abs(store.Settings.Database.SQLite.Path)
	if err != nil {
		return dbError(err, "open", errors.PriorityHigh, "db_type", "sqlite")
	}

	if !store.Settings.Database.AutoMigrate {
		if _, err := os.Stat(path); err != nil {
			return errors.New(fmt.Errorf("sqlite database not found: %w", err)).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("operation", "open").
				Context("path", path).
				Build()
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return dbError(err, "open", errors.PriorityHigh, "db_type", "sqlite")
	}

	db, err := gorm.Open(sqlite.Open(sqliteDSN(path, store.Settings.Database.SQLite.BusyTimeout)), &gorm.Config{
		Logger: newGormLogger(store.Logger),
	})
	if err != nil {
		return dbError(err, "open", errors.PriorityHigh, "db_type", "sqlite", "path", path)
	}

	store.DB = db
	if err := performAutoMigration(db, store.Settings.Database.AutoMigrate, "sqlite"); err != nil {
		return err
	}

	store.Logger.Debug("SQLite database opened", logger.String("path", path))
	return nil
}

// Close releases the SQLite connection.
func (store *SQLiteStore) Close() error {
	return store.closeDB("sqlite")
}
