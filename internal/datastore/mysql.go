package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/birdnetpi/speciestools/internal/conf"
	"github.com/birdnetpi/speciestools/internal/errors"
	"github.com/birdnetpi/speciestools/internal/logger"
)

// MySQLStore implements Interface for installations that keep detections in MySQL.
type MySQLStore struct {
	DataStore
	Settings *conf.Settings
}

func validateMySQLConfig(settings *conf.Settings) error {
	if settings == nil {
		return validationError("mysql settings are missing", "database.mysql", "")
	}
	m := settings.Database.MySQL
	if m.Host == "" || m.Database == "" || m.Username == "" {
		return validationError("mysql requires host, username and database", "database.mysql", m.Host)
	}
	return nil
}

func mysqlDSN(m conf.MySQLSettings) string {
	port := m.Port
	if port == "" {
		port = "3306"
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		m.Username, m.Password, m.Host, port, m.Database)
}

// Open connects to MySQL.
func (store *MySQLStore) Open() error {
	if err := validateMySQLConfig(store.Settings); err != nil {
		return err
	}
	if store.Logger == nil {
		store.Logger = GetLogger().Module("mysql")
	}

	m := store.Settings.Database.MySQL
	db, err := gorm.Open(mysql.Open(mysqlDSN(m)), &gorm.Config{
		Logger: newGormLogger(store.Logger),
	})
	if err != nil {
		store.Logger.Error("Failed to open MySQL database",
			logger.String("host", m.Host),
			logger.String("port", m.Port),
			logger.String("database", m.Database),
			logger.Error(err))
		return dbError(err, "open", errors.PriorityHigh, "db_type", "mysql", "host", m.Host)
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Database.AutoMigrate, "mysql")
}

// Close releases the MySQL connection pool.
func (store *MySQLStore) Close() error {
	return store.closeDB("mysql")
}
