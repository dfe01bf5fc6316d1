// interfaces.go defines the detection store used by the species lifecycle core
package datastore

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/birdnetpi/speciestools/internal/conf"
	"github.com/birdnetpi/speciestools/internal/errors"
	"github.com/birdnetpi/speciestools/internal/logger"
)

// Interface abstracts the detections database.
type Interface interface {
	Open() error
	Close() error
	// SpeciesDetections returns every row whose common name equals commonName exactly.
	SpeciesDetections(ctx context.Context, commonName string) ([]Detection, error)
	// DeleteSpeciesDetections removes those rows and returns the affected-row count.
	DeleteSpeciesDetections(ctx context.Context, commonName string) (int64, error)
	// SpeciesSummary returns detection counts per common name.
	SpeciesSummary(ctx context.Context) ([]SpeciesCount, error)
}

// DataStore implements the queries shared by all GORM backends.
type DataStore struct {
	DB     *gorm.DB
	Logger logger.Logger
}

// New returns the store selected by settings.Database.Type.
func New(settings *conf.Settings) Interface {
	switch strings.ToLower(settings.Database.Type) {
	case conf.DatabaseMySQL:
		return &MySQLStore{Settings: settings}
	default:
		return &SQLiteStore{Settings: settings}
	}
}

func (ds *DataStore) log() logger.Logger {
	if ds.Logger != nil {
		return ds.Logger
	}
	return GetLogger()
}

// SpeciesDetections implements Interface.
func (ds *DataStore) SpeciesDetections(ctx context.Context, commonName string) ([]Detection, error) {
	if ds.DB == nil {
		return nil, dbError(ErrNotInitialized, "species_detections", errors.PriorityHigh)
	}
	if commonName == "" {
		return nil, validationError("common name must not be empty", "common_name", commonName)
	}

	var detections []Detection
	err := ds.DB.WithContext(ctx).
		Where("Com_Name = ?", commonName).
		Order("Date ASC, Time ASC").
		Find(&detections).Error
	if err != nil {
		return nil, dbError(err, "species_detections", errors.PriorityMedium,
			"common_name", commonName)
	}
	return detections, nil
}

// DeleteSpeciesDetections implements Interface. Deleting zero rows is not an error.
func (ds *DataStore) DeleteSpeciesDetections(ctx context.Context, commonName string) (int64, error) {
	if ds.DB == nil {
		return 0, dbError(ErrNotInitialized, "delete_species_detections", errors.PriorityHigh)
	}
	if commonName == "" {
		return 0, validationError("common name must not be empty", "common_name", commonName)
	}

	start := time.Now()
	result := ds.DB.WithContext(ctx).
		Where("Com_Name = ?", commonName).
		Delete(&Detection{})
	if result.Error != nil {
		return 0, errors.New(result.Error).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Priority(errors.PriorityHigh).
			Timing("delete_species_detections", time.Since(start)).
			Context("common_name", commonName).
			Build()
	}

	ds.log().Debug("Deleted species detections",
		logger.String("common_name", commonName),
		logger.Int64("rows", result.RowsAffected))
	return result.RowsAffected, nil
}

// SpeciesSummary implements Interface. Results are ordered by count, highest first.
func (ds *DataStore) SpeciesSummary(ctx context.Context) ([]SpeciesCount, error) {
	if ds.DB == nil {
		return nil, dbError(ErrNotInitialized, "species_summary", errors.PriorityMedium)
	}

	var counts []SpeciesCount
	err := ds.DB.WithContext(ctx).
		Model(&Detection{}).
		Select("Com_Name, MAX(Sci_Name) AS Sci_Name, COUNT(*) AS Count").
		Group("Com_Name").
		Order("Count DESC, Com_Name ASC").
		Scan(&counts).Error
	if err != nil {
		return nil, dbError(err, "species_summary", errors.PriorityMedium)
	}
	return counts, nil
}

// closeDB releases the underlying connection pool.
func (ds *DataStore) closeDB(dbType string) error {
	if ds.DB == nil {
		return dbError(ErrNotInitialized, "close", errors.PriorityLow, "db_type", dbType)
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close", errors.PriorityLow, "db_type", dbType)
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close", errors.PriorityLow, "db_type", dbType)
	}
	ds.log().Debug("Database connection closed", logger.String("db_type", dbType))
	return nil
}

// performAutoMigration creates the detections table when enabled. The table is
// normally owned by the ingestion pipeline, so this is off by default.
func performAutoMigration(db *gorm.DB, enabled bool, dbType string) error {
	if !enabled {
		return nil
	}
	if err := db.AutoMigrate(&Detection{}); err != nil {
		return dbError(err, "auto_migrate", errors.PriorityHigh, "db_type", dbType)
	}
	return nil
}
