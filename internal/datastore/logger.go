package datastore

import (
	"time"

	gorm_logger "gorm.io/gorm/logger"

	"github.com/birdnetpi/speciestools/internal/logger"
)

// slowQueryThreshold marks queries logged at warn level.
const slowQueryThreshold = 200 * time.Millisecond

// GetLogger returns the datastore module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}

// newGormLogger routes GORM output into the datastore logger; SQL shows at trace level.
func newGormLogger(l logger.Logger) gorm_logger.Interface {
	if l == nil {
		l = GetLogger()
	}
	return logger.NewGormLoggerAdapter(l, slowQueryThreshold)
}
