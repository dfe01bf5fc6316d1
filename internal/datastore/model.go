// model.go defines the detections table shared with the ingestion pipeline
package datastore

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// DetectionDate is a calendar date stored as YYYY-MM-DD.
//
// The detections table declares Date as DATE, which the SQLite and MySQL
// drivers hand back as time.Time. Scan folds that back into the text form
// the on-disk layout uses.
type DetectionDate string

// Scan implements sql.Scanner.
func (d *DetectionDate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = ""
	case string:
		*d = DetectionDate(v)
	case []byte:
		*d = DetectionDate(v)
	case time.Time:
		*d = DetectionDate(v.Format(time.DateOnly))
	default:
		return fmt.Errorf("cannot scan %T into DetectionDate", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (d DetectionDate) Value() (driver.Value, error) {
	return string(d), nil
}

// String returns the date as YYYY-MM-DD.
func (d DetectionDate) String() string {
	return string(d)
}

// Detection is one row of the detections table. Rows are read-only here and
// only ever removed in bulk per species.
type Detection struct {
	Date           DetectionDate `gorm:"column:Date;type:date;index:idx_detections_date"`
	Time           string        `gorm:"column:Time;type:time"`
	ScientificName string        `gorm:"column:Sci_Name;type:varchar(100);not null"`
	CommonName     string        `gorm:"column:Com_Name;type:varchar(100);not null;index:idx_detections_com_name"`
	Confidence     float64       `gorm:"column:Confidence"`
	Latitude       *float64      `gorm:"column:Lat"`
	Longitude      *float64      `gorm:"column:Lon"`
	Cutoff         float64       `gorm:"column:Cutoff"`
	Week           int           `gorm:"column:Week"`
	Sensitivity    float64       `gorm:"column:Sens"`
	Overlap        float64       `gorm:"column:Overlap"`
	FileName       string        `gorm:"column:File_Name;type:varchar(100);not null"`
}

// TableName keeps the BirdNET-Pi table name instead of GORM's plural.
func (Detection) TableName() string {
	return "detections"
}

// SpeciesCount is the number of detections stored for one species.
type SpeciesCount struct {
	CommonName     string `gorm:"column:Com_Name"`
	ScientificName string `gorm:"column:Sci_Name"`
	Count          int64  `gorm:"column:Count"`
}
