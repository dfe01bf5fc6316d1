// Package notification delivers species lifecycle events to shoutrrr services
// and MQTT brokers.
package notification

import (
	"context"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/birdnetpi/speciestools/internal/logger"
)

// EventSpeciesDeleted is the event type of SpeciesDeleted.
const EventSpeciesDeleted = "species.deleted"

// SpeciesDeleted reports a completed species delete.
type SpeciesDeleted struct {
	Event          string    `json:"event"`
	CommonName     string    `json:"common_name"`
	ScientificName string    `json:"scientific_name,omitempty"`
	RowsDeleted    int64     `json:"rows_deleted"`
	FilesDeleted   int       `json:"files_deleted"`
	Time           time.Time `json:"time"`
}

// NewSpeciesDeleted stamps an event with its type and the current time.
func NewSpeciesDeleted(commonName, scientificName string, rows int64, files int) SpeciesDeleted {
	return SpeciesDeleted{
		Event:          EventSpeciesDeleted,
		CommonName:     commonName,
		ScientificName: scientificName,
		RowsDeleted:    rows,
		FilesDeleted:   files,
		Time:           time.Now(),
	}
}

// Title is the subject line used by push services.
func (e SpeciesDeleted) Title() string {
	return "Species deleted"
}

// Message is the human readable body.
func (e SpeciesDeleted) Message() string {
	p := message.NewPrinter(language.English)
	name := e.CommonName
	if e.ScientificName != "" {
		name += " (" + e.ScientificName + ")"
	}
	return p.Sprintf("%s: removed %d detections and %d recordings", name, e.RowsDeleted, e.FilesDeleted)
}

// Notifier delivers species events.
type Notifier interface {
	Name() string
	NotifySpeciesDeleted(ctx context.Context, event SpeciesDeleted) error
}

// GetLogger returns the notification module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("notification")
}
