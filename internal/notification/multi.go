package notification

import (
	"context"

	"github.com/birdnetpi/speciestools/internal/conf"
	"github.com/birdnetpi/speciestools/internal/errors"
	"github.com/birdnetpi/speciestools/internal/logger"
	"github.com/birdnetpi/speciestools/internal/observability/metrics"
)

// Multi fans an event out to every notifier. A failing backend does not stop
// the others.
type Multi struct {
	notifiers []Notifier
	metrics   *metrics.NotificationMetrics
}

// NewMulti combines notifiers. m may be nil.
func NewMulti(m *metrics.NotificationMetrics, notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers, metrics: m}
}

// New builds a Multi for the enabled backends in settings. A backend that
// fails to initialize is logged and skipped.
func New(settings conf.NotificationSettings, m *metrics.NotificationMetrics) *Multi {
	var notifiers []Notifier
	if settings.Shoutrrr.Enabled {
		n, err := NewShoutrrrNotifier(settings.Shoutrrr.URLs, settings.Shoutrrr.Timeout)
		if err != nil {
			GetLogger().Error("Shoutrrr notifier disabled", logger.Error(err))
		} else {
			notifiers = append(notifiers, n)
		}
	}
	if settings.MQTT.Enabled {
		notifiers = append(notifiers, NewMQTTNotifier(settings.MQTT))
	}
	return NewMulti(m, notifiers...)
}

// Name implements Notifier.
func (m *Multi) Name() string { return "multi" }

// Len returns the number of backends.
func (m *Multi) Len() int { return len(m.notifiers) }

// NotifySpeciesDeleted implements Notifier. Failures are joined.
func (m *Multi) NotifySpeciesDeleted(ctx context.Context, event SpeciesDeleted) error {
	var errs []error
	for _, n := range m.notifiers {
		err := n.NotifySpeciesDeleted(ctx, event)
		m.metrics.RecordDelivery(n.Name(), err)
		if err != nil {
			GetLogger().Warn("Notification delivery failed",
				logger.String("backend", n.Name()),
				logger.String("event", event.Event),
				logger.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases backends holding connections.
func (m *Multi) Close() {
	for _, n := range m.notifiers {
		if c, ok := n.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
