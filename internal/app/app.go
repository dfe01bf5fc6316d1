// Package app wires the species lifecycle components from settings.
package app

import (
	"github.com/birdnetpi/speciestools/internal/conf"
	"github.com/birdnetpi/speciestools/internal/datastore"
	"github.com/birdnetpi/speciestools/internal/diskmanager"
	"github.com/birdnetpi/speciestools/internal/errors"
	"github.com/birdnetpi/speciestools/internal/logger"
	"github.com/birdnetpi/speciestools/internal/notification"
	"github.com/birdnetpi/speciestools/internal/observability"
	"github.com/birdnetpi/speciestools/internal/securefs"
	"github.com/birdnetpi/speciestools/internal/species"
	"github.com/birdnetpi/speciestools/internal/specieslist"
)

// App holds the opened components shared by every command.
type App struct {
	Settings *conf.Settings
	Metrics  *observability.Metrics
	Store    datastore.Interface
	Root     *securefs.Root
	Lists    *specieslist.Store
	Notifier *notification.Multi
	Species  *species.Manager
}

// GetLogger returns the app module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("app")
}

// New opens the detection store and storage root and builds the species
// manager. An unresolvable storage root is not fatal: the manager refuses
// every file operation until restarted with a valid root.
func New(settings *conf.Settings) (*App, error) {
	log := GetLogger()

	layouts, err := species.LayoutsByName(settings.Storage.Layouts)
	if err != nil {
		return nil, err
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, errors.New(err).
			Component("app").
			Category(errors.CategoryConfiguration).
			Build()
	}

	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return nil, err
	}

	root, err := securefs.NewRoot(settings.Storage.Root)
	if err != nil {
		log.Error("Storage root unavailable, file operations will be refused",
			logger.String("storage_root", settings.Storage.Root),
			logger.Error(err))
	}

	a := &App{
		Settings: settings,
		Metrics:  m,
		Store:    store,
		Root:     root,
		Lists:    specieslist.NewStore(settings.Lists),
		Notifier: notification.New(settings.Notifications, m.Notification),
	}

	opts := []species.Option{
		species.WithLayouts(layouts),
		species.WithMetrics(m.Species),
		species.WithSummarizer(diskmanager.NewSummarizer(root, m.DiskManager)),
	}
	if a.Notifier.Len() > 0 {
		opts = append(opts, species.WithNotifier(a.Notifier))
	}
	a.Species = species.NewManager(root, store, a.Lists, opts...)

	log.Debug("Application initialized",
		logger.String("db_type", settings.Database.Type),
		logger.Any("layouts", settings.Storage.Layouts),
		logger.Int("notifiers", a.Notifier.Len()))
	return a, nil
}

// Close waits for pending notifications and releases every component.
func (a *App) Close() error {
	a.Species.Close()
	a.Notifier.Close()
	return errors.Join(a.Store.Close(), a.Root.Close())
}

// Run opens the application, calls fn and closes it again.
func Run(settings *conf.Settings, fn func(a *App) error) error {
	a, err := New(settings)
	if err != nil {
		return err
	}
	runErr := fn(a)
	if err := a.Close(); err != nil {
		GetLogger().Warn("Failed to close application cleanly", logger.Error(err))
	}
	return runErr
}
