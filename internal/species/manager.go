// Package species locates, previews and deletes the stored data of a species:
// detection rows, extracted recordings, their spectrogram sidecars and the
// matching confirmed-list entry.
//
// Every filesystem path is checked against the storage root before it is
// touched, and mutations go through the root's sandbox. A root that cannot be
// resolved fails every operation closed.
package species

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/birdnetpi/speciestools/internal/datastore"
	"github.com/birdnetpi/speciestools/internal/diskmanager"
	"github.com/birdnetpi/speciestools/internal/errors"
	"github.com/birdnetpi/speciestools/internal/logger"
	"github.com/birdnetpi/speciestools/internal/notification"
	"github.com/birdnetpi/speciestools/internal/observability/metrics"
	"github.com/birdnetpi/speciestools/internal/securefs"
	"github.com/birdnetpi/speciestools/internal/specieslist"
)

// notifyTimeout bounds the detached event delivery after a delete.
const notifyTimeout = 30 * time.Second

// GetLogger returns the species module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("species")
}

// Manager runs previews and deletes against one storage root and detection
// store. It is safe for concurrent use.
type Manager struct {
	root       *securefs.Root
	store      datastore.Interface
	lists      *specieslist.Store
	layouts    Layouts
	metrics    *metrics.SpeciesMetrics
	notifier   notification.Notifier
	summarizer *diskmanager.Summarizer

	locks    *keyedMutex
	previews singleflight.Group
	pending  sync.WaitGroup

	// onTransition observes delete state changes in tests.
	onTransition func(name string, from, to State)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLayouts replaces the default layout registry.
func WithLayouts(layouts Layouts) Option {
	return func(m *Manager) {
		if len(layouts) > 0 {
			m.layouts = layouts
		}
	}
}

// WithMetrics records operations on m.
func WithMetrics(sm *metrics.SpeciesMetrics) Option {
	return func(m *Manager) { m.metrics = sm }
}

// WithNotifier sends species.deleted events to n.
func WithNotifier(n notification.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithSummarizer enables Summary and invalidates its cache after deletes.
func WithSummarizer(s *diskmanager.Summarizer) Option {
	return func(m *Manager) { m.summarizer = s }
}

// NewManager returns a Manager. A nil root is accepted and makes every
// operation fail with a configuration error.
func NewManager(root *securefs.Root, store datastore.Interface, lists *specieslist.Store, opts ...Option) *Manager {
	m := &Manager{
		root:    root,
		store:   store,
		lists:   lists,
		layouts: DefaultLayouts(),
		locks:   newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Close waits for pending event deliveries.
func (m *Manager) Close() {
	m.pending.Wait()
}

// validateName rejects empty species names. The name is otherwise used
// exactly as given.
func validateName(commonName string) error {
	if strings.TrimSpace(commonName) == "" {
		return errors.ValidationError("species", "species name must not be empty")
	}
	return nil
}

// Entry is one row of the species table: detection totals plus list
// membership.
type Entry struct {
	CommonName     string `json:"common_name"`
	ScientificName string `json:"scientific_name"`
	Count          int64  `json:"count"`
	Identifier     string `json:"identifier"`
	Excluded       bool   `json:"excluded"`
	Whitelisted    bool   `json:"whitelisted"`
	Confirmed      bool   `json:"confirmed"`
}

// Species lists every species in the store with its list memberships.
func (m *Manager) Species(ctx context.Context) ([]Entry, error) {
	counts, err := m.store.SpeciesSummary(ctx)
	if err != nil {
		return nil, err
	}

	var excluded, whitelisted, confirmed map[string]bool
	if m.lists != nil {
		if excluded, err = m.membership(specieslist.Exclude); err != nil {
			return nil, err
		}
		if whitelisted, err = m.membership(specieslist.Whitelist); err != nil {
			return nil, err
		}
		if confirmed, err = m.membership(specieslist.Confirmed); err != nil {
			return nil, err
		}
	}

	entries := make([]Entry, 0, len(counts))
	for _, c := range counts {
		id := specieslist.Composite(c.ScientificName, c.CommonName)
		entries = append(entries, Entry{
			CommonName:     c.CommonName,
			ScientificName: c.ScientificName,
			Count:          c.Count,
			Identifier:     id,
			Excluded:       excluded[id],
			Whitelisted:    whitelisted[id],
			Confirmed:      confirmed[c.ScientificName] || confirmed[id],
		})
	}
	return entries, nil
}

func (m *Manager) membership(kind specieslist.Kind) (map[string]bool, error) {
	l, err := m.lists.List(kind)
	if err != nil {
		return nil, err
	}
	ids, err := l.All()
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set, nil
}

// ToggleMembership adds or removes an identifier on a species list.
func (m *Manager) ToggleMembership(list, identifier, action string) error {
	start := time.Now()
	if m.lists == nil {
		err := errors.Newf("species lists are not configured").
			Component("species").
			Category(errors.CategoryConfiguration).
			Build()
		m.metrics.RecordOperation(metrics.OpToggle, metrics.StatusError, time.Since(start))
		return err
	}
	err := m.lists.ToggleMembership(list, identifier, action)
	m.metrics.RecordOperation(metrics.OpToggle, statusFor(err), time.Since(start))
	return err
}

// Summary reports recordings per species on disk for every species in the
// store.
func (m *Manager) Summary(ctx context.Context) (*diskmanager.Summary, error) {
	start := time.Now()
	summary, err := m.summary(ctx)
	m.metrics.RecordOperation(metrics.OpSummary, statusFor(err), time.Since(start))
	return summary, err
}

func (m *Manager) summary(ctx context.Context) (*diskmanager.Summary, error) {
	if m.summarizer == nil {
		return nil, errors.Newf("disk summary is not enabled").
			Component("species").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := m.root.Revalidate(); err != nil {
		return nil, err
	}
	counts, err := m.store.SpeciesSummary(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(counts))
	for _, c := range counts {
		names = append(names, c.CommonName)
	}
	return m.summarizer.Summarize(ctx, names)
}

func statusFor(err error) string {
	switch {
	case err == nil:
		return metrics.StatusSuccess
	case errors.IsCategory(err, errors.CategoryValidation), errors.IsCategory(err, errors.CategoryConfiguration):
		return metrics.StatusRejected
	default:
		return metrics.StatusError
	}
}
