// Package specieslist manages the line-delimited species list files shared
// with the rest of the BirdNET-Pi tooling.
//
// Every operation re-reads the file right before mutating it and writes the
// full replacement through a temp file and rename. Nothing is cached and
// concurrent writers are not locked out: the last writer wins.
//
// Reads trim identifiers and skip blank and duplicate lines. Writes only
// touch the lines an operation adds or removes; every other line is kept
// byte for byte, and a missing final newline is restored.
package specieslist

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/birdnetpi/speciestools/internal/conf"
	"github.com/birdnetpi/speciestools/internal/errors"
	"github.com/birdnetpi/speciestools/internal/logger"
)

// Kind names one of the managed lists.
type Kind string

const (
	Confirmed Kind = "confirmed" // scientific names
	Exclude   Kind = "exclude"   // Sci_Common identifiers
	Whitelist Kind = "whitelist" // Sci_Common identifiers
)

// Action is a membership change requested through ToggleMembership.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// GetLogger returns the specieslist module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("specieslist")
}

// ParseKind validates a list name.
func ParseKind(name string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(name))); k {
	case Confirmed, Exclude, Whitelist:
		return k, nil
	}
	return "", errors.Newf("unknown species list %q", name).
		Component("specieslist").
		Category(errors.CategoryValidation).
		Context("list", name).
		Build()
}

// ParseAction validates an action. "del" is accepted for older callers.
func ParseAction(action string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "add":
		return ActionAdd, nil
	case "remove", "del":
		return ActionRemove, nil
	}
	return "", errors.Newf("unknown list action %q", action).
		Component("specieslist").
		Category(errors.CategoryValidation).
		Context("action", action).
		Build()
}

// Composite builds the Sci_Common identifier used by the exclude and
// whitelist files. Apostrophes are stripped.
func Composite(scientificName, commonName string) string {
	return strings.ReplaceAll(scientificName+"_"+commonName, "'", "")
}

// normalizeID trims id and rejects values that cannot be stored as one line.
func normalizeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.Newf("species identifier must not be empty").
			Component("specieslist").
			Category(errors.CategoryValidation).
			Build()
	}
	if strings.ContainsAny(id, "\r\n") {
		return "", errors.Newf("species identifier must be a single line").
			Component("specieslist").
			Category(errors.CategoryValidation).
			Context("identifier", id).
			Build()
	}
	return id, nil
}

// List is one list file.
type List struct {
	kind Kind
	path string
}

// NewList returns a list backed by path. The file need not exist.
func NewList(kind Kind, path string) *List {
	return &List{kind: kind, path: path}
}

// Kind returns which list this is.
func (l *List) Kind() Kind { return l.kind }

// Path returns the backing file.
func (l *List) Path() string { return l.path }

// All returns the identifiers in file order. A missing file is an empty list.
func (l *List) All() ([]string, error) {
	data, err := l.read()
	if err != nil {
		return nil, err
	}
	return parseIDs(data), nil
}

// read returns the raw file content. A missing file is empty.
func (l *List) read() (string, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", l.ioError(err, "read")
	}
	return string(data), nil
}

func parseIDs(data string) []string {
	var ids []string
	seen := make(map[string]struct{})
	for line := range strings.Lines(data) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		ids = append(ids, line)
	}
	return ids
}

// Contains reports whether id is on the list.
func (l *List) Contains(id string) (bool, error) {
	id, err := normalizeID(id)
	if err != nil {
		return false, err
	}
	ids, err := l.All()
	if err != nil {
		return false, err
	}
	return slices.Contains(ids, id), nil
}

// Add appends id unless present. It reports whether the file changed.
func (l *List) Add(id string) (bool, error) {
	id, err := normalizeID(id)
	if err != nil {
		return false, err
	}
	data, err := l.read()
	if err != nil {
		return false, err
	}
	if slices.Contains(parseIDs(data), id) {
		return false, nil
	}
	return true, l.write(withFinalNewline(data) + id + "\n")
}

// Remove deletes id. Removing an absent id is a no-op.
func (l *List) Remove(id string) (bool, error) {
	id, err := normalizeID(id)
	if err != nil {
		return false, err
	}
	removed, err := l.removeWhere(func(line string) bool { return line == id })
	return removed > 0, err
}

// Toggle applies action to id.
func (l *List) Toggle(id string, action Action) error {
	var err error
	switch action {
	case ActionAdd:
		_, err = l.Add(id)
	case ActionRemove:
		_, err = l.Remove(id)
	default:
		_, err = ParseAction(string(action))
	}
	return err
}

// RemoveScientificName removes every line whose scientific-name component,
// the text before the first "_", equals sci. Both plain scientific names and
// Sci_Common lines match. It returns the number of lines removed.
func (l *List) RemoveScientificName(sci string) (int, error) {
	sci, err := normalizeID(sci)
	if err != nil {
		return 0, err
	}
	return l.removeWhere(func(line string) bool {
		name, _, _ := strings.Cut(line, "_")
		return name == sci
	})
}

// removeWhere drops every line whose trimmed identifier matches and keeps
// the rest verbatim.
func (l *List) removeWhere(match func(string) bool) (int, error) {
	data, err := l.read()
	if err != nil {
		return 0, err
	}

	var kept strings.Builder
	removed := 0
	for line := range strings.Lines(data) {
		if id := strings.TrimSpace(line); id != "" && match(id) {
			removed++
			continue
		}
		kept.WriteString(line)
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, l.write(withFinalNewline(kept.String()))
}

func withFinalNewline(content string) string {
	if content != "" && !strings.HasSuffix(content, "\n") {
		return content + "\n"
	}
	return content
}

// write replaces the file atomically with content.
func (l *List) write(content string) error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return l.ioError(err, "mkdir")
	}

	mode := os.FileMode(0o644)
	if info, err := os.Stat(l.path); err == nil {
		mode = info.Mode().Perm()
	}

	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(l.path)+"-*")
	if err != nil {
		return l.ioError(err, "create_temp")
	}
	tempName := tempFile.Name()
	defer func() { _ = os.Remove(tempName) }()

	if _, err := tempFile.WriteString(content); err != nil {
		_ = tempFile.Close()
		return l.ioError(err, "write")
	}
	if err := tempFile.Close(); err != nil {
		return l.ioError(err, "close")
	}
	if err := os.Chmod(tempName, mode); err != nil {
		return l.ioError(err, "chmod")
	}
	if err := os.Rename(tempName, l.path); err != nil {
		return l.ioError(err, "rename")
	}

	GetLogger().Debug("Species list written",
		logger.String("list", string(l.kind)),
		logger.Int("entries", len(parseIDs(content))))
	return nil
}

func (l *List) ioError(err error, op string) error {
	return errors.New(fmt.Errorf("species list %s: %w", l.kind, err)).
		Component("specieslist").
		Category(errors.CategoryFileIO).
		Context("operation", op).
		Context("path", l.path).
		Build()
}

// Store gives access to the three configured lists.
type Store struct {
	lists map[Kind]*List
}

// NewStore builds the lists from configuration.
func NewStore(settings conf.ListSettings) *Store {
	return &Store{lists: map[Kind]*List{
		Confirmed: NewList(Confirmed, settings.ListPath(settings.Confirmed)),
		Exclude:   NewList(Exclude, settings.ListPath(settings.Exclude)),
		Whitelist: NewList(Whitelist, settings.ListPath(settings.Whitelist)),
	}}
}

// List returns the list named kind.
func (s *Store) List(kind Kind) (*List, error) {
	if l, ok := s.lists[kind]; ok {
		return l, nil
	}
	_, err := ParseKind(string(kind))
	return nil, err
}

// Confirmed returns the confirmed species list.
func (s *Store) Confirmed() *List {
	return s.lists[Confirmed]
}

// ToggleMembership adds or removes species on the named list.
func (s *Store) ToggleMembership(list, species, action string) error {
	kind, err := ParseKind(list)
	if err != nil {
		return err
	}
	act, err := ParseAction(action)
	if err != nil {
		return err
	}
	l, err := s.List(kind)
	if err != nil {
		return err
	}
	if err := l.Toggle(species, act); err != nil {
		return err
	}

	GetLogger().Info("Species list updated",
		logger.String("list", string(kind)),
		logger.String("action", string(act)),
		logger.String("species", strings.TrimSpace(species)))
	return nil
}
