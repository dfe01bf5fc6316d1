package species

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/birdnetpi/speciestools/internal/conf"
	"github.com/birdnetpi/speciestools/internal/datastore"
	"github.com/birdnetpi/speciestools/internal/errors"
)

// Layout is one on-disk naming convention for extracted recordings. Path must
// be pure string construction; it never touches the filesystem.
type Layout struct {
	Name string
	Path func(root, date, dir, file string) string
}

// Layouts is an ordered registry of conventions.
type Layouts []Layout

var (
	// ByDate is {root}/{date}/{dir}/{file}.
	ByDate = Layout{
		Name: conf.LayoutByDate,
		Path: func(root, date, dir, file string) string {
			return joinRaw(root, date, dir, file)
		},
	}

	// Shifted is {root}/shifted/{date}/{dir}/{file}, written by the time
	// shift feature.
	Shifted = Layout{
		Name: conf.LayoutShifted,
		Path: func(root, date, dir, file string) string {
			return joinRaw(root, "shifted", date, dir, file)
		},
	}
)

// DefaultLayouts returns the built in registry in resolution order.
func DefaultLayouts() Layouts {
	return Layouts{ByDate, Shifted}
}

// LayoutsByName builds a registry from configured layout names, keeping
// their order.
func LayoutsByName(names []string) (Layouts, error) {
	if len(names) == 0 {
		return DefaultLayouts(), nil
	}
	known := make(map[string]Layout)
	for _, l := range DefaultLayouts() {
		known[l.Name] = l
	}

	layouts := make(Layouts, 0, len(names))
	seen := make(map[string]bool)
	for _, name := range names {
		l, ok := known[name]
		if !ok {
			return nil, errors.New(fmt.Errorf("unknown storage layout %q", name)).
				Component("species").
				Category(errors.CategoryConfiguration).
				Context("layout", name).
				Build()
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		layouts = append(layouts, l)
	}
	return layouts, nil
}

// DirectoryToken maps a common name to its species directory name: spaces
// become underscores and apostrophes are removed.
func DirectoryToken(commonName string) string {
	return strings.ReplaceAll(strings.ReplaceAll(commonName, " ", "_"), "'", "")
}

// ResolveCandidates returns one candidate path per layout for a detection.
// Candidates are unvalidated; an empty root yields none.
func (ls Layouts) ResolveCandidates(d datastore.Detection, root string) []string {
	if root == "" {
		return nil
	}
	dir := DirectoryToken(d.CommonName)
	candidates := make([]string, 0, len(ls))
	for _, l := range ls {
		candidates = append(candidates, l.Path(root, d.Date.String(), dir, d.FileName))
	}
	return candidates
}

// ResolveCandidates resolves d against the default layouts.
func ResolveCandidates(d datastore.Detection, root string) []string {
	return DefaultLayouts().ResolveCandidates(d, root)
}

// joinRaw joins path elements without cleaning them, so ".." in a stored
// filename survives to be rejected by the containment check.
func joinRaw(root string, elems ...string) string {
	sep := string(filepath.Separator)
	var b strings.Builder
	b.WriteString(strings.TrimRight(root, sep))
	for _, e := range elems {
		b.WriteString(sep)
		b.WriteString(e)
	}
	return b.String()
}
