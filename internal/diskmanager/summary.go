// Package diskmanager reports how many recordings each species keeps on disk.
package diskmanager

import (
	"cmp"
	"context"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/birdnetpi/speciestools/internal/errors"
	"github.com/birdnetpi/speciestools/internal/logger"
	"github.com/birdnetpi/speciestools/internal/observability/metrics"
	"github.com/birdnetpi/speciestools/internal/securefs"
)

const (
	summaryCacheKey = "summary"
	summaryTTL      = time.Minute

	// shiftedDir holds time-shifted copies one level deeper than by_date.
	shiftedDir = "shifted"
)

var nonNameChars = regexp.MustCompile(`[^A-Za-z0-9_]`)

// SpeciesCount is the number of recordings kept for one species directory.
type SpeciesCount struct {
	Name    string `json:"name"`
	Dir     string `json:"dir"`
	Count   int    `json:"count"`
	Display string `json:"display"`
}

// Summary describes the recordings stored under the storage root.
type Summary struct {
	Root         string         `json:"root"`
	TotalSpecies int            `json:"total_species"`
	TotalFiles   int            `json:"total_files"`
	TotalDisplay string         `json:"total_display"`
	SizeBytes    uint64         `json:"size_bytes"`
	FreeBytes    uint64         `json:"free_bytes"`
	DiskTotal    uint64         `json:"disk_total_bytes"`
	DiskUsed     uint64         `json:"disk_used_bytes"`
	UsedPercent  float64        `json:"disk_used_percent"`
	Species      []SpeciesCount `json:"species"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

type usageFunc func(ctx context.Context, path string) (*disk.UsageStat, error)

// Summarizer builds and caches disk summaries for one storage root.
type Summarizer struct {
	root    *securefs.Root
	cache   *cache.Cache
	metrics *metrics.DiskManagerMetrics
	usage   usageFunc
}

// NewSummarizer returns a Summarizer for root. m may be nil.
func NewSummarizer(root *securefs.Root, m *metrics.DiskManagerMetrics) *Summarizer {
	return &Summarizer{
		root:    root,
		cache:   cache.New(summaryTTL, 2*summaryTTL),
		metrics: m,
		usage:   disk.UsageWithContext,
	}
}

// GetLogger returns the diskmanager module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("diskmanager")
}

// SanitizeName maps a common name to its directory token: spaces become
// underscores, everything outside [A-Za-z0-9_] is dropped and trailing
// underscores are trimmed.
func SanitizeName(name string) string {
	s := nonNameChars.ReplaceAllString(strings.ReplaceAll(name, " ", "_"), "")
	return strings.TrimRight(s, "_")
}

// FormatCount renders counts of 1000 and more as thousands, e.g. 1.2k.
func FormatCount(n int) string {
	if n >= 1000 {
		return fmt.Sprintf("%.1fk", float64(n)/1000)
	}
	return fmt.Sprintf("%d", n)
}

// Invalidate drops the cached summary.
func (s *Summarizer) Invalidate() {
	if s == nil {
		return
	}
	s.cache.Delete(summaryCacheKey)
}

// Summarize counts recordings for the given common names. Results are cached
// for one minute.
func (s *Summarizer) Summarize(ctx context.Context, names []string) (*Summary, error) {
	if cached, found := s.cache.Get(summaryCacheKey); found {
		s.metrics.RecordCacheLookup(true)
		return cached.(*Summary), nil
	}
	s.metrics.RecordCacheLookup(false)

	if err := s.root.Revalidate(); err != nil {
		return nil, err
	}

	start := time.Now()
	summary, err := s.build(ctx, names)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordSummary(summary.TotalSpecies, summary.TotalFiles, time.Since(start))
	s.metrics.UpdateDiskUsage(summary.DiskUsed, summary.DiskTotal)
	s.cache.Set(summaryCacheKey, summary, cache.DefaultExpiration)
	return summary, nil
}

func (s *Summarizer) build(ctx context.Context, names []string) (*Summary, error) {
	counts := make(map[string]int)
	for _, name := range names {
		if dir := SanitizeName(name); dir != "" {
			counts[dir] = 0
		}
	}

	var size uint64
	err := fs.WalkDir(s.root.FS(), ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable subtrees are skipped, the root itself is not
			if path == "." {
				return err
			}
			GetLogger().Debug("Skipping unreadable path", logger.String("path", path), logger.Error(err))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if info, infoErr := d.Info(); infoErr == nil {
			size += uint64(max(info.Size(), 0))
		}
		if strings.HasSuffix(strings.ToLower(path), ".png") {
			return nil
		}
		if dir, ok := speciesDir(path); ok {
			if _, tracked := counts[dir]; tracked {
				counts[dir]++
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.New(err).
			Component("diskmanager").
			Category(errors.CategoryFileIO).
			Context("operation", "summarize").
			Build()
	}

	summary := &Summary{
		Root:         s.root.Dir(),
		TotalSpecies: len(counts),
		SizeBytes:    size,
		Species:      make([]SpeciesCount, 0, len(counts)),
		GeneratedAt:  time.Now(),
	}
	for dir, count := range counts {
		summary.TotalFiles += count
		summary.Species = append(summary.Species, SpeciesCount{
			Name:    strings.ReplaceAll(dir, "_", " "),
			Dir:     dir,
			Count:   count,
			Display: FormatCount(count),
		})
	}
	slices.SortFunc(summary.Species, func(a, b SpeciesCount) int {
		return cmp.Or(cmp.Compare(b.Count, a.Count), strings.Compare(a.Name, b.Name))
	})
	summary.TotalDisplay = FormatCount(summary.TotalFiles)

	usage, err := s.usage(ctx, s.root.Dir())
	if err != nil {
		GetLogger().Warn("Failed to read disk usage", logger.String("root", s.root.Dir()), logger.Error(err))
	} else {
		summary.FreeBytes = usage.Free
		summary.DiskTotal = usage.Total
		summary.DiskUsed = usage.Used
		summary.UsedPercent = usage.UsedPercent
	}

	GetLogger().Debug("Disk summary computed",
		logger.Int("species", summary.TotalSpecies),
		logger.Int("files", summary.TotalFiles),
		logger.Uint64("size_bytes", summary.SizeBytes),
		logger.Uint64("free_bytes", summary.FreeBytes),
		logger.Float64("disk_used_percent", summary.UsedPercent),
		logger.Time("generated_at", summary.GeneratedAt))
	return summary, nil
}

// speciesDir returns the species directory component of a slash separated
// path relative to the root: {date}/{species}/... or shifted/{date}/{species}/...
func speciesDir(path string) (string, bool) {
	parts := strings.Split(path, "/")
	if parts[0] == shiftedDir {
		parts = parts[1:]
	}
	// date dir, species dir and at least the file itself
	if len(parts) < 3 {
		return "", false
	}
	return parts[1], true
}
