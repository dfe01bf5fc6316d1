package species

import (
	"context"
	"path/filepath"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/birdnetpi/speciestools/internal/errors"
	"github.com/birdnetpi/speciestools/internal/logger"
	"github.com/birdnetpi/speciestools/internal/observability/metrics"
	"github.com/birdnetpi/speciestools/internal/securefs"
)

// TargetSet is everything a delete of one species would touch. It is
// computed fresh for every request.
type TargetSet struct {
	CommonName     string
	ScientificName string   // first non-empty value seen in the rows
	Rows           int      // matching detection rows
	Files          []string // unique canonical paths, discovery order
	Dirs           []string // parent directories to prune, discovery order
}

// FileCount is the number of distinct files on disk.
func (t TargetSet) FileCount() int {
	return len(t.Files)
}

// Preview reports the rows and files a delete of commonName would remove.
// It mutates nothing. Overlapping previews of the same species share one
// computation.
func (m *Manager) Preview(ctx context.Context, commonName string) (TargetSet, error) {
	start := time.Now()
	targets, err := m.preview(ctx, commonName)
	m.metrics.RecordOperation(metrics.OpPreview, statusFor(err), time.Since(start))
	return targets, err
}

func (m *Manager) preview(ctx context.Context, commonName string) (TargetSet, error) {
	if err := validateName(commonName); err != nil {
		return TargetSet{}, err
	}
	if err := m.root.Revalidate(); err != nil {
		return TargetSet{}, err
	}

	// the shared computation must outlive any single caller's cancellation
	ch := m.previews.DoChan(commonName, func() (any, error) {
		return m.collect(context.WithoutCancel(ctx), commonName, metrics.StageCollect)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return TargetSet{}, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return TargetSet{}, res.Err
	}

	// shared result, hand each caller its own slices
	targets := res.Val.(TargetSet)
	targets.Files = slices.Clone(targets.Files)
	targets.Dirs = slices.Clone(targets.Dirs)
	return targets, nil
}

// collect queries the rows of commonName and keeps every candidate that is
// contained in the root and exists as a regular file or symlink.
func (m *Manager) collect(ctx context.Context, commonName, stage string) (TargetSet, error) {
	log := GetLogger().WithContext(ctx)

	rows, err := m.store.SpeciesDetections(ctx, commonName)
	if err != nil {
		return TargetSet{}, err
	}

	targets := TargetSet{CommonName: commonName, Rows: len(rows)}
	files := make(map[string]struct{})
	dirs := make(map[string]struct{})
	rootDir := m.root.Dir()

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return TargetSet{}, err
		}
		if targets.ScientificName == "" && row.ScientificName != "" {
			targets.ScientificName = row.ScientificName
		}

		for _, candidate := range m.layouts.ResolveCandidates(row, rootDir) {
			canonical, err := m.root.Resolve(candidate)
			if err != nil {
				if errors.Is(err, securefs.ErrPathTraversal) || errors.Is(err, securefs.ErrInvalidPath) {
					log.Warn("Rejected candidate outside storage root",
						logger.String("species", commonName),
						logger.String("path", candidate),
						logger.String("stage", stage))
					m.metrics.RecordContainmentViolation(stage)
				}
				continue
			}
			if _, seen := files[canonical]; seen {
				continue
			}
			if !m.root.IsFileOrSymlink(canonical) {
				continue
			}

			files[canonical] = struct{}{}
			targets.Files = append(targets.Files, canonical)

			dir := filepath.Dir(canonical)
			if _, seen := dirs[dir]; !seen {
				dirs[dir] = struct{}{}
				targets.Dirs = append(targets.Dirs, dir)
			}
		}
	}

	log.Debug("Collected species targets",
		logger.String("species", commonName),
		logger.Int("rows", targets.Rows),
		logger.Int("files", len(targets.Files)),
		logger.Int("dirs", len(targets.Dirs)))
	return targets, nil
}
