package species

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/birdnetpi/speciestools/internal/errors"
	"github.com/birdnetpi/speciestools/internal/logger"
	"github.com/birdnetpi/speciestools/internal/notification"
	"github.com/birdnetpi/speciestools/internal/observability/metrics"
)

// State is a step of a species delete. A delete only ever moves forward.
type State string

const (
	StateIdle            State = "IDLE"
	StateValidatingRoot  State = "VALIDATING_ROOT"
	StateRejected        State = "REJECTED"
	StateCollecting      State = "COLLECTING"
	StateDeletingFiles   State = "DELETING_FILES"
	StatePruningDirs     State = "PRUNING_DIRS"
	StateDeletingRows    State = "DELETING_ROWS"
	StateReconcilingList State = "RECONCILING_CONFIRMED_LIST"
	StateDone            State = "DONE"
)

// sidecarExt is the extension of generated spectrogram images.
const sidecarExt = ".png"

// DeleteResult holds the achieved counts of a delete.
type DeleteResult struct {
	RowsDeleted  int64 `json:"rows_deleted"`
	FilesDeleted int   `json:"files_deleted"`
}

type deleteRun struct {
	m       *Manager
	log     logger.Logger
	name    string
	state   State
	targets TargetSet
	result  DeleteResult
}

func (r *deleteRun) enter(next State) {
	r.log.Debug("Species delete state",
		logger.String("species", r.name),
		logger.String("from", string(r.state)),
		logger.String("to", string(next)))
	if r.m.onTransition != nil {
		r.m.onTransition(r.name, r.state, next)
	}
	r.state = next
}

// Delete removes every file, sidecar and detection row of commonName and
// drops the species from the confirmed list. The returned counts are what was
// actually removed. Files that are already gone count as success.
//
// A store failure while deleting rows is returned; files removed before it
// stay removed and a rerun finishes the job.
func (m *Manager) Delete(ctx context.Context, commonName string) (DeleteResult, error) {
	start := time.Now()
	result, err := m.delete(ctx, commonName)
	m.metrics.RecordOperation(metrics.OpDelete, statusFor(err), time.Since(start))
	return result, err
}

func (m *Manager) delete(ctx context.Context, commonName string) (DeleteResult, error) {
	if err := validateName(commonName); err != nil {
		return DeleteResult{}, err
	}

	r := &deleteRun{
		m:     m,
		log:   GetLogger().WithContext(ctx),
		name:  commonName,
		state: StateIdle,
	}

	r.enter(StateValidatingRoot)
	if err := m.root.Revalidate(); err != nil {
		r.enter(StateRejected)
		r.log.Error("Species delete rejected, storage root unavailable",
			logger.String("species", commonName),
			logger.Error(err))
		return DeleteResult{}, err
	}

	unlock := m.locks.Lock(commonName)
	defer unlock()

	r.enter(StateCollecting)
	targets, err := m.collect(ctx, commonName, metrics.StageDelete)
	if err != nil {
		return DeleteResult{}, err
	}
	r.targets = targets

	r.enter(StateDeletingFiles)
	r.deleteFiles()

	r.enter(StatePruningDirs)
	r.pruneDirs()

	r.enter(StateDeletingRows)
	rows, err := m.store.DeleteSpeciesDetections(ctx, commonName)
	if err != nil {
		r.log.Error("Failed to delete species rows",
			logger.String("species", commonName),
			logger.Int("files_deleted", r.result.FilesDeleted),
			logger.Error(err))
		return r.result, err
	}
	r.result.RowsDeleted = rows

	r.enter(StateReconcilingList)
	r.reconcileConfirmed()

	r.enter(StateDone)
	m.metrics.RecordDeleted(r.result.RowsDeleted, r.result.FilesDeleted)
	r.log.Info("Species deleted",
		logger.String("species", commonName),
		logger.Int64("rows_deleted", r.result.RowsDeleted),
		logger.Int("files_deleted", r.result.FilesDeleted))

	if r.result.RowsDeleted > 0 || r.result.FilesDeleted > 0 {
		m.summarizer.Invalidate()
		m.notify(ctx, notification.NewSpeciesDeleted(commonName, targets.ScientificName,
			r.result.RowsDeleted, r.result.FilesDeleted))
	}
	return r.result, nil
}

func (r *deleteRun) deleteFiles() {
	for _, file := range r.targets.Files {
		if !r.m.root.Contains(file) {
			r.log.Warn("Skipping file no longer inside storage root", logger.String("path", file))
			r.m.metrics.RecordContainmentViolation(metrics.StageDelete)
			continue
		}

		err := r.m.root.Remove(file)
		switch {
		case err == nil:
			r.result.FilesDeleted++
		case errors.Is(err, fs.ErrNotExist):
			r.log.Debug("File already gone", logger.String("path", file))
		default:
			r.log.Warn("Failed to delete file", logger.String("path", file), logger.Error(err))
			r.m.metrics.RecordFileDeleteError(metrics.KindFile)
			continue
		}

		r.deleteSidecars(file)
	}
}

// sidecarPaths returns the spectrogram paths a recording may have:
// {file}.png and {file without extension}.png.
func sidecarPaths(file string) []string {
	paths := []string{file + sidecarExt}
	if ext := filepath.Ext(file); ext != "" && !strings.EqualFold(ext, sidecarExt) {
		paths = append(paths, strings.TrimSuffix(file, ext)+sidecarExt)
	}
	return paths
}

func (r *deleteRun) deleteSidecars(file string) {
	for _, sidecar := range sidecarPaths(file) {
		if !r.m.root.Contains(sidecar) {
			continue
		}
		err := r.m.root.Remove(sidecar)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			continue
		}
		r.log.Warn("Failed to delete spectrogram", logger.String("path", sidecar), logger.Error(err))
		r.m.metrics.RecordFileDeleteError(metrics.KindSidecar)
	}
}

func (r *deleteRun) pruneDirs() {
	for _, dir := range r.targets.Dirs {
		if !r.m.root.Contains(dir) {
			r.m.metrics.RecordContainmentViolation(metrics.StagePrune)
			continue
		}
		if err := r.m.root.RemoveDirIfEmpty(dir); err != nil {
			r.log.Debug("Directory not pruned", logger.String("path", dir), logger.Error(err))
		}
	}
}

// reconcileConfirmed drops the species from the confirmed list. Rows and
// files are already gone at this point, so a write failure is only logged.
func (r *deleteRun) reconcileConfirmed() {
	sci := r.targets.ScientificName
	if sci == "" || r.m.lists == nil {
		return
	}
	removed, err := r.m.lists.Confirmed().RemoveScientificName(sci)
	if err != nil {
		r.log.Error("Failed to update confirmed species list",
			logger.String("scientific_name", sci),
			logger.Error(err))
		return
	}
	if removed > 0 {
		r.log.Info("Removed species from confirmed list",
			logger.String("scientific_name", sci),
			logger.Int("entries", removed))
	}
}

// notify delivers event in the background. Delivery never affects the delete.
func (m *Manager) notify(ctx context.Context, event notification.SpeciesDeleted) {
	if m.notifier == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	m.pending.Go(func() {
		nctx, cancel := context.WithTimeout(detached, notifyTimeout)
		defer cancel()
		if err := m.notifier.NotifySpeciesDeleted(nctx, event); err != nil {
			GetLogger().WithContext(nctx).Warn("Species deleted event not delivered",
				logger.String("species", event.CommonName),
				logger.Error(err))
		}
	})
}
