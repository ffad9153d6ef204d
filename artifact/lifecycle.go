package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	gserrors "github.com/randalmurphal/genstage/errors"
	"github.com/randalmurphal/genstage/filetree"
)

// RetentionConfig defines the retention policy applied by Cleanup.
type RetentionConfig struct {
	MaxRuns int           // Keep at most this many runs; older ones are deleted (<=0 disables)
	MaxAge  time.Duration // Archive kept runs started longer ago than this (<=0 disables)
}

// DefaultRetentionConfig returns sensible defaults.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		MaxRuns: 50,
		MaxAge:  30 * 24 * time.Hour,
	}
}

// CleanupResult summarizes cleanup actions.
type CleanupResult struct {
	Archived   []string `json:"archived"`
	Deleted    []string `json:"deleted"`
	Kept       []string `json:"kept"`
	Errors     []string `json:"errors,omitempty"`
	SpaceSaved int64    `json:"spaceSaved"`
}

// Cleanup applies the retention policy. Runs are ordered by start time,
// newest first; those beyond MaxRuns are deleted, and of the rest, those
// older than MaxAge are moved to archive/<id>. The active run is never
// touched. Cleanup belongs at initialization, before a run starts.
func (s *Store) Cleanup(ctx context.Context, dryRun bool) (*CleanupResult, error) {
	result := &CleanupResult{
		Archived: make([]string, 0),
		Deleted:  make([]string, 0),
		Kept:     make([]string, 0),
	}

	runs, err := s.AllRuns()
	if runs == nil {
		return nil, err
	}
	if err != nil {
		// Unreadable runs are reported, not touched.
		result.Errors = append(result.Errors, err.Error())
	}

	activeID := s.activeID()
	now := s.now()

	position := 0
	for _, run := range runs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if run.ID == activeID {
			result.Kept = append(result.Kept, run.ID)
			continue
		}
		position++

		switch {
		case s.retention.MaxRuns > 0 && position > s.retention.MaxRuns:
			size, _ := filetree.Size(s.RunDir(run.ID))
			if !dryRun {
				if err := os.RemoveAll(s.RunDir(run.ID)); err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("delete %s: %v", run.ID, err))
					continue
				}
			}
			result.Deleted = append(result.Deleted, run.ID)
			result.SpaceSaved += size

		case s.retention.MaxAge > 0 && now.Sub(run.StartedAt) > s.retention.MaxAge:
			if !dryRun {
				if err := s.moveToArchive(run.ID); err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("archive %s: %v", run.ID, err))
					continue
				}
			}
			result.Archived = append(result.Archived, run.ID)

		default:
			result.Kept = append(result.Kept, run.ID)
		}
	}

	s.logger.Info("cleanup finished",
		"dry_run", dryRun,
		"deleted", len(result.Deleted),
		"archived", len(result.Archived),
		"kept", len(result.Kept),
		"errors", len(result.Errors),
	)
	return result, nil
}

// ArchiveRun moves a run wholesale to archive/<id>. The active run cannot
// be archived.
func (s *Store) ArchiveRun(runID string) error {
	if err := s.checkInactive(runID); err != nil {
		return err
	}
	if _, err := os.Stat(s.RunDir(runID)); err != nil {
		return notFoundOrIO("run "+runID, err)
	}
	return s.moveToArchive(runID)
}

func (s *Store) moveToArchive(runID string) error {
	dst := filepath.Join(s.archiveDir(), runID)
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%w: archive %s already exists", gserrors.ErrConflict, runID)
	}
	if err := os.MkdirAll(s.archiveDir(), 0o755); err != nil {
		return gserrors.IO("create archive dir", err)
	}
	if err := os.Rename(s.RunDir(runID), dst); err != nil {
		return gserrors.IO("archive run", err)
	}
	s.logger.Info("run archived", "run", runID)
	return nil
}

// ListArchives returns archived run IDs, sorted. A missing archive
// directory yields an empty list.
func (s *Store) ListArchives() ([]string, error) {
	entries, err := os.ReadDir(s.archiveDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, gserrors.IO("list archives", err)
	}

	archives := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			archives = append(archives, entry.Name())
		}
	}
	sort.Strings(archives)
	return archives, nil
}

// LoadArchivedRun reads the metadata of an archived run.
func (s *Store) LoadArchivedRun(runID string) (*Run, error) {
	if err := validName(runID); err != nil {
		return nil, err
	}
	return readRun(filepath.Join(s.archiveDir(), runID))
}

// RestoreArchive moves an archived run back under runs/.
func (s *Store) RestoreArchive(runID string) error {
	if err := validName(runID); err != nil {
		return err
	}
	src := filepath.Join(s.archiveDir(), runID)
	if _, err := os.Stat(src); err != nil {
		return notFoundOrIO("archive "+runID, err)
	}
	if _, err := os.Stat(s.RunDir(runID)); err == nil {
		return fmt.Errorf("%w: run %s already exists", gserrors.ErrConflict, runID)
	}
	if err := os.Rename(src, s.RunDir(runID)); err != nil {
		return gserrors.IO("restore archive", err)
	}
	return nil
}

// DeleteArchive removes an archived run.
func (s *Store) DeleteArchive(runID string) error {
	if err := validName(runID); err != nil {
		return err
	}
	dir := filepath.Join(s.archiveDir(), runID)
	if _, err := os.Stat(dir); err != nil {
		return notFoundOrIO("archive "+runID, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return gserrors.IO("delete archive", err)
	}
	return nil
}
