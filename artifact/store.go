package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	nanoid "github.com/matoous/go-nanoid/v2"

	gserrors "github.com/randalmurphal/genstage/errors"
	"github.com/randalmurphal/genstage/filetree"
)

const (
	runsDirName     = "runs"
	archiveDirName  = "archive"
	featuresDirName = "artifacts/features"
	metaFileName    = "meta.json"

	runIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Config holds configuration for a Store.
type Config struct {
	BaseDir       string          // State root (default: ".genstage")
	CompressAbove int64           // Gzip generated files at least this large (default: 10KB, <0 disables)
	Retention     RetentionConfig // Applied by Cleanup
	Logger        *slog.Logger    // Default: slog.Default()
	Now           func() time.Time
}

// Store persists runs and feature artifacts under a state root.
// It does not serialize runs: starting a second run while one is active is
// the caller's responsibility to prevent.
type Store struct {
	baseDir       string
	compressAbove int64
	retention     RetentionConfig
	logger        *slog.Logger
	now           func() time.Time

	mu     sync.RWMutex
	active *Session
}

// NewStore creates a store rooted at cfg.BaseDir, creating the runs directory.
func NewStore(cfg Config) (*Store, error) {
	if cfg.BaseDir == "" {
		cfg.BaseDir = ".genstage"
	}
	if cfg.CompressAbove == 0 {
		cfg.CompressAbove = 10 * 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	s := &Store{
		baseDir:       cfg.BaseDir,
		compressAbove: cfg.CompressAbove,
		retention:     cfg.Retention,
		logger:        cfg.Logger,
		now:           cfg.Now,
	}
	if err := os.MkdirAll(s.runsDir(), 0o755); err != nil {
		return nil, gserrors.IO("create runs dir", err)
	}
	return s, nil
}

// BaseDir returns the state root.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// RunDir returns the directory of a run.
func (s *Store) RunDir(runID string) string {
	return filepath.Join(s.runsDir(), runID)
}

// FeatureDir returns the directory of a stored feature.
func (s *Store) FeatureDir(name string) string {
	return filepath.Join(s.featuresDir(), name)
}

func (s *Store) runsDir() string {
	return filepath.Join(s.baseDir, runsDirName)
}

func (s *Store) featuresDir() string {
	return filepath.Join(s.baseDir, filepath.FromSlash(featuresDirName))
}

func (s *Store) archiveDir() string {
	return filepath.Join(s.baseDir, archiveDirName)
}

// StartRun creates a run and returns the session handle that owns it.
func (s *Store) StartRun(metadata map[string]any) (*Session, error) {
	now := s.now()
	id, err := newRunID(now)
	if err != nil {
		return nil, err
	}

	if metadata == nil {
		metadata = map[string]any{}
	}
	run := &Run{
		ID:        id,
		Timestamp: now,
		StartedAt: now,
		Metadata:  metadata,
		Status:    RunInProgress,
		Features:  []FeatureSummary{},
		Errors:    []ErrorRecord{},
		Logs:      []LogRecord{},
	}

	dir := s.RunDir(id)
	for _, sub := range []string{"diffs", "files", "logs"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, gserrors.IO("create run dir", err)
		}
	}
	if err := writeJSON(filepath.Join(dir, metaFileName), run); err != nil {
		return nil, gserrors.IO("write run metadata", err)
	}

	session := &Session{store: s, run: run, dir: dir}

	s.mu.Lock()
	if s.active != nil {
		s.logger.Warn("starting run while another is active", "active", s.active.ID(), "new", id)
	}
	s.active = session
	s.mu.Unlock()

	s.logger.Info("run started", "run", id)
	return session, nil
}

// Active returns the session of the active run, or ErrNoActiveRun.
func (s *Store) Active() (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return nil, gserrors.ErrNoActiveRun
	}
	return s.active, nil
}

func (s *Store) activeID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return ""
	}
	return s.active.ID()
}

func (s *Store) release(session *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == session {
		s.active = nil
	}
}

// LoadRunMetadata reads runs/<id>/meta.json.
func (s *Store) LoadRunMetadata(runID string) (*Run, error) {
	if err := validName(runID); err != nil {
		return nil, err
	}
	return readRun(s.RunDir(runID))
}

// AllRuns returns every run under runs/, newest first. A missing runs
// directory yields an empty list. Runs whose metadata cannot be read are
// left out and reported together in the returned error.
func (s *Store) AllRuns() ([]*Run, error) {
	entries, err := os.ReadDir(s.runsDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*Run{}, nil
		}
		return nil, gserrors.IO("list runs", err)
	}

	runs := make([]*Run, 0, len(entries))
	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		run, err := readRun(filepath.Join(s.runsDir(), entry.Name()))
		if err != nil {
			errs = append(errs, fmt.Errorf("run %s: %w", entry.Name(), err))
			continue
		}
		runs = append(runs, run)
	}

	sortNewestFirst(runs)
	return runs, errors.Join(errs...)
}

// RecentRuns returns the n most recently started runs.
func (s *Store) RecentRuns(n int) ([]*Run, error) {
	runs, err := s.AllRuns()
	if n >= 0 && len(runs) > n {
		runs = runs[:n]
	}
	return runs, err
}

// DeleteRun removes a run directory. The active run cannot be deleted.
func (s *Store) DeleteRun(runID string) error {
	if err := s.checkInactive(runID); err != nil {
		return err
	}
	dir := s.RunDir(runID)
	if _, err := os.Stat(dir); err != nil {
		return notFoundOrIO("run "+runID, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return gserrors.IO("delete run", err)
	}
	s.logger.Info("run deleted", "run", runID)
	return nil
}

// LoadRunDiff reads runs/<id>/diffs/<name>; the .diff suffix is optional.
func (s *Store) LoadRunDiff(runID, name string) (string, error) {
	if err := validName(runID); err != nil {
		return "", err
	}
	rel, err := diffRel(name)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filetree.Join(filepath.Join(s.RunDir(runID), "diffs"), rel))
	if err != nil {
		return "", notFoundOrIO("diff "+name, err)
	}
	return string(data), nil
}

// LoadRunFile reads a generated file saved in a run, decompressing if needed.
func (s *Store) LoadRunFile(runID, relPath string) ([]byte, error) {
	if err := validName(runID); err != nil {
		return nil, err
	}
	rel, err := filetree.CleanRel(relPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gserrors.ErrValidation, err)
	}
	path := filetree.Join(filepath.Join(s.RunDir(runID), "files"), rel)

	if data, err := loadCompressed(path + gzSuffix); err == nil {
		return data, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, gserrors.IO("read compressed file", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, notFoundOrIO("file "+rel, err)
	}
	return data, nil
}

// RunFiles lists the generated files saved in a run, without .gz suffixes.
func (s *Store) RunFiles(runID string) ([]string, error) {
	tree, err := filetree.Scan(filepath.Join(s.RunDir(runID), "files"), filetree.ScanOptions{
		IgnoreDirs:    []string{},
		IncludeHidden: true,
		StripSuffix:   gzSuffix,
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, gserrors.IO("list run files", err)
	}
	return tree.Paths(), nil
}

func (s *Store) checkInactive(runID string) error {
	if err := validName(runID); err != nil {
		return err
	}
	if runID == s.activeID() {
		return fmt.Errorf("%w: run %s is active", gserrors.ErrValidation, runID)
	}
	return nil
}

func newRunID(now time.Time) (string, error) {
	suffix, err := nanoid.Generate(runIDAlphabet, 6)
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return now.Format("20060102-150405") + "-" + suffix, nil
}

func readRun(dir string) (*Run, error) {
	data, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if err != nil {
		return nil, notFoundOrIO("run "+filepath.Base(dir), err)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, gserrors.IO("parse run metadata", err)
	}
	return &run, nil
}

func sortNewestFirst(runs []*Run) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return filetree.WriteFile(filepath.Dir(path), filepath.Base(path), data, 0o644)
}

func notFoundOrIO(what string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", what, gserrors.ErrNotFound)
	}
	return gserrors.IO("read "+what, err)
}

// validName rejects identifiers that are not a single path segment.
func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: invalid name %q", gserrors.ErrValidation, name)
	}
	return nil
}

// diffRel returns the stored relative path of a diff, adding ".diff" when
// the name has no diff or patch extension.
func diffRel(name string) (string, error) {
	if !strings.HasSuffix(name, ".diff") && !strings.HasSuffix(name, ".patch") {
		name += ".diff"
	}
	rel, err := filetree.CleanRel(name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", gserrors.ErrValidation, err)
	}
	return rel, nil
}
