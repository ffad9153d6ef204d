package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"

	gserrors "github.com/randalmurphal/genstage/errors"
	"github.com/randalmurphal/genstage/filetree"
)

// Session is the handle for an active run. Every run-scoped operation goes
// through it; once End is called they fail with ErrNoActiveRun.
type Session struct {
	store *Store
	dir   string

	mu    sync.Mutex
	run   *Run
	ended bool
}

// ID returns the run ID.
func (s *Session) ID() string {
	return s.run.ID
}

// Dir returns the run directory.
func (s *Session) Dir() string {
	return s.dir
}

// Run returns a snapshot of the run record.
func (s *Session) Run() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run.clone()
}

// End finalizes the run with a terminal status and persists it.
func (s *Session) End(status RunStatus) (*Run, error) {
	if !status.IsTerminal() {
		return nil, fmt.Errorf("%w: %q is not a terminal status", gserrors.ErrValidation, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, gserrors.ErrNoActiveRun
	}

	now := s.store.now()
	ms := now.Sub(s.run.StartedAt).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	s.run.Status = status
	s.run.CompletedAt = &now
	s.run.DurationMS = &ms

	if err := s.persistLocked(); err != nil {
		return nil, err
	}
	s.ended = true
	s.store.release(s)

	s.store.logger.Info("run ended", "run", s.run.ID, "status", status, "features", len(s.run.Features))
	return s.run.clone(), nil
}

// SaveFeatureArtifacts stores a feature bundle under artifacts/features/<name>,
// replacing any earlier bundle of the same name, then records the feature on
// the run and persists the run metadata.
func (s *Session) SaveFeatureArtifacts(name string, bundle Bundle) error {
	if err := validName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return gserrors.ErrNoActiveRun
	}

	now := s.store.now()
	feature := &FeatureArtifact{
		Name:      name,
		RunID:     s.run.ID,
		Metadata:  bundle.Metadata,
		Timestamp: now,
		Files:     make([]GeneratedFile, 0, len(bundle.Files)),
		Diffs:     make([]DiffRecord, 0, len(bundle.Diffs)),
	}
	if feature.Metadata == nil {
		feature.Metadata = map[string]any{}
	}

	// Validate everything before touching the previous bundle.
	files := make([]GeneratedFile, 0, len(bundle.Files))
	for _, f := range bundle.Files {
		rel, err := filetree.CleanRel(f.RelativePath)
		if err != nil {
			return fmt.Errorf("%w: %v", gserrors.ErrValidation, err)
		}
		files = append(files, GeneratedFile{RelativePath: rel, Content: f.Content, ContentHash: f.Hash()})
	}
	diffs := make([]DiffRecord, 0, len(bundle.Diffs))
	for _, d := range bundle.Diffs {
		rel, err := diffRel(d.Name)
		if err != nil {
			return err
		}
		diffs = append(diffs, DiffRecord{Name: rel, Content: d.Content})
	}

	dir := s.store.FeatureDir(name)
	staging := dir + ".tmp"
	if err := os.RemoveAll(staging); err != nil {
		return gserrors.IO("clear feature staging", err)
	}

	for _, f := range files {
		if err := filetree.WriteFile(filepath.Join(staging, "files"), f.RelativePath, f.Content, 0o644); err != nil {
			os.RemoveAll(staging)
			return gserrors.IO("write feature file", err)
		}
		feature.Files = append(feature.Files, GeneratedFile{RelativePath: f.RelativePath, ContentHash: f.ContentHash})
	}
	for _, d := range diffs {
		if err := filetree.WriteFile(filepath.Join(staging, "diffs"), d.Name, []byte(d.Content), 0o644); err != nil {
			os.RemoveAll(staging)
			return gserrors.IO("write feature diff", err)
		}
		feature.Diffs = append(feature.Diffs, DiffRecord{Name: d.Name})
	}
	if err := writeJSON(filepath.Join(staging, metaFileName), feature); err != nil {
		os.RemoveAll(staging)
		return gserrors.IO("write feature metadata", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		os.RemoveAll(staging)
		return gserrors.IO("replace feature", err)
	}
	if err := os.Rename(staging, dir); err != nil {
		return gserrors.IO("replace feature", err)
	}

	s.run.Features = append(s.run.Features, FeatureSummary{
		Name:      name,
		Timestamp: now,
		Files:     len(files),
		Diffs:     len(diffs),
	})
	if err := s.persistLocked(); err != nil {
		return err
	}

	s.store.logger.Debug("feature saved", "run", s.run.ID, "feature", name, "files", len(files), "diffs", len(diffs))
	return nil
}

// SaveDiff stores diff text under runs/<id>/diffs/.
func (s *Session) SaveDiff(name, text string) error {
	rel, err := diffRel(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return gserrors.ErrNoActiveRun
	}

	if err := filetree.WriteFile(filepath.Join(s.dir, "diffs"), rel, []byte(text), 0o644); err != nil {
		return gserrors.IO("save diff", err)
	}
	return nil
}

// SaveGeneratedFile stores a generated file under runs/<id>/files/,
// gzip-compressed to <path>.gz when it reaches the store's threshold.
func (s *Session) SaveGeneratedFile(relPath string, content []byte) error {
	rel, err := filetree.CleanRel(relPath)
	if err != nil {
		return fmt.Errorf("%w: %v", gserrors.ErrValidation, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return gserrors.ErrNoActiveRun
	}

	filesDir := filepath.Join(s.dir, "files")
	path := filetree.Join(filesDir, rel)

	if s.store.compressAbove > 0 && int64(len(content)) >= s.store.compressAbove {
		os.Remove(path)
		if err := saveCompressed(path+gzSuffix, content); err != nil {
			return gserrors.IO("save compressed file", err)
		}
		return nil
	}

	os.Remove(path + gzSuffix)
	if err := filetree.WriteFile(filesDir, rel, content, 0o644); err != nil {
		return gserrors.IO("save generated file", err)
	}
	return nil
}

// Log records a log entry on the run. Persisting it is best-effort; failures
// are reported to the store logger and never returned.
func (s *Session) Log(level LogLevel, message string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return gserrors.ErrNoActiveRun
	}

	record := LogRecord{Level: level, Message: message, Timestamp: s.store.now(), Data: data}
	s.run.Logs = append(s.run.Logs, record)
	s.appendLogLine(level, record)
	s.persistBestEffort()
	return nil
}

// LogError records an error on the run along with the caller's stack.
// Like Log, persistence is best-effort.
func (s *Session) LogError(err error, context map[string]any) error {
	if err == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return gserrors.ErrNoActiveRun
	}

	record := ErrorRecord{
		Message:   err.Error(),
		Stack:     string(debug.Stack()),
		Timestamp: s.store.now(),
		Context:   context,
	}
	s.run.Errors = append(s.run.Errors, record)
	s.appendLogLine(LevelError, record)
	s.persistBestEffort()
	return nil
}

func (s *Session) appendLogLine(level LogLevel, v any) {
	if level == "" {
		level = LevelInfo
	}
	if err := appendJSONLine(filepath.Join(s.dir, "logs", string(level)+".log"), v); err != nil {
		s.store.logger.Debug("run log write failed", "run", s.run.ID, "error", err)
	}
}

func (s *Session) persistBestEffort() {
	if err := s.persistLocked(); err != nil {
		s.store.logger.Debug("run metadata write failed", "run", s.run.ID, "error", err)
	}
}

func (s *Session) persistLocked() error {
	if err := writeJSON(filepath.Join(s.dir, metaFileName), s.run); err != nil {
		return gserrors.IO("write run metadata", err)
	}
	return nil
}

func appendJSONLine(path string, v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
