package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunInProgress RunStatus = "in_progress"
	RunSuccess    RunStatus = "success"
	RunFailed     RunStatus = "failed"
	RunCancelled  RunStatus = "cancelled"
)

// IsTerminal reports whether the status ends a run.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunSuccess, RunFailed, RunCancelled:
		return true
	}
	return false
}

// LogLevel is the severity of a run log entry.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Run is the persisted record of one pipeline execution (runs/<id>/meta.json).
type Run struct {
	ID          string           `json:"id"`
	Timestamp   time.Time        `json:"timestamp"`
	StartedAt   time.Time        `json:"startedAt"`
	Metadata    map[string]any   `json:"metadata"`
	Status      RunStatus        `json:"status"`
	Features    []FeatureSummary `json:"features"`
	Errors      []ErrorRecord    `json:"errors"`
	Logs        []LogRecord      `json:"logs"`
	CompletedAt *time.Time       `json:"completedAt,omitempty"`
	DurationMS  *int64           `json:"duration,omitempty"` // milliseconds
}

// Duration returns the run duration, or zero while the run is in progress.
func (r *Run) Duration() time.Duration {
	if r.DurationMS == nil {
		return 0
	}
	return time.Duration(*r.DurationMS) * time.Millisecond
}

// clone returns a deep-enough copy for handing out to callers.
func (r *Run) clone() *Run {
	c := *r
	c.Metadata = make(map[string]any, len(r.Metadata))
	for k, v := range r.Metadata {
		c.Metadata[k] = v
	}
	c.Features = append([]FeatureSummary{}, r.Features...)
	c.Errors = append([]ErrorRecord{}, r.Errors...)
	c.Logs = append([]LogRecord{}, r.Logs...)
	return &c
}

// FeatureSummary records one feature saved during a run.
type FeatureSummary struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Files     int       `json:"files"`
	Diffs     int       `json:"diffs"`
}

// ErrorRecord is an error captured during a run.
type ErrorRecord struct {
	Message   string         `json:"message"`
	Stack     string         `json:"stack"`
	Timestamp time.Time      `json:"timestamp"`
	Context   map[string]any `json:"context,omitempty"`
}

// LogRecord is a log entry captured during a run.
type LogRecord struct {
	Level     LogLevel       `json:"level"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// GeneratedFile is one generated output file. Content is opaque.
type GeneratedFile struct {
	RelativePath string `json:"relativePath"`
	Content      []byte `json:"-"`
	ContentHash  string `json:"contentHash,omitempty"`
}

// Hash returns the sha256 of the content, computing it if unset.
func (f GeneratedFile) Hash() string {
	if f.ContentHash != "" {
		return f.ContentHash
	}
	return HashContent(f.Content)
}

// HashContent returns the hex sha256 of data.
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DiffRecord is a precomputed unified diff stored for preview.
type DiffRecord struct {
	Name    string `json:"name"`
	Content string `json:"-"`
}

// Bundle is what a producer hands the store for one feature.
type Bundle struct {
	Metadata map[string]any
	Files    []GeneratedFile
	Diffs    []DiffRecord
}

// AppliedMarker records that a feature was applied to a target.
type AppliedMarker struct {
	Target    string    `json:"target"`
	AppliedAt time.Time `json:"appliedAt"`
	Files     int       `json:"files"`
	Commit    string    `json:"commit,omitempty"`
	BackupID  string    `json:"backupId,omitempty"`
}

// FeatureArtifact is a stored feature bundle
// (artifacts/features/<feature>/meta.json plus files/ and diffs/).
type FeatureArtifact struct {
	Name      string          `json:"name"`
	RunID     string          `json:"runId"`
	Metadata  map[string]any  `json:"metadata"`
	Timestamp time.Time       `json:"timestamp"`
	Files     []GeneratedFile `json:"files"`
	Diffs     []DiffRecord    `json:"diffs"`
	Applied   *AppliedMarker  `json:"applied,omitempty"`
}

// FilePaths returns the relative paths of the feature's files, in order.
func (f *FeatureArtifact) FilePaths() []string {
	paths := make([]string, len(f.Files))
	for i, file := range f.Files {
		paths[i] = file.RelativePath
	}
	return paths
}

// FileMap returns the feature's files keyed by relative path.
func (f *FeatureArtifact) FileMap() map[string][]byte {
	files := make(map[string][]byte, len(f.Files))
	for _, file := range f.Files {
		files[file.RelativePath] = file.Content
	}
	return files
}
