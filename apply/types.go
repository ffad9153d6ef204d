package apply

import (
	"fmt"
	"time"
)

// Mode selects how conflicts gate an apply.
type Mode string

const (
	// ModeSafe refuses to write while conflicts are unresolved.
	ModeSafe Mode = "safe"
	// ModeForce writes every file regardless of conflicts or validation.
	ModeForce Mode = "force"
	// ModeMerge three-way merges conflicting files against the HEAD version.
	ModeMerge Mode = "merge"
)

// Resolution is the policy applied to detected conflicts.
type Resolution string

const (
	ResolveNone      Resolution = ""
	ResolveOverwrite Resolution = "overwrite"
	ResolveSkip      Resolution = "skip"
	ResolveReview    Resolution = "review"
	ResolveCancel    Resolution = "cancel"
)

// ParseMode validates a mode name. Empty selects ModeSafe.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return ModeSafe, nil
	case ModeSafe, ModeForce, ModeMerge:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q (want safe, force or merge)", s)
}

// ParseResolution validates a resolution name.
func ParseResolution(s string) (Resolution, error) {
	switch r := Resolution(s); r {
	case ResolveNone, ResolveOverwrite, ResolveSkip, ResolveReview, ResolveCancel:
		return r, nil
	}
	return "", fmt.Errorf("unknown resolution %q (want overwrite, skip, review or cancel)", s)
}

// Status is the terminal outcome of an apply.
type Status string

const (
	StatusSuccess          Status = "success"
	StatusPartial          Status = "partial" // some files skipped or left in merge conflict
	StatusConflicts        Status = "conflicts"
	StatusCancelled        Status = "cancelled"
	StatusValidationFailed Status = "validation_failed"
	StatusNotFound         Status = "not_found"
	StatusNoArtifacts      Status = "no_artifacts"
	StatusFailed           Status = "failed"
)

// Phase is a state of the apply state machine.
type Phase string

const (
	PhaseValidating         Phase = "validating"
	PhaseBackup             Phase = "backup"
	PhaseLoadFiles          Phase = "load_files"
	PhaseValidate           Phase = "validate"
	PhaseConflictCheck      Phase = "conflict_check"
	PhaseConflictResolution Phase = "conflict_resolution"
	PhaseApplyFiles         Phase = "apply_files"
	PhaseUpdateProgress     Phase = "update_progress"
	PhasePostApply          Phase = "post_apply_actions"
)

// TargetState describes the target tree after Execute returns.
type TargetState string

const (
	TargetUnchanged TargetState = "unchanged"
	TargetApplied   TargetState = "applied"
	TargetRestored  TargetState = "restored"
	// TargetUndefined means writes failed part-way with no backup to restore
	// from; the target may hold any mix of old and new files.
	TargetUndefined TargetState = "undefined"
)

// ConflictKind classifies a conflict.
type ConflictKind string

const (
	// KindModified: the target file exists and differs from the generated bytes.
	KindModified ConflictKind = "modified"
	// KindMerge: a three-way merge left conflict markers.
	KindMerge ConflictKind = "merge"
)

// Conflict is a target file the apply cannot write without losing content.
type Conflict struct {
	Path string       `json:"path"`
	Kind ConflictKind `json:"kind"`
}

// Options controls one Execute call.
type Options struct {
	Mode           Mode
	Resolution     Resolution
	Backup         bool
	Validate       bool
	GitIntegration bool
	Interactive    bool   // with no Resolution, selects ResolveReview
	Branch         string // commit onto this branch, creating it from HEAD if needed
	CommitMessage  string // overrides the generated commit message
	DryRun         bool   // stop before writing; report what would happen
}

// DefaultOptions returns safe mode with backups enabled.
func DefaultOptions() Options {
	return Options{Mode: ModeSafe, Backup: true}
}

// ActionResult records one post-apply action.
type ActionResult struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Skipped bool   `json:"skipped,omitempty"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Result is returned by every terminal branch of Execute.
type Result struct {
	Status         Status         `json:"status"`
	Feature        string         `json:"feature"`
	Target         string         `json:"target"`
	AppliedFiles   []string       `json:"appliedFiles"`
	UnchangedFiles []string       `json:"unchangedFiles,omitempty"`
	Skipped        []string       `json:"skipped,omitempty"`
	SkippedFiles   int            `json:"skippedFiles"`
	FailedFiles    int            `json:"failedFiles"`
	Conflicts      []Conflict     `json:"conflicts"`
	Backup         *Backup        `json:"backup,omitempty"`
	RolledBack     bool           `json:"rolledBack,omitempty"`
	TargetState    TargetState    `json:"targetState"`
	Commit         string         `json:"commit,omitempty"`
	Message        string         `json:"message,omitempty"`
	Suggestion     string         `json:"suggestion,omitempty"`
	Validation     string         `json:"validation,omitempty"`
	Actions        []ActionResult `json:"actions,omitempty"`
	Phases         []Phase        `json:"phases"`
	DryRun         bool           `json:"dryRun,omitempty"`
	Duration       time.Duration  `json:"duration"`
}

// Applied reports whether the apply completed its write phase.
func (r *Result) Applied() bool {
	return r.Status == StatusSuccess || r.Status == StatusPartial
}
