package apply

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"

	"github.com/randalmurphal/genstage/artifact"
	gserrors "github.com/randalmurphal/genstage/errors"
	"github.com/randalmurphal/genstage/filetree"
	"github.com/randalmurphal/genstage/git"
	"github.com/randalmurphal/genstage/notify"
)

// Engine applies stored feature artifacts to target directories.
//
// An Engine is safe to reuse across calls but not to run concurrently
// against the same target: conflict detection and backups assume nothing
// else writes the target while Execute runs.
type Engine struct {
	store       *artifact.Store
	backups     *BackupManager
	logger      *slog.Logger
	reviewer    Reviewer
	validator   Validator
	actions     []Action
	notifier    notify.Notifier
	onPhase     func(Phase)
	gitOpts     []git.Option
	keepBackups int
	now         func() time.Time

	// writeFile is swapped in tests to interrupt apply_files part-way.
	writeFile func(root, rel string, content []byte, mode fs.FileMode) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithReviewer sets the per-file conflict reviewer used by ResolveReview.
func WithReviewer(r Reviewer) Option {
	return func(e *Engine) { e.reviewer = r }
}

// WithValidator sets the checker run when Options.Validate is set.
func WithValidator(v Validator) Option {
	return func(e *Engine) { e.validator = v }
}

// WithActions sets the post-apply actions, run in order after a write.
func WithActions(actions ...Action) Option {
	return func(e *Engine) { e.actions = append(e.actions, actions...) }
}

// WithNotifier sets where apply events are sent.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithPhaseHook registers a callback invoked as each phase starts.
func WithPhaseHook(fn func(Phase)) Option {
	return func(e *Engine) { e.onPhase = fn }
}

// WithGitOptions sets options for the git contexts the engine creates.
func WithGitOptions(opts ...git.Option) Option {
	return func(e *Engine) { e.gitOpts = append(e.gitOpts, opts...) }
}

// WithBackupManager overrides where backups are stored.
func WithBackupManager(m *BackupManager) Option {
	return func(e *Engine) {
		if m != nil {
			e.backups = m
		}
	}
}

// WithKeepBackups prunes all but the newest n backups after a successful
// apply. Zero keeps everything.
func WithKeepBackups(n int) Option {
	return func(e *Engine) { e.keepBackups = n }
}

// WithClock sets the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an engine reading features from store. Backups go to
// <state root>/backups unless WithBackupManager says otherwise.
func New(store *artifact.Store, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		logger:    slog.Default(),
		notifier:  notify.NopNotifier{},
		now:       time.Now,
		writeFile: filetree.WriteFile,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.backups == nil {
		e.backups = NewBackupManager(filepath.Join(store.BaseDir(), "backups"), e.logger)
	}
	return e
}

// Backups returns the engine's backup manager.
func (e *Engine) Backups() *BackupManager {
	return e.backups
}

// execution is the state threaded through the apply graph.
type execution struct {
	opts      Options
	target    string // absolute
	feature   *artifact.FeatureArtifact
	paths     []string
	files     *filetree.Tree
	git       *git.Context
	backup    *Backup
	conflicts []Conflict
	writeSet  []string
	merged    map[string][]byte
	wrote     bool

	result *Result
	done   bool
	err    error
}

func (x *execution) finish(status Status, message, suggestion string) {
	x.result.Status = status
	x.result.Message = message
	x.result.Suggestion = suggestion
	x.done = true
}

func (x *execution) fail(err error) {
	x.err = err
	x.done = true
}

// Execute applies feature to target.
//
// Expected outcomes (missing feature, conflicts, validation failure,
// cancellation) come back as a Result with a nil error. An unexpected
// failure returns both the Result and the error; when a backup was taken the
// target has been rolled back (Result.RolledBack), otherwise
// Result.TargetState tells whether any write happened before the failure.
func (e *Engine) Execute(ctx context.Context, feature, target string, opts Options) (*Result, error) {
	start := e.now()
	if opts.Mode == "" {
		opts.Mode = ModeSafe
	}

	x := &execution{
		opts:   opts,
		merged: make(map[string][]byte),
		result: &Result{
			Feature:      feature,
			Target:       target,
			AppliedFiles: []string{},
			Conflicts:    []Conflict{},
			TargetState:  TargetUnchanged,
			DryRun:       opts.DryRun,
		},
	}

	e.logger.Info("apply started", "feature", feature, "target", target, "mode", opts.Mode, "dry_run", opts.DryRun)
	e.notify(ctx, notify.Event{
		Type:     notify.EventApplyStarted,
		Feature:  feature,
		Target:   target,
		Message:  fmt.Sprintf("Applying %s to %s", feature, target),
		Severity: notify.SeverityInfo,
	})

	if err := ctx.Err(); err != nil {
		x.fail(err)
		e.settleFailure(x)
		return x.result, err
	}

	graph := flowgraph.NewGraph[*execution]().
		AddNode(string(PhaseValidating), e.step(PhaseValidating, e.validating)).
		AddNode(string(PhaseBackup), e.step(PhaseBackup, e.takeBackup)).
		AddNode(string(PhaseLoadFiles), e.step(PhaseLoadFiles, e.loadFiles)).
		AddNode(string(PhaseValidate), e.step(PhaseValidate, e.validate)).
		AddNode(string(PhaseConflictCheck), e.step(PhaseConflictCheck, e.conflictCheck)).
		AddNode(string(PhaseConflictResolution), e.step(PhaseConflictResolution, e.resolveConflicts)).
		AddNode(string(PhaseApplyFiles), e.step(PhaseApplyFiles, e.applyFiles)).
		AddNode(string(PhaseUpdateProgress), e.step(PhaseUpdateProgress, e.updateProgress)).
		AddNode(string(PhasePostApply), e.step(PhasePostApply, e.postApply)).
		AddConditionalEdge(string(PhaseValidating), route(func(x *execution) Phase {
			if x.opts.Backup && !x.opts.DryRun {
				return PhaseBackup
			}
			return PhaseLoadFiles
		})).
		AddConditionalEdge(string(PhaseBackup), route(func(*execution) Phase {
			return PhaseLoadFiles
		})).
		AddConditionalEdge(string(PhaseLoadFiles), route(func(x *execution) Phase {
			if x.opts.Validate {
				return PhaseValidate
			}
			return PhaseConflictCheck
		})).
		AddConditionalEdge(string(PhaseValidate), route(func(*execution) Phase {
			return PhaseConflictCheck
		})).
		AddConditionalEdge(string(PhaseConflictCheck), route(func(x *execution) Phase {
			if len(x.conflicts) > 0 {
				return PhaseConflictResolution
			}
			return PhaseApplyFiles
		})).
		AddConditionalEdge(string(PhaseConflictResolution), route(func(*execution) Phase {
			return PhaseApplyFiles
		})).
		AddConditionalEdge(string(PhaseApplyFiles), route(func(*execution) Phase {
			return PhaseUpdateProgress
		})).
		AddConditionalEdge(string(PhaseUpdateProgress), route(func(x *execution) Phase {
			if len(x.result.AppliedFiles) > 0 && (len(e.actions) > 0 || x.opts.GitIntegration) {
				return PhasePostApply
			}
			return ""
		})).
		AddEdge(string(PhasePostApply), flowgraph.END).
		SetEntry(string(PhaseValidating))

	compiled, err := graph.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile apply graph: %w", err)
	}

	if _, err := compiled.Run(flowgraph.NewContext(ctx), x); err != nil && x.err == nil {
		x.err = err
	}
	if x.err != nil {
		e.settleFailure(x)
	}
	x.result.Duration = e.now().Sub(start)

	e.report(ctx, x)
	if x.err != nil {
		return x.result, x.err
	}
	return x.result, nil
}

// step wraps a phase handler as a graph node.
func (e *Engine) step(p Phase, fn func(context.Context, *execution)) func(flowgraph.Context, *execution) (*execution, error) {
	return func(ctx flowgraph.Context, x *execution) (*execution, error) {
		x.result.Phases = append(x.result.Phases, p)
		e.logger.Debug("apply phase", "phase", p, "feature", x.result.Feature)
		if e.onPhase != nil {
			e.onPhase(p)
		}
		fn(ctx, x)
		return x, nil
	}
}

// route ends the graph once a phase has reached a terminal outcome and
// otherwise follows next. An empty next phase also ends the graph.
func route(next func(*execution) Phase) func(flowgraph.Context, *execution) string {
	return func(_ flowgraph.Context, x *execution) string {
		if x.done {
			return flowgraph.END
		}
		if p := next(x); p != "" {
			return string(p)
		}
		return flowgraph.END
	}
}

func (e *Engine) validating(ctx context.Context, x *execution) {
	target, err := filepath.Abs(x.result.Target)
	if err != nil {
		x.fail(gserrors.IO("resolve target", err))
		return
	}
	x.target = target

	info, err := os.Stat(target)
	switch {
	case errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()):
		x.finish(StatusNotFound,
			fmt.Sprintf("Target %s is not a directory", target),
			"Check the target path")
		return
	case err != nil:
		x.fail(gserrors.IO("stat target", err))
		return
	}

	feature, err := e.store.LoadFeature(x.result.Feature)
	switch {
	case gserrors.IsNotFound(err) || gserrors.IsValidationError(err):
		x.finish(StatusNotFound,
			fmt.Sprintf("Feature %q not found", x.result.Feature),
			"Run `genstage features` to list stored features")
		return
	case err != nil:
		x.fail(err)
		return
	}
	if len(feature.Files) == 0 {
		x.finish(StatusNoArtifacts,
			fmt.Sprintf("Feature %q has no generated files", feature.Name),
			"Regenerate the feature before applying it")
		return
	}
	x.feature = feature
	x.paths = feature.FilePaths()

	if bad := e.forbiddenPaths(target, x.paths); len(bad) > 0 {
		x.finish(StatusValidationFailed,
			fmt.Sprintf("Refusing to write outside the working tree: %s", strings.Join(bad, ", ")),
			"Regenerate the feature with paths relative to the project root")
		return
	}

	if x.opts.Backup && !x.opts.DryRun {
		if sub := nestedStateSubtree(target, e.backups.Dir(), x.paths); sub != "" {
			x.finish(StatusValidationFailed,
				fmt.Sprintf("Backups directory %s lies inside %s, which this feature writes to", e.backups.Dir(), sub),
				"Move state_dir outside the project subtrees the feature touches, or apply with --no-backup")
			return
		}
	}

	if x.opts.GitIntegration || x.opts.Mode == ModeMerge {
		g, err := git.NewContext(target, e.gitOpts...)
		if err != nil {
			x.fail(gserrors.Vcs("open repository", err))
			return
		}
		x.git = g
	}
	switch {
	case x.opts.GitIntegration:
		if err := x.git.ValidateWorkingTree(ctx); err != nil {
			x.fail(err)
			return
		}
	case x.opts.Mode == ModeMerge:
		if !x.git.IsRepo(ctx) {
			x.fail(fmt.Errorf("merge mode needs the HEAD version of %s: %w", target, git.ErrNotGitRepo))
			return
		}
	}
}

// forbiddenPaths returns paths that are invalid or would land in the
// repository metadata or the state root.
func (e *Engine) forbiddenPaths(target string, paths []string) []string {
	stateRoot, err := filepath.Abs(e.store.BaseDir())
	if err != nil {
		stateRoot = e.store.BaseDir()
	}

	var bad []string
	for _, p := range paths {
		clean, err := filetree.CleanRel(p)
		if err != nil || filetree.TopLevel(clean) == ".git" || within(stateRoot, filetree.Join(target, clean)) {
			bad = append(bad, p)
		}
	}
	return bad
}

// nestedStateSubtree returns the top-level subtree of paths that contains
// dir, or "" when none does. Backing such a subtree up would copy dir into
// itself and restoring it would delete dir.
func nestedStateSubtree(target, dir string, paths []string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	for _, sub := range filetree.Subtrees(paths) {
		if within(filetree.Join(target, sub), abs) {
			return sub
		}
	}
	return ""
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (e *Engine) takeBackup(_ context.Context, x *execution) {
	b, err := e.backups.Create(x.target, x.feature.Name, x.paths)
	if err != nil {
		x.fail(err)
		return
	}
	x.backup = b
	x.result.Backup = b
}

func (e *Engine) loadFiles(_ context.Context, x *execution) {
	files, err := filetree.FromFiles(x.feature.FileMap())
	if err != nil {
		x.finish(StatusValidationFailed, err.Error(), "Regenerate the feature")
		return
	}
	x.files = files
	x.writeSet = files.Paths()
}

func (e *Engine) validate(ctx context.Context, x *execution) {
	if e.validator == nil {
		e.logger.Warn("validation requested but no validator configured", "feature", x.feature.Name)
		x.result.Validation = "skipped: no validator configured"
		return
	}

	if repo := e.repository(ctx, x); repo != nil {
		ctx = git.ContextWithGit(ctx, repo)
	}
	err := e.validator.Validate(ctx, x.files)
	if err == nil {
		x.result.Validation = "passed"
		return
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		x.fail(err)
		return
	}
	x.result.Validation = verr.Output
	if x.opts.Mode == ModeForce {
		e.logger.Warn("validation failed, continuing in force mode", "feature", x.feature.Name)
		return
	}
	x.finish(StatusValidationFailed,
		fmt.Sprintf("Generated files for %s failed validation", x.feature.Name),
		"Fix the generator output or re-run with --mode force")
}

// repository returns the target's git context when the target is a
// repository, opening one if the apply has not already.
func (e *Engine) repository(ctx context.Context, x *execution) *git.Context {
	if x.git != nil {
		return x.git
	}
	g, err := git.NewContext(x.target, e.gitOpts...)
	if err != nil || !g.IsRepo(ctx) {
		return nil
	}
	return g
}

func (e *Engine) conflictCheck(_ context.Context, x *execution) {
	conflicts, err := DetectConflicts(x.files, x.target)
	if err != nil {
		x.fail(err)
		return
	}
	x.conflicts = conflicts
	x.result.Conflicts = append([]Conflict{}, conflicts...)
	if len(conflicts) > 0 {
		e.logger.Info("conflicts detected", "feature", x.feature.Name, "count", len(conflicts))
	}
}

func (e *Engine) resolveConflicts(ctx context.Context, x *execution) {
	switch x.opts.effectiveResolution() {
	case ResolveOverwrite:
		return
	case ResolveSkip:
		for _, c := range x.conflicts {
			x.skip(c.Path)
		}
	case ResolveCancel:
		x.finish(StatusCancelled, "Apply cancelled; no files were written", "")
	case ResolveReview:
		e.review(ctx, x)
	default:
		if x.opts.Mode == ModeMerge {
			e.merge(ctx, x)
			return
		}
		x.finish(StatusConflicts,
			fmt.Sprintf("%d file(s) in the target differ from the generated files", len(x.conflicts)),
			"Re-run with --resolution overwrite, skip or review, or use --mode merge")
	}
}

// effectiveResolution picks the resolution used when conflicts exist.
// An explicit resolution wins, then interactive review, then the mode.
func (o Options) effectiveResolution() Resolution {
	if o.Resolution != ResolveNone {
		return o.Resolution
	}
	if o.Interactive {
		return ResolveReview
	}
	if o.Mode == ModeForce {
		return ResolveOverwrite
	}
	return ResolveNone
}

// skip drops rel from the write set.
func (x *execution) skip(rel string) {
	kept := x.writeSet[:0]
	for _, p := range x.writeSet {
		if p != rel {
			kept = append(kept, p)
		}
	}
	x.writeSet = kept
	x.result.Skipped = append(x.result.Skipped, rel)
	x.result.SkippedFiles++
}

// merge three-way merges each conflicting file with the HEAD version as
// base. Files left with conflict markers are not written.
func (e *Engine) merge(ctx context.Context, x *execution) {
	for i, c := range x.conflicts {
		current, _, err := filetree.ReadTarget(x.target, c.Path)
		if err != nil {
			x.fail(gserrors.IO("read "+c.Path, err))
			return
		}
		base, _, err := x.git.ShowFile(ctx, "HEAD", c.Path)
		if err != nil {
			x.fail(err)
			return
		}
		generated, err := x.files.Read(c.Path)
		if err != nil {
			x.fail(gserrors.IO("read generated "+c.Path, err))
			return
		}

		merged, conflicted, err := x.git.MergeFile(ctx, current, base, generated)
		if err != nil {
			x.fail(err)
			return
		}
		if conflicted {
			x.result.Conflicts[i].Kind = KindMerge
			x.skip(c.Path)
			continue
		}
		x.merged[c.Path] = merged
	}
}

func (e *Engine) applyFiles(ctx context.Context, x *execution) {
	r := x.result
	for _, rel := range x.writeSet {
		if err := ctx.Err(); err != nil {
			x.fail(err)
			return
		}

		content, ok := x.merged[rel]
		if !ok {
			var err error
			if content, err = x.files.Read(rel); err != nil {
				x.fail(gserrors.IO("read generated "+rel, err))
				return
			}
		}

		current, exists, err := filetree.ReadTarget(x.target, rel)
		if err != nil {
			x.fail(gserrors.IO("read "+rel, err))
			return
		}
		if exists && bytes.Equal(current, content) {
			r.UnchangedFiles = append(r.UnchangedFiles, rel)
			continue
		}
		if x.opts.DryRun {
			r.AppliedFiles = append(r.AppliedFiles, rel)
			continue
		}

		mode := fs.FileMode(0o644)
		if exists {
			if info, err := os.Stat(filetree.Join(x.target, rel)); err == nil {
				mode = info.Mode().Perm()
			}
		}
		x.wrote = true
		if err := e.writeFile(x.target, rel, content, mode); err != nil {
			r.FailedFiles++
			x.fail(gserrors.IO("write "+rel, err))
			return
		}
		r.AppliedFiles = append(r.AppliedFiles, rel)
	}

	r.Status = StatusSuccess
	if r.SkippedFiles > 0 {
		r.Status = StatusPartial
	}

	if x.opts.DryRun {
		r.Message = fmt.Sprintf("Dry run: %d file(s) would be written, %d unchanged, %d skipped",
			len(r.AppliedFiles), len(r.UnchangedFiles), r.SkippedFiles)
		x.done = true
		return
	}

	if x.wrote {
		r.TargetState = TargetApplied
	}
	r.Message = fmt.Sprintf("Applied %d file(s), %d unchanged, %d skipped",
		len(r.AppliedFiles), len(r.UnchangedFiles), r.SkippedFiles)
	if r.Status == StatusPartial {
		r.Suggestion = "Review the skipped files and re-run with --resolution review to resolve them"
	}
}

// updateProgress records the apply on the feature and the active run.
// Both are bookkeeping: a failure is logged and never undoes the writes.
func (e *Engine) updateProgress(_ context.Context, x *execution) {
	if x.backup != nil && e.keepBackups > 0 {
		if pruned, err := e.backups.Prune(e.keepBackups); err != nil {
			e.logger.Warn("prune backups", "error", err)
		} else if len(pruned) > 0 {
			e.logger.Debug("pruned backups", "count", len(pruned))
		}
	}

	e.markApplied(x)

	session, err := e.store.Active()
	if err != nil {
		return
	}
	_ = session.Log(artifact.LevelInfo, "feature applied", map[string]any{
		"feature": x.feature.Name,
		"target":  x.target,
		"status":  string(x.result.Status),
		"applied": len(x.result.AppliedFiles),
		"skipped": x.result.SkippedFiles,
	})
}

func (e *Engine) markApplied(x *execution) {
	marker := artifact.AppliedMarker{
		Target: x.target,
		Files:  len(x.result.AppliedFiles),
		Commit: x.result.Commit,
	}
	if x.backup != nil {
		marker.BackupID = x.backup.ID
	}
	if err := e.store.MarkFeatureApplied(x.feature.Name, marker); err != nil {
		e.logger.Warn("mark feature applied", "feature", x.feature.Name, "error", err)
	}
}

func (e *Engine) postApply(ctx context.Context, x *execution) {
	in := ActionInput{
		Target:  x.target,
		Feature: x.feature.Name,
		RunID:   x.feature.RunID,
		Files:   append([]string(nil), x.result.AppliedFiles...),
	}
	for _, a := range e.actions {
		x.result.Actions = append(x.result.Actions, e.runAction(ctx, a, in))
	}
	if x.opts.GitIntegration {
		x.result.Actions = append(x.result.Actions, e.commit(ctx, x))
	}
}

func (e *Engine) commit(ctx context.Context, x *execution) ActionResult {
	res := ActionResult{Name: "commit"}

	if x.opts.Branch != "" {
		if err := x.git.EnsureBranch(ctx, x.opts.Branch); err != nil {
			res.Error = err.Error()
			e.logger.Warn("post-apply action failed", "action", res.Name, "error", err)
			return res
		}
	}

	message := x.opts.CommitMessage
	if message == "" {
		message = commitMessage(x.feature, x.result.AppliedFiles)
	}

	cr, err := x.git.CommitFiles(ctx, message, git.CommitOptions{}, x.result.AppliedFiles...)
	if err != nil {
		res.Error = err.Error()
		e.logger.Warn("post-apply action failed", "action", res.Name, "error", err)
		return res
	}

	x.result.Commit = cr.SHA
	res.Success = true
	res.Output = fmt.Sprintf("%s on %s", shortSHA(cr.SHA), cr.Branch)
	e.logger.Info("committed applied files", "sha", shortSHA(cr.SHA), "branch", cr.Branch)
	e.markApplied(x)
	return res
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

// settleFailure settles the result of a failed execution, rolling back when a
// backup exists.
func (e *Engine) settleFailure(x *execution) {
	r := x.result
	r.Status = StatusFailed
	r.Message = x.err.Error()

	if x.backup == nil {
		if x.wrote {
			r.TargetState = TargetUndefined
			r.Suggestion = "No backup was taken; inspect the target before retrying"
		}
		return
	}

	if err := e.backups.Restore(x.backup); err != nil {
		e.logger.Error("rollback failed", "backup", x.backup.ID, "error", err)
		r.TargetState = TargetUndefined
		r.Suggestion = fmt.Sprintf("Rollback failed; retry with `genstage rollback %s`", x.backup.ID)
		x.err = errors.Join(x.err, fmt.Errorf("rollback: %w", err))
		return
	}

	e.logger.Warn("apply rolled back", "feature", r.Feature, "backup", x.backup.ID, "error", x.err)
	r.RolledBack = true
	r.TargetState = TargetRestored
	r.AppliedFiles = []string{}
	r.Suggestion = "The target was restored from backup " + x.backup.ID
}

// report logs the outcome and sends the matching notification.
func (e *Engine) report(ctx context.Context, x *execution) {
	r := x.result
	ev := notify.Event{
		Feature:  r.Feature,
		Target:   r.Target,
		Status:   string(r.Status),
		Message:  r.Message,
		Severity: notify.SeverityInfo,
		Metadata: map[string]any{
			"applied":  len(r.AppliedFiles),
			"skipped":  r.SkippedFiles,
			"failed":   r.FailedFiles,
			"duration": r.Duration.String(),
		},
	}
	if x.feature != nil {
		ev.RunID = x.feature.RunID
	}

	switch {
	case r.RolledBack:
		ev.Type = notify.EventApplyRolledBack
		ev.Severity = notify.SeverityError
	case r.Status == StatusFailed:
		ev.Type = notify.EventApplyFailed
		ev.Severity = notify.SeverityCritical
	case r.Status == StatusConflicts:
		ev.Type = notify.EventApplyConflicts
		ev.Severity = notify.SeverityWarning
		ev.Metadata["conflicts"] = len(r.Conflicts)
	default:
		ev.Type = notify.EventApplyCompleted
		if r.Status != StatusSuccess {
			ev.Severity = notify.SeverityWarning
		}
	}

	e.logger.Info("apply finished",
		"feature", r.Feature,
		"status", r.Status,
		"applied", len(r.AppliedFiles),
		"skipped", r.SkippedFiles,
		"conflicts", len(r.Conflicts),
		"duration", r.Duration,
	)
	e.notify(ctx, ev)
}

func (e *Engine) notify(ctx context.Context, ev notify.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	if err := e.notifier.Notify(ctx, ev); err != nil {
		e.logger.Debug("notification failed", "event", ev.Type, "error", err)
	}
}

// Rollback restores a backup by ID, or the newest backup when id is empty.
func (e *Engine) Rollback(ctx context.Context, id string) (*Backup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		b   *Backup
		err error
	)
	if id == "" {
		b, err = e.backups.Latest("")
	} else {
		b, err = e.backups.Get(id)
	}
	if err != nil {
		return nil, err
	}

	if err := e.backups.Restore(b); err != nil {
		return nil, err
	}

	e.notify(ctx, notify.Event{
		Type:     notify.EventApplyRolledBack,
		Feature:  b.Feature,
		Target:   b.Target,
		Message:  "Restored backup " + b.ID,
		Severity: notify.SeverityWarning,
	})
	return b, nil
}
