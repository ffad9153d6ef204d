package git

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// Context manages git operations for a repository working tree.
type Context struct {
	repoPath     string        // Path to the repository working tree
	runner       CommandRunner // Command runner (defaults to ExecRunner)
	timeout      time.Duration // Per-command timeout when ctx has no deadline
	requireClean bool          // ValidateWorkingTree fails on a dirty tree
	logger       *slog.Logger
}

// Option configures Context.
type Option func(*Context)

// NewContext creates a git context for the working tree at repoPath.
// The path is not required to be a repository; use IsRepo or
// ValidateWorkingTree to check.
func NewContext(repoPath string, opts ...Option) (*Context, error) {
	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	g := &Context{
		repoPath: absPath,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.runner == nil {
		g.runner = &ExecRunner{Timeout: g.timeout}
	}

	return g, nil
}

// WithRunner sets a custom command runner for git operations.
// This is primarily used for testing to inject mock command execution.
func WithRunner(runner CommandRunner) Option {
	return func(g *Context) {
		g.runner = runner
	}
}

// WithTimeout bounds each git command that runs without a context deadline.
func WithTimeout(d time.Duration) Option {
	return func(g *Context) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRequireClean makes ValidateWorkingTree reject uncommitted changes.
func WithRequireClean(require bool) Option {
	return func(g *Context) {
		g.requireClean = require
	}
}

// WithLogger sets the logger for command tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Context) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// RepoPath returns the path to the repository working tree.
func (g *Context) RepoPath() string {
	return g.repoPath
}

// IsRepo reports whether the path is inside a git working tree.
func (g *Context) IsRepo(ctx context.Context) bool {
	out, err := g.runGit(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// Status returns the working tree status in porcelain format.
func (g *Context) Status(ctx context.Context) (string, error) {
	status, err := g.runGit(ctx, "status", "--porcelain")
	if err != nil {
		return "", g.wrap("status", err)
	}
	return status, nil
}

// IsWorkingTreeClean returns true if the working tree has no uncommitted
// changes, untracked files included.
func (g *Context) IsWorkingTreeClean(ctx context.Context) (bool, error) {
	status, err := g.Status(ctx)
	if err != nil {
		return false, err
	}
	return status == "", nil
}

// ValidateWorkingTree checks the path is a repository and, when the context
// was created WithRequireClean(true), that it has no uncommitted changes.
func (g *Context) ValidateWorkingTree(ctx context.Context) error {
	if !g.IsRepo(ctx) {
		return ErrNotGitRepo
	}
	if !g.requireClean {
		return nil
	}

	status, err := g.Status(ctx)
	if err != nil {
		return err
	}
	if status != "" {
		n := len(strings.Split(status, "\n"))
		return fmt.Errorf("%w (%d changed paths)", ErrGitDirty, n)
	}
	return nil
}

// CurrentBranch returns the current branch name, or "HEAD" when detached.
func (g *Context) CurrentBranch(ctx context.Context) (string, error) {
	// symbolic-ref also works before the first commit.
	if branch, err := g.runGit(ctx, "symbolic-ref", "--short", "-q", "HEAD"); err == nil && branch != "" {
		return branch, nil
	}
	branch, err := g.runGit(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", g.wrap("get current branch", err)
	}
	return branch, nil
}

// HeadCommit returns the current HEAD commit SHA.
func (g *Context) HeadCommit(ctx context.Context) (string, error) {
	sha, err := g.runGit(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", g.wrap("get HEAD commit", err)
	}
	return sha, nil
}

// BranchExists checks if a local branch exists.
func (g *Context) BranchExists(ctx context.Context, name string) bool {
	_, err := g.runGit(ctx, "rev-parse", "--verify", "--quiet", "refs/heads/"+name)
	return err == nil
}

// CreateBranch creates a branch at base, or at HEAD when base is empty.
// It does not switch to the branch. An existing branch is never overwritten.
func (g *Context) CreateBranch(ctx context.Context, name, base string) error {
	if g.BranchExists(ctx, name) {
		return fmt.Errorf("%w: %s", ErrBranchExists, name)
	}

	args := []string{"branch", name}
	if base != "" {
		args = append(args, base)
	}
	if _, err := g.runGit(ctx, args...); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("%w: %s", ErrBranchExists, name)
		}
		return g.wrap("create branch", err)
	}
	return nil
}

// CheckoutBranch switches to an existing branch.
func (g *Context) CheckoutBranch(ctx context.Context, name string) error {
	if !g.BranchExists(ctx, name) {
		return fmt.Errorf("%w: %s", ErrBranchNotFound, name)
	}
	if _, err := g.runGit(ctx, "checkout", name); err != nil {
		return g.wrap("checkout", err)
	}
	return nil
}

// DeleteBranch deletes a branch. If force is true, uses -D instead of -d.
func (g *Context) DeleteBranch(ctx context.Context, name string, force bool) error {
	flag := "-d"
	if force {
		flag = "-D"
	}
	if _, err := g.runGit(ctx, "branch", flag, name); err != nil {
		return g.wrap("delete branch", err)
	}
	return nil
}

// StageFiles adds paths to the staging area.
func (g *Context) StageFiles(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, paths...)
	if _, err := g.runGit(ctx, args...); err != nil {
		return g.wrap("stage files", err)
	}
	return nil
}

// StageAll stages all changes (git add -A).
func (g *Context) StageAll(ctx context.Context) error {
	if _, err := g.runGit(ctx, "add", "-A"); err != nil {
		return g.wrap("stage all", err)
	}
	return nil
}

// ShowFile returns the content of path at ref. exists is false when the path
// is not present in ref.
func (g *Context) ShowFile(ctx context.Context, ref, path string) (content []byte, exists bool, err error) {
	out, err := g.outputGit(ctx, "show", ref+":"+filepath.ToSlash(path))
	if err != nil {
		msg := commandOutput(err)
		if strings.Contains(msg, "does not exist") ||
			strings.Contains(msg, "exists on disk, but not in") ||
			strings.Contains(msg, "invalid object name") ||
			strings.Contains(msg, "bad revision") {
			return nil, false, nil
		}
		return nil, false, g.wrap("show file", err)
	}
	return out, true, nil
}

// runGit executes a git command and returns trimmed stdout.
func (g *Context) runGit(ctx context.Context, args ...string) (string, error) {
	g.logger.Debug("git", "args", args, "dir", g.repoPath)
	return g.runner.Run(ctx, g.repoPath, "git", args...)
}

// outputGit executes a git command and returns stdout verbatim.
func (g *Context) outputGit(ctx context.Context, args ...string) ([]byte, error) {
	g.logger.Debug("git", "args", args, "dir", g.repoPath)
	return g.runner.Output(ctx, g.repoPath, "git", args...)
}

func (g *Context) wrap(op string, err error) error {
	return &Error{Op: op, Cmd: "git", Output: commandOutput(err), Err: err}
}
