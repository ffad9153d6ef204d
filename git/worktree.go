package git

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// WorktreeInfo represents an active git worktree.
type WorktreeInfo struct {
	Path   string // Filesystem path to the worktree
	Branch string // Branch checked out, or "(detached)"
	Commit string // HEAD commit SHA
}

// AddWorktree checks ref out, detached, into a new worktree at path.
// Returns ErrWorktreeExists if path is already taken.
func (g *Context) AddWorktree(ctx context.Context, path, ref string) error {
	if _, err := os.Stat(path); err == nil {
		return ErrWorktreeExists
	} else if !errors.Is(err, fs.ErrNotExist) {
		return &Error{Op: "add worktree", Err: err}
	}
	if ref == "" {
		ref = "HEAD"
	}
	if _, err := g.runGit(ctx, "worktree", "add", "--detach", path, ref); err != nil {
		return g.wrap("add worktree", err)
	}
	return nil
}

// RemoveWorktree removes the worktree at path, discarding any changes in it.
// When git refuses, the directory is deleted and stale registrations pruned.
func (g *Context) RemoveWorktree(ctx context.Context, path string) error {
	if _, err := g.runGit(ctx, "worktree", "remove", "--force", path); err == nil {
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return &Error{Op: "remove worktree", Err: err}
	}
	return g.PruneWorktrees(ctx)
}

// PruneWorktrees removes administrative files of worktrees whose directory
// is gone.
func (g *Context) PruneWorktrees(ctx context.Context) error {
	if _, err := g.runGit(ctx, "worktree", "prune"); err != nil {
		return g.wrap("prune worktrees", err)
	}
	return nil
}

// ListWorktrees returns all worktrees of the repository, the main one first.
func (g *Context) ListWorktrees(ctx context.Context) ([]WorktreeInfo, error) {
	output, err := g.runGit(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, g.wrap("list worktrees", err)
	}
	return parseWorktrees(output), nil
}

// HasWorktree reports whether path is a registered worktree.
func (g *Context) HasWorktree(ctx context.Context, path string) (bool, error) {
	worktrees, err := g.ListWorktrees(ctx)
	if err != nil {
		return false, err
	}
	want := canonicalPath(path)
	for _, wt := range worktrees {
		if canonicalPath(wt.Path) == want {
			return true, nil
		}
	}
	return false, nil
}

func parseWorktrees(output string) []WorktreeInfo {
	var worktrees []WorktreeInfo
	var current WorktreeInfo
	flush := func() {
		if current.Path != "" {
			worktrees = append(worktrees, current)
		}
		current = WorktreeInfo{}
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, "worktree "):
			current.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			current.Commit = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			current.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		case line == "detached":
			current.Branch = "(detached)"
		}
	}
	flush()
	return worktrees
}

// canonicalPath resolves symlinks so temp dirs compare equal on macOS.
func canonicalPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
