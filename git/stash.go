package git

import (
	"context"
	"strings"
)

// CreateStash stashes tracked and untracked changes under message.
// created is false when there was nothing to stash.
func (g *Context) CreateStash(ctx context.Context, message string) (created bool, err error) {
	args := []string{"stash", "push", "--include-untracked"}
	if message != "" {
		args = append(args, "-m", message)
	}
	out, err := g.runGit(ctx, args...)
	if err != nil {
		return false, g.wrap("create stash", err)
	}
	return !strings.Contains(out, "No local changes to save"), nil
}

// PopStash applies and drops the latest stash entry. When the pop leaves
// conflicts, the entry is kept by git and the conflicts are reported in the
// result.
func (g *Context) PopStash(ctx context.Context) (*ApplyResult, error) {
	if out, err := g.runGit(ctx, "stash", "list"); err != nil {
		return nil, g.wrap("list stash", err)
	} else if out == "" {
		return nil, ErrNoStash
	}

	_, runErr := g.runGit(ctx, "stash", "pop")
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, g.wrap("pop stash", ctxErr)
	}
	return g.conflictResult(ctx, runErr)
}
