package git

import (
	"context"
	"fmt"
	"time"
)

// CommitResult contains the result of a commit operation.
type CommitResult struct {
	SHA     string    // Full commit SHA
	Branch  string    // Branch name
	Message string    // Commit message
	Files   []string  // Paths staged for the commit
	Date    time.Time // Commit timestamp
}

// CommitFiles stages paths and commits exactly those paths with message.
// Anything else already in the index is left staged and out of the commit.
// Returns ErrNothingToCommit if the paths carry no changes.
// This is a convenience method combining StageFiles + CreateCommit + CurrentBranch.
func (g *Context) CommitFiles(ctx context.Context, message string, opts CommitOptions, paths ...string) (*CommitResult, error) {
	if err := g.StageFiles(ctx, paths...); err != nil {
		return nil, fmt.Errorf("stage files: %w", err)
	}
	opts.Paths = paths

	sha, err := g.CreateCommit(ctx, message, opts)
	if err != nil {
		return nil, err // Already wrapped appropriately
	}

	branch, err := g.CurrentBranch(ctx)
	if err != nil {
		return nil, fmt.Errorf("get branch: %w", err)
	}

	return &CommitResult{
		SHA:     sha,
		Branch:  branch,
		Message: message,
		Files:   paths,
		Date:    time.Now(),
	}, nil
}

// CheckoutNew creates a branch at base (HEAD when empty) and switches to it.
// This is a convenience method combining CreateBranch + CheckoutBranch.
func (g *Context) CheckoutNew(ctx context.Context, name, base string) error {
	if err := g.CreateBranch(ctx, name, base); err != nil {
		return err
	}
	if err := g.CheckoutBranch(ctx, name); err != nil {
		return fmt.Errorf("checkout new branch %q: %w", name, err)
	}
	return nil
}

// EnsureBranch switches to name, creating it at HEAD when it does not exist.
func (g *Context) EnsureBranch(ctx context.Context, name string) error {
	current, err := g.CurrentBranch(ctx)
	if err == nil && current == name {
		return nil
	}
	if g.BranchExists(ctx, name) {
		return g.CheckoutBranch(ctx, name)
	}
	return g.CheckoutNew(ctx, name, "")
}
