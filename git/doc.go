// Package git wraps the git CLI for the apply pipeline: working-tree
// validation, branches, staging, commits, patches, conflicts, stash, diff
// and history.
//
// Core types:
//   - Context: Git repository context; every operation takes a context.Context
//   - CommandRunner: Interface for executing git commands (with mocks for testing)
//   - BranchNamer: Generates branch names for features and runs
//   - CommitMessage: Subject, body and trailers of a commit
//
// Operations that can leave conflicts (ApplyPatch, Merge, PopStash) report
// them by asking git for unmerged paths after the command runs.
//
// Example usage:
//
//	repo, _ := git.NewContext("/path/to/repo", git.WithRequireClean(true))
//	if err := repo.ValidateWorkingTree(ctx); err != nil {
//	    return err
//	}
//	err := repo.GeneratePatch(ctx, []string{"lib/"}, "/tmp/change.patch")
//	res, err := repo.ApplyPatch(ctx, "/tmp/change.patch", git.ApplyOptions{Reverse: true})
package git
