package git

import (
	"errors"

	gserrors "github.com/randalmurphal/genstage/errors"
)

// Git operation errors. All of them, and every *Error, match
// gserrors.ErrVcs through errors.Is.
var (
	// ErrNotGitRepo indicates the path is not a git repository.
	ErrNotGitRepo = vcsSentinel("not a git repository")

	// ErrBranchExists indicates the branch already exists.
	ErrBranchExists = vcsSentinel("branch already exists")

	// ErrBranchNotFound indicates the branch does not exist.
	ErrBranchNotFound = vcsSentinel("branch not found")

	// ErrGitDirty indicates the working directory has uncommitted changes.
	ErrGitDirty = vcsSentinel("working directory has uncommitted changes")

	// ErrNothingToCommit indicates there are no staged changes to commit.
	ErrNothingToCommit = vcsSentinel("nothing to commit")

	// ErrMergeConflict indicates an operation left conflicted files.
	ErrMergeConflict = vcsSentinel("merge conflict")

	// ErrNoStash indicates there is no stash entry to pop.
	ErrNoStash = vcsSentinel("no stash entries")

	// ErrWorktreeExists indicates the worktree path is already taken.
	ErrWorktreeExists = vcsSentinel("worktree already exists")

	// ErrPatchIncomplete indicates a generated patch is missing a listed file.
	ErrPatchIncomplete = vcsSentinel("patch incomplete")

	// ErrInvalidStrategy indicates an unknown conflict resolution strategy.
	ErrInvalidStrategy = vcsSentinel("invalid conflict resolution strategy")
)

type sentinel struct{ msg string }

func vcsSentinel(msg string) error { return &sentinel{msg: msg} }

func (s *sentinel) Error() string { return s.msg }

func (s *sentinel) Is(target error) bool { return target == gserrors.ErrVcs }

// Error wraps a git command error with context.
type Error struct {
	Op     string // Operation that failed (e.g., "commit", "apply patch")
	Cmd    string // Git command that was run
	Output string // Combined stdout/stderr output
	Err    error  // Underlying error
}

func (e *Error) Error() string {
	if e.Output != "" {
		return e.Op + ": " + e.Output
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes every git failure a version-control error.
func (e *Error) Is(target error) bool {
	return target == gserrors.ErrVcs
}

// commandOutput returns the output recorded by a failed command, if any.
func commandOutput(err error) string {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Output
	}
	return ""
}

// exitCode returns the exit status of a failed command, or -1.
func exitCode(err error) int {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.ExitCode
	}
	return -1
}
