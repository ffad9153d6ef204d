package errors

import (
	"errors"
	"strings"
)

// IsNotFound checks if an error reports a missing run, feature or backup.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a generated-output validation failure.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrValidation)
}

// IsConflictError checks if an error reports unresolved conflicts.
func IsConflictError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrConflict)
}

// IsVcsError checks if an error is version-control related.
// Errors from the git CLI that never passed through the git package are
// recognised by their output.
func IsVcsError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrVcs) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "not a git repository") ||
		strings.Contains(errStr, "uncommitted changes") ||
		strings.Contains(errStr, "patch failed") ||
		strings.Contains(errStr, "merge conflict")
}

// IsIOError checks if an error is a filesystem failure.
func IsIOError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrIO) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left on device") ||
		strings.Contains(errStr, "read-only file system") ||
		strings.Contains(errStr, "permission denied")
}

// IsNoActiveRun checks if an error reports a missing active run.
func IsNoActiveRun(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNoActiveRun)
}

// IsExpected reports whether err is an expected, recoverable outcome
// (not found, validation, conflict) rather than a failure.
func IsExpected(err error) bool {
	return IsNotFound(err) || IsValidationError(err) || IsConflictError(err)
}
