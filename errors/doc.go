// Package errors defines the error taxonomy shared by the store, the apply
// engine and the git adapter, plus CLI error wrapping with actionable messages.
//
// Taxonomy (sentinels, match with errors.Is):
//   - ErrNotFound: run, feature or backup absent
//   - ErrValidation: generated output failed a syntax/format check
//   - ErrConflict: unresolved conflicts under safe mode
//   - ErrVcs: dirty working tree, patch/apply/commit failure
//   - ErrIO: filesystem failure during backup or write
//   - ErrNoActiveRun: store operation invoked without an active run
//
// ErrNotFound, ErrValidation and ErrConflict are expected outcomes. The apply
// engine reports them as result statuses rather than returning them. ErrIO
// triggers rollback when a backup exists. ErrNoActiveRun indicates caller misuse.
//
// Example usage:
//
//	if err := session.SaveDiff("a.diff", text); err != nil {
//	    return errors.Wrap(err)
//	}
//
//	if errors.IsVcsError(err) {
//	    // retry after cleaning the working tree
//	}
package errors
