package errors

import "errors"

// Error taxonomy.
var (
	// ErrNotFound indicates a run, feature or backup does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates generated output failed a syntax or format check.
	ErrValidation = errors.New("validation failed")

	// ErrConflict indicates unresolved conflicts block a safe apply.
	ErrConflict = errors.New("unresolved conflicts")

	// ErrVcs indicates a version-control operation failed.
	ErrVcs = errors.New("version control error")

	// ErrIO indicates a filesystem failure during backup or write.
	ErrIO = errors.New("i/o error")

	// ErrNoActiveRun indicates a run-scoped operation was called outside a run.
	ErrNoActiveRun = errors.New("no active run")
)

// KindError tags an underlying error with one of the taxonomy sentinels
// while keeping the original error in the chain.
type KindError struct {
	Kind error
	Op   string
	Err  error
}

func (e *KindError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *KindError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// IO wraps a filesystem error as ErrIO.
func IO(op string, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: ErrIO, Op: op, Err: err}
}

// Vcs wraps a version-control error as ErrVcs.
func Vcs(op string, err error) error {
	if err == nil {
		return nil
	}
	return &KindError{Kind: ErrVcs, Op: op, Err: err}
}

// Is reports whether any error in err's chain matches target.
// Re-exported so callers importing this package need not also import the standard one.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
