package errors

import (
	"strings"
)

// CLIError wraps an error with user-friendly context and suggestions.
type CLIError struct {
	// Err is the underlying error
	Err error

	// Message is a user-friendly description of what went wrong
	Message string

	// Suggestion is an actionable hint for the user
	Suggestion string

	// Details provides additional context (optional)
	Details string
}

func (e *CLIError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Details != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Details)
	}

	if e.Suggestion != "" {
		sb.WriteString("\n\n")
		sb.WriteString(e.Suggestion)
	}

	return sb.String()
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// ErrorMessenger provides customizable error messages.
// Implement this interface to customize suggestions for your CLI.
type ErrorMessenger interface {
	// NotFoundMessage returns the message and suggestion for a missing run or feature.
	NotFoundMessage() (message, suggestion string)

	// ValidationMessage returns the message and suggestion for validation failures.
	ValidationMessage() (message, suggestion string)

	// ConflictMessage returns the message and suggestion for unresolved conflicts.
	ConflictMessage() (message, suggestion string)

	// DirtyTreeMessage returns the message and suggestion for a dirty working tree.
	DirtyTreeMessage() (message, suggestion string)

	// VcsMessage returns the message and suggestion for other git failures.
	VcsMessage() (message, suggestion string)

	// IOMessage returns the message and suggestion for filesystem failures.
	IOMessage() (message, suggestion string)

	// NoActiveRunMessage returns the message and suggestion for run misuse.
	NoActiveRunMessage() (message, suggestion string)
}

// DefaultMessenger provides default error messages.
type DefaultMessenger struct{}

func (m DefaultMessenger) NotFoundMessage() (string, string) {
	return "The requested run or feature was not found.",
		"List available features with 'genstage features' and check the name."
}

func (m DefaultMessenger) ValidationMessage() (string, string) {
	return "Generated files failed validation.",
		"Inspect the validator output, regenerate the feature, or apply with --mode force."
}

func (m DefaultMessenger) ConflictMessage() (string, string) {
	return "Target files were modified and differ from the generated output.",
		"Re-run with --resolution overwrite, --resolution skip, or --interactive to review each file."
}

func (m DefaultMessenger) DirtyTreeMessage() (string, string) {
	return "The working tree has uncommitted changes.",
		"Commit or stash your changes first, or disable require_clean."
}

func (m DefaultMessenger) VcsMessage() (string, string) {
	return "A git operation failed.",
		"Check the git output above and the repository state."
}

func (m DefaultMessenger) IOMessage() (string, string) {
	return "A filesystem operation failed.",
		"Check permissions and free space. If no backup was taken, the target state is undefined."
}

func (m DefaultMessenger) NoActiveRunMessage() (string, string) {
	return "No run is active.",
		"Start a run before saving artifacts or logs."
}

// WrapConfig configures error wrapping behavior.
type WrapConfig struct {
	Messenger ErrorMessenger
}

// Option configures WrapConfig.
type Option func(*WrapConfig)

// WithMessenger sets a custom error messenger.
func WithMessenger(m ErrorMessenger) Option {
	return func(c *WrapConfig) {
		c.Messenger = m
	}
}

func getMessenger(opts []Option) ErrorMessenger {
	cfg := &WrapConfig{
		Messenger: DefaultMessenger{},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg.Messenger
}

// Wrap converts a taxonomy error into a CLIError with an actionable suggestion.
// Errors outside the taxonomy are returned unchanged.
func Wrap(err error, opts ...Option) error {
	if err == nil {
		return nil
	}

	var cliErr *CLIError
	if As(err, &cliErr) {
		return err
	}

	messenger := getMessenger(opts)

	var msg, suggestion string
	switch {
	case IsNoActiveRun(err):
		msg, suggestion = messenger.NoActiveRunMessage()
	case IsNotFound(err):
		msg, suggestion = messenger.NotFoundMessage()
	case IsValidationError(err):
		msg, suggestion = messenger.ValidationMessage()
	case IsConflictError(err):
		msg, suggestion = messenger.ConflictMessage()
	case IsVcsError(err):
		if strings.Contains(strings.ToLower(err.Error()), "uncommitted changes") {
			msg, suggestion = messenger.DirtyTreeMessage()
		} else {
			msg, suggestion = messenger.VcsMessage()
		}
	case IsIOError(err):
		msg, suggestion = messenger.IOMessage()
	default:
		return err
	}

	return &CLIError{
		Err:        err,
		Message:    msg,
		Details:    err.Error(),
		Suggestion: suggestion,
	}
}

// Suggestion returns the default suggestion for a taxonomy sentinel, or "".
func Suggestion(kind error, opts ...Option) string {
	messenger := getMessenger(opts)
	var suggestion string
	switch kind {
	case ErrNotFound:
		_, suggestion = messenger.NotFoundMessage()
	case ErrValidation:
		_, suggestion = messenger.ValidationMessage()
	case ErrConflict:
		_, suggestion = messenger.ConflictMessage()
	case ErrVcs:
		_, suggestion = messenger.VcsMessage()
	case ErrIO:
		_, suggestion = messenger.IOMessage()
	case ErrNoActiveRun:
		_, suggestion = messenger.NoActiveRunMessage()
	}
	return suggestion
}
