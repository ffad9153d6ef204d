package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	gserrors "github.com/randalmurphal/genstage/errors"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The operation ran but did not succeed (conflicts, validation, rollback)
	ExitCommandError = 2 // Bad arguments, missing features, broken configuration
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Taxonomy errors that
// describe bad input map to ExitCommandError; everything else is a failure.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if gserrors.IsNotFound(err) || gserrors.IsNoActiveRun(err) {
		return ExitCommandError
	}
	return ExitFailure
}

// FormatError renders err for the terminal, turning taxonomy errors into
// messages with suggestions.
func FormatError(err error) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return errorStyle.Render("Error: ") + err.Error()
	}

	wrapped := gserrors.Wrap(err)
	var cliErr *gserrors.CLIError
	if !errors.As(wrapped, &cliErr) {
		return errorStyle.Render("Error: ") + err.Error()
	}

	var b strings.Builder
	b.WriteString(errorStyle.Render("Error: ") + cliErr.Message + "\n")
	if cliErr.Details != "" {
		b.WriteString(mutedStyle.Render("  "+cliErr.Details) + "\n")
	}
	if cliErr.Suggestion != "" {
		b.WriteString("\n" + cliErr.Suggestion + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Lipgloss styles for terminal output
var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	addStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	delStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	hunkStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

// printer writes command output as styled text or JSON.
type printer struct {
	w      io.Writer
	format string
}

func (p *printer) isJSON() bool {
	return p.format == "json"
}

// emit writes v as JSON in json mode and calls text otherwise.
func (p *printer) emit(v any, text func()) error {
	if p.isJSON() {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}

func (p *printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

func (p *printer) println(args ...any) {
	fmt.Fprintln(p.w, args...)
}

func (p *printer) title(s string) {
	p.println(titleStyle.Render(s))
}

// field prints an aligned "label: value" line.
func (p *printer) field(label string, value any) {
	p.printf("  %s %v\n", mutedStyle.Render(fmt.Sprintf("%-12s", label+":")), value)
}

// diff prints unified diff text with colored lines.
func (p *printer) diff(text string) {
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		trimmed := strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			p.println(titleStyle.Render(trimmed))
		case strings.HasPrefix(line, "@@"):
			p.println(hunkStyle.Render(trimmed))
		case strings.HasPrefix(line, "+"):
			p.println(addStyle.Render(trimmed))
		case strings.HasPrefix(line, "-"):
			p.println(delStyle.Render(trimmed))
		default:
			p.println(trimmed)
		}
	}
}

func relTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func bytesString(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
