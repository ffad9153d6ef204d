package git

import (
	"context"
	"fmt"
	"strings"
)

// Trailer is a "Key: Value" line in a commit message footer.
type Trailer struct {
	Key   string
	Value string
}

func (t Trailer) String() string {
	return t.Key + ": " + t.Value
}

// GeneratedByTrailer marks commits made by genstage.
var GeneratedByTrailer = Trailer{Key: "Generated-By", Value: "genstage"}

// CoAuthor returns a Co-authored-by trailer for "Name <email>".
func CoAuthor(author string) Trailer {
	return Trailer{Key: "Co-authored-by", Value: author}
}

// FeatureTrailers returns the trailers recording which feature and run a
// commit applies. Empty values are omitted.
func FeatureTrailers(feature, runID string) []Trailer {
	var out []Trailer
	if feature != "" {
		out = append(out, Trailer{Key: "Feature", Value: feature})
	}
	if runID != "" {
		out = append(out, Trailer{Key: "Run", Value: runID})
	}
	return append(out, GeneratedByTrailer)
}

// CommitMessage is a commit message with a subject line, an optional body
// and footer trailers.
type CommitMessage struct {
	Subject  string
	Body     string
	Trailers []Trailer
}

// MaxSubjectLength bounds the subject line accepted by Validate.
const MaxSubjectLength = 100

// String renders the message. Body prose is wrapped at 72 columns; list
// items ("- ", "* ") are kept on their own lines.
func (m CommitMessage) String() string {
	parts := []string{m.Subject}
	if body := strings.TrimSpace(m.Body); body != "" {
		parts = append(parts, wrapBody(body, 72))
	}
	if len(m.Trailers) > 0 {
		lines := make([]string, len(m.Trailers))
		for i, t := range m.Trailers {
			lines[i] = t.String()
		}
		parts = append(parts, strings.Join(lines, "\n"))
	}
	return strings.Join(parts, "\n\n")
}

// Validate checks the subject line.
func (m CommitMessage) Validate() error {
	switch {
	case strings.TrimSpace(m.Subject) == "":
		return fmt.Errorf("commit subject is required")
	case strings.ContainsRune(m.Subject, '\n'):
		return fmt.Errorf("commit subject must be a single line")
	case len(m.Subject) > MaxSubjectLength:
		return fmt.Errorf("commit subject too long (%d > %d characters)", len(m.Subject), MaxSubjectLength)
	}
	return nil
}

// CommitOptions configures CreateCommit.
type CommitOptions struct {
	Author     string   // "Name <email>"; empty uses the repository identity
	CoAuthors  []string // Added as Co-authored-by trailers
	AllowEmpty bool     // Commit even when nothing is staged
	Paths      []string // Commit only these paths; other staged changes stay in the index
}

// CreateCommit commits the staged changes and returns the new HEAD SHA.
// With opts.Paths set, only those paths are committed.
// Returns ErrNothingToCommit if nothing is staged and AllowEmpty is false.
func (g *Context) CreateCommit(ctx context.Context, message string, opts CommitOptions) (string, error) {
	args := []string{"commit", "-m", appendTrailers(message, opts.CoAuthors)}
	if opts.Author != "" {
		args = append(args, "--author="+opts.Author)
	}
	if opts.AllowEmpty {
		args = append(args, "--allow-empty")
	}
	if len(opts.Paths) > 0 {
		args = append(args, "--only", "--")
		args = append(args, opts.Paths...)
	}

	if _, err := g.runGit(ctx, args...); err != nil {
		out := commandOutput(err) + err.Error()
		if strings.Contains(out, "nothing to commit") || strings.Contains(out, "no changes added to commit") ||
			strings.Contains(out, "nothing added to commit") {
			return "", ErrNothingToCommit
		}
		return "", g.wrap("commit", err)
	}

	return g.HeadCommit(ctx)
}

// appendTrailers adds a Co-authored-by trailer for each author not already
// named in message, separating the footer from the body with a blank line.
func appendTrailers(message string, coAuthors []string) string {
	var missing []string
	for _, author := range coAuthors {
		if t := CoAuthor(author).String(); !strings.Contains(message, t) {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return message
	}

	lines := strings.Split(strings.TrimRight(message, "\n"), "\n")
	last := lines[len(lines)-1]
	sep := "\n\n"
	if len(lines) > 2 && strings.Contains(last, ": ") {
		sep = "\n" // extend an existing trailer block
	}
	return strings.TrimRight(message, "\n") + sep + strings.Join(missing, "\n")
}

// wrapBody wraps prose paragraphs at width, leaving list items and short
// lines untouched.
func wrapBody(text string, width int) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if len(line) <= width || strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			out = append(out, line)
			continue
		}

		current := ""
		for _, word := range strings.Fields(line) {
			switch {
			case current == "":
				current = word
			case len(current)+1+len(word) > width:
				out = append(out, current)
				current = word
			default:
				current += " " + word
			}
		}
		if current != "" {
			out = append(out, current)
		}
	}
	return strings.Join(out, "\n")
}
