package diff

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var hunkHeader = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// FileStat summarizes one file section of a unified diff.
type FileStat struct {
	OldPath   string `json:"oldPath"`
	NewPath   string `json:"newPath"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Hunks     int    `json:"hunks"`
	Binary    bool   `json:"binary,omitempty"`

	seenHeader bool
}

// Path returns the most meaningful path of the section: the new path, or the
// old path for deletions.
func (f FileStat) Path() string {
	if f.NewPath == "" || f.NewPath == DevNull {
		return f.OldPath
	}
	return f.NewPath
}

// IsNew reports whether the section creates a file.
func (f FileStat) IsNew() bool {
	return f.OldPath == DevNull
}

// IsDeleted reports whether the section deletes a file.
func (f FileStat) IsDeleted() bool {
	return f.NewPath == DevNull
}

// Stats totals a parsed diff.
type Stats struct {
	Files     []FileStat `json:"files"`
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
}

// Paths returns the file paths touched by the diff, in order of appearance.
func (s Stats) Paths() []string {
	out := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		out = append(out, f.Path())
	}
	return out
}

// Parse reads unified diff text (plain or git-flavoured) and returns per-file
// statistics. Malformed hunk headers are reported as errors.
func Parse(text string) (Stats, error) {
	var stats Stats
	var cur *FileStat
	oldLeft, newLeft := 0, 0

	flush := func() {
		if cur != nil {
			stats.Files = append(stats.Files, *cur)
			stats.Additions += cur.Additions
			stats.Deletions += cur.Deletions
			cur = nil
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		line := scanner.Text()
		lineNo++

		inHunk := oldLeft > 0 || newLeft > 0
		switch {
		case inHunk && strings.HasPrefix(line, "+"):
			cur.Additions++
			newLeft--
		case inHunk && strings.HasPrefix(line, "-"):
			cur.Deletions++
			oldLeft--
		case inHunk && (strings.HasPrefix(line, " ") || line == ""):
			oldLeft--
			newLeft--
		case strings.HasPrefix(line, `\`):
			// "\ No newline at end of file"
		case strings.HasPrefix(line, "diff --git "):
			flush()
			cur = &FileStat{}
			if parts := strings.Fields(strings.TrimPrefix(line, "diff --git ")); len(parts) == 2 {
				cur.OldPath = stripPrefix(parts[0])
				cur.NewPath = stripPrefix(parts[1])
			}
			oldLeft, newLeft = 0, 0
		case strings.HasPrefix(line, "--- "):
			if cur == nil || cur.Hunks > 0 || cur.seenHeader {
				flush()
				cur = &FileStat{}
			}
			cur.seenHeader = true
			cur.OldPath = stripPrefix(strings.TrimPrefix(line, "--- "))
		case strings.HasPrefix(line, "+++ "):
			if cur == nil {
				cur = &FileStat{}
			}
			cur.NewPath = stripPrefix(strings.TrimPrefix(line, "+++ "))
		case strings.HasPrefix(line, "Binary files ") || strings.HasPrefix(line, "GIT binary patch"):
			if cur == nil {
				cur = &FileStat{}
			}
			cur.Binary = true
		case strings.HasPrefix(line, "@@"):
			if cur == nil {
				return stats, fmt.Errorf("line %d: hunk before file header", lineNo)
			}
			m := hunkHeader.FindStringSubmatch(line)
			if m == nil {
				return stats, fmt.Errorf("line %d: malformed hunk header %q", lineNo, line)
			}
			oldLeft = atoiDefault(m[2], 1)
			newLeft = atoiDefault(m[4], 1)
			cur.Hunks++
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, err
	}
	flush()
	return stats, nil
}

func stripPrefix(name string) string {
	// git quotes nothing we produce; strip a trailing timestamp (GNU diff).
	if i := strings.IndexByte(name, '\t'); i >= 0 {
		name = name[:i]
	}
	if name == DevNull {
		return name
	}
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
