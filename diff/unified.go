package diff

import (
	"bytes"
	"fmt"
	"strings"
)

// DevNull is the path used for the missing side of a creation or deletion.
const DevNull = "/dev/null"

const noNewline = "\\ No newline at end of file\n"

// Options configures diff generation.
type Options struct {
	// Context is the number of unchanged lines around each change. Default: 3.
	Context int

	// MaxLines bounds the inputs; larger files produce a one-line summary
	// instead of hunks. Default: 20000.
	MaxLines int
}

func (o Options) withDefaults() Options {
	if o.Context <= 0 {
		o.Context = 3
	}
	if o.MaxLines <= 0 {
		o.MaxLines = 20000
	}
	return o
}

// File describes one side-by-side comparison.
type File struct {
	Path string // Slash-separated path used in the a/ and b/ headers
	Old  []byte
	New  []byte

	// OldMissing marks a creation (old side is /dev/null).
	OldMissing bool

	// NewMissing marks a deletion (new side is /dev/null).
	NewMissing bool
}

// Unified renders f as a unified diff. Identical inputs produce "".
func Unified(f File, opts Options) string {
	opts = opts.withDefaults()

	if !f.OldMissing && !f.NewMissing && bytes.Equal(f.Old, f.New) {
		return ""
	}

	oldName, newName := "a/"+f.Path, "b/"+f.Path
	if f.OldMissing {
		oldName = DevNull
	}
	if f.NewMissing {
		newName = DevNull
	}

	if IsBinary(f.Old) || IsBinary(f.New) {
		return fmt.Sprintf("Binary files %s and %s differ\n", oldName, newName)
	}

	oldLines := SplitLines(f.Old)
	newLines := SplitLines(f.New)

	if len(oldLines) > opts.MaxLines || len(newLines) > opts.MaxLines {
		return fmt.Sprintf("Files %s and %s too large for diff (%d and %d lines)\n",
			oldName, newName, len(oldLines), len(newLines))
	}

	edits := myers(oldLines, newLines)
	hunks := buildHunks(edits, opts.Context)
	if len(hunks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("--- " + oldName + "\n")
	b.WriteString("+++ " + newName + "\n")
	for _, h := range hunks {
		writeHunk(&b, h)
	}
	return b.String()
}

// Generate diffs old against new for path, treating a nil old as a creation.
func Generate(path string, old, new []byte, opts Options) string {
	return Unified(File{Path: path, Old: old, New: new, OldMissing: old == nil}, opts)
}

// hunk is a contiguous block of edits plus context.
type hunk struct {
	oldStart, oldCount int
	newStart, newCount int
	edits              []edit
}

func buildHunks(edits []edit, context int) []hunk {
	var changes []int
	for i, e := range edits {
		if e.op != opEqual {
			changes = append(changes, i)
		}
	}
	if len(changes) == 0 {
		return nil
	}

	// Group changes whose separating run of equal lines fits in 2*context.
	type span struct{ from, to int }
	var spans []span
	cur := span{from: changes[0], to: changes[0]}
	for _, c := range changes[1:] {
		if c-cur.to-1 <= 2*context {
			cur.to = c
			continue
		}
		spans = append(spans, cur)
		cur = span{from: c, to: c}
	}
	spans = append(spans, cur)

	// Line positions consumed before each edit index.
	oldPos := make([]int, len(edits)+1)
	newPos := make([]int, len(edits)+1)
	for i, e := range edits {
		oldPos[i+1] = oldPos[i]
		newPos[i+1] = newPos[i]
		if e.op != opInsert {
			oldPos[i+1]++
		}
		if e.op != opDelete {
			newPos[i+1]++
		}
	}

	hunks := make([]hunk, 0, len(spans))
	for _, s := range spans {
		from := s.from - context
		if from < 0 {
			from = 0
		}
		to := s.to + context
		if to > len(edits)-1 {
			to = len(edits) - 1
		}

		h := hunk{edits: edits[from : to+1]}
		h.oldCount = oldPos[to+1] - oldPos[from]
		h.newCount = newPos[to+1] - newPos[from]
		h.oldStart = oldPos[from]
		if h.oldCount > 0 {
			h.oldStart++
		}
		h.newStart = newPos[from]
		if h.newCount > 0 {
			h.newStart++
		}
		hunks = append(hunks, h)
	}
	return hunks
}

func writeHunk(b *strings.Builder, h hunk) {
	fmt.Fprintf(b, "@@ -%s +%s @@\n", hunkRange(h.oldStart, h.oldCount), hunkRange(h.newStart, h.newCount))
	for _, e := range h.edits {
		prefix := " "
		switch e.op {
		case opInsert:
			prefix = "+"
		case opDelete:
			prefix = "-"
		}
		b.WriteString(prefix)
		b.WriteString(e.line)
		if !strings.HasSuffix(e.line, "\n") {
			b.WriteString("\n")
			b.WriteString(noNewline)
		}
	}
}

func hunkRange(start, count int) string {
	return fmt.Sprintf("%d,%d", start, count)
}

// SplitLines splits content into lines that keep their "\n" terminator.
// A final line without a newline is returned without one.
func SplitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	s := string(data)
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// IsBinary reports whether data looks binary (NUL byte in the first 8KB).
func IsBinary(data []byte) bool {
	n := len(data)
	if n > 8192 {
		n = 8192
	}
	return bytes.IndexByte(data[:n], 0) != -1
}
