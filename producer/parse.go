package producer

import (
	"bufio"
	"fmt"
	"strings"

	gserrors "github.com/randalmurphal/genstage/errors"
	"github.com/randalmurphal/genstage/filetree"
)

const (
	fileStartPrefix = "=== FILE: "
	fileStartSuffix = " ==="
	fileEnd         = "=== END ==="
)

// File is one generated file before it is bundled.
type File struct {
	Path    string
	Content []byte
}

// ParseFiles extracts file blocks from generator output. Text outside blocks
// is ignored. Paths must be relative and unique, and every block must be
// closed.
func ParseFiles(text string) ([]File, error) {
	var (
		files   []File
		seen    = make(map[string]bool)
		cur     *File
		body    strings.Builder
		started int
	)

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		line := scanner.Text()
		lineNo++

		if cur == nil {
			p, ok := blockStart(line)
			if !ok {
				continue
			}
			rel, err := filetree.CleanRel(p)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", gserrors.ErrValidation, lineNo, err)
			}
			if seen[rel] {
				return nil, fmt.Errorf("%w: line %d: duplicate file %q", gserrors.ErrValidation, lineNo, rel)
			}
			seen[rel] = true
			cur = &File{Path: rel}
			body.Reset()
			started = lineNo
			continue
		}

		if strings.TrimSpace(line) == fileEnd {
			cur.Content = []byte(body.String())
			files = append(files, *cur)
			cur = nil
			continue
		}
		if _, ok := blockStart(line); ok {
			return nil, fmt.Errorf("%w: line %d: file %q opened before %q was closed",
				gserrors.ErrValidation, lineNo, line, cur.Path)
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if cur != nil {
		return nil, fmt.Errorf("%w: file %q starting at line %d is not terminated",
			gserrors.ErrValidation, cur.Path, started)
	}
	return files, nil
}

// FormatFiles renders files in the block format ParseFiles reads.
func FormatFiles(files []File) string {
	var b strings.Builder
	for _, f := range files {
		b.WriteString(fileStartPrefix + f.Path + fileStartSuffix + "\n")
		b.Write(f.Content)
		if len(f.Content) > 0 && f.Content[len(f.Content)-1] != '\n' {
			b.WriteByte('\n')
		}
		b.WriteString(fileEnd + "\n")
	}
	return b.String()
}

func blockStart(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, fileStartPrefix) || !strings.HasSuffix(line, fileStartSuffix) {
		return "", false
	}
	p := strings.TrimSuffix(strings.TrimPrefix(line, fileStartPrefix), fileStartSuffix)
	p = strings.TrimSpace(p)
	return p, p != ""
}
