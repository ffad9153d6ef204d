package apply

import (
	"fmt"
	"strings"

	"github.com/randalmurphal/genstage/diff"
	"github.com/randalmurphal/genstage/filetree"
)

// Change classifies a generated file against the live target.
type Change string

const (
	ChangeNew       Change = "new"
	ChangeModified  Change = "modified"
	ChangeUnchanged Change = "unchanged"
)

// FilePreview is one generated file compared with the target.
type FilePreview struct {
	Path   string `json:"path"`
	Change Change `json:"change"`
	Diff   string `json:"diff,omitempty"`
}

// Preview is the effect an apply would have, computed without writing.
type Preview struct {
	Feature string        `json:"feature"`
	Target  string        `json:"target"`
	Files   []FilePreview `json:"files"`
	Stats   diff.Stats    `json:"stats"`
}

// Count returns how many files have the given change.
func (p *Preview) Count(c Change) int {
	n := 0
	for _, f := range p.Files {
		if f.Change == c {
			n++
		}
	}
	return n
}

// Preview diffs a stored feature against the live target. The stored diffs
// were computed at generation time; this reflects the target as it is now.
func (e *Engine) Preview(feature, target string) (*Preview, error) {
	f, err := e.store.LoadFeature(feature)
	if err != nil {
		return nil, err
	}
	files, err := filetree.FromFiles(f.FileMap())
	if err != nil {
		return nil, err
	}

	p := &Preview{Feature: f.Name, Target: target, Files: []FilePreview{}}
	var combined strings.Builder
	for _, rel := range files.Paths() {
		generated, err := files.Read(rel)
		if err != nil {
			return nil, fmt.Errorf("read generated %s: %w", rel, err)
		}
		current, exists, err := filetree.ReadTarget(target, rel)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rel, err)
		}

		fp := FilePreview{Path: rel, Change: ChangeModified}
		switch {
		case !exists:
			fp.Change = ChangeNew
			fp.Diff = diff.Generate(rel, nil, generated, diff.Options{})
		default:
			fp.Diff = diff.Generate(rel, current, generated, diff.Options{})
			if fp.Diff == "" {
				fp.Change = ChangeUnchanged
			}
		}
		combined.WriteString(fp.Diff)
		p.Files = append(p.Files, fp)
	}

	stats, err := diff.Parse(combined.String())
	if err != nil {
		return nil, fmt.Errorf("summarize preview: %w", err)
	}
	p.Stats = stats
	return p, nil
}
