package apply

import (
	"bytes"
	"fmt"

	"github.com/randalmurphal/genstage/filetree"
)

// DetectConflicts compares every file in files with the file at the same
// path under target. A file that exists with different bytes is a
// KindModified conflict; missing and byte-identical files never conflict.
// The target is read on every call.
func DetectConflicts(files *filetree.Tree, target string) ([]Conflict, error) {
	conflicts := []Conflict{}
	for _, rel := range files.Paths() {
		current, exists, err := filetree.ReadTarget(target, rel)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rel, err)
		}
		if !exists {
			continue
		}
		generated, err := files.Read(rel)
		if err != nil {
			return nil, fmt.Errorf("read generated %s: %w", rel, err)
		}
		if !bytes.Equal(current, generated) {
			conflicts = append(conflicts, Conflict{Path: rel, Kind: KindModified})
		}
	}
	return conflicts, nil
}

// CheckConflicts loads a stored feature and detects its conflicts against
// target.
func (e *Engine) CheckConflicts(feature, target string) ([]Conflict, error) {
	f, err := e.store.LoadFeature(feature)
	if err != nil {
		return nil, err
	}
	files, err := filetree.FromFiles(f.FileMap())
	if err != nil {
		return nil, err
	}
	return DetectConflicts(files, target)
}
