package filetree

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// ErrInvalidPath indicates a relative path escapes its root or is absolute.
var ErrInvalidPath = errors.New("invalid relative path")

// DefaultIgnoreDirs are directories skipped by Scan unless overridden.
var DefaultIgnoreDirs = []string{".git", ".svn", ".hg"}

// ScanOptions configures directory traversal.
type ScanOptions struct {
	IgnoreDirs     []string // Directory names to skip (default: DefaultIgnoreDirs)
	IgnorePatterns []string // File name patterns to skip (e.g., "*.tmp")
	IncludeHidden  bool     // Include dot files and dot directories
	StripSuffix    string   // Suffix removed from reported paths (e.g., ".gz")
}

// Tree is an ordered set of relative file paths with content access.
type Tree struct {
	root   string
	paths  []string
	mem    map[string][]byte
	onDisk map[string]string // rel -> file name on disk when StripSuffix applied
	reader func(string) ([]byte, error)
}

// Scan walks root and returns the files found, sorted by path.
// A missing root yields an error wrapping fs.ErrNotExist so callers can tell
// "nothing there" apart from a failed read.
func Scan(root string, opts ScanOptions) (*Tree, error) {
	ignoreDirs := opts.IgnoreDirs
	if ignoreDirs == nil {
		ignoreDirs = DefaultIgnoreDirs
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan %s: not a directory", root)
	}

	t := &Tree{root: root, onDisk: make(map[string]string)}

	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}

		name := d.Name()
		if !opts.IncludeHidden && strings.HasPrefix(name, ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			for _, ignore := range ignoreDirs {
				if name == ignore {
					return filepath.SkipDir
				}
			}
			return nil
		}

		for _, pattern := range opts.IgnorePatterns {
			if matched, _ := filepath.Match(pattern, name); matched {
				return nil
			}
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		logical := rel
		if opts.StripSuffix != "" {
			logical = strings.TrimSuffix(rel, opts.StripSuffix)
		}
		t.onDisk[logical] = rel
		t.paths = append(t.paths, logical)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	sort.Strings(t.paths)
	return t, nil
}

// FromFiles builds an in-memory tree. Paths are cleaned and validated.
func FromFiles(files map[string][]byte) (*Tree, error) {
	t := &Tree{mem: make(map[string][]byte, len(files))}
	for p, content := range files {
		rel, err := CleanRel(p)
		if err != nil {
			return nil, err
		}
		if _, dup := t.mem[rel]; dup {
			return nil, fmt.Errorf("duplicate path %q", rel)
		}
		t.mem[rel] = content
		t.paths = append(t.paths, rel)
	}
	sort.Strings(t.paths)
	return t, nil
}

// WithReader returns a copy of a scanned tree whose content is read through fn,
// given the on-disk path. Used for transparently decompressing stored files.
func (t *Tree) WithReader(fn func(diskPath string) ([]byte, error)) *Tree {
	cp := *t
	cp.reader = fn
	return &cp
}

// Root returns the scanned root directory, or "" for in-memory trees.
func (t *Tree) Root() string {
	return t.root
}

// Paths returns the relative paths in sorted order.
func (t *Tree) Paths() []string {
	out := make([]string, len(t.paths))
	copy(out, t.paths)
	return out
}

// Len returns the number of files.
func (t *Tree) Len() int {
	return len(t.paths)
}

// Has reports whether rel is part of the tree.
func (t *Tree) Has(rel string) bool {
	if t.mem != nil {
		_, ok := t.mem[rel]
		return ok
	}
	_, ok := t.onDisk[rel]
	return ok
}

// Read returns the content of rel.
func (t *Tree) Read(rel string) ([]byte, error) {
	if t.mem != nil {
		data, ok := t.mem[rel]
		if !ok {
			return nil, fmt.Errorf("read %s: %w", rel, fs.ErrNotExist)
		}
		return data, nil
	}

	diskRel, ok := t.onDisk[rel]
	if !ok {
		return nil, fmt.Errorf("read %s: %w", rel, fs.ErrNotExist)
	}
	full := filepath.Join(t.root, filepath.FromSlash(diskRel))
	if t.reader != nil {
		return t.reader(full)
	}
	return os.ReadFile(full)
}

// Subtrees returns the distinct top-level components of the tree's paths.
func (t *Tree) Subtrees() []string {
	return Subtrees(t.paths)
}

// Subtrees returns the distinct top-level components of paths, sorted.
func Subtrees(paths []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range paths {
		top := TopLevel(p)
		if !seen[top] {
			seen[top] = true
			out = append(out, top)
		}
	}
	sort.Strings(out)
	return out
}

// TopLevel returns the first component of a slash-separated relative path.
func TopLevel(rel string) string {
	if i := strings.IndexByte(rel, '/'); i >= 0 {
		return rel[:i]
	}
	return rel
}

// CleanRel normalizes a relative path to slash form and rejects absolute
// paths and paths escaping the root.
func CleanRel(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPath)
	}
	slashed := filepath.ToSlash(p)
	if path.IsAbs(slashed) || filepath.IsAbs(p) {
		return "", fmt.Errorf("%w: %q is absolute", ErrInvalidPath, p)
	}
	clean := path.Clean(slashed)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q escapes root", ErrInvalidPath, p)
	}
	return clean, nil
}

// Join resolves rel under root using OS separators.
func Join(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}
