package filetree

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestScan_SortedAndFiltered(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"lib/b.dart":     "b",
		"lib/a.dart":     "a",
		"README.md":      "r",
		".hidden/x":      "x",
		".git/HEAD":      "ref",
		"lib/skip.tmp":   "tmp",
		"lib/sub/c.dart": "c",
	})

	tree, err := Scan(root, ScanOptions{IgnorePatterns: []string{"*.tmp"}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	want := []string{"README.md", "lib/a.dart", "lib/b.dart", "lib/sub/c.dart"}
	if got := tree.Paths(); !reflect.DeepEqual(got, want) {
		t.Errorf("Paths = %v, want %v", got, want)
	}

	data, err := tree.Read("lib/sub/c.dart")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "c" {
		t.Errorf("Read = %q, want %q", data, "c")
	}
}

func TestScan_IncludeHidden(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{".env": "k=v", ".git/HEAD": "x"})

	tree, err := Scan(root, ScanOptions{IncludeHidden: true})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got := tree.Paths(); !reflect.DeepEqual(got, []string{".env"}) {
		t.Errorf("Paths = %v", got)
	}
}

func TestScan_MissingRoot(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "nope"), ScanOptions{})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", err)
	}
}

func TestScan_StripSuffix(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"big.txt.gz": "zz", "small.txt": "s"})

	tree, err := Scan(root, ScanOptions{StripSuffix: ".gz"})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if got := tree.Paths(); !reflect.DeepEqual(got, []string{"big.txt", "small.txt"}) {
		t.Errorf("Paths = %v", got)
	}

	var readPath string
	tree = tree.WithReader(func(p string) ([]byte, error) {
		readPath = p
		return []byte("decoded"), nil
	})
	data, err := tree.Read("big.txt")
	if err != nil || string(data) != "decoded" {
		t.Fatalf("Read = %q, %v", data, err)
	}
	if filepath.Base(readPath) != "big.txt.gz" {
		t.Errorf("reader got %q, want on-disk name", readPath)
	}
}

func TestFromFiles(t *testing.T) {
	tree, err := FromFiles(map[string][]byte{
		"lib/z.dart": []byte("z"),
		"./a.txt":    []byte("a"),
	})
	if err != nil {
		t.Fatalf("FromFiles: %v", err)
	}
	if got := tree.Paths(); !reflect.DeepEqual(got, []string{"a.txt", "lib/z.dart"}) {
		t.Errorf("Paths = %v", got)
	}
	if !tree.Has("a.txt") || tree.Has("missing") {
		t.Error("Has reported wrong membership")
	}
	if _, err := tree.Read("missing"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Read missing err = %v", err)
	}
	if got := tree.Subtrees(); !reflect.DeepEqual(got, []string{"a.txt", "lib"}) {
		t.Errorf("Subtrees = %v", got)
	}
}

func TestFromFiles_RejectsEscapes(t *testing.T) {
	for _, p := range []string{"../x", "/etc/passwd", "", "a/../../b"} {
		if _, err := FromFiles(map[string][]byte{p: nil}); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("FromFiles(%q) err = %v, want ErrInvalidPath", p, err)
		}
	}
}

func TestCleanRel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a/b/../c.txt", "a/c.txt"},
		{"./x", "x"},
		{"dir//file", "dir/file"},
	}
	for _, tt := range tests {
		got, err := CleanRel(tt.in)
		if err != nil {
			t.Errorf("CleanRel(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("CleanRel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
