package filetree

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadTarget(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.txt": "A"})

	data, exists, err := ReadTarget(root, "a.txt")
	if err != nil || !exists || string(data) != "A" {
		t.Errorf("ReadTarget existing = %q, %v, %v", data, exists, err)
	}

	data, exists, err = ReadTarget(root, "missing.txt")
	if err != nil || exists || data != nil {
		t.Errorf("ReadTarget missing = %q, %v, %v", data, exists, err)
	}
}

func TestWriteFile_CreatesParents(t *testing.T) {
	root := t.TempDir()
	if err := WriteFile(root, "deep/nested/f.txt", []byte("content"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(root, "deep", "nested", "f.txt"))
	if err != nil || string(got) != "content" {
		t.Errorf("content = %q, %v", got, err)
	}

	entries, _ := os.ReadDir(filepath.Join(root, "deep", "nested"))
	if len(entries) != 1 {
		t.Errorf("expected no temp files left behind, got %d entries", len(entries))
	}
}

func TestCopyTreeAndSize(t *testing.T) {
	src := t.TempDir()
	writeFiles(t, src, map[string]string{"a/b.txt": "12345", "c.txt": "678"})

	dst := filepath.Join(t.TempDir(), "copy")
	if err := CopyTree(src, dst); err != nil {
		t.Fatalf("CopyTree: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dst, "a", "b.txt"))
	if err != nil || string(got) != "12345" {
		t.Errorf("copied content = %q, %v", got, err)
	}

	size, err := Size(dst)
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 8 {
		t.Errorf("Size = %d, want 8", size)
	}

	size, err = Size(filepath.Join(dst, "missing"))
	if err != nil || size != 0 {
		t.Errorf("Size missing = %d, %v", size, err)
	}
}
