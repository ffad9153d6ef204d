// Package testutil provides fixtures for tests: temporary git repositories,
// file trees and generated feature contents.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TempFile creates a temporary file with the given content.
// Returns the file path. File is automatically cleaned up when the test ends.
func TempFile(t *testing.T, name string, content []byte) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to create temp file %s: %v", name, err)
	}

	return path
}

// TempFileString creates a temporary file with string content.
func TempFileString(t *testing.T, name, content string) string {
	return TempFile(t, name, []byte(content))
}

// LoginFeature returns the generated files of a small two-directory feature.
func LoginFeature() map[string]string {
	return map[string]string{
		"lib/login/login_page.dart": "class LoginPage {}\n",
		"lib/login/login_form.dart": "class LoginForm {}\n",
		"test/login_test.dart":      "void main() {}\n",
	}
}

// Bytes converts a path/content map to the byte form used by stores and trees.
func Bytes(files map[string]string) map[string][]byte {
	out := make(map[string][]byte, len(files))
	for path, content := range files {
		out[path] = []byte(content)
	}
	return out
}
