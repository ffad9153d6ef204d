package diff

import (
	"reflect"
	"testing"
)

const gitPatch = `diff --git a/lib/a.dart b/lib/a.dart
index 1111111..2222222 100644
--- a/lib/a.dart
+++ b/lib/a.dart
@@ -1,2 +1,3 @@
 keep
-old
+new
+more
diff --git a/lib/new.dart b/lib/new.dart
new file mode 100644
index 0000000..3333333
--- /dev/null
+++ b/lib/new.dart
@@ -0,0 +1 @@
+hello
diff --git a/logo.png b/logo.png
index 4444444..5555555 100644
Binary files a/logo.png and b/logo.png differ
`

func TestParse_GitPatch(t *testing.T) {
	stats, err := Parse(gitPatch)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(stats.Files) != 3 {
		t.Fatalf("Files = %d, want 3", len(stats.Files))
	}

	first := stats.Files[0]
	if first.Path() != "lib/a.dart" || first.Additions != 2 || first.Deletions != 1 || first.Hunks != 1 {
		t.Errorf("first file = %+v", first)
	}

	second := stats.Files[1]
	if !second.IsNew() || second.Path() != "lib/new.dart" || second.Additions != 1 {
		t.Errorf("second file = %+v", second)
	}

	if !stats.Files[2].Binary || stats.Files[2].Path() != "logo.png" {
		t.Errorf("third file = %+v", stats.Files[2])
	}

	if want := []string{"lib/a.dart", "lib/new.dart", "logo.png"}; !reflect.DeepEqual(stats.Paths(), want) {
		t.Errorf("Paths = %v, want %v", stats.Paths(), want)
	}
	if stats.Additions != 3 || stats.Deletions != 1 {
		t.Errorf("totals = +%d -%d", stats.Additions, stats.Deletions)
	}
}

func TestParse_PlainMultiFile(t *testing.T) {
	text := Generate("a.txt", []byte("1\n"), []byte("2\n"), Options{}) +
		Generate("b.txt", nil, []byte("x\n"), Options{})

	stats, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if want := []string{"a.txt", "b.txt"}; !reflect.DeepEqual(stats.Paths(), want) {
		t.Errorf("Paths = %v, want %v", stats.Paths(), want)
	}
}

func TestParse_DeletionPath(t *testing.T) {
	text := Unified(File{Path: "gone.txt", Old: []byte("x\n"), NewMissing: true}, Options{})
	stats, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(stats.Files) != 1 || !stats.Files[0].IsDeleted() || stats.Files[0].Path() != "gone.txt" {
		t.Errorf("Files = %+v", stats.Files)
	}
}

func TestParse_MalformedHunk(t *testing.T) {
	if _, err := Parse("--- a/x\n+++ b/x\n@@ nonsense @@\n"); err == nil {
		t.Error("expected error for malformed hunk header")
	}
}
