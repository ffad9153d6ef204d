package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeYAML writes content to dir/name, creating dir.
func writeYAML(t *testing.T, dir, name, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolver_Defaults(t *testing.T) {
	cfg := NewResolver(WithDefaults(map[string]string{
		"mode":     "safe",
		"max_runs": "50",
	})).Resolve()

	if got := cfg.Get("mode"); got != "safe" {
		t.Errorf("mode = %q, want %q", got, "safe")
	}
	if got := cfg.Source("mode"); got != SourceDefault {
		t.Errorf("source = %q, want %q", got, SourceDefault)
	}
}

func TestResolver_DefaultsAreCopied(t *testing.T) {
	defaults := map[string]string{"mode": "safe"}
	r := NewResolver(WithDefaults(defaults))
	defaults["mode"] = "force"

	if got := r.Resolve().Get("mode"); got != "safe" {
		t.Errorf("mode = %q, want safe", got)
	}
}

func TestResolver_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("GENSTAGE_MAX_RUNS", "5")

	cfg := NewResolver(
		WithEnvPrefix("GENSTAGE_"),
		WithDefaults(map[string]string{"max_runs": "50"}),
	).Resolve()

	if got := cfg.Get("max_runs"); got != "5" {
		t.Errorf("max_runs = %q, want %q", got, "5")
	}
	if got := cfg.Source("max_runs"); got != SourceEnv {
		t.Errorf("source = %q, want %q", got, SourceEnv)
	}
}

func TestResolver_EnvIgnoredWithoutPrefix(t *testing.T) {
	t.Setenv("MAX_RUNS", "5")

	cfg := NewResolver(WithDefaults(map[string]string{"max_runs": "50"})).Resolve()

	if got := cfg.Get("max_runs"); got != "50" {
		t.Errorf("max_runs = %q, want 50", got)
	}
}

func TestResolver_Layers(t *testing.T) {
	tmpDir := t.TempDir()
	global := writeYAML(t, filepath.Join(tmpDir, "global"), "config.yaml", "mode: force\nresolution: skip\nbackup: false\n")
	local := writeYAML(t, filepath.Join(tmpDir, "local"), ".genstage.yaml", "mode: merge\nresolution: overwrite\n")
	t.Setenv("TEST_MODE", "safe")

	cfg := NewResolver(
		WithEnvPrefix("TEST_"),
		WithDefaults(map[string]string{
			"mode":       "safe",
			"resolution": "",
			"backup":     "true",
			"max_runs":   "50",
		}),
		WithFile(SourceGlobal, global),
		WithFile(SourceLocal, local),
	).Resolve()

	tests := []struct {
		key        string
		wantValue  string
		wantSource Source
	}{
		{"mode", "safe", SourceEnv},
		{"resolution", "overwrite", SourceLocal},
		{"backup", "false", SourceGlobal},
		{"max_runs", "50", SourceDefault},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			value, source := cfg.Lookup(tt.key)
			if value != tt.wantValue || source != tt.wantSource {
				t.Errorf("%s = %q from %s, want %q from %s", tt.key, value, source, tt.wantValue, tt.wantSource)
			}
		})
	}
}

func TestResolver_MissingFileIsSilent(t *testing.T) {
	r := NewResolver(
		WithDefaults(map[string]string{"mode": "safe"}),
		WithFile(SourceGlobal, filepath.Join(t.TempDir(), "absent.yaml")),
		WithFile(SourceLocal, ""),
	)

	cfg := r.Resolve()

	if got := cfg.Get("mode"); got != "safe" {
		t.Errorf("mode = %q, want safe", got)
	}
	if len(r.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", r.Warnings)
	}
}

func TestResolver_ResolveWithFlags(t *testing.T) {
	cfg := NewResolver(WithDefaults(map[string]string{"mode": "safe", "resolution": ""})).
		ResolveWithFlags(map[string]string{
			"mode":       "force",
			"resolution": "",
		})

	if got := cfg.Get("mode"); got != "force" {
		t.Errorf("mode = %q, want %q", got, "force")
	}
	if got := cfg.Source("mode"); got != SourceFlag {
		t.Errorf("source = %q, want %q", got, SourceFlag)
	}
	if got := cfg.Source("resolution"); got != SourceDefault {
		t.Errorf("empty flag should not override: source = %q", got)
	}
}

func TestResolver_KnownKeys(t *testing.T) {
	path := writeYAML(t, t.TempDir(), "config.yaml", "mode: force\nbogus: value\n")

	r := NewResolver(
		WithKnownKeys([]string{"mode"}),
		WithDefaults(map[string]string{"mode": "safe"}),
		WithFile(SourceGlobal, path),
	)
	cfg := r.Resolve()

	if got := cfg.Get("mode"); got != "force" {
		t.Errorf("mode = %q, want %q", got, "force")
	}
	if got := cfg.Get("bogus"); got != "" {
		t.Errorf("bogus = %q, want empty", got)
	}
	if len(r.Warnings) != 1 || !strings.Contains(r.Warnings[0], "bogus") {
		t.Errorf("Warnings = %v, want one about bogus", r.Warnings)
	}
}

func TestResolver_MalformedYAML(t *testing.T) {
	path := writeYAML(t, t.TempDir(), "config.yaml", "mode: [unclosed\n")

	r := NewResolver(
		WithDefaults(map[string]string{"mode": "safe"}),
		WithFile(SourceLocal, path),
	)
	cfg := r.Resolve()

	if got := cfg.Get("mode"); got != "safe" {
		t.Errorf("mode = %q, want default", got)
	}
	if len(r.Warnings) != 1 || !strings.HasPrefix(r.Warnings[0], "parse ") {
		t.Errorf("Warnings = %v, want one parse warning", r.Warnings)
	}

	// Warnings do not accumulate across calls.
	r.Resolve()
	if len(r.Warnings) != 1 {
		t.Errorf("Warnings after second Resolve = %v, want one", r.Warnings)
	}
}

func TestResolver_ValueTypes(t *testing.T) {
	path := writeYAML(t, t.TempDir(), "config.yaml",
		"backup: true\nmax_runs: 7\nmanifest_files:\n  - pubspec.yaml\n  - go.mod\nnested:\n  a: b\n")

	cfg := NewResolver(WithFile(SourceGlobal, path)).Resolve()

	tests := map[string]string{
		"backup":         "true",
		"max_runs":       "7",
		"manifest_files": "pubspec.yaml,go.mod",
		"nested":         "",
	}
	for key, want := range tests {
		if got := cfg.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestResolved_ValuesAndKeys(t *testing.T) {
	cfg := NewResolver(WithDefaults(map[string]string{"b": "2", "a": "1"})).Resolve()

	values := cfg.Values()
	if len(values) != 2 || values["a"] != "1" {
		t.Errorf("Values() = %v, want a=1 b=2", values)
	}
	values["a"] = "mutated"
	if cfg.Get("a") != "1" {
		t.Error("Values() should return a copy")
	}

	if keys := cfg.Keys(); strings.Join(keys, ",") != "a,b" {
		t.Errorf("Keys() = %v, want sorted [a b]", keys)
	}
}

func TestNewGenstageResolver(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	writeYAML(t, filepath.Join(home, ".config", "genstage"), "config.yaml", "mode: force\nmax_runs: 3\n")

	repo := t.TempDir()
	if err := os.MkdirAll(filepath.Join(repo, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeYAML(t, repo, ".genstage.yaml", "mode: merge\n")
	nested := filepath.Join(repo, "lib", "src")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	r := NewGenstageResolver(nested)
	if r.ProjectRoot() != repo {
		t.Errorf("ProjectRoot() = %q, want %q", r.ProjectRoot(), repo)
	}

	cfg := r.Resolve()
	if v, src := cfg.Lookup(KeyMode); v != "merge" || src != SourceLocal {
		t.Errorf("mode = %q from %s, want merge from local", v, src)
	}
	if v, src := cfg.Lookup(KeyMaxRuns); v != "3" || src != SourceGlobal {
		t.Errorf("max_runs = %q from %s, want 3 from global", v, src)
	}
	if v, src := cfg.Lookup(KeyBackup); v != "true" || src != SourceDefault {
		t.Errorf("backup = %q from %s, want true from default", v, src)
	}
}

func TestNewGenstageResolver_OutsideRepository(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	r := NewGenstageResolver(t.TempDir())
	if r.ProjectRoot() != "" {
		t.Errorf("ProjectRoot() = %q, want empty", r.ProjectRoot())
	}
	if got := r.Resolve().Get(KeyStateDir); got != ".genstage" {
		t.Errorf("state_dir = %q, want .genstage", got)
	}
}

func TestEnvName(t *testing.T) {
	if got := EnvName("GENSTAGE_", "command-timeout"); got != "GENSTAGE_COMMAND_TIMEOUT" {
		t.Errorf("EnvName = %q, want GENSTAGE_COMMAND_TIMEOUT", got)
	}
}

func TestFindGitRoot(t *testing.T) {
	tmpDir := t.TempDir()
	nested := filepath.Join(tmpDir, "a", "b", "c")
	os.MkdirAll(nested, 0o755)
	os.MkdirAll(filepath.Join(tmpDir, ".git"), 0o755)

	if root := findGitRoot(nested); root != tmpDir {
		t.Errorf("findGitRoot() = %q, want %q", root, tmpDir)
	}
}

func TestFindGitRoot_NotFound(t *testing.T) {
	if root := findGitRoot(t.TempDir()); root != "" {
		t.Errorf("findGitRoot() = %q, want empty", root)
	}
}
