package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func resolvedWith(t *testing.T, overrides map[string]string) *Resolved {
	t.Helper()
	return NewResolver(WithDefaults(Defaults())).ResolveWithFlags(overrides)
}

func TestLoad_Defaults(t *testing.T) {
	settings, err := Load(resolvedWith(t, nil))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := Settings{
		StateDir:       ".genstage",
		MaxRuns:        50,
		MaxAge:         30 * 24 * time.Hour,
		CompressAbove:  10240,
		Mode:           "safe",
		Backup:         true,
		CommandTimeout: time.Minute,
		KeepBackups:    10,
		WebhookLevel:   "info",
		LogLevel:       "info",
	}
	if diff := cmp.Diff(want, settings); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Overrides(t *testing.T) {
	settings, err := Load(resolvedWith(t, map[string]string{
		KeyMode:           "MERGE",
		KeyResolution:     "skip",
		KeyGitIntegration: "true",
		KeyManifestFiles:  "pubspec.yaml, go.mod ,",
		KeyCommandTimeout: "5s",
	}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if settings.Mode != "merge" {
		t.Errorf("Mode = %q, want merge", settings.Mode)
	}
	if settings.Resolution != "skip" {
		t.Errorf("Resolution = %q, want skip", settings.Resolution)
	}
	if !settings.GitIntegration {
		t.Error("GitIntegration = false, want true")
	}
	if diff := cmp.Diff([]string{"pubspec.yaml", "go.mod"}, settings.ManifestFiles); diff != "" {
		t.Errorf("ManifestFiles mismatch (-want +got):\n%s", diff)
	}
	if settings.CommandTimeout != 5*time.Second {
		t.Errorf("CommandTimeout = %v, want 5s", settings.CommandTimeout)
	}
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(resolvedWith(t, map[string]string{
		KeyMaxRuns:        "many",
		KeyMode:           "yolo",
		KeyCommandTimeout: "soon",
		KeyBackup:         "perhaps",
		KeyWebhookLevel:   "loud",
	}))
	if err == nil {
		t.Fatal("Load() should fail for malformed values")
	}
	for _, key := range []string{KeyMaxRuns, KeyMode, KeyCommandTimeout, KeyBackup, KeyWebhookLevel} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
	if !strings.Contains(err.Error(), "from flag") {
		t.Errorf("error %q should name the source", err)
	}
}

func TestKeys(t *testing.T) {
	keys := Keys()
	if len(keys) != len(Defaults()) {
		t.Errorf("len(Keys()) = %d, want %d", len(keys), len(Defaults()))
	}
	for i := 1; i < len(keys); i++ {
		if keys[i-1] > keys[i] {
			t.Errorf("Keys() not sorted: %v", keys)
			break
		}
	}
}

func TestSettings_StatePath(t *testing.T) {
	if got := (Settings{StateDir: ".genstage"}).StatePath("/repo"); got != filepath.Join("/repo", ".genstage") {
		t.Errorf("StatePath = %q", got)
	}
	if got := (Settings{StateDir: "/var/genstage"}).StatePath("/repo"); got != "/var/genstage" {
		t.Errorf("StatePath = %q, want absolute dir unchanged", got)
	}
}

func TestNewGenstageResolver_Settings(t *testing.T) {
	repo := t.TempDir()
	writeYAML(t, filepath.Join(repo, ".git"), "HEAD", "ref: refs/heads/main\n")
	writeYAML(t, repo, ".genstage.yaml", "max_runs: 3\n")
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GENSTAGE_MODE", "force")

	cfg := NewGenstageResolver(repo).Resolve()
	settings, err := Load(cfg)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if settings.MaxRuns != 3 {
		t.Errorf("MaxRuns = %d, want 3 from local config", settings.MaxRuns)
	}
	if settings.Mode != "force" {
		t.Errorf("Mode = %q, want force from env", settings.Mode)
	}
}
