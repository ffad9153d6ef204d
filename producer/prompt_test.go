package producer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gserrors "github.com/randalmurphal/genstage/errors"
	"github.com/randalmurphal/genstage/testutil"
)

func writePrompt(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".txt"), []byte(content), 0o644))
}

func TestPromptLoader_Defaults(t *testing.T) {
	l := NewPromptLoader(filepath.Join(t.TempDir(), "missing"))

	system, err := l.SystemPrompt()
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemPrompt, system)

	prompt, err := l.FeaturePrompt(PromptData{
		Feature: "login",
		Kind:    KindGenerate,
		Request: "Add a login page\nwith email and password\n",
		Paths:   []string{"lib/main.dart", "pubspec.yaml"},
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, "Feature: Login")
	assert.Contains(t, prompt, "Kind: generate")
	assert.Contains(t, prompt, "- lib/main.dart\n- pubspec.yaml\n")
	assert.Contains(t, prompt, "Request:\n  Add a login page\n  with email and password")
	assert.NotContains(t, prompt, "more")
}

func TestPromptLoader_NoPaths(t *testing.T) {
	l := NewPromptLoader()
	prompt, err := l.FeaturePrompt(PromptData{Feature: "login", Request: "x"})
	require.NoError(t, err)
	assert.NotContains(t, prompt, "already contains")
	assert.NotContains(t, prompt, "Kind:")
}

func TestPromptLoader_Overrides(t *testing.T) {
	first := filepath.Join(t.TempDir(), "state")
	second := filepath.Join(t.TempDir(), "project")
	writePrompt(t, first, PromptSystem, "Be terse.\n")
	writePrompt(t, second, PromptSystem, "Be verbose.\n")
	writePrompt(t, second, PromptFeature, "{{.Feature | upper}}: {{.Request}}")
	writePrompt(t, second, "review", "review {{default \"all\" .}}")

	l := NewPromptLoader(first, second)

	system, err := l.SystemPrompt()
	require.NoError(t, err)
	assert.Equal(t, "Be terse.", system)

	prompt, err := l.FeaturePrompt(PromptData{Feature: "login", Request: "add it"})
	require.NoError(t, err)
	assert.Equal(t, "LOGIN: add it", prompt)

	review, err := l.Render("review", "")
	require.NoError(t, err)
	assert.Equal(t, "review all", review)

	assert.Equal(t, []string{"feature", "review", "system"}, l.List())
	assert.True(t, l.Exists("review"))
	assert.False(t, l.Exists("missing"))
}

func TestPromptLoader_Errors(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, "broken", "{{.Feature")
	l := NewPromptLoader(dir)

	_, err := l.Render("missing", nil)
	assert.True(t, gserrors.IsNotFound(err), "got %v", err)

	_, err = l.Render("broken", nil)
	assert.True(t, gserrors.IsValidationError(err), "got %v", err)
}

func TestPromptLoader_AddFunc(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, "shout", "{{shout .}}")
	l := NewPromptLoader(dir)
	l.AddFunc("shout", func(s string) string { return strings.ToUpper(s) + "!" })

	out, err := l.Render("shout", "hi")
	require.NoError(t, err)
	assert.Equal(t, "HI!", out)
}

func TestBuilder_PromptDataFor(t *testing.T) {
	target := t.TempDir()
	testutil.WriteFiles(t, target, map[string]string{
		"lib/main.dart":         "void main() {}\n",
		"pubspec.yaml":          "name: app\n",
		".genstage/runs/x.json": "{}",
	})

	data, err := NewBuilder(target).PromptDataFor("login", KindGenerate, "add login")
	require.NoError(t, err)
	assert.Equal(t, "login", data.Feature)
	assert.Equal(t, KindGenerate, data.Kind)
	assert.Equal(t, []string{"lib/main.dart", "pubspec.yaml"}, data.Paths)
	assert.Zero(t, data.Truncated)

	missing, err := NewBuilder(filepath.Join(target, "nope")).PromptDataFor("login", KindGenerate, "x")
	require.NoError(t, err)
	assert.Empty(t, missing.Paths)
}

func TestBuilder_PromptDataFor_Truncates(t *testing.T) {
	target := t.TempDir()
	files := make(map[string]string, MaxPromptPaths+5)
	for i := range MaxPromptPaths + 5 {
		files[fmt.Sprintf("src/file_%03d.go", i)] = "package src\n"
	}
	testutil.WriteFiles(t, target, files)

	data, err := NewBuilder(target).PromptDataFor("bulk", KindGenerate, "x")
	require.NoError(t, err)
	assert.Len(t, data.Paths, MaxPromptPaths)
	assert.Equal(t, 5, data.Truncated)

	prompt, err := NewPromptLoader().FeaturePrompt(data)
	require.NoError(t, err)
	assert.Contains(t, prompt, "- ... and 5 more")
}
