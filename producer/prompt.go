package producer

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	gserrors "github.com/randalmurphal/genstage/errors"
	"github.com/randalmurphal/genstage/filetree"
)

//go:embed prompts/*.txt
var embeddedPrompts embed.FS

// Prompt names understood by the generate flow.
const (
	PromptSystem  = "system"
	PromptFeature = "feature"
)

// MaxPromptPaths bounds the number of existing paths listed in a feature prompt.
const MaxPromptPaths = 200

// PromptData is the template input for the feature prompt.
type PromptData struct {
	Feature   string
	Kind      Kind
	Request   string
	Paths     []string
	Truncated int
}

// PromptLoader loads and renders prompt templates. Directories are searched
// in order; the embedded defaults are used last.
type PromptLoader struct {
	dirs    []string
	cache   map[string]*template.Template
	funcMap template.FuncMap
}

// NewPromptLoader creates a loader searching dirs before the built-in prompts.
func NewPromptLoader(dirs ...string) *PromptLoader {
	return &PromptLoader{
		dirs:    dirs,
		cache:   make(map[string]*template.Template),
		funcMap: promptFuncMap(),
	}
}

// AddFunc adds a template function. It must be called before the first render.
func (l *PromptLoader) AddFunc(name string, fn any) {
	l.funcMap[name] = fn
}

// Load returns a prompt without rendering it.
func (l *PromptLoader) Load(name string) (string, error) {
	return l.raw(name)
}

// Render loads name and executes it with data.
func (l *PromptLoader) Render(name string, data any) (string, error) {
	tmpl, err := l.parsed(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return buf.String(), nil
}

// SystemPrompt returns the system prompt override, or DefaultSystemPrompt.
func (l *PromptLoader) SystemPrompt() (string, error) {
	s, err := l.raw(PromptSystem)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// FeaturePrompt renders the feature prompt for data.
func (l *PromptLoader) FeaturePrompt(data PromptData) (string, error) {
	return l.Render(PromptFeature, data)
}

// Exists reports whether name resolves to a prompt.
func (l *PromptLoader) Exists(name string) bool {
	_, err := l.raw(name)
	return err == nil
}

// List returns the names of all available prompts, sorted.
func (l *PromptLoader) List() []string {
	names := map[string]bool{PromptSystem: true}
	add := func(entries []fs.DirEntry) {
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
				names[strings.TrimSuffix(e.Name(), ".txt")] = true
			}
		}
	}
	for _, dir := range l.dirs {
		if entries, err := os.ReadDir(dir); err == nil {
			add(entries)
		}
	}
	if entries, err := embeddedPrompts.ReadDir("prompts"); err == nil {
		add(entries)
	}

	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (l *PromptLoader) parsed(name string) (*template.Template, error) {
	if tmpl, ok := l.cache[name]; ok {
		return tmpl, nil
	}
	content, err := l.raw(name)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New(name).Funcs(l.funcMap).Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w: %v", name, gserrors.ErrValidation, err)
	}
	l.cache[name] = tmpl
	return tmpl, nil
}

func (l *PromptLoader) raw(name string) (string, error) {
	file := name + ".txt"
	for _, dir := range l.dirs {
		data, err := os.ReadFile(filepath.Join(dir, file))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", gserrors.IO("read prompt "+name, err)
		}
	}
	if name == PromptSystem {
		return DefaultSystemPrompt, nil
	}
	data, err := embeddedPrompts.ReadFile("prompts/" + file)
	if err != nil {
		return "", fmt.Errorf("prompt %s: %w", name, gserrors.ErrNotFound)
	}
	return string(data), nil
}

// PromptDataFor lists the files already under target so the model can see
// the project's layout. A missing target yields no paths.
func (b *Builder) PromptDataFor(feature string, kind Kind, request string) (PromptData, error) {
	data := PromptData{Feature: feature, Kind: kind, Request: request}
	tree, err := filetree.Scan(b.target, b.scanOpts)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return data, nil
		}
		return data, gserrors.IO("scan target", err)
	}
	paths := tree.Paths()
	if len(paths) > MaxPromptPaths {
		data.Truncated = len(paths) - MaxPromptPaths
		paths = paths[:MaxPromptPaths]
	}
	data.Paths = paths
	return data, nil
}

func promptFuncMap() template.FuncMap {
	return template.FuncMap{
		"join":    strings.Join,
		"trim":    strings.TrimSpace,
		"upper":   strings.ToUpper,
		"lower":   strings.ToLower,
		"title":   cases.Title(language.English).String,
		"indent":  indent,
		"default": defaultValue,
	}
}

func indent(n int, s string) string {
	if s == "" {
		return s
	}
	prefix := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

func defaultValue(def, v any) any {
	if v == nil {
		return def
	}
	if s, ok := v.(string); ok && s == "" {
		return def
	}
	return v
}
