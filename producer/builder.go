package producer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"

	"github.com/randalmurphal/genstage/artifact"
	"github.com/randalmurphal/genstage/diff"
	gserrors "github.com/randalmurphal/genstage/errors"
	"github.com/randalmurphal/genstage/filetree"
)

// Builder turns generated files into artifact bundles diffed against a
// target project.
type Builder struct {
	target   string
	scanOpts filetree.ScanOptions
	diffOpts diff.Options
	logger   *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithScanOptions sets how the target is enumerated.
func WithScanOptions(opts filetree.ScanOptions) BuilderOption {
	return func(b *Builder) {
		b.scanOpts = opts
	}
}

// WithDiffOptions sets diff generation options.
func WithDiffOptions(opts diff.Options) BuilderOption {
	return func(b *Builder) {
		b.diffOpts = opts
	}
}

// WithBuilderLogger sets the logger.
func WithBuilderLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a builder for the project at target.
func NewBuilder(target string, opts ...BuilderOption) *Builder {
	b := &Builder{
		target:   target,
		scanOpts: filetree.ScanOptions{
			IgnoreDirs:    append(append([]string{}, filetree.DefaultIgnoreDirs...), ".genstage"),
			IncludeHidden: true,
		},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build scans the target once and bundles files against it. A missing target
// is treated as empty, so every file becomes a creation.
func (b *Builder) Build(files []File, metadata map[string]any) (artifact.Bundle, error) {
	current, err := filetree.Scan(b.target, b.scanOpts)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return artifact.Bundle{}, gserrors.IO("scan target", err)
		}
	}
	return BuildFromTree(current, files, metadata, b.diffOpts)
}

// BuildFromTree bundles files against an already enumerated target. A nil
// current tree means the target is empty. Identical files are kept in the
// bundle but get no diff.
func BuildFromTree(current *filetree.Tree, files []File, metadata map[string]any, opts diff.Options) (artifact.Bundle, error) {
	bundle := artifact.Bundle{
		Metadata: make(map[string]any, len(metadata)+4),
		Files:    make([]artifact.GeneratedFile, 0, len(files)),
	}
	for k, v := range metadata {
		bundle.Metadata[k] = v
	}

	var created, modified, unchanged int
	var additions, deletions int
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		rel, err := filetree.CleanRel(f.Path)
		if err != nil {
			return artifact.Bundle{}, fmt.Errorf("%w: %v", gserrors.ErrValidation, err)
		}
		if seen[rel] {
			return artifact.Bundle{}, fmt.Errorf("%w: duplicate file %q", gserrors.ErrValidation, rel)
		}
		seen[rel] = true

		var old []byte
		if current != nil && current.Has(rel) {
			old, err = current.Read(rel)
			if err != nil {
				return artifact.Bundle{}, gserrors.IO("read target file", err)
			}
			if old == nil {
				old = []byte{}
			}
		}

		bundle.Files = append(bundle.Files, artifact.GeneratedFile{
			RelativePath: rel,
			Content:      f.Content,
			ContentHash:  artifact.HashContent(f.Content),
		})

		text := diff.Generate(rel, old, f.Content, opts)
		switch {
		case old == nil:
			created++
		case text == "":
			unchanged++
			continue
		default:
			modified++
		}
		if text == "" {
			continue
		}

		stats, err := diff.Parse(text)
		if err != nil {
			return artifact.Bundle{}, fmt.Errorf("parse generated diff for %s: %w", rel, err)
		}
		additions += stats.Additions
		deletions += stats.Deletions
		bundle.Diffs = append(bundle.Diffs, artifact.DiffRecord{Name: DiffName(rel), Content: text})
	}

	bundle.Metadata["newFiles"] = created
	bundle.Metadata["modifiedFiles"] = modified
	bundle.Metadata["unchangedFiles"] = unchanged
	bundle.Metadata["diffStats"] = map[string]any{
		"files":     len(bundle.Diffs),
		"additions": additions,
		"deletions": deletions,
	}
	return bundle, nil
}

// DiffName is the stored diff name for a generated file.
func DiffName(rel string) string {
	return rel + ".diff"
}

// Stage saves bundle as feature name in session, and mirrors its diffs and
// files under the run directory.
func (b *Builder) Stage(session *artifact.Session, name string, bundle artifact.Bundle) error {
	if err := session.SaveFeatureArtifacts(name, bundle); err != nil {
		return fmt.Errorf("save feature %s: %w", name, err)
	}
	for _, d := range bundle.Diffs {
		if err := session.SaveDiff(path.Join(name, d.Name), d.Content); err != nil {
			return fmt.Errorf("save diff %s: %w", d.Name, err)
		}
	}
	for _, f := range bundle.Files {
		if err := session.SaveGeneratedFile(f.RelativePath, f.Content); err != nil {
			return fmt.Errorf("save generated file %s: %w", f.RelativePath, err)
		}
	}

	_ = session.Log(artifact.LevelInfo, "feature staged", map[string]any{
		"feature": name,
		"files":   len(bundle.Files),
		"diffs":   len(bundle.Diffs),
	})
	b.logger.Info("feature staged", "run", session.ID(), "feature", name, "files", len(bundle.Files), "diffs", len(bundle.Diffs))
	return nil
}

// Produce runs gen on prompt, parses the generated files, bundles them
// against the target and stages the result as feature name.
func (b *Builder) Produce(ctx context.Context, session *artifact.Session, name string, gen Generator, prompt string) (artifact.Bundle, error) {
	text, err := gen.Generate(ctx, prompt)
	if err != nil {
		_ = session.LogError(err, map[string]any{"feature": name})
		return artifact.Bundle{}, err
	}

	files, err := ParseFiles(text)
	if err != nil {
		_ = session.LogError(err, map[string]any{"feature": name})
		return artifact.Bundle{}, err
	}
	if len(files) == 0 {
		err := fmt.Errorf("%w: generator output contained no files", gserrors.ErrValidation)
		_ = session.LogError(err, map[string]any{"feature": name})
		return artifact.Bundle{}, err
	}

	metadata := map[string]any{"prompt": prompt}
	if g, ok := gen.(*LLMGenerator); ok && g.Model() != "" {
		metadata["model"] = string(g.Model())
	}

	bundle, err := b.Build(files, metadata)
	if err != nil {
		return artifact.Bundle{}, err
	}
	if err := b.Stage(session, name, bundle); err != nil {
		return artifact.Bundle{}, err
	}
	return bundle, nil
}

// FilesFromDir reads every file under dir as a generated file set.
func FilesFromDir(dir string) ([]File, error) {
	tree, err := filetree.Scan(dir, filetree.ScanOptions{IncludeHidden: true})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", dir, gserrors.ErrNotFound)
		}
		return nil, gserrors.IO("scan generated files", err)
	}
	files := make([]File, 0, tree.Len())
	for _, rel := range tree.Paths() {
		data, err := tree.Read(rel)
		if err != nil {
			return nil, gserrors.IO("read generated file", err)
		}
		files = append(files, File{Path: rel, Content: data})
	}
	return files, nil
}
