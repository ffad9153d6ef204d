package apply

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/randalmurphal/genstage/artifact"
	"github.com/randalmurphal/genstage/git"
)

// ErrActionSkipped is returned by an Action with nothing to do.
var ErrActionSkipped = errors.New("action skipped")

// ActionInput describes a completed write for post-apply actions.
type ActionInput struct {
	Target  string
	Feature string
	RunID   string
	Files   []string // written paths, relative to Target
}

// Action is a best-effort step run after files are written. A failing
// action is recorded and never undoes the write.
type Action interface {
	Name() string
	Run(ctx context.Context, in ActionInput) (output string, err error)
}

func (e *Engine) runAction(ctx context.Context, a Action, in ActionInput) ActionResult {
	res := ActionResult{Name: a.Name()}
	out, err := a.Run(ctx, in)
	res.Output = out

	switch {
	case errors.Is(err, ErrActionSkipped):
		res.Success = true
		res.Skipped = true
		e.logger.Debug("post-apply action skipped", "action", res.Name)
	case err != nil:
		res.Error = err.Error()
		e.logger.Warn("post-apply action failed", "action", res.Name, "error", err)
	default:
		res.Success = true
		e.logger.Info("post-apply action done", "action", res.Name)
	}
	return res
}

// FormatAction runs a formatter over the written files, e.g.
// "dart format" or "gofmt -w". Paths are appended to the command line.
type FormatAction struct {
	Command string
	Args    []string
	Runner  git.CommandRunner
}

// NewFormatAction parses a formatter command line.
func NewFormatAction(command string, runner git.CommandRunner) (*FormatAction, error) {
	name, args, err := splitCommand(command)
	if err != nil {
		return nil, err
	}
	if runner == nil {
		runner = git.NewExecRunner()
	}
	return &FormatAction{Command: name, Args: args, Runner: runner}, nil
}

// Name implements Action.
func (a *FormatAction) Name() string { return "format" }

// Run implements Action.
func (a *FormatAction) Run(ctx context.Context, in ActionInput) (string, error) {
	if len(in.Files) == 0 {
		return "", ErrActionSkipped
	}
	args := append(append([]string(nil), a.Args...), in.Files...)
	out, err := a.Runner.Run(ctx, in.Target, a.Command, args...)
	if err != nil {
		return out, fmt.Errorf("%s: %w", a.Command, err)
	}
	return out, nil
}

// DependencyAction refreshes dependencies when a written file is one of the
// configured manifests (matched by base name, e.g. "pubspec.yaml").
type DependencyAction struct {
	Command   string
	Args      []string
	Manifests []string
	Runner    git.CommandRunner
}

// NewDependencyAction parses a dependency command such as "flutter pub get".
func NewDependencyAction(command string, manifests []string, runner git.CommandRunner) (*DependencyAction, error) {
	name, args, err := splitCommand(command)
	if err != nil {
		return nil, err
	}
	if runner == nil {
		runner = git.NewExecRunner()
	}
	return &DependencyAction{Command: name, Args: args, Manifests: manifests, Runner: runner}, nil
}

// Name implements Action.
func (a *DependencyAction) Name() string { return "dependencies" }

// Run implements Action.
func (a *DependencyAction) Run(ctx context.Context, in ActionInput) (string, error) {
	if !a.touchesManifest(in.Files) {
		return "", ErrActionSkipped
	}
	out, err := a.Runner.Run(ctx, in.Target, a.Command, a.Args...)
	if err != nil {
		return out, fmt.Errorf("%s: %w", a.Command, err)
	}
	return out, nil
}

func (a *DependencyAction) touchesManifest(files []string) bool {
	for _, f := range files {
		base := path.Base(f)
		for _, m := range a.Manifests {
			if base == m {
				return true
			}
		}
	}
	return false
}

var titleCaser = cases.Title(language.English)

// commitMessage builds the conventional commit message for applied files.
func commitMessage(feature *artifact.FeatureArtifact, files []string) string {
	title := titleCaser.String(strings.NewReplacer("-", " ", "_", " ").Replace(feature.Name))

	var body strings.Builder
	body.WriteString("Applied generated files:\n")
	for _, f := range files {
		body.WriteString("- " + f + "\n")
	}

	return git.CommitMessage{
		Subject:  fmt.Sprintf("feat(%s): apply generated %s feature", feature.Name, title),
		Body:     body.String(),
		Trailers: git.FeatureTrailers(feature.Name, feature.RunID),
	}.String()
}
