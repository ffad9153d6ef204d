package apply

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gserrors "github.com/randalmurphal/genstage/errors"
	"github.com/randalmurphal/genstage/filetree"
	"github.com/randalmurphal/genstage/git"
)

// Validator checks generated files before they are written.
//
// Validate returns a *ValidationError when the files are rejected. Any other
// error means the check itself could not run and fails the apply.
type Validator interface {
	Validate(ctx context.Context, files *filetree.Tree) error
}

// ValidationError reports generated files rejected by a checker.
type ValidationError struct {
	Output string
}

func (e *ValidationError) Error() string {
	if e.Output == "" {
		return "generated files failed validation"
	}
	return "generated files failed validation: " + e.Output
}

// Is makes a ValidationError match gserrors.ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == gserrors.ErrValidation
}

// CommandValidator runs an external checker over a staged copy of the
// generated files. The file paths are appended to the command line and the
// command runs inside the staging directory, so the target is never touched.
//
// With InWorktree set and a repository carried by the context (see
// git.ContextWithGit), the staging directory is a detached worktree of the
// repository's HEAD, so the checker sees the generated files in the context
// of the committed project.
type CommandValidator struct {
	Name       string
	Args       []string
	Runner     git.CommandRunner
	InWorktree bool
}

// NewCommandValidator parses a command line such as "dart analyze" into a
// CommandValidator. Arguments are split on whitespace; no shell is involved.
func NewCommandValidator(command string, runner git.CommandRunner) (*CommandValidator, error) {
	name, args, err := splitCommand(command)
	if err != nil {
		return nil, err
	}
	if runner == nil {
		runner = git.NewExecRunner()
	}
	return &CommandValidator{Name: name, Args: args, Runner: runner}, nil
}

// Validate implements Validator.
func (v *CommandValidator) Validate(ctx context.Context, files *filetree.Tree) error {
	root, err := os.MkdirTemp("", "genstage-validate-*")
	if err != nil {
		return gserrors.IO("create validation dir", err)
	}
	defer os.RemoveAll(root)

	dir := root
	if repo := git.FromContext(ctx); v.InWorktree && repo != nil {
		dir = filepath.Join(root, "worktree")
		if err := repo.AddWorktree(ctx, dir, "HEAD"); err != nil {
			return fmt.Errorf("create validation worktree: %w", err)
		}
		defer repo.RemoveWorktree(context.WithoutCancel(ctx), dir)
	}

	paths := files.Paths()
	for _, rel := range paths {
		data, err := files.Read(rel)
		if err != nil {
			return gserrors.IO("read generated "+rel, err)
		}
		if err := filetree.WriteFile(dir, rel, data, 0o644); err != nil {
			return gserrors.IO("stage "+rel, err)
		}
	}

	args := append(append([]string(nil), v.Args...), paths...)
	out, err := v.Runner.Run(ctx, dir, v.Name, args...)
	if err == nil {
		return nil
	}

	var cmdErr *git.CommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode > 0 {
		output := cmdErr.Output
		if output == "" {
			output = out
		}
		return &ValidationError{Output: output}
	}
	return fmt.Errorf("run validator %s: %w", v.Name, err)
}

func splitCommand(command string) (string, []string, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("%w: empty command", gserrors.ErrValidation)
	}
	return fields[0], fields[1:], nil
}
