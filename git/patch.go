package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ApplyResult reports the outcome of an operation that can leave conflicts.
// Conflicts always come from git's own conflict listing, never from the exit code.
type ApplyResult struct {
	Success   bool     `json:"success"`
	Conflicts []string `json:"conflicts,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// ApplyOptions configures ApplyPatch.
type ApplyOptions struct {
	ThreeWay bool // Fall back to a three-way merge, leaving conflict markers
	Check    bool // Only check whether the patch applies; change nothing
	Reverse  bool // Apply the patch in reverse
}

// ResolveStrategy picks how ResolveConflict settles a conflicted file.
type ResolveStrategy string

const (
	// ResolveOurs keeps our side and stages the file.
	ResolveOurs ResolveStrategy = "ours"
	// ResolveTheirs keeps their side and stages the file.
	ResolveTheirs ResolveStrategy = "theirs"
	// ResolveManual leaves conflict markers in place and does not stage.
	ResolveManual ResolveStrategy = "manual"
)

// GeneratePatch writes a binary-safe patch of the working-tree changes to
// paths, relative to HEAD, into outputPath. An empty paths slice covers the
// whole tree.
//
// Untracked files under paths are included as creations: they are marked
// intent-to-add for the diff and unmarked afterwards, so the index is left
// as it was. Every such file must appear in the patch.
func (g *Context) GeneratePatch(ctx context.Context, paths []string, outputPath string) (err error) {
	untracked, err := g.untrackedFiles(ctx, paths)
	if err != nil {
		return err
	}
	if len(untracked) > 0 {
		if _, err := g.runGit(ctx, append([]string{"add", "--intent-to-add", "--"}, untracked...)...); err != nil {
			return g.wrap("generate patch", err)
		}
		defer func() {
			if _, resetErr := g.runGit(ctx, append([]string{"reset", "-q", "--"}, untracked...)...); resetErr != nil && err == nil {
				err = g.wrap("generate patch", resetErr)
			}
		}()
	}

	args := []string{"diff", "--binary", "HEAD"}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}

	out, err := g.outputGit(ctx, args...)
	if err != nil {
		return g.wrap("generate patch", err)
	}
	for _, p := range untracked {
		if !bytes.Contains(out, []byte("diff --git a/"+p+" b/"+p+"\n")) {
			return fmt.Errorf("%w: new file %s missing from patch", ErrPatchIncomplete, p)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create patch dir: %w", err)
	}
	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		return fmt.Errorf("write patch: %w", err)
	}
	return nil
}

// untrackedFiles lists files under paths that git does not track and does
// not ignore.
func (g *Context) untrackedFiles(ctx context.Context, paths []string) ([]string, error) {
	args := []string{"ls-files", "--others", "--exclude-standard"}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}
	out, err := g.runGit(ctx, args...)
	if err != nil {
		return nil, g.wrap("list untracked files", err)
	}
	return splitLines(out), nil
}

// ApplyPatch applies the patch file at path to the working tree.
// A patch that does not apply is reported in the result, not as an error;
// the error return is reserved for a missing patch file or a failed
// conflict query.
func (g *Context) ApplyPatch(ctx context.Context, path string, opts ApplyOptions) (*ApplyResult, error) {
	absPatch, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve patch path: %w", err)
	}
	if _, err := os.Stat(absPatch); err != nil {
		return nil, fmt.Errorf("patch file: %w", err)
	}

	args := []string{"apply"}
	if opts.ThreeWay {
		args = append(args, "--3way")
	}
	if opts.Check {
		args = append(args, "--check")
	}
	if opts.Reverse {
		args = append(args, "--reverse")
	}
	args = append(args, absPatch)

	_, runErr := g.runGit(ctx, args...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, g.wrap("apply patch", ctxErr)
	}
	return g.conflictResult(ctx, runErr)
}

// GetConflictedFiles lists the paths git reports as unmerged.
func (g *Context) GetConflictedFiles(ctx context.Context) ([]string, error) {
	out, err := g.runGit(ctx, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, g.wrap("list conflicts", err)
	}
	return splitLines(out), nil
}

// ResolveConflict settles a conflicted file. ResolveManual leaves the
// markers and the index untouched.
func (g *Context) ResolveConflict(ctx context.Context, path string, strategy ResolveStrategy) error {
	switch strategy {
	case ResolveManual:
		return nil
	case ResolveOurs, ResolveTheirs:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStrategy, strategy)
	}

	if _, err := g.runGit(ctx, "checkout", "--"+string(strategy), "--", path); err != nil {
		return g.wrap("resolve conflict", err)
	}
	return g.StageFiles(ctx, path)
}

// Merge merges branch into the current branch.
func (g *Context) Merge(ctx context.Context, branch string) (*ApplyResult, error) {
	_, runErr := g.runGit(ctx, "merge", "--no-edit", branch)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, g.wrap("merge", ctxErr)
	}
	return g.conflictResult(ctx, runErr)
}

// MergeFile runs a three-way merge of file contents with git merge-file.
// conflicted is true when the result contains conflict markers.
func (g *Context) MergeFile(ctx context.Context, current, base, other []byte) (merged []byte, conflicted bool, err error) {
	dir, err := os.MkdirTemp("", "genstage-merge-*")
	if err != nil {
		return nil, false, fmt.Errorf("create merge dir: %w", err)
	}
	defer os.RemoveAll(dir)

	names := []string{"current", "base", "generated"}
	for i, data := range [][]byte{current, base, other} {
		if err := os.WriteFile(filepath.Join(dir, names[i]), data, 0o644); err != nil {
			return nil, false, fmt.Errorf("write merge input: %w", err)
		}
	}

	args := []string{"merge-file", "-p",
		"-L", "current", "-L", "base", "-L", "generated",
		filepath.Join(dir, names[0]), filepath.Join(dir, names[1]), filepath.Join(dir, names[2]),
	}
	out, err := g.outputGit(ctx, args...)
	if err == nil {
		return out, false, nil
	}
	// merge-file exits with the number of conflicts; negative (255) means failure.
	if code := exitCode(err); code > 0 && code < 128 {
		return out, true, nil
	}
	return nil, false, g.wrap("merge file", err)
}

// conflictResult builds an ApplyResult from a command outcome, re-querying
// git for the conflicted paths.
func (g *Context) conflictResult(ctx context.Context, runErr error) (*ApplyResult, error) {
	conflicts, err := g.GetConflictedFiles(ctx)
	if err != nil {
		return nil, err
	}

	result := &ApplyResult{
		Success:   runErr == nil && len(conflicts) == 0,
		Conflicts: conflicts,
	}
	if runErr != nil {
		result.Error = runErr.Error()
	} else if len(conflicts) > 0 {
		result.Error = ErrMergeConflict.Error()
	}
	return result, nil
}

func splitLines(out string) []string {
	if strings.TrimSpace(out) == "" {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// IsConflict reports whether err indicates conflicted files.
func IsConflict(err error) bool {
	return errors.Is(err, ErrMergeConflict)
}
