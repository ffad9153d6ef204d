package apply

import (
	"context"
	"fmt"

	"github.com/randalmurphal/genstage/diff"
	"github.com/randalmurphal/genstage/filetree"
)

// Decision is a reviewer's answer for one conflicting file.
type Decision string

const (
	DecisionOverwrite Decision = "overwrite"
	DecisionSkip      Decision = "skip"
	DecisionDiff      Decision = "diff"  // ask again with the diff attached
	DecisionAbort     Decision = "abort" // cancel the whole apply
)

// maxDiffRequests bounds how often a reviewer may ask for the same diff
// before the file is skipped.
const maxDiffRequests = 5

// ReviewRequest is one conflicting file put to a Reviewer.
type ReviewRequest struct {
	Feature  string
	Conflict Conflict
	Index    int // 1-based position among the conflicts
	Total    int
	Diff     string // unified diff, target to generated; set after DecisionDiff
}

// Reviewer decides conflicts file by file.
type Reviewer interface {
	Review(ctx context.Context, req ReviewRequest) (Decision, error)
}

// ReviewerFunc adapts a function to Reviewer.
type ReviewerFunc func(ctx context.Context, req ReviewRequest) (Decision, error)

// Review implements Reviewer.
func (f ReviewerFunc) Review(ctx context.Context, req ReviewRequest) (Decision, error) {
	return f(ctx, req)
}

func (e *Engine) review(ctx context.Context, x *execution) {
	if e.reviewer == nil {
		x.finish(StatusConflicts,
			fmt.Sprintf("%d conflict(s) need review but no reviewer is available", len(x.conflicts)),
			"Run interactively or choose --resolution overwrite or skip")
		return
	}

	for i, c := range x.conflicts {
		req := ReviewRequest{
			Feature:  x.feature.Name,
			Conflict: c,
			Index:    i + 1,
			Total:    len(x.conflicts),
		}

		decision, err := e.decide(ctx, x, req)
		if err != nil {
			x.fail(err)
			return
		}
		e.logger.Debug("conflict reviewed", "path", c.Path, "decision", decision)

		switch decision {
		case DecisionOverwrite:
		case DecisionAbort:
			x.finish(StatusCancelled, "Apply aborted during review; no files were written", "")
			return
		default:
			x.skip(c.Path)
		}
	}
}

// decide asks the reviewer about one file, attaching the diff when asked.
func (e *Engine) decide(ctx context.Context, x *execution, req ReviewRequest) (Decision, error) {
	for range maxDiffRequests {
		decision, err := e.reviewer.Review(ctx, req)
		if err != nil {
			return "", fmt.Errorf("review %s: %w", req.Conflict.Path, err)
		}
		if decision != DecisionDiff {
			return decision, nil
		}
		if req.Diff == "" {
			if req.Diff, err = conflictDiff(x, req.Conflict.Path); err != nil {
				return "", err
			}
		}
	}
	e.logger.Warn("reviewer kept asking for the diff, skipping file", "path", req.Conflict.Path)
	return DecisionSkip, nil
}

func conflictDiff(x *execution, rel string) (string, error) {
	current, _, err := filetree.ReadTarget(x.target, rel)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rel, err)
	}
	generated, err := x.files.Read(rel)
	if err != nil {
		return "", fmt.Errorf("read generated %s: %w", rel, err)
	}
	return diff.Unified(diff.File{Path: rel, Old: current, New: generated}, diff.Options{}), nil
}
