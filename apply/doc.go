// Package apply writes stored feature artifacts into a target directory
// without losing work that is already there.
//
// Execute runs a fixed sequence of phases:
//
//	validating -> [backup] -> load_files -> [validate] -> conflict_check ->
//	[conflict_resolution] -> apply_files -> update_progress -> [post_apply_actions]
//
// Any phase may end the apply with a terminal Status. Conflicts are always
// recomputed from the target as it is when Execute runs. When a backup was
// taken, an unexpected failure restores every captured subtree before the
// error is returned; without one the target may be left part-written and
// Result.TargetState says so.
//
// Basic usage:
//
//	engine := apply.New(store, apply.WithLogger(logger))
//	result, err := engine.Execute(ctx, "login", ".", apply.DefaultOptions())
//	if err != nil {
//	    return err // unexpected failure, already rolled back if possible
//	}
//	if result.Status == apply.StatusConflicts {
//	    // retry with a resolution, or review interactively
//	}
package apply
