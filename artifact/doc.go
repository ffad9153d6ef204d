// Package artifact persists generation runs and the feature bundles they
// produce under a project-local state root.
//
// Core types:
//   - Store: Opens the state root; queries, archives, deletes and cleans up runs
//   - Session: Handle for the one active run; every run-scoped write goes through it
//   - Run: Persisted run record (runs/<id>/meta.json)
//   - FeatureArtifact: Generated files and diffs for one feature
//
// Layout under the state root:
//
//	runs/<run-id>/{meta.json, diffs/, files/, logs/}
//	artifacts/features/<feature>/{meta.json, files/, diffs/}
//	archive/<run-id>/
//
// Example usage:
//
//	store, err := artifact.NewStore(artifact.Config{BaseDir: ".genstage"})
//	session, err := store.StartRun(map[string]any{"project": "demo"})
//	err = session.SaveFeatureArtifacts("login", artifact.Bundle{Files: files})
//	run, err := session.End(artifact.RunSuccess)
package artifact
