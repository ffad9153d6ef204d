package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gserrors "github.com/randalmurphal/genstage/errors"
	"github.com/randalmurphal/genstage/testutil"
)

func newRepo(t *testing.T, files map[string]string, opts ...Option) (*Context, string) {
	t.Helper()

	dir := testutil.SetupTestRepoWithFiles(t, files)
	repo, err := NewContext(dir, opts...)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	return repo, dir
}

func testCtx(t *testing.T) context.Context {
	return testutil.TestContextWithTimeout(t, time.Minute)
}

func TestIsRepo(t *testing.T) {
	ctx := testCtx(t)

	repo, _ := newRepo(t, nil)
	if !repo.IsRepo(ctx) {
		t.Error("IsRepo = false for a git repository")
	}

	plain, _ := NewContext(t.TempDir())
	if plain.IsRepo(ctx) {
		t.Error("IsRepo = true for a plain directory")
	}
}

func TestValidateWorkingTree(t *testing.T) {
	ctx := testCtx(t)

	t.Run("not a repo", func(t *testing.T) {
		plain, _ := NewContext(t.TempDir())
		if err := plain.ValidateWorkingTree(ctx); !errors.Is(err, ErrNotGitRepo) {
			t.Errorf("err = %v, want ErrNotGitRepo", err)
		}
	})

	t.Run("clean", func(t *testing.T) {
		repo, _ := newRepo(t, nil, WithRequireClean(true))
		if err := repo.ValidateWorkingTree(ctx); err != nil {
			t.Errorf("ValidateWorkingTree: %v", err)
		}
	})

	t.Run("dirty and required clean", func(t *testing.T) {
		repo, dir := newRepo(t, nil, WithRequireClean(true))
		testutil.WriteFile(t, dir, "scratch.txt", "x")

		err := repo.ValidateWorkingTree(ctx)
		if !errors.Is(err, ErrGitDirty) {
			t.Fatalf("err = %v, want ErrGitDirty", err)
		}
		if !gserrors.IsVcsError(err) {
			t.Error("dirty tree error should be a vcs error")
		}
	})

	t.Run("dirty but not required clean", func(t *testing.T) {
		repo, dir := newRepo(t, nil)
		testutil.WriteFile(t, dir, "scratch.txt", "x")

		if err := repo.ValidateWorkingTree(ctx); err != nil {
			t.Errorf("ValidateWorkingTree: %v", err)
		}
		clean, err := repo.IsWorkingTreeClean(ctx)
		if err != nil || clean {
			t.Errorf("IsWorkingTreeClean = %v, %v; want false, nil", clean, err)
		}
	})
}

func TestBranches(t *testing.T) {
	ctx := testCtx(t)
	repo, _ := newRepo(t, nil)

	branch, err := repo.CurrentBranch(ctx)
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "main" {
		t.Errorf("CurrentBranch = %q, want %q", branch, "main")
	}

	if err := repo.CreateBranch(ctx, "genstage/login", ""); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if !repo.BranchExists(ctx, "genstage/login") {
		t.Error("BranchExists = false after CreateBranch")
	}

	t.Run("existing branch fails", func(t *testing.T) {
		err := repo.CreateBranch(ctx, "genstage/login", "")
		if !errors.Is(err, ErrBranchExists) {
			t.Errorf("err = %v, want ErrBranchExists", err)
		}
	})

	t.Run("from base", func(t *testing.T) {
		if err := repo.CreateBranch(ctx, "from-main", "main"); err != nil {
			t.Fatalf("CreateBranch with base: %v", err)
		}
	})

	t.Run("checkout", func(t *testing.T) {
		if err := repo.CheckoutBranch(ctx, "genstage/login"); err != nil {
			t.Fatalf("CheckoutBranch: %v", err)
		}
		if got, _ := repo.CurrentBranch(ctx); got != "genstage/login" {
			t.Errorf("CurrentBranch = %q after checkout", got)
		}
	})

	t.Run("checkout missing", func(t *testing.T) {
		if err := repo.CheckoutBranch(ctx, "nope"); !errors.Is(err, ErrBranchNotFound) {
			t.Errorf("err = %v, want ErrBranchNotFound", err)
		}
	})

	t.Run("ensure branch", func(t *testing.T) {
		if err := repo.EnsureBranch(ctx, "fresh"); err != nil {
			t.Fatalf("EnsureBranch: %v", err)
		}
		if got, _ := repo.CurrentBranch(ctx); got != "fresh" {
			t.Errorf("CurrentBranch = %q, want fresh", got)
		}
	})
}

func TestCreateCommit(t *testing.T) {
	ctx := testCtx(t)
	repo, dir := newRepo(t, nil)

	testutil.WriteFile(t, dir, "lib/a.txt", "hello\n")
	if err := repo.StageFiles(ctx, "lib/a.txt"); err != nil {
		t.Fatalf("StageFiles: %v", err)
	}

	sha, err := repo.CreateCommit(ctx, "feat: add a", CommitOptions{
		CoAuthors: []string{"Pat <pat@example.com>"},
	})
	if err != nil {
		t.Fatalf("CreateCommit: %v", err)
	}
	if sha != testutil.GetHeadSHA(t, dir) {
		t.Errorf("sha = %q, want HEAD", sha)
	}

	body := testutil.GitOutput(t, dir, "log", "-1", "--pretty=%B")
	if !strings.Contains(body, "Co-authored-by: Pat <pat@example.com>") {
		t.Errorf("commit body missing co-author trailer:\n%s", body)
	}

	t.Run("nothing to commit", func(t *testing.T) {
		_, err := repo.CreateCommit(ctx, "chore: empty", CommitOptions{})
		if !errors.Is(err, ErrNothingToCommit) {
			t.Errorf("err = %v, want ErrNothingToCommit", err)
		}
	})

	t.Run("allow empty", func(t *testing.T) {
		before := testutil.GetHeadSHA(t, dir)
		sha, err := repo.CreateCommit(ctx, "chore: empty", CommitOptions{AllowEmpty: true})
		if err != nil {
			t.Fatalf("CreateCommit: %v", err)
		}
		if sha == before {
			t.Error("HEAD did not move")
		}
	})

	t.Run("author", func(t *testing.T) {
		testutil.WriteFile(t, dir, "b.txt", "b")
		if err := repo.StageFiles(ctx, "b.txt"); err != nil {
			t.Fatalf("StageFiles: %v", err)
		}
		if _, err := repo.CreateCommit(ctx, "feat: b", CommitOptions{Author: "Bot <bot@example.com>"}); err != nil {
			t.Fatalf("CreateCommit: %v", err)
		}
		if got := testutil.GitOutput(t, dir, "log", "-1", "--pretty=%ae"); got != "bot@example.com" {
			t.Errorf("author email = %q", got)
		}
	})
}

func TestPatchRoundTrip(t *testing.T) {
	ctx := testCtx(t)
	original := map[string]string{
		"lib/a.txt": "one\ntwo\nthree\n",
		"lib/b.txt": "alpha\n",
		"c.txt":     "untouched\n",
	}
	repo, dir := newRepo(t, original)

	testutil.WriteFile(t, dir, "lib/a.txt", "one\nTWO\nthree\nfour\n")
	testutil.WriteFile(t, dir, "lib/b.txt", "beta\n")
	testutil.WriteFile(t, dir, "c.txt", "changed but not listed\n")
	testutil.WriteFile(t, dir, "lib/new.txt", "created\n")
	testutil.WriteFile(t, dir, "lib/empty.txt", "")
	testutil.WriteFile(t, dir, "other.txt", "untracked, not listed\n")

	listed := []string{"lib/a.txt", "lib/b.txt", "lib/new.txt", "lib/empty.txt"}
	patch := filepath.Join(t.TempDir(), "out", "change.patch")
	if err := repo.GeneratePatch(ctx, listed, patch); err != nil {
		t.Fatalf("GeneratePatch: %v", err)
	}

	data, err := os.ReadFile(patch)
	if err != nil {
		t.Fatalf("read patch: %v", err)
	}
	for _, unlisted := range []string{"c.txt", "other.txt"} {
		if strings.Contains(string(data), unlisted) {
			t.Errorf("patch includes unlisted path %s", unlisted)
		}
	}
	if !strings.Contains(string(data), "new file mode") {
		t.Error("patch has no creation for lib/new.txt")
	}

	// The intent-to-add marks used for the diff are gone again.
	if staged := testutil.GitOutput(t, dir, "diff", "--cached", "--name-only"); staged != "" {
		t.Errorf("index changed by GeneratePatch: %q", staged)
	}
	if status := testutil.GitOutput(t, dir, "status", "--porcelain", "--", "lib/new.txt"); !strings.HasPrefix(status, "??") {
		t.Errorf("lib/new.txt status = %q, want untracked", status)
	}

	res, err := repo.ApplyPatch(ctx, patch, ApplyOptions{Reverse: true})
	if err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	if !res.Success {
		t.Fatalf("reverse apply failed: %s", res.Error)
	}

	for _, path := range []string{"lib/a.txt", "lib/b.txt"} {
		if got := testutil.ReadFile(t, dir, path); got != original[path] {
			t.Errorf("%s = %q, want %q", path, got, original[path])
		}
	}
	for _, created := range []string{"lib/new.txt", "lib/empty.txt"} {
		if _, err := os.Stat(filepath.Join(dir, created)); !os.IsNotExist(err) {
			t.Errorf("%s still exists after reverse apply (err = %v)", created, err)
		}
	}
	if got := testutil.ReadFile(t, dir, "c.txt"); got != "changed but not listed\n" {
		t.Errorf("c.txt = %q, unlisted path should be untouched", got)
	}
	if got := testutil.ReadFile(t, dir, "other.txt"); got != "untracked, not listed\n" {
		t.Errorf("other.txt = %q, unlisted path should be untouched", got)
	}
}

func TestApplyPatch_CheckAndFailure(t *testing.T) {
	ctx := testCtx(t)
	repo, dir := newRepo(t, map[string]string{"a.txt": "one\n"})

	testutil.WriteFile(t, dir, "a.txt", "two\n")
	patch := filepath.Join(t.TempDir(), "p.patch")
	if err := repo.GeneratePatch(ctx, nil, patch); err != nil {
		t.Fatalf("GeneratePatch: %v", err)
	}

	// The forward patch is already applied, so it cannot apply again.
	res, err := repo.ApplyPatch(ctx, patch, ApplyOptions{Check: true})
	if err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	if res.Success || res.Error == "" {
		t.Errorf("result = %+v, want failure with error text", res)
	}
	if got := testutil.ReadFile(t, dir, "a.txt"); got != "two\n" {
		t.Errorf("check mode modified the tree: %q", got)
	}

	if _, err := repo.ApplyPatch(ctx, filepath.Join(t.TempDir(), "missing.patch"), ApplyOptions{}); err == nil {
		t.Error("expected error for missing patch file")
	}
}

func setupConflict(t *testing.T) (*Context, string) {
	t.Helper()

	repo, dir := newRepo(t, map[string]string{"shared.txt": "base\n"})
	testutil.CreateBranch(t, dir, "other")
	testutil.CommitFile(t, dir, "shared.txt", "theirs\n", "other change")
	testutil.SwitchBranch(t, dir, "main")
	testutil.CommitFile(t, dir, "shared.txt", "ours\n", "main change")
	return repo, dir
}

func TestMerge_ReportsConflicts(t *testing.T) {
	ctx := testCtx(t)
	repo, _ := setupConflict(t)

	res, err := repo.Merge(ctx, "other")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if res.Success {
		t.Fatal("Merge reported success despite conflicts")
	}
	if len(res.Conflicts) != 1 || res.Conflicts[0] != "shared.txt" {
		t.Errorf("Conflicts = %v, want [shared.txt]", res.Conflicts)
	}

	conflicts, err := repo.GetConflictedFiles(ctx)
	if err != nil {
		t.Fatalf("GetConflictedFiles: %v", err)
	}
	if len(conflicts) != 1 {
		t.Errorf("GetConflictedFiles = %v", conflicts)
	}
}

func TestResolveConflict(t *testing.T) {
	tests := []struct {
		strategy      ResolveStrategy
		wantContent   string
		wantConflicts int
	}{
		{ResolveOurs, "ours\n", 0},
		{ResolveTheirs, "theirs\n", 0},
		{ResolveManual, "", 1},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			ctx := testCtx(t)
			repo, dir := setupConflict(t)
			if _, err := repo.Merge(ctx, "other"); err != nil {
				t.Fatalf("Merge: %v", err)
			}

			if err := repo.ResolveConflict(ctx, "shared.txt", tt.strategy); err != nil {
				t.Fatalf("ResolveConflict: %v", err)
			}

			content := testutil.ReadFile(t, dir, "shared.txt")
			if tt.wantContent != "" && content != tt.wantContent {
				t.Errorf("content = %q, want %q", content, tt.wantContent)
			}
			if tt.strategy == ResolveManual && !strings.Contains(content, "<<<<<<<") {
				t.Errorf("manual resolution should keep markers, got %q", content)
			}

			conflicts, _ := repo.GetConflictedFiles(ctx)
			if len(conflicts) != tt.wantConflicts {
				t.Errorf("conflicts = %v, want %d", conflicts, tt.wantConflicts)
			}
		})
	}

	t.Run("invalid strategy", func(t *testing.T) {
		repo, _ := newRepo(t, nil)
		err := repo.ResolveConflict(testCtx(t), "x", "mine")
		if !errors.Is(err, ErrInvalidStrategy) {
			t.Errorf("err = %v, want ErrInvalidStrategy", err)
		}
	})
}

func TestStash(t *testing.T) {
	ctx := testCtx(t)
	repo, dir := newRepo(t, map[string]string{"a.txt": "one\n"})

	created, err := repo.CreateStash(ctx, "nothing")
	if err != nil {
		t.Fatalf("CreateStash on clean tree: %v", err)
	}
	if created {
		t.Error("CreateStash reported a stash for a clean tree")
	}

	if _, err := repo.PopStash(ctx); !errors.Is(err, ErrNoStash) {
		t.Errorf("PopStash err = %v, want ErrNoStash", err)
	}

	testutil.WriteFile(t, dir, "a.txt", "two\n")
	testutil.WriteFile(t, dir, "new.txt", "untracked\n")

	created, err = repo.CreateStash(ctx, "before apply")
	if err != nil || !created {
		t.Fatalf("CreateStash = %v, %v", created, err)
	}
	if clean, _ := repo.IsWorkingTreeClean(ctx); !clean {
		t.Error("tree not clean after stash")
	}

	res, err := repo.PopStash(ctx)
	if err != nil {
		t.Fatalf("PopStash: %v", err)
	}
	if !res.Success {
		t.Fatalf("PopStash failed: %s", res.Error)
	}
	if got := testutil.ReadFile(t, dir, "a.txt"); got != "two\n" {
		t.Errorf("a.txt = %q after pop", got)
	}
	if !testutil.FileExists(t, dir, "new.txt") {
		t.Error("untracked file not restored")
	}
}

func TestGetDiffAndHistory(t *testing.T) {
	ctx := testCtx(t)
	repo, dir := newRepo(t, map[string]string{"a.txt": "one\n"})
	base := testutil.GetHeadSHA(t, dir)

	testutil.CommitFile(t, dir, "b.txt", "b\n", "add b")

	names, err := repo.GetDiff(ctx, base, "HEAD", DiffOptions{NameOnly: true})
	if err != nil {
		t.Fatalf("GetDiff: %v", err)
	}
	if strings.TrimSpace(names) != "b.txt" {
		t.Errorf("GetDiff names = %q, want b.txt", names)
	}

	testutil.WriteFile(t, dir, "a.txt", "changed\n")
	patch, err := repo.GetDiff(ctx, "HEAD", "", DiffOptions{Paths: []string{"a.txt"}})
	if err != nil {
		t.Fatalf("GetDiff working tree: %v", err)
	}
	if !strings.Contains(patch, "+changed") {
		t.Errorf("working tree diff missing change:\n%s", patch)
	}

	history, err := repo.GetCommitHistory(ctx, 2)
	if err != nil {
		t.Fatalf("GetCommitHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history has %d commits, want 2", len(history))
	}
	if history[0].Subject != "add b" {
		t.Errorf("newest subject = %q, want %q", history[0].Subject, "add b")
	}
	if history[0].Email != "test@test.com" || history[0].Date.IsZero() {
		t.Errorf("commit = %+v", history[0])
	}
}

func TestShowFile(t *testing.T) {
	ctx := testCtx(t)
	repo, _ := newRepo(t, map[string]string{"lib/a.txt": "one\n"})

	content, exists, err := repo.ShowFile(ctx, "HEAD", "lib/a.txt")
	if err != nil || !exists {
		t.Fatalf("ShowFile = %v, %v", exists, err)
	}
	if string(content) != "one\n" {
		t.Errorf("content = %q, want %q", content, "one\n")
	}

	_, exists, err = repo.ShowFile(ctx, "HEAD", "missing.txt")
	if err != nil || exists {
		t.Errorf("ShowFile missing = %v, %v; want false, nil", exists, err)
	}
}

func TestMergeFile(t *testing.T) {
	ctx := testCtx(t)
	repo, _ := newRepo(t, nil)

	base := []byte("a\nb\nc\n")

	merged, conflicted, err := repo.MergeFile(ctx, []byte("A\nb\nc\n"), base, []byte("a\nb\nC\n"))
	if err != nil {
		t.Fatalf("MergeFile: %v", err)
	}
	if conflicted {
		t.Error("non-overlapping edits reported as conflicted")
	}
	if string(merged) != "A\nb\nC\n" {
		t.Errorf("merged = %q", merged)
	}

	merged, conflicted, err = repo.MergeFile(ctx, []byte("x\nb\nc\n"), base, []byte("y\nb\nc\n"))
	if err != nil {
		t.Fatalf("MergeFile: %v", err)
	}
	if !conflicted {
		t.Error("overlapping edits not reported as conflicted")
	}
	if !strings.Contains(string(merged), "<<<<<<< current") {
		t.Errorf("merged output missing markers:\n%s", merged)
	}
}

func TestCommitFiles_Mock(t *testing.T) {
	runner := NewSequentialMockRunner()
	runner.AddOutput("", nil)               // git add -- a.txt
	runner.AddOutput("", nil)               // git commit -m
	runner.AddOutput("abc123def456", nil)   // git rev-parse HEAD
	runner.AddOutput("genstage/login", nil) // git symbolic-ref --short -q HEAD

	repo, err := NewContext(t.TempDir(), WithRunner(runner))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}

	result, err := repo.CommitFiles(context.Background(), "feat: login", CommitOptions{}, "a.txt")
	if err != nil {
		t.Fatalf("CommitFiles: %v", err)
	}
	if result.SHA != "abc123def456" {
		t.Errorf("SHA = %q, want %q", result.SHA, "abc123def456")
	}
	if result.Branch != "genstage/login" {
		t.Errorf("Branch = %q, want %q", result.Branch, "genstage/login")
	}
	if runner.Remaining() != 0 {
		t.Errorf("%d responses unused", runner.Remaining())
	}
	commit := runner.Calls[1].Args
	if tail := strings.Join(commit[len(commit)-3:], " "); tail != "--only -- a.txt" {
		t.Errorf("commit args = %v, want them to end with --only -- a.txt", commit)
	}
}

func TestCommitFiles_LeavesOtherStagedChanges(t *testing.T) {
	ctx := testCtx(t)
	repo, dir := newRepo(t, map[string]string{"a.txt": "a\n"})

	testutil.WriteFile(t, dir, "unrelated.txt", "mine\n")
	testutil.Git(t, dir, "add", "unrelated.txt")
	testutil.WriteFile(t, dir, "a.txt", "a2\n")
	testutil.WriteFile(t, dir, "lib/new.txt", "new\n")

	result, err := repo.CommitFiles(ctx, "feat: login", CommitOptions{}, "a.txt", "lib/new.txt")
	if err != nil {
		t.Fatalf("CommitFiles: %v", err)
	}
	if result.SHA != testutil.GetHeadSHA(t, dir) {
		t.Errorf("SHA = %q, want HEAD", result.SHA)
	}

	committed := testutil.GitOutput(t, dir, "show", "--name-only", "--pretty=format:", "HEAD")
	if got := strings.Fields(committed); strings.Join(got, ",") != "a.txt,lib/new.txt" {
		t.Errorf("committed files = %v, want [a.txt lib/new.txt]", got)
	}
	if staged := testutil.GitOutput(t, dir, "diff", "--cached", "--name-only"); staged != "unrelated.txt" {
		t.Errorf("staged after commit = %q, want unrelated.txt", staged)
	}
}

func TestCommitFiles_NothingToCommit(t *testing.T) {
	runner := NewSequentialMockRunner()
	runner.AddOutput("", nil) // git add
	runner.AddOutputError("", "nothing to commit, working tree clean", nil)

	repo, _ := NewContext(t.TempDir(), WithRunner(runner))

	_, err := repo.CommitFiles(context.Background(), "feat: x", CommitOptions{}, "a.txt")
	if !errors.Is(err, ErrNothingToCommit) {
		t.Errorf("err = %v, want ErrNothingToCommit", err)
	}
}
