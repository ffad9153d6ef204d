package apply

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gserrors "github.com/randalmurphal/genstage/errors"
	"github.com/randalmurphal/genstage/git"
	"github.com/randalmurphal/genstage/testutil"
)

const pageBase = "line1\nline2\nline3\nline4\nline5\n"

func newRepoFixture(t *testing.T, files map[string]string, opts ...Option) *fixture {
	t.Helper()
	var repo string
	if len(files) > 0 {
		repo = testutil.SetupTestRepoWithFiles(t, files)
	} else {
		repo = testutil.SetupTestRepo(t)
	}
	return newFixtureAt(t, repo, filepath.Join(t.TempDir(), "state"), opts...)
}

func TestExecute_MergeMode(t *testing.T) {
	f := newRepoFixture(t, map[string]string{"lib/page.dart": pageBase})
	testutil.WriteFile(t, f.target, "lib/page.dart", "LOCAL1\nline2\nline3\nline4\nline5\n")
	f.saveFeature(t, "page", map[string]string{"lib/page.dart": "line1\nline2\nline3\nline4\nGEN5\n"})

	result, err := f.engine.Execute(context.Background(), "page", f.target, Options{Mode: ModeMerge, Backup: true})
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, []Conflict{{Path: "lib/page.dart", Kind: KindModified}}, result.Conflicts)
	assert.Equal(t, []string{"lib/page.dart"}, result.AppliedFiles)
	assert.Equal(t, "LOCAL1\nline2\nline3\nline4\nGEN5\n", testutil.ReadFile(t, f.target, "lib/page.dart"))
}

func TestExecute_MergeModeConflict(t *testing.T) {
	f := newRepoFixture(t, map[string]string{"lib/page.dart": pageBase})
	local := "line1\nline2\nLOCAL3\nline4\nline5\n"
	testutil.WriteFile(t, f.target, "lib/page.dart", local)
	f.saveFeature(t, "page", map[string]string{
		"lib/page.dart": "line1\nline2\nGEN3\nline4\nline5\n",
		"lib/new.dart":  "class New {}\n",
	})

	result, err := f.engine.Execute(context.Background(), "page", f.target, Options{Mode: ModeMerge})
	require.NoError(t, err)

	assert.Equal(t, StatusPartial, result.Status)
	assert.Equal(t, []Conflict{{Path: "lib/page.dart", Kind: KindMerge}}, result.Conflicts)
	assert.Equal(t, []string{"lib/new.dart"}, result.AppliedFiles)
	assert.Equal(t, local, testutil.ReadFile(t, f.target, "lib/page.dart"), "conflicted file must not be written")
}

func TestExecute_MergeModeUntrackedFile(t *testing.T) {
	// No HEAD version: the merge base is empty.
	f := newRepoFixture(t, nil)
	testutil.WriteFile(t, f.target, "notes.txt", "mine\n")
	f.saveFeature(t, "notes", map[string]string{"notes.txt": "generated\n"})

	result, err := f.engine.Execute(context.Background(), "notes", f.target, Options{Mode: ModeMerge})
	require.NoError(t, err)
	assert.Equal(t, StatusPartial, result.Status)
	assert.Equal(t, KindMerge, result.Conflicts[0].Kind)
	assert.Equal(t, "mine\n", testutil.ReadFile(t, f.target, "notes.txt"))
}

func TestExecute_GitIntegrationCommits(t *testing.T) {
	f := newRepoFixture(t, nil)
	f.saveFeature(t, "login-flow", testutil.LoginFeature())

	result, err := f.engine.Execute(context.Background(), "login-flow", f.target, Options{
		Mode:           ModeSafe,
		Backup:         true,
		GitIntegration: true,
		Branch:         "genstage/login-flow",
	})
	require.NoError(t, err)
	require.Equal(t, StatusSuccess, result.Status)

	require.Len(t, result.Actions, 1)
	assert.Equal(t, "commit", result.Actions[0].Name)
	assert.True(t, result.Actions[0].Success, result.Actions[0].Error)

	assert.Equal(t, testutil.GetHeadSHA(t, f.target), result.Commit)
	assert.Equal(t, "genstage/login-flow", testutil.GetCurrentBranch(t, f.target))

	message := testutil.GitOutput(t, f.target, "log", "-1", "--format=%B")
	assert.True(t, strings.HasPrefix(message, "feat(login-flow): apply generated Login Flow feature"), message)
	assert.Contains(t, message, "- lib/login/login_page.dart")
	assert.Contains(t, message, "Feature: login-flow")

	clean, err := mustGit(t, f.target).IsWorkingTreeClean(context.Background())
	require.NoError(t, err)
	assert.True(t, clean)

	feature, err := f.store.LoadFeature("login-flow")
	require.NoError(t, err)
	assert.Equal(t, result.Commit, feature.Applied.Commit)
}

func TestExecute_GitIntegrationCustomMessage(t *testing.T) {
	f := newRepoFixture(t, nil)
	f.saveFeature(t, "login", testutil.LoginFeature())

	result, err := f.engine.Execute(context.Background(), "login", f.target, Options{
		GitIntegration: true,
		CommitMessage:  "chore: import login screens",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Commit)
	assert.Equal(t, "chore: import login screens", testutil.GitOutput(t, f.target, "log", "-1", "--format=%s"))
}

func TestExecute_DirtyTreeRejected(t *testing.T) {
	f := newRepoFixture(t, nil,
		WithGitOptions(git.WithRequireClean(true)))
	testutil.WriteFile(t, f.target, "scratch.txt", "uncommitted")
	f.saveFeature(t, "login", testutil.LoginFeature())

	result, err := f.engine.Execute(context.Background(), "login", f.target, Options{GitIntegration: true, Backup: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, git.ErrGitDirty))

	assert.Equal(t, StatusFailed, result.Status)
	assert.Nil(t, result.Backup)
	assert.Equal(t, TargetUnchanged, result.TargetState)
	assert.False(t, testutil.FileExists(t, f.target, "lib"))
}

func TestExecute_NotARepository(t *testing.T) {
	f := newFixture(t)
	f.saveFeature(t, "login", testutil.LoginFeature())

	_, err := f.engine.Execute(context.Background(), "login", f.target, Options{GitIntegration: true})
	assert.ErrorIs(t, err, git.ErrNotGitRepo)
}

func TestExecute_MergeModeNotARepository(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.target, "lib/page.dart", "local\n")
	f.saveFeature(t, "page", map[string]string{"lib/page.dart": "generated\n"})

	result, err := f.engine.Execute(context.Background(), "page", f.target, Options{Mode: ModeMerge, Backup: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, git.ErrNotGitRepo)
	assert.ErrorIs(t, err, gserrors.ErrVcs)

	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, []Phase{PhaseValidating}, result.Phases)
	assert.Nil(t, result.Backup)
	assert.False(t, result.RolledBack)
	assert.Equal(t, TargetUnchanged, result.TargetState)
	assert.Equal(t, "local\n", testutil.ReadFile(t, f.target, "lib/page.dart"))
}

func TestExecute_ValidatesInWorktree(t *testing.T) {
	v := &CommandValidator{
		Name:       "sh",
		Args:       []string{"-c", `test -f lib/main.dart`},
		Runner:     git.NewExecRunner(),
		InWorktree: true,
	}
	f := newRepoFixture(t, map[string]string{"lib/main.dart": "void main() {}\n"}, WithValidator(v))
	f.saveFeature(t, "login", testutil.LoginFeature())

	result, err := f.engine.Execute(context.Background(), "login", f.target, Options{Mode: ModeSafe, Validate: true})
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.Equal(t, "passed", result.Validation)

	worktrees, err := mustGit(t, f.target).ListWorktrees(context.Background())
	require.NoError(t, err)
	assert.Len(t, worktrees, 1)
}

func mustGit(t *testing.T, dir string) *git.Context {
	t.Helper()
	g, err := git.NewContext(dir)
	require.NoError(t, err)
	return g
}
