package apply

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gserrors "github.com/randalmurphal/genstage/errors"
	"github.com/randalmurphal/genstage/testutil"
)

func newTestBackups(t *testing.T) (*BackupManager, *time.Time) {
	t.Helper()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewBackupManager(filepath.Join(t.TempDir(), "backups"), discardLogger())
	m.now = func() time.Time { return now }
	return m, &now
}

func TestBackupManager_CreateRestore(t *testing.T) {
	m, _ := newTestBackups(t)
	target := t.TempDir()
	testutil.WriteFiles(t, target, map[string]string{
		"lib/a.dart":     "a\n",
		"lib/sub/b.dart": "b\n",
		"docs/guide.md":  "guide\n",
	})
	before := testutil.SnapshotTree(t, target)

	b, err := m.Create(target, "login", []string{"lib/a.dart", "lib/sub/c.dart", "test/a_test.dart"})
	require.NoError(t, err)

	assert.Equal(t, "backup-20240301-120000.000", b.ID)
	assert.Equal(t, []SubtreeRecord{
		{Path: "lib", Stored: "lib", Existed: true},
		{Path: "test", Stored: "test", Existed: false},
	}, b.Manifest.Subtrees)
	assert.True(t, testutil.FileExists(t, b.Path, "meta.json"))
	assert.Equal(t, "b\n", testutil.ReadFile(t, b.Path, "lib/sub/b.dart"))

	// Mangle every captured subtree, then restore.
	require.NoError(t, os.RemoveAll(filepath.Join(target, "lib")))
	testutil.WriteFile(t, target, "lib/a.dart", "half-writ")
	testutil.WriteFile(t, target, "lib/sub/c.dart", "new")
	testutil.WriteFile(t, target, "test/a_test.dart", "new")

	require.NoError(t, m.Restore(b))
	if diff := cmp.Diff(before, testutil.SnapshotTree(t, target)); diff != "" {
		t.Errorf("Restore mismatch (-want +got):\n%s", diff)
	}
}

func TestBackupManager_ManifestNameCollision(t *testing.T) {
	m, _ := newTestBackups(t)
	target := t.TempDir()
	testutil.WriteFile(t, target, "meta.json", `{"mine":true}`)

	b, err := m.Create(target, "meta", []string{"meta.json"})
	require.NoError(t, err)
	assert.Equal(t, "meta.json.subtree", b.Manifest.Subtrees[0].Stored)

	testutil.WriteFile(t, target, "meta.json", "clobbered")
	require.NoError(t, m.Restore(b))
	assert.Equal(t, `{"mine":true}`, testutil.ReadFile(t, target, "meta.json"))
}

func TestBackupManager_RefusesSubtreeHoldingBackups(t *testing.T) {
	target := t.TempDir()
	m := NewBackupManager(filepath.Join(target, "lib", ".state", "backups"), discardLogger())
	testutil.WriteFile(t, target, "lib/a.dart", "a\n")

	_, err := m.Create(target, "login", []string{"lib/a.dart"})
	require.ErrorIs(t, err, gserrors.ErrValidation)
	assert.False(t, testutil.FileExists(t, target, "lib/.state/backups"))

	// Other subtrees are unaffected.
	_, err = m.Create(target, "login", []string{"docs/a.md"})
	require.NoError(t, err)
}

func TestBackupManager_ListLatestPrune(t *testing.T) {
	m, now := newTestBackups(t)
	targetA, targetB := t.TempDir(), t.TempDir()

	var ids []string
	for i, target := range []string{targetA, targetB, targetA} {
		*now = now.Add(time.Duration(i+1) * time.Minute)
		b, err := m.Create(target, "f", []string{"x.txt"})
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}

	list, err := m.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{list[0].ID, list[1].ID, list[2].ID})

	latest, err := m.Latest(targetB)
	require.NoError(t, err)
	assert.Equal(t, ids[1], latest.ID)

	_, err = m.Latest(filepath.Join(targetB, "elsewhere"))
	assert.True(t, gserrors.IsNotFound(err))

	deleted, err := m.Prune(1)
	require.NoError(t, err)
	assert.Equal(t, []string{ids[1], ids[0]}, deleted)

	list, err = m.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, ids[2], list[0].ID)
}

func TestBackupManager_SameTimestamp(t *testing.T) {
	m, _ := newTestBackups(t)
	target := t.TempDir()

	first, err := m.Create(target, "f", []string{"a"})
	require.NoError(t, err)
	second, err := m.Create(target, "f", []string{"a"})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.ID+"-2", second.ID)
}

func TestBackupManager_GetAndDelete(t *testing.T) {
	m, _ := newTestBackups(t)

	list, err := m.List()
	require.NoError(t, err)
	assert.Empty(t, list, "missing backups dir lists as empty")

	for _, id := range []string{"", "..", "a/b"} {
		_, err := m.Get(id)
		assert.True(t, gserrors.IsValidationError(err), "Get(%q) = %v", id, err)
	}

	_, err = m.Get("backup-missing")
	assert.True(t, gserrors.IsNotFound(err))

	b, err := m.Create(t.TempDir(), "f", []string{"a"})
	require.NoError(t, err)
	require.NoError(t, m.Delete(b.ID))
	_, err = os.Stat(b.Path)
	assert.True(t, os.IsNotExist(err))
	assert.True(t, gserrors.IsNotFound(m.Delete(b.ID)))
}
