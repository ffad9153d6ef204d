package apply

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gserrors "github.com/randalmurphal/genstage/errors"
	"github.com/randalmurphal/genstage/filetree"
)

const (
	backupPrefix   = "backup-"
	backupMetaFile = "meta.json"
)

// SubtreeRecord is one top-level subtree captured by a backup.
type SubtreeRecord struct {
	Path    string `json:"path"`    // relative to the target
	Stored  string `json:"stored"`  // name inside the backup directory
	Existed bool   `json:"existed"` // false: rollback removes the subtree
}

// Manifest describes what a backup captured.
type Manifest struct {
	Subtrees []SubtreeRecord `json:"subtrees"`
	Files    []string        `json:"files"` // the write set the backup guards
}

// Backup is a snapshot of the target subtrees an apply touches.
type Backup struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
	Target    string    `json:"target"`
	Feature   string    `json:"feature"`
	Manifest  Manifest  `json:"manifest"`
}

// BackupManager creates, restores and prunes backups under one directory.
type BackupManager struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewBackupManager manages backups stored in dir (typically
// <state root>/backups).
func NewBackupManager(dir string, logger *slog.Logger) *BackupManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &BackupManager{dir: dir, logger: logger, now: time.Now}
}

// Dir returns the backups directory.
func (m *BackupManager) Dir() string {
	return m.dir
}

// Create snapshots the top-level subtrees of target that paths fall under.
// Subtrees that do not exist yet are recorded so rollback can remove them.
// A subtree holding the backups directory itself is refused.
func (m *BackupManager) Create(target, feature string, paths []string) (*Backup, error) {
	if sub := nestedStateSubtree(target, m.dir, paths); sub != "" {
		return nil, fmt.Errorf("%w: backups directory %s is inside subtree %s", gserrors.ErrValidation, m.dir, sub)
	}

	id, dir, err := m.reserve()
	if err != nil {
		return nil, err
	}

	backup := &Backup{
		ID:        id,
		Path:      dir,
		Timestamp: m.now(),
		Target:    target,
		Feature:   feature,
		Manifest:  Manifest{Files: append([]string(nil), paths...)},
	}

	for _, sub := range filetree.Subtrees(paths) {
		record := SubtreeRecord{Path: sub, Stored: storedName(sub)}
		src := filetree.Join(target, sub)

		if _, err := os.Lstat(src); err == nil {
			record.Existed = true
			if err := filetree.CopyTree(src, filepath.Join(dir, record.Stored)); err != nil {
				os.RemoveAll(dir)
				return nil, gserrors.IO("backup "+sub, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			os.RemoveAll(dir)
			return nil, gserrors.IO("backup "+sub, err)
		}
		backup.Manifest.Subtrees = append(backup.Manifest.Subtrees, record)
	}

	if err := writeManifest(backup); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	m.logger.Info("backup created", "backup", id, "target", target, "subtrees", len(backup.Manifest.Subtrees))
	return backup, nil
}

// Restore replaces every captured subtree in the target with the backup's
// copy, removing subtrees that did not exist when the backup was taken.
// It keeps going after a failure and reports all of them.
func (m *BackupManager) Restore(b *Backup) error {
	var errs []error
	for _, rec := range b.Manifest.Subtrees {
		dst := filetree.Join(b.Target, rec.Path)
		if err := os.RemoveAll(dst); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", rec.Path, err))
			continue
		}
		if !rec.Existed {
			continue
		}
		if err := filetree.CopyTree(filepath.Join(b.Path, rec.Stored), dst); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", rec.Path, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return gserrors.IO("rollback "+b.ID, err)
	}

	m.logger.Info("backup restored", "backup", b.ID, "target", b.Target)
	return nil
}

// List returns all backups, newest first. A missing directory yields an
// empty list; unreadable backups are reported in the error.
func (m *BackupManager) List() ([]*Backup, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*Backup{}, nil
		}
		return nil, gserrors.IO("list backups", err)
	}

	backups := make([]*Backup, 0, len(entries))
	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), backupPrefix) {
			continue
		}
		b, err := m.Get(entry.Name())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		backups = append(backups, b)
	}

	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].Timestamp.Equal(backups[j].Timestamp) {
			return backups[i].ID > backups[j].ID
		}
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	return backups, errors.Join(errs...)
}

// Get loads a backup by ID.
func (m *BackupManager) Get(id string) (*Backup, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return nil, fmt.Errorf("%w: invalid backup id %q", gserrors.ErrValidation, id)
	}
	data, err := os.ReadFile(filepath.Join(m.dir, id, backupMetaFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("backup %s: %w", id, gserrors.ErrNotFound)
		}
		return nil, gserrors.IO("read backup "+id, err)
	}
	var b Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, gserrors.IO("parse backup "+id, err)
	}
	b.Path = filepath.Join(m.dir, id)
	return &b, nil
}

// Latest returns the newest backup for target, or for any target when
// target is empty.
func (m *BackupManager) Latest(target string) (*Backup, error) {
	backups, err := m.List()
	if backups == nil {
		return nil, err
	}
	for _, b := range backups {
		if target == "" || b.Target == target {
			return b, nil
		}
	}
	return nil, fmt.Errorf("backup for %s: %w", target, gserrors.ErrNotFound)
}

// Delete removes a backup.
func (m *BackupManager) Delete(id string) error {
	b, err := m.Get(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(b.Path); err != nil {
		return gserrors.IO("delete backup "+id, err)
	}
	return nil
}

// Prune deletes all but the newest keep backups and returns the deleted IDs.
func (m *BackupManager) Prune(keep int) ([]string, error) {
	backups, err := m.List()
	if backups == nil {
		return nil, err
	}
	if keep < 0 {
		keep = 0
	}

	var deleted []string
	var errs []error
	if err != nil {
		errs = append(errs, err)
	}
	for i := keep; i < len(backups); i++ {
		if err := os.RemoveAll(backups[i].Path); err != nil {
			errs = append(errs, gserrors.IO("prune backup "+backups[i].ID, err))
			continue
		}
		deleted = append(deleted, backups[i].ID)
	}
	return deleted, errors.Join(errs...)
}

// reserve picks an unused backup-<timestamp> directory and creates it.
func (m *BackupManager) reserve() (string, string, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", "", gserrors.IO("create backups dir", err)
	}

	base := backupPrefix + m.now().Format("20060102-150405.000")
	id := base
	for n := 2; ; n++ {
		dir := filepath.Join(m.dir, id)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return id, dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", "", gserrors.IO("create backup dir", err)
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}

// storedName keeps a captured subtree from colliding with the manifest file.
func storedName(sub string) string {
	if sub == backupMetaFile {
		return sub + ".subtree"
	}
	return sub
}

func writeManifest(b *Backup) error {
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return gserrors.IO("encode backup manifest", err)
	}
	if err := filetree.WriteFile(b.Path, backupMetaFile, data, 0o644); err != nil {
		return gserrors.IO("write backup manifest", err)
	}
	return nil
}
