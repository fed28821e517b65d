package retention

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hoppscotch-backup/internal/mirror"
	"hoppscotch-backup/internal/model"
)

type fakeStore struct {
	objects   []mirror.ObjectMeta
	deleted   []string
	listErr   error
	deleteErr error
}

func (f *fakeStore) ListObjects(ctx context.Context) ([]mirror.ObjectMeta, error) {
	return f.objects, f.listErr
}

func (f *fakeStore) DeleteObject(ctx context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, key)
	return nil
}

// mkRunDir creates a timestamp-named backup directory with one file.
func mkRunDir(t *testing.T, root string, at time.Time) string {
	t.Helper()
	name := at.Format(model.TimestampLayout)
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "export.json"), []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestRunPrunesOldDirectories(t *testing.T) {
	root := t.TempDir()
	old := mkRunDir(t, root, time.Now().Add(-10*24*time.Hour))
	recent := mkRunDir(t, root, time.Now().Add(-time.Hour))

	// Non-timestamp entries are untouched.
	keep := filepath.Join(root, "notes")
	if err := os.MkdirAll(keep, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRunner(root, 7*24*time.Hour, false, nil)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("old directory should be pruned")
	}
	for _, path := range []string{recent, keep, filepath.Join(root, "README.md")} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s should survive pruning: %v", path, err)
		}
	}
}

func TestRunDryRunDeletesNothing(t *testing.T) {
	root := t.TempDir()
	old := mkRunDir(t, root, time.Now().Add(-30*24*time.Hour))

	store := &fakeStore{objects: []mirror.ObjectMeta{
		{Key: "backups/ancient/export.json", LastModified: time.Now().Add(-30 * 24 * time.Hour)},
	}}

	r := NewRunner(root, 7*24*time.Hour, true, store)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if _, err := os.Stat(old); err != nil {
		t.Error("dry run must not delete directories")
	}
	if len(store.deleted) != 0 {
		t.Errorf("dry run must not delete mirrored objects, deleted %v", store.deleted)
	}
}

func TestRunPrunesMirroredObjects(t *testing.T) {
	root := t.TempDir()
	store := &fakeStore{objects: []mirror.ObjectMeta{
		{Key: "backups/old/export.json", LastModified: time.Now().Add(-10 * 24 * time.Hour)},
		{Key: "backups/new/export.json", LastModified: time.Now().Add(-time.Hour)},
	}}

	r := NewRunner(root, 7*24*time.Hour, false, store)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(store.deleted) != 1 || store.deleted[0] != "backups/old/export.json" {
		t.Errorf("deleted = %v, want only the old object", store.deleted)
	}
}

func TestRunDisabledWithoutRetention(t *testing.T) {
	root := t.TempDir()
	old := mkRunDir(t, root, time.Now().Add(-365*24*time.Hour))

	r := NewRunner(root, 0, false, nil)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if _, err := os.Stat(old); err != nil {
		t.Error("zero retention must disable pruning")
	}
}

func TestRunMissingRootIsNotAnError(t *testing.T) {
	r := NewRunner(filepath.Join(t.TempDir(), "does-not-exist"), time.Hour, false, nil)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestRunReportsMirrorFailures(t *testing.T) {
	store := &fakeStore{listErr: errors.New("bucket unreachable")}
	r := NewRunner(t.TempDir(), time.Hour, false, store)
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("Run() should surface mirror listing failures")
	}
}
