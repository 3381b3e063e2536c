package transaction

import (
	"context"
	"errors"
	"testing"

	"github.com/fixpoint-ai/fixpoint/internal/fs"
)

func TestApplyWritesAllFiles(t *testing.T) {
	mock := fs.NewMockFS()
	mock.Seed("a.py", "old a")
	mock.Seed("b.py", "old b")

	layer := New(mock)
	manifest, err := layer.Apply(context.Background(), map[string]string{
		"a.py": "new a",
		"b.py": "new b",
		"c.py": "brand new",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	snap := mock.Snapshot()
	if snap["a.py"] != "new a" || snap["b.py"] != "new b" || snap["c.py"] != "brand new" {
		t.Fatalf("unexpected contents after apply: %v", snap)
	}
	if snap["a.py"+BackupSuffix] != "old a" || snap["b.py"+BackupSuffix] != "old b" {
		t.Fatal("existing files must be backed up as siblings")
	}
	if len(manifest.Backups) != 2 {
		t.Fatalf("expected 2 backups, got %d", len(manifest.Backups))
	}
	if len(manifest.CreatedPaths) != 1 || manifest.CreatedPaths[0] != "c.py" {
		t.Fatalf("expected c.py recorded as created, got %v", manifest.CreatedPaths)
	}
}

func TestApplyWriteFailureRestoresEverything(t *testing.T) {
	mock := fs.NewMockFS()
	mock.Seed("a.py", "old a")
	mock.Seed("z.py", "old z")
	before := mock.Snapshot()

	// a.py writes fine; z.py fails mid-batch. Paths are written in sorted
	// order, so a.py and the new file land on disk before the failure.
	mock.FailWrites["z.py"] = true

	layer := New(mock)
	_, err := layer.Apply(context.Background(), map[string]string{
		"a.py": "new a",
		"m.py": "created",
		"z.py": "new z",
	})
	if err == nil {
		t.Fatal("expected apply to fail")
	}
	var txErr *TxError
	if !errors.As(err, &txErr) {
		t.Fatalf("expected *TxError, got %T", err)
	}
	if txErr.Path != "z.py" || txErr.Op != "write" {
		t.Fatalf("unexpected failure site: %+v", txErr)
	}

	if got := mock.Snapshot(); len(got) != len(before) {
		t.Fatalf("tree changed size after failed apply: %v", got)
	} else {
		for p, content := range before {
			if got[p] != content {
				t.Fatalf("%s not restored: %q", p, got[p])
			}
		}
	}
}

func TestApplyBackupFailureRestoresEarlierBackups(t *testing.T) {
	mock := fs.NewMockFS()
	mock.Seed("a.py", "old a")
	mock.Seed("b.py", "old b")
	before := mock.Snapshot()

	// Backing up b.py fails; a.py was backed up first and must be
	// restored (and its backup removed) before the call returns.
	mock.FailWrites["b.py"+BackupSuffix] = true

	layer := New(mock)
	_, err := layer.Apply(context.Background(), map[string]string{
		"a.py": "new a",
		"b.py": "new b",
	})
	if err == nil {
		t.Fatal("expected apply to fail")
	}
	var txErr *TxError
	if !errors.As(err, &txErr) || txErr.Op != "backup" {
		t.Fatalf("expected backup TxError, got %v", err)
	}

	got := mock.Snapshot()
	for p, content := range before {
		if got[p] != content {
			t.Fatalf("%s not restored: %q", p, got[p])
		}
	}
	if _, left := got["a.py"+BackupSuffix]; left {
		t.Fatal("stray backup left behind after failed apply")
	}
}

func TestRollbackRestoresAndDeletesCreated(t *testing.T) {
	mock := fs.NewMockFS()
	mock.Seed("a.py", "old a")
	before := mock.Snapshot()

	layer := New(mock)
	manifest, err := layer.Apply(context.Background(), map[string]string{
		"a.py":   "new a",
		"new.py": "created",
	})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if err := layer.Rollback(context.Background(), manifest); err != nil {
		t.Fatalf("rollback failed: %v", err)
	}
	got := mock.Snapshot()
	if len(got) != len(before) || got["a.py"] != "old a" {
		t.Fatalf("rollback did not restore pre-apply tree: %v", got)
	}
}

func TestCleanupKeepsContentDropsBackups(t *testing.T) {
	mock := fs.NewMockFS()
	mock.Seed("a.py", "old a")

	layer := New(mock)
	manifest, err := layer.Apply(context.Background(), map[string]string{"a.py": "new a"})
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	layer.Cleanup(context.Background(), manifest)
	got := mock.Snapshot()
	if got["a.py"] != "new a" {
		t.Fatal("cleanup must keep the applied content")
	}
	if _, left := got["a.py"+BackupSuffix]; left {
		t.Fatal("cleanup must remove the backup")
	}
}

func TestManifestMergeFirstBackupWins(t *testing.T) {
	session := NewManifest()

	cycle1 := NewManifest()
	cycle1.Backups["a.py"] = "a.py" + BackupSuffix
	cycle1.CreatedPaths = []string{"new.py"}
	if redundant := session.Merge(cycle1); len(redundant) != 0 {
		t.Fatalf("first merge produced redundant backups: %v", redundant)
	}

	// Cycle 2 touches a.py again; its backup holds cycle 1's content, not
	// the session original, so it is redundant.
	cycle2 := NewManifest()
	cycle2.Backups["a.py"] = "a.py" + BackupSuffix
	cycle2.Backups["b.py"] = "b.py" + BackupSuffix
	redundant := session.Merge(cycle2)
	if len(redundant) != 1 || redundant[0] != "a.py"+BackupSuffix {
		t.Fatalf("expected the repeat backup flagged redundant, got %v", redundant)
	}
	if len(session.Backups) != 2 {
		t.Fatalf("expected 2 session backups, got %v", session.Backups)
	}

	// A file created in cycle 1 and rewritten in cycle 2 stays a created
	// file: rollback must delete it, not restore the cycle 2 backup.
	cycle3 := NewManifest()
	cycle3.Backups["new.py"] = "new.py" + BackupSuffix
	session.Merge(cycle3)
	if _, backedUp := session.Backups["new.py"]; backedUp {
		t.Fatal("a session-created file must not gain a backup in later cycles")
	}
}
