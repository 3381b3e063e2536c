// Package transaction applies multi-file updates atomically. Every file
// that exists before the update is backed up as a sibling copy first; any
// failure during backup or write restores every file already touched, so
// the tree is never left half-updated.
package transaction

import (
	"context"
	"fmt"
	"sort"

	"github.com/fixpoint-ai/fixpoint/internal/fs"
	"github.com/fixpoint-ai/fixpoint/internal/logger"
)

// BackupSuffix is appended to a file's path to form its backup sibling.
const BackupSuffix = ".fixbak"

// TxError is the single error kind raised by the transaction layer. When it
// is returned, every file named in the failed call has been restored to its
// pre-call content.
type TxError struct {
	Op   string
	Path string
	Err  error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("transaction %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TxError) Unwrap() error { return e.Err }

// Manifest records original path -> backup path mappings, built
// incrementally as files are touched. CreatedPaths lists files that did not
// exist before the transaction and must be deleted on rollback.
type Manifest struct {
	Backups      map[string]string
	CreatedPaths []string
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{Backups: make(map[string]string)}
}

// Merge folds another manifest into this one. First backup wins: if a file
// was already backed up in an earlier cycle, that copy is the session
// original and later backups of the same path are discarded.
func (m *Manifest) Merge(other *Manifest) []string {
	var redundant []string
	for orig, backup := range other.Backups {
		if _, ok := m.Backups[orig]; ok {
			redundant = append(redundant, backup)
			continue
		}
		// A backup of a file this session created holds session content,
		// not an original; rollback must delete the file instead.
		if contains(m.CreatedPaths, orig) {
			redundant = append(redundant, backup)
			continue
		}
		m.Backups[orig] = backup
	}
	for _, p := range other.CreatedPaths {
		if _, wasBackedUp := m.Backups[p]; !wasBackedUp && !contains(m.CreatedPaths, p) {
			m.CreatedPaths = append(m.CreatedPaths, p)
		}
	}
	sort.Strings(m.CreatedPaths)
	return redundant
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Layer performs transactional file updates against a filesystem.
type Layer struct {
	fs fs.FileSystem
}

// New creates a transaction layer over the given filesystem.
func New(filesystem fs.FileSystem) *Layer {
	return &Layer{fs: filesystem}
}

// Apply writes every file in updates as one unit. Phase 1 backs up every
// currently existing target; phase 2 writes the new contents. Any failure
// in either phase restores all files backed up so far and returns a
// *TxError. On success the manifest is returned so the caller can later
// roll back or discard the backups; cleanup is the caller's decision.
func (l *Layer) Apply(ctx context.Context, updates map[string]string) (*Manifest, error) {
	manifest := NewManifest()

	paths := make([]string, 0, len(updates))
	for p := range updates {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	// Phase 1: back up everything that exists before touching anything.
	for _, path := range paths {
		exists, err := l.fs.Exists(ctx, path)
		if err != nil {
			l.restore(ctx, manifest)
			return nil, &TxError{Op: "stat", Path: path, Err: err}
		}
		if !exists {
			manifest.CreatedPaths = append(manifest.CreatedPaths, path)
			continue
		}
		backup := path + BackupSuffix
		if err := l.fs.CopyFile(ctx, path, backup); err != nil {
			l.restore(ctx, manifest)
			return nil, &TxError{Op: "backup", Path: path, Err: err}
		}
		manifest.Backups[path] = backup
	}

	// Phase 2: write the batch.
	for _, path := range paths {
		if err := l.fs.WriteFile(ctx, path, []byte(updates[path])); err != nil {
			l.restore(ctx, manifest)
			return nil, &TxError{Op: "write", Path: path, Err: err}
		}
	}

	logger.Debug("transaction: applied %d files (%d backed up, %d created)",
		len(paths), len(manifest.Backups), len(manifest.CreatedPaths))
	return manifest, nil
}

// Rollback restores every file in the manifest from its backup, deletes
// files the transaction created, and removes the backups. Restore failures
// are reported but do not stop the remaining files from being restored.
func (l *Layer) Rollback(ctx context.Context, manifest *Manifest) error {
	if manifest == nil {
		return nil
	}
	var firstErr error
	for orig, backup := range manifest.Backups {
		if err := l.fs.CopyFile(ctx, backup, orig); err != nil {
			logger.Error("transaction: rollback of %s failed: %v", orig, err)
			if firstErr == nil {
				firstErr = &TxError{Op: "rollback", Path: orig, Err: err}
			}
			continue
		}
		if err := l.fs.Delete(ctx, backup); err != nil {
			logger.Warn("transaction: leftover backup %s: %v", backup, err)
		}
	}
	for _, created := range manifest.CreatedPaths {
		if exists, _ := l.fs.Exists(ctx, created); exists {
			if err := l.fs.Delete(ctx, created); err != nil {
				logger.Error("transaction: cannot remove created file %s: %v", created, err)
				if firstErr == nil {
					firstErr = &TxError{Op: "rollback", Path: created, Err: err}
				}
			}
		}
	}
	return firstErr
}

// Cleanup deletes all backups in the manifest, keeping the applied
// contents. Called once the session succeeds.
func (l *Layer) Cleanup(ctx context.Context, manifest *Manifest) {
	if manifest == nil {
		return
	}
	for _, backup := range manifest.Backups {
		if err := l.fs.Delete(ctx, backup); err != nil {
			logger.Warn("transaction: cleanup of %s failed: %v", backup, err)
		}
	}
}

// restore undoes a partially-built transaction during Apply: backups made
// so far are restored and any created file that was already written is
// removed again.
func (l *Layer) restore(ctx context.Context, manifest *Manifest) {
	for orig, backup := range manifest.Backups {
		if err := l.fs.CopyFile(ctx, backup, orig); err != nil {
			logger.Error("transaction: restore of %s failed: %v", orig, err)
			continue
		}
		if err := l.fs.Delete(ctx, backup); err != nil {
			logger.Warn("transaction: leftover backup %s: %v", backup, err)
		}
	}
	for _, created := range manifest.CreatedPaths {
		if exists, _ := l.fs.Exists(ctx, created); exists {
			if err := l.fs.Delete(ctx, created); err != nil {
				logger.Error("transaction: cannot remove created file %s: %v", created, err)
			}
		}
	}
}
