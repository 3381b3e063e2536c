// Package fs abstracts filesystem access for the remediation engine. All
// paths are relative to a project root; the transaction layer and project
// discovery run against the FileSystem interface so tests can use MockFS.
package fs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fixpoint-ai/fixpoint/internal/logger"
	"github.com/fsnotify/fsnotify"
)

// FileInfo represents file metadata.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// FileSystem is an abstraction over filesystem operations.
type FileSystem interface {
	// ReadFile reads the entire file.
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// WriteFile writes data to a file, creating parent directories.
	WriteFile(ctx context.Context, path string, data []byte) error
	// CopyFile copies src to dst byte for byte.
	CopyFile(ctx context.Context, src, dst string) error
	// Stat returns file information.
	Stat(ctx context.Context, path string) (*FileInfo, error)
	// ListDir lists directory contents.
	ListDir(ctx context.Context, path string) ([]*FileInfo, error)
	// Exists checks if a file exists.
	Exists(ctx context.Context, path string) (bool, error)
	// Delete removes a file.
	Delete(ctx context.Context, path string) error
}

// WatchedFS is a filesystem rooted at a project directory with an
// fsnotify-invalidated directory cache. Project discovery in the planner
// lists the same directories every cycle; the cache keeps that cheap while
// the watcher drops entries the moment a fix touches them.
type WatchedFS struct {
	baseDir   string
	dirCache  map[string][]*FileInfo
	cacheMu   sync.RWMutex
	watcher   *fsnotify.Watcher
	stopWatch chan struct{}
}

// NewWatchedFS creates a filesystem rooted at baseDir.
func NewWatchedFS(baseDir string) *WatchedFS {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("fs: file watcher unavailable, directory cache disabled: %v", err)
	}

	w := &WatchedFS{
		baseDir:   baseDir,
		dirCache:  make(map[string][]*FileInfo),
		watcher:   watcher,
		stopWatch: make(chan struct{}),
	}
	if watcher != nil {
		go w.watchLoop()
	}
	return w
}

// Close stops the watcher.
func (w *WatchedFS) Close() error {
	close(w.stopWatch)
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *WatchedFS) watchLoop() {
	for {
		select {
		case <-w.stopWatch:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.cacheMu.Lock()
			delete(w.dirCache, filepath.Dir(event.Name))
			w.cacheMu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Error("fs: watcher error: %v", err)
		}
	}
}

func (w *WatchedFS) absPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(w.baseDir, path)
}

func (w *WatchedFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return os.ReadFile(w.absPath(path))
}

func (w *WatchedFS) WriteFile(ctx context.Context, path string, data []byte) error {
	abs := w.absPath(path)
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(abs, data, 0644); err != nil {
		return err
	}
	w.cacheMu.Lock()
	delete(w.dirCache, filepath.Dir(abs))
	w.cacheMu.Unlock()
	return nil
}

func (w *WatchedFS) CopyFile(ctx context.Context, src, dst string) error {
	in, err := os.Open(w.absPath(src))
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(w.absPath(dst))
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (w *WatchedFS) Stat(ctx context.Context, path string) (*FileInfo, error) {
	info, err := os.Stat(w.absPath(path))
	if err != nil {
		return nil, err
	}
	return &FileInfo{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime(),
		IsDir:   info.IsDir(),
	}, nil
}

func (w *WatchedFS) ListDir(ctx context.Context, path string) ([]*FileInfo, error) {
	abs := w.absPath(path)

	w.cacheMu.RLock()
	if cached, ok := w.dirCache[abs]; ok {
		w.cacheMu.RUnlock()
		return cached, nil
	}
	w.cacheMu.RUnlock()

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}
	result := make([]*FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		result = append(result, &FileInfo{
			Path:    filepath.Join(path, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
			IsDir:   entry.IsDir(),
		})
	}

	w.cacheMu.Lock()
	w.dirCache[abs] = result
	w.cacheMu.Unlock()

	if w.watcher != nil {
		if err := w.watcher.Add(abs); err != nil {
			logger.Debug("fs: cannot watch %s: %v", abs, err)
		}
	}
	return result, nil
}

func (w *WatchedFS) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(w.absPath(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (w *WatchedFS) Delete(ctx context.Context, path string) error {
	abs := w.absPath(path)
	if err := os.Remove(abs); err != nil {
		return err
	}
	w.cacheMu.Lock()
	delete(w.dirCache, filepath.Dir(abs))
	w.cacheMu.Unlock()
	return nil
}

// MockFS is an in-memory filesystem for tests.
type MockFS struct {
	mu    sync.RWMutex
	files map[string][]byte
	// FailWrites maps paths whose writes should fail, for exercising
	// transaction rollback.
	FailWrites map[string]bool
}

// NewMockFS creates an empty in-memory filesystem.
func NewMockFS() *MockFS {
	return &MockFS{
		files:      make(map[string][]byte),
		FailWrites: make(map[string]bool),
	}
}

// Seed populates the filesystem without going through WriteFile.
func (m *MockFS) Seed(path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = []byte(content)
}

// Snapshot returns a copy of all file contents, for before/after
// comparisons in tests.
func (m *MockFS) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.files))
	for p, data := range m.files {
		out[p] = string(data)
	}
	return out
}

func (m *MockFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return append([]byte(nil), data...), nil
}

func (m *MockFS) WriteFile(ctx context.Context, path string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites[path] {
		return os.ErrPermission
	}
	m.files[path] = append([]byte(nil), data...)
	return nil
}

func (m *MockFS) CopyFile(ctx context.Context, src, dst string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[src]
	if !ok {
		return os.ErrNotExist
	}
	if m.FailWrites[dst] {
		return os.ErrPermission
	}
	m.files[dst] = append([]byte(nil), data...)
	return nil
}

func (m *MockFS) Stat(ctx context.Context, path string) (*FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return &FileInfo{Path: path, Size: int64(len(data)), ModTime: time.Now()}, nil
}

func (m *MockFS) ListDir(ctx context.Context, path string) ([]*FileInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefix := ""
	if path != "." && path != "" {
		prefix = strings.TrimSuffix(filepath.ToSlash(path), "/") + "/"
	}

	seen := make(map[string]*FileInfo)
	for p, data := range m.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if rest == "" {
			continue
		}
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			dir := prefix + rest[:i]
			seen[dir] = &FileInfo{Path: dir, IsDir: true, ModTime: time.Now()}
		} else {
			seen[p] = &FileInfo{Path: p, Size: int64(len(data)), ModTime: time.Now()}
		}
	}

	result := make([]*FileInfo, 0, len(seen))
	for _, info := range seen {
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

func (m *MockFS) Exists(ctx context.Context, path string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[path]
	return ok, nil
}

func (m *MockFS) Delete(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path]; !ok {
		return os.ErrNotExist
	}
	delete(m.files, path)
	return nil
}

var (
	_ FileSystem = (*WatchedFS)(nil)
	_ FileSystem = (*MockFS)(nil)
)
