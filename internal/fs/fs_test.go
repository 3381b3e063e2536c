package fs

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchedFSRoundTrip(t *testing.T) {
	ctx := context.Background()
	w := NewWatchedFS(t.TempDir())
	defer w.Close()

	// WriteFile creates parent directories.
	require.NoError(t, w.WriteFile(ctx, "shop/views.py", []byte("x = 1\n")))

	data, err := w.ReadFile(ctx, "shop/views.py")
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(data))

	ok, err := w.Exists(ctx, "shop/views.py")
	require.NoError(t, err)
	assert.True(t, ok)

	info, err := w.Stat(ctx, "shop/views.py")
	require.NoError(t, err)
	assert.Equal(t, "shop/views.py", info.Path)
	assert.Equal(t, int64(6), info.Size)
	assert.False(t, info.IsDir)

	require.NoError(t, w.CopyFile(ctx, "shop/views.py", "shop/views.py.fixbak"))
	copied, err := w.ReadFile(ctx, "shop/views.py.fixbak")
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", string(copied))

	require.NoError(t, w.Delete(ctx, "shop/views.py.fixbak"))
	ok, err = w.Exists(ctx, "shop/views.py.fixbak")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWatchedFSListDirJoinsPaths(t *testing.T) {
	ctx := context.Background()
	w := NewWatchedFS(t.TempDir())
	defer w.Close()

	require.NoError(t, w.WriteFile(ctx, "shop/views.py", []byte("a")))
	require.NoError(t, w.WriteFile(ctx, "shop/models.py", []byte("b")))

	entries, err := w.ListDir(ctx, "shop")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	paths := []string{entries[0].Path, entries[1].Path}
	assert.Contains(t, paths, "shop/views.py")
	assert.Contains(t, paths, "shop/models.py")
}

func TestWatchedFSCacheDropsOnOwnWrites(t *testing.T) {
	ctx := context.Background()
	w := NewWatchedFS(t.TempDir())
	defer w.Close()

	require.NoError(t, w.WriteFile(ctx, "shop/views.py", []byte("a")))
	entries, err := w.ListDir(ctx, "shop")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	// Writing through the same filesystem invalidates the cached listing
	// synchronously, without waiting for the watcher.
	require.NoError(t, w.WriteFile(ctx, "shop/models.py", []byte("b")))
	entries, err = w.ListDir(ctx, "shop")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestWatchedFSReadMissingFile(t *testing.T) {
	w := NewWatchedFS(t.TempDir())
	defer w.Close()

	_, err := w.ReadFile(context.Background(), "nope.py")
	assert.True(t, os.IsNotExist(err))
}

func TestMockFSBehavesLikeWatchedFS(t *testing.T) {
	ctx := context.Background()
	m := NewMockFS()
	m.Seed("shop/views.py", "x = 1\n")
	m.Seed("shop/templates/shop/list.html", "<html></html>")

	t.Run("read write delete", func(t *testing.T) {
		data, err := m.ReadFile(ctx, "shop/views.py")
		require.NoError(t, err)
		assert.Equal(t, "x = 1\n", string(data))

		_, err = m.ReadFile(ctx, "missing.py")
		assert.True(t, os.IsNotExist(err))

		require.NoError(t, m.WriteFile(ctx, "shop/models.py", []byte("y = 2\n")))
		require.NoError(t, m.Delete(ctx, "shop/models.py"))
		assert.True(t, os.IsNotExist(m.Delete(ctx, "shop/models.py")))
	})

	t.Run("list synthesizes directories", func(t *testing.T) {
		entries, err := m.ListDir(ctx, "shop")
		require.NoError(t, err)

		byPath := map[string]bool{}
		for _, e := range entries {
			byPath[e.Path] = e.IsDir
		}
		assert.False(t, byPath["shop/views.py"])
		assert.True(t, byPath["shop/templates"],
			"intermediate directories appear as dir entries")
	})

	t.Run("injected write failures", func(t *testing.T) {
		m.FailWrites["locked.py"] = true
		assert.ErrorIs(t, m.WriteFile(ctx, "locked.py", []byte("z")), os.ErrPermission)
		assert.ErrorIs(t, m.CopyFile(ctx, "shop/views.py", "locked.py"), os.ErrPermission)
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		snap := m.Snapshot()
		snap["shop/views.py"] = "mutated"
		data, err := m.ReadFile(ctx, "shop/views.py")
		require.NoError(t, err)
		assert.Equal(t, "x = 1\n", string(data))
	})
}
