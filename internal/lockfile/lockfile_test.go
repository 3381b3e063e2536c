package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lockPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), Name)
}

func TestAcquireRelease(t *testing.T) {
	lock := New(lockPath(t))

	require.NoError(t, lock.Acquire())
	assert.True(t, lock.Held())

	data, err := os.ReadFile(lock.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), fmt.Sprintf("%d\n", os.Getpid()))

	require.NoError(t, lock.Release())
	assert.False(t, lock.Held())
	_, err = os.Stat(lock.Path())
	assert.True(t, os.IsNotExist(err))

	// Reacquirable after release.
	require.NoError(t, lock.Acquire())
	require.NoError(t, lock.Release())
}

func TestSecondSessionIsRejected(t *testing.T) {
	path := lockPath(t)
	first := New(path)
	require.NoError(t, first.Acquire())
	defer first.Release()

	second := New(path)
	err := second.Acquire()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHeld)
	assert.False(t, second.Held())
}

func TestDeadHolderIsReclaimed(t *testing.T) {
	path := lockPath(t)
	// PIDs wrap long before this value on every supported platform.
	stamp := fmt.Sprintf("%d\n%s\n", 1<<30, time.Now().Format(time.RFC3339))
	require.NoError(t, os.WriteFile(path, []byte(stamp), 0o644))

	lock := New(path)
	require.NoError(t, lock.Acquire())
	defer lock.Release()
	assert.True(t, lock.Held())
}

func TestMalformedLockIsReclaimed(t *testing.T) {
	path := lockPath(t)
	require.NoError(t, os.WriteFile(path, []byte("not a pid\n"), 0o644))

	lock := New(path)
	require.NoError(t, lock.Acquire())
	defer lock.Release()
}

func TestAncientLockFromLivePidIsReclaimed(t *testing.T) {
	path := lockPath(t)
	// Our own PID is alive, but the stamp is far past the stale age.
	stamp := fmt.Sprintf("%d\n%s\n", os.Getpid(),
		time.Now().Add(-3*time.Hour).Format(time.RFC3339))
	require.NoError(t, os.WriteFile(path, []byte(stamp), 0o644))

	lock := New(path)
	require.NoError(t, lock.Acquire())
	defer lock.Release()
}

func TestReleaseWithoutAcquireIsNoOp(t *testing.T) {
	assert.NoError(t, New(lockPath(t)).Release())
}
