// Package lockfile guards a project tree against concurrent remediation
// sessions. Two sessions writing backups and rolling back in the same tree
// would restore each other's half-applied state, so the engine takes a
// lock file in the work tree before its first write and holds it until the
// session's terminal cleanup or rollback.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Name is the lock file created in the root of the work tree.
const Name = ".fixpoint.lock"

// staleAfter is the age past which a lock from a live PID is still
// considered abandoned. A session is bounded by its cycle cap and command
// timeouts; anything older is a leak.
const staleAfter = 2 * time.Hour

// ErrHeld is returned when another live session holds the lock.
var ErrHeld = errors.New("another remediation session is running in this tree")

// SessionLock is a PID-stamped lock file.
type SessionLock struct {
	path string
	held bool
}

// New creates a lock for the given path. The lock is not taken until
// Acquire.
func New(path string) *SessionLock {
	return &SessionLock{path: path}
}

// Acquire takes the lock, reclaiming it first when the previous holder is
// provably gone (dead PID, unreadable stamp, or a stamp past the stale
// age).
func (l *SessionLock) Acquire() error {
	if err := l.create(); err == nil {
		return nil
	} else if !os.IsExist(err) {
		return fmt.Errorf("create session lock: %w", err)
	}

	holder, why := l.staleHolder()
	if holder != "" {
		return fmt.Errorf("%w (%s)", ErrHeld, holder)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove stale session lock (%s): %w", why, err)
	}
	if err := l.create(); err != nil {
		return fmt.Errorf("create session lock after reclaim: %w", err)
	}
	return nil
}

// create writes the lock file exclusively, stamped with the owning PID and
// acquisition time.
func (l *SessionLock) create() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	stamp := fmt.Sprintf("%d\n%s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	if _, err := f.WriteString(stamp); err != nil {
		f.Close()
		os.Remove(l.path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(l.path)
		return err
	}
	l.held = true
	return nil
}

// staleHolder inspects an existing lock file. It returns a non-empty
// holder description when the lock is live, or a non-empty staleness
// reason when it can be reclaimed.
func (l *SessionLock) staleHolder() (holder, why string) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return "", "unreadable lock file"
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return "", "malformed lock file"
	}
	if alive := pidAlive(pid); !alive {
		return "", fmt.Sprintf("pid %d is gone", pid)
	}
	if len(lines) >= 2 {
		if stamp, err := time.Parse(time.RFC3339, strings.TrimSpace(lines[1])); err == nil {
			if time.Since(stamp) > staleAfter {
				return "", fmt.Sprintf("lock older than %s", staleAfter)
			}
		}
	}
	return fmt.Sprintf("pid %d", pid), ""
}

// Release drops the lock. Releasing an unheld lock is a no-op.
func (l *SessionLock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove session lock: %w", err)
	}
	return nil
}

// Held reports whether this process currently holds the lock.
func (l *SessionLock) Held() bool { return l.held }

// Path returns the lock file path.
func (l *SessionLock) Path() string { return l.path }
