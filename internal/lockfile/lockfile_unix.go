//go:build !windows

package lockfile

import (
	"errors"
	"os"
	"strings"
	"syscall"
)

// pidAlive reports whether the process exists, using signal 0.
func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	if errors.Is(err, os.ErrProcessDone) {
		return false
	}
	// EPERM means the process exists but belongs to someone else.
	return strings.Contains(err.Error(), "operation not permitted")
}
