package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"none", LevelNone},
		{"", LevelInfo},
		{"nonsense", LevelInfo},
	} {
		assert.Equal(t, tc.want, ParseLevel(tc.in), "ParseLevel(%q)", tc.in)
	}
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestLevelsFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	l, err := New(LevelWarn, path, "")
	require.NoError(t, err)
	defer l.Close()

	l.Debug("dropped %d", 1)
	l.Info("dropped %d", 2)
	l.Warn("kept %d", 3)
	l.Error("kept %d", 4)

	got := readLog(t, path)
	assert.NotContains(t, got, "dropped")
	assert.Contains(t, got, "[WARN] kept 3")
	assert.Contains(t, got, "[ERROR] kept 4")
}

func TestPrefixesChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	l, err := New(LevelDebug, path, "engine")
	require.NoError(t, err)
	defer l.Close()

	l.WithPrefix("orchestrator").Info("cycle start")

	assert.Contains(t, readLog(t, path), "[engine:orchestrator] cycle start")
}

func TestSetLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	l, err := New(LevelError, path, "")
	require.NoError(t, err)
	defer l.Close()

	l.Info("before")
	l.SetLevel(LevelDebug)
	l.Info("after")

	got := readLog(t, path)
	assert.NotContains(t, got, "before")
	assert.Contains(t, got, "after")
}

func TestDisabledLoggerWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	l, err := New(LevelNone, path, "")
	require.NoError(t, err)
	defer l.Close()

	l.Error("never seen")
	// LevelNone never opens the file.
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestNewCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "fixpoint", "engine.log")
	l, err := New(LevelInfo, path, "")
	require.NoError(t, err)
	defer l.Close()

	l.Info("hello")
	assert.True(t, strings.Contains(readLog(t, path), "hello"))
}

func TestGlobalBeforeInitIsSilent(t *testing.T) {
	assert.NotPanics(t, func() {
		Global().Info("into the void")
		Debug("also fine")
	})
}
