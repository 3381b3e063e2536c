// Package logger is the engine's leveled, file-backed logger. Sessions run
// inside build pipelines and host UIs, so log output goes to a file rather
// than the terminal; stdout is reserved for the session report.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level is a log severity threshold.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelNone disables logging entirely.
	LevelNone
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelNone:
		return "NONE"
	}
	return "UNKNOWN"
}

// ParseLevel maps a config string onto a Level. Unrecognized values fall
// back to info rather than failing startup.
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug
	case "info", "INFO":
		return LevelInfo
	case "warn", "warning", "WARN", "WARNING":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	case "none", "NONE":
		return LevelNone
	}
	return LevelInfo
}

// Logger writes timestamped, level-tagged lines to one destination.
// Prefixed child loggers share the destination and file handle of their
// parent.
type Logger struct {
	mu     *sync.Mutex
	level  Level
	out    io.Writer
	prefix string
	file   *os.File
}

var (
	global     *Logger
	globalOnce sync.Once
)

// Init sets up the global logger. Only the first call takes effect.
func Init(level Level, path string) error {
	var err error
	globalOnce.Do(func() {
		global, err = New(level, path, "")
	})
	return err
}

// New creates a logger writing to the file at path, creating parent
// directories as needed. LevelNone or an empty path yields a logger that
// discards everything.
func New(level Level, path, prefix string) (*Logger, error) {
	if level == LevelNone || path == "" {
		return &Logger{mu: &sync.Mutex{}, level: LevelNone, out: io.Discard, prefix: prefix}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &Logger{mu: &sync.Mutex{}, level: level, out: f, prefix: prefix, file: f}, nil
}

// Global returns the process-wide logger. Before Init it discards
// everything, so library code can log unconditionally.
func Global() *Logger {
	if global == nil {
		return &Logger{mu: &sync.Mutex{}, level: LevelNone, out: io.Discard}
	}
	return global
}

// WithPrefix returns a child logger whose lines carry an extra component
// tag. Child prefixes chain with ":".
func (l *Logger) WithPrefix(prefix string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.prefix != "" {
		prefix = l.prefix + ":" + prefix
	}
	// Children share the parent's mutex so lines never interleave.
	return &Logger{mu: l.mu, level: l.level, out: l.out, prefix: prefix, file: l.file}
}

// SetLevel changes the threshold at runtime.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *Logger) write(level Level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level || l.level == LevelNone {
		return
	}
	tag := ""
	if l.prefix != "" {
		tag = "[" + l.prefix + "] "
	}
	fmt.Fprintf(l.out, "%s [%s] %s%s\n",
		time.Now().Format("2006-01-02 15:04:05.000"), level, tag,
		fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...any) { l.write(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.write(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.write(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.write(LevelError, format, args...) }

// Close releases the underlying log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Package-level helpers logging through the global logger.

func Debug(format string, args ...any) { Global().Debug(format, args...) }
func Info(format string, args ...any)  { Global().Info(format, args...) }
func Warn(format string, args ...any)  { Global().Warn(format, args...) }
func Error(format string, args ...any) { Global().Error(format, args...) }
