// Package executor runs project commands and captures their outcome. A
// chained command ("a && b") is run segment by segment so the first failing
// segment's output is what gets analyzed, and commands that stall on an
// interactive prompt are killed instead of hanging the session.
package executor

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fixpoint-ai/fixpoint/internal/logger"
)

// Result is the outcome of one command invocation.
type Result struct {
	// Command is the segment that actually ran (the first failing one for
	// a chain).
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
	// TimedOut is true when the command exceeded the configured timeout.
	TimedOut bool
	// Stalled is true when the command went quiet after printing a known
	// interactive prompt and was killed.
	Stalled bool
}

// Failed reports whether the invocation should be treated as a failure.
func (r *Result) Failed() bool {
	return r.ExitCode != 0 || r.TimedOut || r.Stalled
}

// Runner executes shell commands.
type Runner interface {
	Run(ctx context.Context, command string) (*Result, error)
}

// promptPatterns mark output that means the command is waiting for input.
var promptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`Please select a valid default`),
	regexp.MustCompile(`Select an option:\s*$`),
	regexp.MustCompile(`\[y/N\]\s*$`),
	regexp.MustCompile(`\[Y/n\]\s*$`),
	regexp.MustCompile(`>>>\s*$`),
}

// ShellRunner runs commands through sh -c in a working directory.
type ShellRunner struct {
	WorkDir string
	Timeout time.Duration
	// StallWindow is how long output may be silent after a prompt pattern
	// before the command is declared stalled. Zero disables stall
	// detection.
	StallWindow time.Duration
}

// NewShellRunner creates a runner with the given working directory and
// timeout.
func NewShellRunner(workDir string, timeout time.Duration) *ShellRunner {
	return &ShellRunner{
		WorkDir:     workDir,
		Timeout:     timeout,
		StallWindow: 20 * time.Second,
	}
}

// Run executes a command. Chains joined by && run as a sequence that stops
// at the first failing segment; the result carries that segment's output.
func (r *ShellRunner) Run(ctx context.Context, command string) (*Result, error) {
	segments := SplitChain(command)
	var last *Result
	for _, segment := range segments {
		res, err := r.runOne(ctx, segment)
		if err != nil {
			return nil, err
		}
		last = res
		if res.Failed() {
			logger.Debug("executor: segment failed (exit %d): %s", res.ExitCode, segment)
			return res, nil
		}
	}
	return last, nil
}

func (r *ShellRunner) runOne(ctx context.Context, command string) (*Result, error) {
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = r.WorkDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	out := newActivityBuffer()
	errBuf := newActivityBuffer()

	if err := cmd.Start(); err != nil {
		// The shell itself could not start; treat as command failure.
		return &Result{Command: command, ExitCode: 127, Stderr: err.Error()}, nil
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _, _ = io.Copy(out, stdout) }()
	go func() { defer wg.Done(); _, _ = io.Copy(errBuf, stderr) }()

	done := make(chan error, 1)
	go func() {
		wg.Wait()
		done <- cmd.Wait()
	}()

	var timerC <-chan time.Time
	if r.Timeout > 0 {
		timer := time.NewTimer(r.Timeout)
		defer timer.Stop()
		timerC = timer.C
	}
	var stallC <-chan time.Time
	var stallTicker *time.Ticker
	if r.StallWindow > 0 {
		stallTicker = time.NewTicker(r.StallWindow / 4)
		defer stallTicker.Stop()
		stallC = stallTicker.C
	}

	result := &Result{Command: command}
	for {
		select {
		case waitErr := <-done:
			result.Stdout = out.String()
			result.Stderr = errBuf.String()
			result.ExitCode = exitCode(waitErr)
			return result, nil

		case <-ctx.Done():
			_ = cmd.Process.Kill()
			<-done
			return nil, ctx.Err()

		case <-timerC:
			logger.Warn("executor: killing command after %s timeout: %s", r.Timeout, command)
			_ = cmd.Process.Kill()
			<-done
			result.Stdout = out.String()
			result.Stderr = errBuf.String()
			result.ExitCode = -1
			result.TimedOut = true
			return result, nil

		case <-stallC:
			if r.isStalled(out, errBuf) {
				logger.Warn("executor: killing stalled command: %s", command)
				_ = cmd.Process.Kill()
				<-done
				result.Stdout = out.String()
				result.Stderr = errBuf.String()
				result.ExitCode = -1
				result.Stalled = true
				return result, nil
			}
		}
	}
}

// isStalled reports whether either stream ends in a prompt pattern and has
// been silent for the stall window.
func (r *ShellRunner) isStalled(streams ...*activityBuffer) bool {
	for _, s := range streams {
		idle, tail := s.idleTail()
		if idle < r.StallWindow || tail == "" {
			continue
		}
		for _, re := range promptPatterns {
			if re.MatchString(tail) {
				return true
			}
		}
	}
	return false
}

// SplitChain splits a command on the && operator, respecting nothing
// fancier than whitespace; quoting inside segments is passed through to
// the shell untouched.
func SplitChain(command string) []string {
	parts := strings.Split(command, "&&")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{command}
	}
	return out
}

func exitCode(waitErr error) int {
	if waitErr == nil {
		return 0
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

// activityBuffer is a write buffer that remembers when it was last written
// to, for stall detection.
type activityBuffer struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	lastByte time.Time
}

func newActivityBuffer() *activityBuffer {
	return &activityBuffer{lastByte: time.Now()}
}

func (b *activityBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastByte = time.Now()
	return b.buf.Write(p)
}

func (b *activityBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// idleTail returns how long the buffer has been silent and its last line.
func (b *activityBuffer) idleTail() (time.Duration, string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.buf.String()
	if i := strings.LastIndexByte(strings.TrimRight(s, "\n"), '\n'); i >= 0 {
		s = s[i+1:]
	}
	return time.Since(b.lastByte), strings.TrimSpace(s)
}
