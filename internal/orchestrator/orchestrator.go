// Package orchestrator runs remediation sessions. A session repeatedly
// plans fixes for the current error set, asks the oracle to produce them,
// applies them transactionally, and re-runs the failing command, until the
// command succeeds, progress stops, or the cycle cap is hit. All file
// changes made during a session are rolled back unless the session ends in
// success.
package orchestrator

import (
	"fmt"
	"strings"

	"github.com/fixpoint-ai/fixpoint/internal/analyzer"
	"github.com/fixpoint-ai/fixpoint/internal/executor"
	"github.com/fixpoint-ai/fixpoint/internal/fs"
	"github.com/fixpoint-ai/fixpoint/internal/logger"
	"github.com/fixpoint-ai/fixpoint/internal/metrics"
	"github.com/fixpoint-ai/fixpoint/internal/oracle"
	"github.com/fixpoint-ai/fixpoint/internal/planner"
	"github.com/fixpoint-ai/fixpoint/internal/progress"
	"github.com/fixpoint-ai/fixpoint/internal/syntax"
	"github.com/fixpoint-ai/fixpoint/internal/transaction"
)

const (
	// DefaultMaxCycles is the hard ceiling on remediation cycles per
	// session. Exhausting it without success counts as no progress.
	DefaultMaxCycles = 5
	// DefaultMaxAttempts bounds oracle retries per task.
	DefaultMaxAttempts = 3
)

// Options configures an Orchestrator.
type Options struct {
	FS          fs.FileSystem
	Analyzer    *analyzer.Analyzer
	Planner     *planner.Planner
	Oracle      oracle.Oracle
	Runner      executor.Runner
	Validator   *syntax.Validator
	Metrics     metrics.Sink
	Progress    progress.Callback
	MaxCycles   int
	MaxAttempts int
	// DryRun plans tasks and reports them without calling the oracle or
	// touching any file.
	DryRun bool
}

// Orchestrator drives remediation sessions.
type Orchestrator struct {
	fsys        fs.FileSystem
	analyzer    *analyzer.Analyzer
	planner     *planner.Planner
	oracle      oracle.Oracle
	runner      executor.Runner
	validator   *syntax.Validator
	txn         *transaction.Layer
	metrics     metrics.Sink
	progressCb  progress.Callback
	maxCycles   int
	maxAttempts int
	dryRun      bool
	log         *logger.Logger
}

// New wires an orchestrator from its collaborators. Nil Metrics falls back
// to a no-op sink; nil Progress is allowed.
func New(opts Options) (*Orchestrator, error) {
	if opts.FS == nil {
		return nil, fmt.Errorf("orchestrator requires a filesystem")
	}
	if opts.Analyzer == nil || opts.Planner == nil {
		return nil, fmt.Errorf("orchestrator requires an analyzer and a planner")
	}
	if opts.Runner == nil {
		return nil, fmt.Errorf("orchestrator requires a command runner")
	}
	if opts.Oracle == nil && !opts.DryRun {
		return nil, fmt.Errorf("orchestrator requires an oracle outside dry-run mode")
	}
	if opts.MaxCycles <= 0 || opts.MaxCycles > DefaultMaxCycles {
		opts.MaxCycles = DefaultMaxCycles
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NopSink{}
	}
	if opts.Validator == nil {
		opts.Validator = syntax.NewValidator()
	}
	return &Orchestrator{
		fsys:        opts.FS,
		analyzer:    opts.Analyzer,
		planner:     opts.Planner,
		oracle:      opts.Oracle,
		runner:      opts.Runner,
		validator:   opts.Validator,
		txn:         transaction.New(opts.FS),
		metrics:     opts.Metrics,
		progressCb:  opts.Progress,
		maxCycles:   opts.MaxCycles,
		maxAttempts: opts.MaxAttempts,
		dryRun:      opts.DryRun,
		log:         logger.Global().WithPrefix("orchestrator"),
	}, nil
}

func (o *Orchestrator) narrate(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	o.log.Info("%s", msg)
	_ = progress.Narrate(o.progressCb, msg)
}

func joinMessages(msgs []string) string {
	return strings.Join(msgs, "\n\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
