// Command fixpoint runs one remediation session against a project tree:
// it executes the given failing command, diagnoses the errors, asks the
// configured fix oracle for corrections, applies them transactionally,
// and repeats until the command passes or progress stops.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fixpoint-ai/fixpoint/internal/analyzer"
	"github.com/fixpoint-ai/fixpoint/internal/config"
	"github.com/fixpoint-ai/fixpoint/internal/executor"
	"github.com/fixpoint-ai/fixpoint/internal/fs"
	"github.com/fixpoint-ai/fixpoint/internal/lockfile"
	"github.com/fixpoint-ai/fixpoint/internal/logger"
	"github.com/fixpoint-ai/fixpoint/internal/oracle"
	"github.com/fixpoint-ai/fixpoint/internal/orchestrator"
	"github.com/fixpoint-ai/fixpoint/internal/planner"
	"github.com/fixpoint-ai/fixpoint/internal/progress"
)

func main() {
	// run returns instead of exiting so its deferred cleanup (session
	// lock, filesystem watcher, log file) runs before the process dies.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(code)
}

func run() (code int, err error) {
	var (
		command    = flag.String("command", "", "failing command to remediate (required)")
		workDir    = flag.String("workdir", "", "project root (default: config working_dir)")
		maxCycles  = flag.Int("max-cycles", 0, "cap on remediation cycles (default: config)")
		provider   = flag.String("provider", "", "fix provider: anthropic or openai (default: config)")
		model      = flag.String("model", "", "fix model override")
		logLevel   = flag.String("log-level", "", "debug, info, warn, error or none")
		logPath    = flag.String("log-path", "", "log file path")
		configPath = flag.String("config", config.DefaultPath(), "config file path")
		dryRun     = flag.Bool("dry-run", false, "plan fixes and print them without applying anything")
	)
	flag.Parse()

	if *command == "" {
		flag.Usage()
		return 1, fmt.Errorf("-command is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return 1, fmt.Errorf("loading config: %w", err)
	}
	if *workDir != "" {
		cfg.WorkingDir = *workDir
	}
	if *maxCycles > 0 {
		cfg.MaxCycles = *maxCycles
	}
	if *provider != "" {
		cfg.Oracle.Provider = *provider
	}
	if *model != "" {
		cfg.Oracle.Model = *model
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logPath != "" {
		cfg.LogPath = *logPath
	}

	if err := logger.Init(logger.ParseLevel(cfg.LogLevel), cfg.LogPath); err != nil {
		return 1, fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		if err != nil {
			logger.Error("fatal: %v", err)
		}
		_ = logger.Global().Close()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !*dryRun {
		lock := lockfile.New(filepath.Join(cfg.WorkingDir, lockfile.Name))
		if err := lock.Acquire(); err != nil {
			return 1, err
		}
		defer func() {
			if releaseErr := lock.Release(); releaseErr != nil {
				logger.Warn("releasing session lock: %v", releaseErr)
			}
		}()
	}

	fsys := fs.NewWatchedFS(cfg.WorkingDir)
	defer fsys.Close()

	var fixer oracle.Oracle
	if !*dryRun {
		fixer, err = buildOracle(cfg)
		if err != nil {
			return 1, err
		}
	}

	runner := executor.NewShellRunner(cfg.WorkingDir, time.Duration(cfg.CommandTimeout)*time.Second)
	runner.StallWindow = time.Duration(cfg.StallWindow) * time.Second

	state := planner.NewProjectState(fsys, cfg.SettingsCandidates)
	engine, err := orchestrator.New(orchestrator.Options{
		FS:          fsys,
		Analyzer:    analyzer.New(cfg.WorkingDir),
		Planner:     planner.New(state),
		Oracle:      fixer,
		Runner:      runner,
		MaxCycles:   cfg.MaxCycles,
		MaxAttempts: cfg.MaxAttempts,
		DryRun:      *dryRun,
		Progress: func(u progress.Update) error {
			if u.Durable() {
				fmt.Print(u.Message)
			}
			return nil
		},
	})
	if err != nil {
		return 1, err
	}

	report, err := engine.Remediate(ctx, *command)
	printReport(report)
	if err != nil {
		return 1, err
	}
	return sessionExitCode(report), nil
}

// sessionExitCode maps the session outcome to the process exit code:
// 0 when the command was fixed (or nothing was wrong, or this was a dry
// run), 2 when the session ended without fixing it.
func sessionExitCode(r *orchestrator.Report) int {
	if r == nil {
		return 2
	}
	switch r.Outcome {
	case orchestrator.OutcomeSuccess, orchestrator.OutcomeDryRun:
		return 0
	default:
		return 2
	}
}

func buildOracle(cfg *config.Config) (oracle.Oracle, error) {
	key := cfg.APIKey()
	switch cfg.Oracle.Provider {
	case "openai":
		return oracle.NewOpenAIOracle(key, cfg.Oracle.Model, cfg.Oracle.Temperature)
	case "anthropic", "":
		return oracle.NewAnthropicOracle(key, cfg.Oracle.Model, cfg.Oracle.Temperature)
	default:
		return nil, fmt.Errorf("unknown provider %q (want anthropic or openai)", cfg.Oracle.Provider)
	}
}

func printReport(r *orchestrator.Report) {
	if r == nil {
		return
	}
	fmt.Printf("\nSession %s: %s after %d cycle(s)\n", r.SessionID, r.Outcome, len(r.Cycles))
	for _, c := range r.Cycles {
		fmt.Printf("  cycle %d: %s", c.Cycle, c.Outcome)
		if len(c.Tasks) > 0 {
			fmt.Printf(" (%d task(s))", len(c.Tasks))
		}
		if len(c.ResolvedErr) > 0 {
			fmt.Printf(", resolved %d error(s)", len(c.ResolvedErr))
		}
		fmt.Println()
	}
	if len(r.FilesTouched) > 0 {
		fmt.Printf("Files touched: %d", len(r.FilesTouched))
		if r.RolledBack {
			fmt.Print(" (all changes rolled back)")
		}
		fmt.Println()
	}
	if len(r.FinalErrors) > 0 {
		fmt.Println("Remaining errors:")
		for _, e := range r.FinalErrors {
			fmt.Printf("  - %s\n", e)
		}
	}
}
