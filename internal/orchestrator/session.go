package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/fixpoint-ai/fixpoint/internal/remedy"
	"github.com/fixpoint-ai/fixpoint/internal/transaction"
)

// session holds all mutable state for one remediation run. Counters and
// the accumulated manifest live here and nowhere else.
type session struct {
	o  *Orchestrator
	id string

	// command is the failing command under remediation. A successful
	// command-fix task replaces it for the rest of the session.
	command string
	// verifyOverride, when set, is run instead of command for the next
	// verification pass. Used after a command fix so that verification
	// does not re-trigger a non-idempotent corrected command.
	verifyOverride string

	manifest *transaction.Manifest
	touched  map[string]struct{}
	tree     string

	report *Report
}

// Remediate runs one full remediation session for the given failing
// command. The returned report is non-nil even on error.
func (o *Orchestrator) Remediate(ctx context.Context, command string) (*Report, error) {
	s := &session{
		o:        o,
		id:       uuid.NewString(),
		command:  command,
		manifest: transaction.NewManifest(),
		touched:  make(map[string]struct{}),
		report:   &Report{Command: command},
	}
	s.report.SessionID = s.id

	o.log.Info("session %s starting for command %q", s.id, command)
	s.sweepStaleBackups(ctx)

	res, err := o.runner.Run(ctx, s.command)
	if err != nil {
		s.report.Outcome = OutcomeExecutionFailed
		return s.report, fmt.Errorf("running %q: %w", s.command, err)
	}
	if !res.Failed() {
		o.narrate("command already succeeds, nothing to remediate")
		s.report.Outcome = OutcomeSuccess
		return s.report, nil
	}

	errs, _ := o.analyzer.Analyze(res.Command, res.Stdout, res.Stderr, res.ExitCode)
	if len(errs) == 0 {
		// Nonzero exit with nothing the analyzer recognizes at all.
		s.report.Outcome = OutcomePlanFailed
		return s.report, fmt.Errorf("command failed with exit %d but no errors were recognized", res.ExitCode)
	}

	if o.dryRun {
		return s.dryRun(ctx, errs)
	}

	outcome := s.runCycles(ctx, errs)
	s.report.Outcome = outcome
	s.report.FilesTouched = s.touchedPaths()

	if outcome == OutcomeSuccess {
		o.txn.Cleanup(ctx, s.manifest)
		o.narrate("session %s succeeded after %d cycle(s)", s.id, len(s.report.Cycles))
		return s.report, nil
	}

	if rbErr := o.txn.Rollback(ctx, s.manifest); rbErr != nil {
		o.log.Error("session %s rollback incomplete: %v", s.id, rbErr)
	} else {
		s.report.RolledBack = true
	}
	o.narrate("session %s gave up (%s), changes rolled back", s.id, outcome)
	return s.report, nil
}

// runCycles is the PLANNING -> EXECUTING -> VERIFYING loop. It returns the
// terminal outcome; the caller decides cleanup versus rollback.
func (s *session) runCycles(ctx context.Context, errs []*remedy.ErrorRecord) Outcome {
	o := s.o
	for cycle := 1; cycle <= o.maxCycles; cycle++ {
		if ctx.Err() != nil {
			s.recordFinalErrors(errs)
			return OutcomeExecutionFailed
		}

		cr := CycleReport{Cycle: cycle}
		before := remedy.Signatures(errs)

		plan := o.planner.CreatePlan(ctx, errs)
		if len(plan) == 0 {
			o.narrate("cycle %d: no actionable plan for %d error(s)", cycle, len(errs))
			cr.Outcome = OutcomePlanFailed
			s.report.Cycles = append(s.report.Cycles, cr)
			s.recordFinalErrors(errs)
			return OutcomePlanFailed
		}
		for _, t := range plan {
			cr.Tasks = append(cr.Tasks, remedy.Kind(t))
		}
		o.narrate("cycle %d: %d error(s), %d task(s)", cycle, len(errs), len(plan))

		s.refreshTree(ctx)
		for _, t := range plan {
			if ctx.Err() != nil {
				cr.Outcome = OutcomeExecutionFailed
				s.report.Cycles = append(s.report.Cycles, cr)
				s.recordFinalErrors(errs)
				return OutcomeExecutionFailed
			}
			if err := s.executeTask(ctx, t); err != nil {
				o.log.Warn("cycle %d: task %s failed: %v", cycle, remedy.Kind(t), err)
				cr.Outcome = OutcomeExecutionFailed
				s.report.Cycles = append(s.report.Cycles, cr)
				s.recordFinalErrors(errs)
				return OutcomeExecutionFailed
			}
		}

		after, res, err := s.verify(ctx)
		if err != nil {
			cr.Outcome = OutcomeExecutionFailed
			s.report.Cycles = append(s.report.Cycles, cr)
			s.recordFinalErrors(errs)
			return OutcomeExecutionFailed
		}
		if !res.Failed() && len(after) == 0 {
			cr.Outcome = OutcomeSuccess
			s.report.Cycles = append(s.report.Cycles, cr)
			o.metrics.CycleFinished(OutcomeSuccess.String())
			return OutcomeSuccess
		}

		resolved := before.Resolved(remedy.Signatures(after))
		cr.ResolvedErr = resolved
		cr.Remaining = len(after)
		if len(resolved) == 0 {
			// Nothing from the pre-cycle set disappeared. Covers both an
			// exact repeat and a net regression.
			cr.Outcome = OutcomeNoProgress
			s.report.Cycles = append(s.report.Cycles, cr)
			o.metrics.CycleFinished(OutcomeNoProgress.String())
			s.recordFinalErrors(after)
			return OutcomeNoProgress
		}

		cr.Outcome = OutcomeProgressMade
		s.report.Cycles = append(s.report.Cycles, cr)
		o.metrics.CycleFinished(OutcomeProgressMade.String())
		o.narrate("cycle %d: progress, %d error(s) resolved, %d remaining", cycle, len(resolved), len(after))

		// Carry the fresh error set forward unchanged.
		errs = after
	}

	// Cycle cap exhausted without success.
	s.recordFinalErrors(errs)
	return OutcomeNoProgress
}

// verify re-runs the failing command (or the pending check command after a
// command fix) and re-analyzes its output.
func (s *session) verify(ctx context.Context) ([]*remedy.ErrorRecord, *verifyResult, error) {
	cmd := s.command
	if s.verifyOverride != "" {
		cmd = s.verifyOverride
		s.verifyOverride = ""
	}
	res, err := s.o.runner.Run(ctx, cmd)
	if err != nil {
		return nil, nil, fmt.Errorf("verification run of %q: %w", cmd, err)
	}
	errs, _ := s.o.analyzer.Analyze(res.Command, res.Stdout, res.Stderr, res.ExitCode)
	return errs, &verifyResult{exitCode: res.ExitCode}, nil
}

type verifyResult struct {
	exitCode int
}

func (v *verifyResult) Failed() bool { return v.exitCode != 0 }

func (s *session) dryRun(ctx context.Context, errs []*remedy.ErrorRecord) (*Report, error) {
	plan := s.o.planner.CreatePlan(ctx, errs)
	cr := CycleReport{Cycle: 1, Outcome: OutcomeDryRun, Remaining: len(errs)}
	for _, t := range plan {
		cr.Tasks = append(cr.Tasks, remedy.Kind(t))
		s.o.narrate("would run %s: %s (files: %s)",
			remedy.Kind(t), t.Describe(), strings.Join(t.TargetFiles(), ", "))
	}
	s.report.Cycles = append(s.report.Cycles, cr)
	s.report.Outcome = OutcomeDryRun
	s.recordFinalErrors(errs)
	return s.report, nil
}

func (s *session) recordFinalErrors(errs []*remedy.ErrorRecord) {
	s.report.FinalErrors = s.report.FinalErrors[:0]
	for _, e := range errs {
		s.report.FinalErrors = append(s.report.FinalErrors, e.ShortSummary())
	}
}

func (s *session) touchedPaths() []string {
	paths := make([]string, 0, len(s.touched))
	for p := range s.touched {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// sweepStaleBackups removes leftover backup files from a crashed prior
// session. Best effort; a sweep failure never blocks the session.
func (s *session) sweepStaleBackups(ctx context.Context) {
	stale := findBackups(ctx, s.o.fsys, ".", 0)
	for _, p := range stale {
		s.o.log.Warn("removing stale backup %s", p)
		if err := s.o.fsys.Delete(ctx, p); err != nil {
			s.o.log.Warn("could not remove stale backup %s: %v", p, err)
		}
	}
}
