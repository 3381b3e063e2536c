// Package planner turns a batch of error records into an ordered list of
// remediation tasks. A fixed table of strategic diagnosers runs first, each
// either claiming errors it recognizes and emitting high-confidence tasks,
// or passing them through untouched; whatever survives the table is grouped
// per file into fallback tasks.
package planner

import (
	"context"
	"fmt"

	"github.com/fixpoint-ai/fixpoint/internal/logger"
	"github.com/fixpoint-ai/fixpoint/internal/remedy"
)

// Diagnoser recognizes one well-known failure shape. It receives the
// still-unhandled errors and returns its tasks plus the remainder with the
// claimed errors removed; a diagnoser that cannot extract what it needs
// declines silently by passing the error through. A diagnoser must never
// both consume an error and leave it in the remainder.
type Diagnoser func(ctx context.Context, errs []*remedy.ErrorRecord, st *ProjectState) ([]remedy.Task, []*remedy.ErrorRecord)

// diagnosers is the fixed, ordered table. Order matters: earlier entries
// see errors first, and the generic assertion diagnoser explicitly declines
// shapes that sharper entries further down recognize.
var diagnosers = []Diagnoser{
	diagnoseRouting,
	diagnoseMissingTemplate,
	diagnoseAssertion,
	diagnoseStrMismatch,
	diagnoseMissingAttribute,
	diagnoseImportName,
	diagnoseTestRedirect,
}

// Planner builds remediation plans against one project.
type Planner struct {
	state *ProjectState
}

// New creates a planner over the given project state.
func New(state *ProjectState) *Planner {
	return &Planner{state: state}
}

// State exposes the project state for callers that resolve paths.
func (p *Planner) State() *ProjectState { return p.state }

// CreatePlan produces an ordered task list for a batch of errors. Errors
// the strategic diagnosers claim never reach the bundling fallback.
func (p *Planner) CreatePlan(ctx context.Context, errs []*remedy.ErrorRecord) []remedy.Task {
	if len(errs) == 0 {
		return nil
	}

	var tasks []remedy.Task
	remaining := errs
	for _, diagnose := range diagnosers {
		var claimed []remedy.Task
		claimed, remaining = diagnose(ctx, remaining, p.state)
		tasks = append(tasks, claimed...)
	}
	if len(tasks) > 0 {
		logger.Debug("planner: diagnosers produced %d tasks, %d errors left for bundling",
			len(tasks), len(remaining))
	}

	tasks = append(tasks, p.bundle(ctx, remaining)...)
	return tasks
}

// bundle groups the leftover errors by file: several errors on one file
// collapse into a bundle task, a single error becomes a standalone task
// chosen by kind, and errors with no file at all become a best-effort
// generic task. The settings sentinel is resolved to the real settings
// path here, not earlier.
func (p *Planner) bundle(ctx context.Context, errs []*remedy.ErrorRecord) []remedy.Task {
	byFile := make(map[string][]*remedy.ErrorRecord)
	var order []string
	var unplaced []*remedy.ErrorRecord

	for _, err := range errs {
		if !err.AutoFixable {
			logger.Info("planner: skipping non-auto-fixable error: %s", err.ShortSummary())
			continue
		}
		path := err.FilePath
		if path == remedy.SettingsSentinel {
			path = p.state.SettingsPath(ctx)
			err = err.WithFile(path)
		}
		if path == "" {
			unplaced = append(unplaced, err)
			continue
		}
		if _, seen := byFile[path]; !seen {
			order = append(order, path)
		}
		byFile[path] = append(byFile[path], err)
	}

	var tasks []remedy.Task
	for _, path := range order {
		group := byFile[path]
		if len(group) > 1 {
			tasks = append(tasks, &remedy.BundleTask{Errs: group, Path: path})
			continue
		}
		tasks = append(tasks, p.standaloneTask(group[0]))
	}

	for _, err := range unplaced {
		// Command and schema failures have no file to point at; their
		// task variants carry the fix as a command instead.
		switch err.Kind {
		case remedy.KindCommand:
			tasks = append(tasks, p.commandTask(err))
		case remedy.KindMigration:
			tasks = append(tasks, p.migrationTask(err))
		default:
			tasks = append(tasks, p.genericTask(ctx, err))
		}
	}
	return tasks
}

// standaloneTask picks the task variant for a single error by its kind.
func (p *Planner) standaloneTask(err *remedy.ErrorRecord) remedy.Task {
	switch err.Kind {
	case remedy.KindMissingResource:
		return &remedy.CreateResourceTask{Err: err, Path: err.FilePath}
	case remedy.KindSyntax:
		return &remedy.FixSyntaxTask{Err: err, Path: err.FilePath}
	case remedy.KindCommand:
		return p.commandTask(err)
	case remedy.KindMigration:
		return p.migrationTask(err)
	default:
		return &remedy.FixLogicTask{
			Err:   err,
			Files: []string{err.FilePath},
			Description: fmt.Sprintf(
				"The command %q failed with: %s. Fix %s so it succeeds.",
				err.Command, err.ShortSummary(), err.FilePath),
		}
	}
}

func (p *Planner) commandTask(err *remedy.ErrorRecord) remedy.Task {
	desc := ""
	if err.Hints != nil {
		desc = err.Hints.Diagnosis
	}
	return &remedy.FixCommandTask{
		Err:          err,
		BadCommand:   err.Command,
		CheckCommand: "sh -n -c %s",
		Description:  desc,
	}
}

// migrationTask maps a schema failure onto its fixed remediation command.
func (p *Planner) migrationTask(err *remedy.ErrorRecord) remedy.Task {
	fix := "python manage.py makemigrations && python manage.py migrate"
	if err.Hints != nil && err.Hints.FixCommand != "" {
		fix = err.Hints.FixCommand
	}
	return &remedy.FixCommandTask{
		Err:          err,
		BadCommand:   err.Command,
		CheckCommand: "python manage.py migrate --check",
		KnownFix:     fix,
		Description: fmt.Sprintf(
			"The database schema is behind the models (%s). The standard fix is to run: %s",
			err.ShortSummary(), fix),
	}
}

// genericTask is the last resort for an error with no file: the settings
// file is the broadest sensible target, and the description carries the
// raw failure so the oracle can redirect.
func (p *Planner) genericTask(ctx context.Context, err *remedy.ErrorRecord) remedy.Task {
	target := p.state.SettingsPath(ctx)
	if err.Hints != nil && len(err.Hints.CandidateFiles) > 0 {
		target = err.Hints.CandidateFiles[0]
	}
	return &remedy.FixLogicTask{
		Err:   err.WithFile(target),
		Files: []string{target},
		Description: fmt.Sprintf(
			"The command %q failed and no specific file could be identified. Error: %s. Adjust %s if it is the cause, or return it unchanged with an explanation.",
			err.Command, err.ShortSummary(), target),
	}
}
