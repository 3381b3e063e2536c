// Package remedy defines the shared data model of the remediation engine:
// structured error records produced by the analyzer, the closed set of
// remediation tasks produced by the planner, and the signature sets the
// orchestrator compares across cycles.
package remedy

import "strings"

// ErrorKind is the coarse category assigned to a parsed failure.
type ErrorKind int

const (
	// KindUnknown is the opaque fallback when nothing else matched.
	KindUnknown ErrorKind = iota
	// KindSyntax covers parse/indentation failures inside a source file.
	KindSyntax
	// KindMissingResource covers missing files, templates and modules.
	KindMissingResource
	// KindRouting covers named-reference resolution failures (reverse URL lookups).
	KindRouting
	// KindLogic covers application behavior failures (uncaught exceptions, bad attributes).
	KindLogic
	// KindTestFailure covers assertions raised while running the test suite.
	KindTestFailure
	// KindConfiguration covers settings and dependency-declaration failures.
	KindConfiguration
	// KindCommand covers failures of the invocation itself (command not found, bad args).
	KindCommand
	// KindMigration covers unapplied-schema failures that map to a fixed command.
	KindMigration
	// KindEnvironment covers OS-level failures (permissions) that are not code issues.
	KindEnvironment
)

func (k ErrorKind) String() string {
	switch k {
	case KindSyntax:
		return "syntax"
	case KindMissingResource:
		return "missing_resource"
	case KindRouting:
		return "routing"
	case KindLogic:
		return "logic"
	case KindTestFailure:
		return "test_failure"
	case KindConfiguration:
		return "configuration"
	case KindCommand:
		return "command"
	case KindMigration:
		return "migration"
	case KindEnvironment:
		return "environment"
	default:
		return "unknown"
	}
}

// SettingsSentinel is a placeholder file path meaning "the project settings
// file". It is resolved to the real path by the planner's bundling step, not
// earlier, so diagnosers stay independent of project layout.
const SettingsSentinel = "__project_settings__"

// Hints carries optional structured context a matcher or diagnoser attached
// to a record: a human-readable diagnosis and candidate files worth showing
// to the fix oracle.
type Hints struct {
	Diagnosis      string
	CandidateFiles []string
	// FixCommand is set when the remediation is a command to run rather
	// than a file to edit (e.g. an unapplied migration).
	FixCommand string
}

// ErrorRecord is one diagnosed failure extracted from command output.
// Records are created fresh on every analysis pass and never mutated in
// place; diagnosers that redirect a record to a different file use WithFile.
type ErrorRecord struct {
	Kind ErrorKind
	// FilePath is the file the error points at, relative to the project
	// root. Empty when no file could be determined; SettingsSentinel when
	// the project settings file is meant.
	FilePath string
	// Line is 1-based; 0 means unknown.
	Line int
	// Message is the full raw context, used verbatim in fix prompts.
	Message string
	// Summary is the one-line signature used for de-duplication and
	// cross-cycle progress comparison. It must be stable across
	// re-analysis of textually identical failures.
	Summary string
	// Command is the invocation whose output produced this record.
	Command string
	// TestContext names the failing test, when the record came out of a
	// test-runner block.
	TestContext string
	// AutoFixable is false for environmental failures that code changes
	// cannot address.
	AutoFixable bool
	Hints       *Hints
}

// WithFile returns a copy of the record redirected at a different file.
func (r *ErrorRecord) WithFile(path string) *ErrorRecord {
	c := *r
	c.FilePath = path
	return &c
}

// WithHints returns a copy of the record carrying the given hints.
func (r *ErrorRecord) WithHints(h *Hints) *ErrorRecord {
	c := *r
	c.Hints = h
	return &c
}

// ShortSummary returns the summary trimmed to a single line for display.
func (r *ErrorRecord) ShortSummary() string {
	s := r.Summary
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// TestSummary aggregates the result of one test-runner invocation.
type TestSummary struct {
	Ran      int
	Failures int
	Errors   int
}
