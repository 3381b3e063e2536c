package remedy

import "fmt"

// Task is the closed set of remediation work items the planner can emit.
// The set is sealed so that the orchestrator's type switch stays exhaustive;
// new variants require touching every switch, which is deliberate.
type Task interface {
	// OriginalError returns the record that caused this task.
	OriginalError() *ErrorRecord
	// TargetFiles lists the files the fix oracle must return content for.
	// The list is fixed at construction; it is the exact contract the
	// oracle response is validated against. Command-fix tasks return nil.
	TargetFiles() []string
	// Describe returns the natural-language instruction for the oracle.
	Describe() string

	isTask()
}

// CreateResourceTask asks for a missing file or template to be created.
type CreateResourceTask struct {
	Err         *ErrorRecord
	Path        string
	Description string
}

// FixSyntaxTask asks for a parse failure in one file to be repaired.
type FixSyntaxTask struct {
	Err  *ErrorRecord
	Path string
}

// FixCommandTask asks for a corrected shell invocation. CheckCommand is a
// template containing %s; verification substitutes the corrected command
// into it instead of re-running the corrected command blindly, so
// non-idempotent setup commands are not re-triggered.
type FixCommandTask struct {
	Err          *ErrorRecord
	BadCommand   string
	CheckCommand string
	Description  string
	// KnownFix, when non-empty, is a predetermined corrected command; the
	// oracle is skipped and the fix is run directly.
	KnownFix string
}

// FixLogicTask asks for a behavioral fix across one or more files. Files is
// immutable once created.
type FixLogicTask struct {
	Err         *ErrorRecord
	Files       []string
	Description string
}

// BundleTask collapses several unrelated records pointing at the same file
// into one fix request.
type BundleTask struct {
	Errs []*ErrorRecord
	Path string
}

func (t *CreateResourceTask) isTask() {}
func (t *FixSyntaxTask) isTask()      {}
func (t *FixCommandTask) isTask()     {}
func (t *FixLogicTask) isTask()       {}
func (t *BundleTask) isTask()         {}

func (t *CreateResourceTask) OriginalError() *ErrorRecord { return t.Err }
func (t *FixSyntaxTask) OriginalError() *ErrorRecord      { return t.Err }
func (t *FixCommandTask) OriginalError() *ErrorRecord     { return t.Err }
func (t *FixLogicTask) OriginalError() *ErrorRecord       { return t.Err }

func (t *BundleTask) OriginalError() *ErrorRecord {
	if len(t.Errs) == 0 {
		return nil
	}
	return t.Errs[0]
}

func (t *CreateResourceTask) TargetFiles() []string { return []string{t.Path} }
func (t *FixSyntaxTask) TargetFiles() []string      { return []string{t.Path} }
func (t *FixCommandTask) TargetFiles() []string     { return nil }
func (t *FixLogicTask) TargetFiles() []string       { return t.Files }
func (t *BundleTask) TargetFiles() []string         { return []string{t.Path} }

func (t *CreateResourceTask) Describe() string {
	if t.Description != "" {
		return t.Description
	}
	return fmt.Sprintf("Create the missing file %s so the failing command succeeds.", t.Path)
}

func (t *FixSyntaxTask) Describe() string {
	return fmt.Sprintf("Fix the syntax error in %s. Keep the rest of the file unchanged.", t.Path)
}

func (t *FixCommandTask) Describe() string {
	if t.Description != "" {
		return t.Description
	}
	return fmt.Sprintf("The command %q failed to run at all. Provide a corrected command.", t.BadCommand)
}

func (t *FixLogicTask) Describe() string { return t.Description }

func (t *BundleTask) Describe() string {
	return fmt.Sprintf("Fix all %d errors reported against %s in a single revision of the file.",
		len(t.Errs), t.Path)
}

// Kind returns a short tag for logging and metrics.
func Kind(t Task) string {
	switch t.(type) {
	case *CreateResourceTask:
		return "create_resource"
	case *FixSyntaxTask:
		return "fix_syntax"
	case *FixCommandTask:
		return "fix_command"
	case *FixLogicTask:
		return "fix_logic"
	case *BundleTask:
		return "fix_bundle"
	default:
		panic(fmt.Sprintf("unhandled task variant %T", t))
	}
}
