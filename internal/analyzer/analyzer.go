// Package analyzer turns raw command output into structured error records.
// It runs a battery of pattern matchers in strict priority order and returns
// as soon as one of them produces results. It never returns an error: output
// that defeats every matcher degrades to an unknown-kind record or, at
// worst, an empty list.
package analyzer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fixpoint-ai/fixpoint/internal/logger"
	"github.com/fixpoint-ai/fixpoint/internal/remedy"
)

// Analyzer parses build/test command output for one project tree.
type Analyzer struct {
	root string
}

// New creates an analyzer for the project rooted at root.
func New(root string) *Analyzer {
	return &Analyzer{root: root}
}

var (
	notFoundRe = regexp.MustCompile(`(?m)(?:sh: \d+: |sh: |bash: .*: |/bin/sh: )?([\w.\-/]+): (?:command )?not found`)
	promptRes  = []*regexp.Regexp{
		regexp.MustCompile(`(?s)Please select a valid default.*?>>>`),
		regexp.MustCompile(`you are trying to add a non-nullable field`),
		regexp.MustCompile(`(?m)^Select an option:\s*$`),
		regexp.MustCompile(`\[y/N\]\s*$`),
	}
	migrationRes = []*regexp.Regexp{
		regexp.MustCompile(`no such table: (\S+)`),
		regexp.MustCompile(`relation "([^"]+)" does not exist`),
		regexp.MustCompile(`Table '[^']+\.([^']+)' doesn't exist`),
	}
	unappliedRe     = regexp.MustCompile(`You have \d+ unapplied migration`)
	templateRe      = regexp.MustCompile(`TemplateDoesNotExist(?: at [^\n]*)?[:\s]+([\w\-./]+\.\w+)`)
	lintRe          = regexp.MustCompile(`(?m)^([\w\-./]+\.py):(\d+):(?:\d+:)? ([EWF]\d{2,4} .+)$`)
	permissionRe    = regexp.MustCompile(`(?:PermissionError|EACCES|Permission denied)`)
	fallbackFileRe  = regexp.MustCompile(`File "([^"]+)"(?:, line (\d+))?`)
	settingsKeyword = []string{
		"INSTALLED_APPS", "ROOT_URLCONF", "DATABASES", "TEMPLATES",
		"MIDDLEWARE", "STATICFILES", "SECRET_KEY", "ALLOWED_HOSTS",
		"ImproperlyConfigured",
	}
)

// Analyze inspects the output of a failed command and produces zero or more
// error records, plus a test summary when the output came from a test run.
// An exit code of zero yields nothing: there is no failure to explain.
func (a *Analyzer) Analyze(command, stdout, stderr string, exitCode int) ([]*remedy.ErrorRecord, *remedy.TestSummary) {
	if exitCode == 0 {
		return nil, nil
	}
	combined := stdout + "\n" + stderr

	if recs, summary := a.analyzeTestRun(command, combined); recs != nil {
		logger.Debug("analyzer: test-runner matcher produced %d records", len(recs))
		return recs, summary
	}
	if rec := a.matchCommandNotFound(command, combined); rec != nil {
		return []*remedy.ErrorRecord{rec}, nil
	}
	if rec := a.matchInteractivePrompt(command, combined); rec != nil {
		return []*remedy.ErrorRecord{rec}, nil
	}
	if rec := a.matchMigration(command, combined); rec != nil {
		return []*remedy.ErrorRecord{rec}, nil
	}
	if rec := a.matchMissingTemplate(command, combined); rec != nil {
		return []*remedy.ErrorRecord{rec}, nil
	}
	if recs := a.matchStaticAnalysis(command, combined); len(recs) > 0 {
		return recs, nil
	}
	if rec := a.matchTraceback(command, combined); rec != nil {
		return []*remedy.ErrorRecord{rec}, nil
	}
	return a.fallback(command, stdout, stderr), nil
}

// matchCommandNotFound catches OS-level "command not found" failures.
func (a *Analyzer) matchCommandNotFound(command, output string) *remedy.ErrorRecord {
	m := notFoundRe.FindStringSubmatch(output)
	if m == nil {
		return nil
	}
	return &remedy.ErrorRecord{
		Kind:        remedy.KindCommand,
		Message:     strings.TrimSpace(output),
		Summary:     fmt.Sprintf("command not found: %s", m[1]),
		Command:     command,
		AutoFixable: true,
	}
}

// matchInteractivePrompt detects commands that stalled waiting for input on
// a known "needs a default value" style prompt.
func (a *Analyzer) matchInteractivePrompt(command, output string) *remedy.ErrorRecord {
	for _, re := range promptRes {
		if loc := re.FindStringIndex(output); loc != nil {
			prompt := strings.TrimSpace(output[loc[0]:loc[1]])
			return &remedy.ErrorRecord{
				Kind:        remedy.KindCommand,
				Message:     strings.TrimSpace(output),
				Summary:     "command stalled on interactive prompt: " + firstLine(prompt),
				Command:     command,
				AutoFixable: true,
				Hints: &remedy.Hints{
					Diagnosis: "The command stopped to ask for input. Rework the change so no interactive prompt is needed (for example, give new model fields a default), or pass a non-interactive flag.",
				},
			}
		}
	}
	return nil
}

// matchMigration maps missing-table failures onto a fixed remediation
// command instead of a file.
func (a *Analyzer) matchMigration(command, output string) *remedy.ErrorRecord {
	var table string
	for _, re := range migrationRes {
		if m := re.FindStringSubmatch(output); m != nil {
			table = m[1]
			break
		}
	}
	if table == "" && !unappliedRe.MatchString(output) {
		return nil
	}
	summary := "database schema is not migrated"
	if table != "" {
		summary = "missing database table: " + table
	}
	return &remedy.ErrorRecord{
		Kind:        remedy.KindMigration,
		Message:     strings.TrimSpace(output),
		Summary:     summary,
		Command:     command,
		AutoFixable: true,
		Hints: &remedy.Hints{
			Diagnosis:  "The database schema is behind the model definitions.",
			FixCommand: "python manage.py makemigrations && python manage.py migrate",
		},
	}
}

// matchMissingTemplate maps TemplateDoesNotExist onto the template name as
// the actionable path, not the view that referenced it.
func (a *Analyzer) matchMissingTemplate(command, output string) *remedy.ErrorRecord {
	m := templateRe.FindStringSubmatch(output)
	if m == nil {
		return nil
	}
	return &remedy.ErrorRecord{
		Kind:        remedy.KindMissingResource,
		FilePath:    m[1],
		Message:     strings.TrimSpace(output),
		Summary:     "missing template: " + m[1],
		Command:     command,
		AutoFixable: true,
	}
}

// matchStaticAnalysis recognizes flake8-style checker lines.
func (a *Analyzer) matchStaticAnalysis(command, output string) []*remedy.ErrorRecord {
	ms := lintRe.FindAllStringSubmatch(output, -1)
	if len(ms) == 0 {
		return nil
	}
	var records []*remedy.ErrorRecord
	seen := make(map[string]bool)
	for _, m := range ms {
		summary := fmt.Sprintf("%s:%s %s", m[1], m[2], m[3])
		if seen[summary] {
			continue
		}
		seen[summary] = true
		kind := remedy.KindLogic
		if strings.HasPrefix(m[3], "E9") || strings.HasPrefix(m[3], "F8") {
			kind = remedy.KindSyntax
		}
		records = append(records, &remedy.ErrorRecord{
			Kind:        kind,
			FilePath:    m[1],
			Line:        atoiSafe(m[2]),
			Message:     m[0],
			Summary:     summary,
			Command:     command,
			AutoFixable: true,
		})
	}
	return records
}

// matchTraceback walks a generic stack trace for the deepest project frame.
// Permission errors exit early and are flagged non-auto-fixable; a trace
// with no project frame but configuration keywords in the log is redirected
// at the settings file.
func (a *Analyzer) matchTraceback(command, output string) *remedy.ErrorRecord {
	frames, excName, excMsg := parseTraceback(output)
	if len(frames) == 0 && excName == "" {
		return nil
	}

	if permissionRe.MatchString(output) {
		return &remedy.ErrorRecord{
			Kind:        remedy.KindEnvironment,
			Message:     strings.TrimSpace(output),
			Summary:     "permission denied: " + firstLine(excMsg),
			Command:     command,
			AutoFixable: false,
		}
	}

	summary := baseExceptionName(excName)
	if excMsg != "" {
		summary += ": " + firstLine(excMsg)
	}

	rec := &remedy.ErrorRecord{
		Kind:        classifyException(excName, command),
		Message:     strings.TrimSpace(output),
		Summary:     summary,
		Command:     command,
		AutoFixable: true,
	}
	if f := a.deepestProjectFrame(frames); f != nil {
		rec.FilePath = f.File
		rec.Line = f.Line
		return rec
	}

	for _, kw := range settingsKeyword {
		if strings.Contains(output, kw) {
			rec.Kind = remedy.KindConfiguration
			rec.FilePath = remedy.SettingsSentinel
			return rec
		}
	}
	if excName == "" {
		return nil
	}
	return rec
}

// fallback wraps whatever stderr is left into an unknown-kind record,
// best-effort extracting a file path.
func (a *Analyzer) fallback(command, stdout, stderr string) []*remedy.ErrorRecord {
	raw := strings.TrimSpace(stderr)
	if raw == "" {
		raw = strings.TrimSpace(stdout)
	}
	if raw == "" {
		logger.Warn("analyzer: command failed with empty output: %s", command)
		return nil
	}
	rec := &remedy.ErrorRecord{
		Kind:        remedy.KindUnknown,
		Message:     raw,
		Summary:     firstLine(raw),
		Command:     command,
		AutoFixable: true,
	}
	if m := fallbackFileRe.FindStringSubmatch(raw); m != nil && a.inProject(m[1]) {
		rec.FilePath = a.relToRoot(m[1])
		rec.Line = atoiSafe(m[2])
	}
	return []*remedy.ErrorRecord{rec}
}
