package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fixpoint-ai/fixpoint/internal/oracle"
	"github.com/fixpoint-ai/fixpoint/internal/patch"
	"github.com/fixpoint-ai/fixpoint/internal/remedy"
	"github.com/fixpoint-ai/fixpoint/internal/syntax"
)

// executeTask runs one task to completion, retrying oracle attempts up to
// the configured cap. An error here fails the whole cycle.
func (s *session) executeTask(ctx context.Context, t remedy.Task) error {
	switch tt := t.(type) {
	case *remedy.FixCommandTask:
		return s.executeCommandTask(ctx, tt)
	case *remedy.CreateResourceTask, *remedy.FixSyntaxTask, *remedy.FixLogicTask, *remedy.BundleTask:
		return s.executeFileTask(ctx, t)
	default:
		panic(fmt.Sprintf("unhandled task variant %T", t))
	}
}

// executeFileTask drives the oracle until it returns a valid revision of
// exactly the requested file set, then applies it transactionally.
func (s *session) executeFileTask(ctx context.Context, t remedy.Task) error {
	o := s.o
	kind := remedy.Kind(t)
	targets := t.TargetFiles()
	if len(targets) == 0 {
		return fmt.Errorf("%s task has no target files", kind)
	}

	req := &oracle.FixRequest{
		Description: t.Describe(),
		Files:       make(map[string]string, len(targets)),
		ErrorText:   errorText(t),
		ProjectTree: s.tree,
	}
	for _, p := range targets {
		content, err := o.fsys.ReadFile(ctx, p)
		if err != nil {
			req.Files[p] = ""
			req.CreatePaths = append(req.CreatePaths, p)
			continue
		}
		req.Files[p] = string(content)
	}

	primary := targets[0]
	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.metrics.AttemptStarted(kind, primary, attempt)

		resp, err := o.oracle.ProposeFix(ctx, req)
		if err != nil {
			o.metrics.AttemptFailed(kind, primary, "oracle_error", attempt)
			lastErr = err
			o.log.Warn("attempt %d/%d: oracle error: %v", attempt, o.maxAttempts, err)
			continue
		}

		if note := fileSetMismatch(targets, resp.Files); note != "" {
			o.metrics.AttemptFailed(kind, primary, "file_set_mismatch", attempt)
			lastErr = fmt.Errorf("file set mismatch: %s", note)
			req.Feedback = append(req.Feedback, note)
			continue
		}

		if note := renderDiffBlocks(req.Files, resp.Files); note != "" {
			o.metrics.AttemptFailed(kind, primary, "bad_diff", attempt)
			lastErr = fmt.Errorf("diff-shaped response could not be applied: %s", note)
			req.Feedback = append(req.Feedback, note)
			continue
		}

		if note := s.invalidSyntax(resp.Files); note != "" {
			o.metrics.AttemptFailed(kind, primary, "invalid_syntax", attempt)
			lastErr = fmt.Errorf("returned content does not parse: %s", note)
			req.Feedback = append(req.Feedback, note)
			continue
		}

		manifest, err := o.txn.Apply(ctx, resp.Files)
		if err != nil {
			// The transaction layer restored the tree before returning,
			// so the task fails hard rather than retrying the oracle.
			o.metrics.AttemptFailed(kind, primary, "transaction", attempt)
			return fmt.Errorf("applying fix: %w", err)
		}
		for _, redundant := range s.manifest.Merge(manifest) {
			if derr := o.fsys.Delete(ctx, redundant); derr != nil {
				o.log.Warn("could not drop redundant backup %s: %v", redundant, derr)
			}
		}
		for p := range resp.Files {
			s.touched[p] = struct{}{}
		}
		o.metrics.AttemptSucceeded(kind, primary, attempt)
		o.metrics.FilesPatched(len(resp.Files))
		o.log.Info("%s applied across %d file(s) on attempt %d", kind, len(resp.Files), attempt)
		return nil
	}
	return fmt.Errorf("%s exhausted %d attempt(s): %w", kind, o.maxAttempts, lastErr)
}

// executeCommandTask replaces a broken command instead of editing files.
// Success is judged by the task's check command, never by rerunning the
// corrected command itself.
func (s *session) executeCommandTask(ctx context.Context, t *remedy.FixCommandTask) error {
	o := s.o
	kind := remedy.Kind(t)

	if t.KnownFix != "" {
		o.metrics.AttemptStarted(kind, "", 1)
		res, err := o.runner.Run(ctx, t.KnownFix)
		if err != nil {
			o.metrics.AttemptFailed(kind, "", "run_error", 1)
			return fmt.Errorf("running known fix %q: %w", t.KnownFix, err)
		}
		if res.Failed() {
			o.metrics.AttemptFailed(kind, "", "fix_failed", 1)
			return fmt.Errorf("known fix %q exited %d: %s",
				t.KnownFix, res.ExitCode, firstNonEmpty(res.Stderr, res.Stdout))
		}
		o.metrics.AttemptSucceeded(kind, "", 1)
		s.adoptCommandFix(t, t.KnownFix)
		return nil
	}

	req := &oracle.FixRequest{
		Description: t.Describe(),
		ErrorText:   errorText(t),
		ProjectTree: s.tree,
		WantCommand: true,
	}

	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.metrics.AttemptStarted(kind, "", attempt)

		resp, err := o.oracle.ProposeFix(ctx, req)
		if err != nil {
			o.metrics.AttemptFailed(kind, "", "oracle_error", attempt)
			lastErr = err
			continue
		}
		corrected := strings.TrimSpace(resp.Command)
		if corrected == "" {
			o.metrics.AttemptFailed(kind, "", "no_command", attempt)
			note := "the response did not contain a <command> block with the corrected command"
			lastErr = fmt.Errorf("%s", note)
			req.Feedback = append(req.Feedback, note)
			continue
		}

		check := substituteCheck(t.CheckCommand, corrected)
		res, err := o.runner.Run(ctx, check)
		if err != nil {
			o.metrics.AttemptFailed(kind, "", "run_error", attempt)
			return fmt.Errorf("running check %q: %w", check, err)
		}
		if res.Failed() {
			o.metrics.AttemptFailed(kind, "", "check_failed", attempt)
			note := fmt.Sprintf("the corrected command %q failed its check (exit %d): %s",
				corrected, res.ExitCode, firstNonEmpty(res.Stderr, res.Stdout))
			lastErr = fmt.Errorf("%s", note)
			req.Feedback = append(req.Feedback, note)
			continue
		}

		o.metrics.AttemptSucceeded(kind, "", attempt)
		s.adoptCommandFix(t, corrected)
		return nil
	}
	return fmt.Errorf("%s exhausted %d attempt(s): %w", kind, o.maxAttempts, lastErr)
}

// adoptCommandFix updates the session after a command fix. When the
// failing command itself was the broken thing, later cycles run the
// corrected version and the next verification substitutes it into the
// task's check command instead of running it blindly, since a setup
// command may not be idempotent. A KnownFix (a migration, say) repairs
// the environment, not the command, so the session command stays as-is
// and verification re-runs it normally.
func (s *session) adoptCommandFix(t *remedy.FixCommandTask, corrected string) {
	if t.KnownFix != "" {
		return
	}
	if e := t.OriginalError(); e != nil && e.Kind == remedy.KindCommand && t.BadCommand == s.command {
		s.command = corrected
		if t.CheckCommand != "" {
			s.verifyOverride = substituteCheck(t.CheckCommand, corrected)
		}
	}
}

// substituteCheck fills the corrected command into a check template. A
// template without a placeholder is run as-is.
func substituteCheck(template, corrected string) string {
	if template == "" {
		return corrected
	}
	if strings.Contains(template, "%s") {
		return fmt.Sprintf(template, shellQuote(corrected))
	}
	return template
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// fileSetMismatch compares the returned file set against the request.
// Returns the corrective feedback line, or "" on an exact match.
func fileSetMismatch(requested []string, returned map[string]string) string {
	want := make(map[string]bool, len(requested))
	for _, p := range requested {
		want[p] = true
	}
	var missing, extra []string
	for _, p := range requested {
		if _, ok := returned[p]; !ok {
			missing = append(missing, p)
		}
	}
	for p := range returned {
		if !want[p] {
			extra = append(extra, p)
		}
	}
	if len(missing) == 0 && len(extra) == 0 {
		return ""
	}
	sort.Strings(missing)
	sort.Strings(extra)
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, fmt.Sprintf("you must return a <file> block for every requested file; missing: %s",
			strings.Join(missing, ", ")))
	}
	if len(extra) > 0 {
		parts = append(parts, fmt.Sprintf("you must not return files that were not requested; unexpected: %s",
			strings.Join(extra, ", ")))
	}
	return strings.Join(parts, "; ")
}

// renderDiffBlocks rewrites any diff-shaped file block into full content
// by patching the file's current text. The oracle is instructed to return
// complete files, but a model that answers with a unified diff anyway is
// accommodated rather than retried. Returns corrective feedback on a diff
// that cannot be placed.
func renderDiffBlocks(current, returned map[string]string) string {
	for p, content := range returned {
		if !patch.LooksLikeDiff(content) {
			continue
		}
		rendered, _, err := patch.Render(current[p], content)
		if err != nil {
			return fmt.Sprintf("the diff you returned for %s does not apply to the file's current content (%v); return the complete file instead", p, err)
		}
		returned[p] = rendered
	}
	return ""
}

// invalidSyntax parse-checks every returned file whose language the
// validator knows. Returns feedback for the first invalid file.
func (s *session) invalidSyntax(files map[string]string) string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		lang := syntax.DetectLanguage(p)
		if !s.o.validator.Supports(lang) {
			continue
		}
		res, err := s.o.validator.Validate(files[p], lang)
		if err != nil || res.Valid {
			continue
		}
		first := res.Errors[0]
		return fmt.Sprintf("the content you returned for %s has a syntax error at line %d: %s; return the complete corrected file",
			p, first.Line, first.Message)
	}
	return ""
}

// errorText joins the raw messages behind a task for the oracle prompt.
func errorText(t remedy.Task) string {
	if bt, ok := t.(*remedy.BundleTask); ok {
		msgs := make([]string, 0, len(bt.Errs))
		for _, e := range bt.Errs {
			msgs = append(msgs, e.Message)
		}
		return joinMessages(msgs)
	}
	if e := t.OriginalError(); e != nil {
		return e.Message
	}
	return ""
}
