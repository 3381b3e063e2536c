package planner

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/fixpoint-ai/fixpoint/internal/remedy"
)

// isTestFile reports whether a path is a test module by convention.
func isTestFile(p string) bool {
	base := path.Base(p)
	return base == "tests.py" || strings.HasPrefix(base, "test_") ||
		strings.HasSuffix(strings.TrimSuffix(base, ".py"), "_test") ||
		strings.Contains(p, "/tests/")
}

// appOf returns the leading path segment of a root-relative file.
func appOf(p string) string {
	p = strings.TrimPrefix(p, "./")
	if i := strings.IndexByte(p, '/'); i > 0 {
		return p[:i]
	}
	return ""
}

// guessAppFile picks the application file most likely exercised by a test,
// keyed on what the failure text talks about.
func guessAppFile(ctx context.Context, st *ProjectState, app, message string) string {
	lower := strings.ToLower(message)
	ordered := []string{"views.py", "models.py", "forms.py"}
	switch {
	case strings.Contains(lower, "model") || strings.Contains(lower, "object"):
		ordered = []string{"models.py", "views.py", "forms.py"}
	case strings.Contains(lower, "form"):
		ordered = []string{"forms.py", "views.py", "models.py"}
	}
	for _, name := range ordered {
		if f := st.AppFile(app, name); st.Exists(ctx, f) {
			return f
		}
	}
	return ""
}

// diagnoseAssertion handles generic assertion failures inside test files:
// the test and its best-guess application file go into one task, and the
// oracle is told explicitly that the test itself may be the bug.
func diagnoseAssertion(ctx context.Context, errs []*remedy.ErrorRecord, st *ProjectState) ([]remedy.Task, []*remedy.ErrorRecord) {
	var tasks []remedy.Task
	var remaining []*remedy.ErrorRecord

	for _, err := range errs {
		if err.Kind != remedy.KindTestFailure || err.FilePath == "" || !isTestFile(err.FilePath) {
			remaining = append(remaining, err)
			continue
		}
		// Sharper diagnosers later in the table handle representation
		// mismatches and test-client failures; declining here lets them
		// scope the fix more precisely.
		if isStrMismatch(err) || mentionsLiveLogic(err.Message) {
			remaining = append(remaining, err)
			continue
		}
		app := appOf(err.FilePath)
		if app == "" || !st.IsApp(ctx, app) {
			remaining = append(remaining, err)
			continue
		}

		files := []string{err.FilePath}
		if appFile := guessAppFile(ctx, st, app, err.Message); appFile != "" {
			files = append(files, appFile)
		}

		tasks = append(tasks, &remedy.FixLogicTask{
			Err:   err,
			Files: files,
			Description: fmt.Sprintf(
				"The test %s fails with an assertion error. Decide whether the application behavior or the assertion itself is wrong; you may modify either file, including the test if its expectation is the actual bug. Return every requested file.",
				err.TestContext),
		})
	}
	return tasks, remaining
}
