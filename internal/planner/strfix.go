package planner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/fixpoint-ai/fixpoint/internal/remedy"
)

var objectReprRe = regexp.MustCompile(`<(\w+)(?:\.(\w+))* object(?: \((\d+|None)\))?(?: at 0x[0-9a-fA-F]+)?>`)

// isStrMismatch detects the default object representation leaking into an
// assertion, or a test named after the str-conversion convention.
func isStrMismatch(err *remedy.ErrorRecord) bool {
	if strings.Contains(err.TestContext, "_str_") || strings.HasSuffix(err.TestContext, "_str") {
		return true
	}
	return objectReprRe.MatchString(err.Message)
}

// diagnoseStrMismatch handles string-conversion failures: a model without a
// __str__ method shows up as "<Product object (1)>" in assertions. The fix
// is scoped to exactly the file defining the type.
func diagnoseStrMismatch(ctx context.Context, errs []*remedy.ErrorRecord, st *ProjectState) ([]remedy.Task, []*remedy.ErrorRecord) {
	var tasks []remedy.Task
	var remaining []*remedy.ErrorRecord

	for _, err := range errs {
		if (err.Kind != remedy.KindTestFailure && err.Kind != remedy.KindLogic) || !isStrMismatch(err) {
			remaining = append(remaining, err)
			continue
		}

		app := appOf(err.FilePath)
		if app == "" || !st.IsApp(ctx, app) {
			remaining = append(remaining, err)
			continue
		}
		modelsFile := st.AppFile(app, "models.py")
		if !st.Exists(ctx, modelsFile) {
			remaining = append(remaining, err)
			continue
		}

		typeName := "the model"
		if m := objectReprRe.FindStringSubmatch(err.Message); m != nil {
			typeName = m[1]
			if m[2] != "" {
				typeName = m[2]
			}
		}

		tasks = append(tasks, &remedy.FixLogicTask{
			Err:   err,
			Files: []string{modelsFile},
			Description: fmt.Sprintf(
				"An assertion sees the default object representation of %s instead of a readable string. Add or fix the __str__ method of the type in %s so it returns what the test expects. Do not modify the test.",
				typeName, modelsFile),
		})
	}
	return tasks, remaining
}
