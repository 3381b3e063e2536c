package planner

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/fixpoint-ai/fixpoint/internal/remedy"
)

// diagnoseMissingTemplate handles missing view-template resources. The task
// offers the oracle both ways out, creating the template or correcting the
// reference in the view that names it, and lists both files so either fix
// satisfies the response contract.
func diagnoseMissingTemplate(ctx context.Context, errs []*remedy.ErrorRecord, st *ProjectState) ([]remedy.Task, []*remedy.ErrorRecord) {
	var tasks []remedy.Task
	var remaining []*remedy.ErrorRecord

	for _, err := range errs {
		if err.Kind != remedy.KindMissingResource || !strings.HasPrefix(err.Summary, "missing template: ") {
			remaining = append(remaining, err)
			continue
		}
		name := strings.TrimPrefix(err.Summary, "missing template: ")
		target := path.Join(st.TemplatesDir(ctx, name), name)

		files := []string{target}
		view := referencingView(ctx, st, name)
		if view != "" {
			files = append(files, view)
		}

		desc := fmt.Sprintf(
			"The template %q cannot be found. Either create it at %s, or correct the template reference",
			name, target)
		if view != "" {
			desc += fmt.Sprintf(" in %s", view)
		}
		desc += ". Return every requested file; leave the one you did not change as-is."

		tasks = append(tasks, &remedy.CreateResourceTask{
			Err:         err,
			Path:        target,
			Description: desc,
		})
		if view != "" {
			// The oracle contract covers both files when a view is known.
			tasks[len(tasks)-1] = &remedy.FixLogicTask{
				Err:         err,
				Files:       files,
				Description: desc,
			}
		}
	}
	return tasks, remaining
}

// referencingView finds the view module most likely naming the template:
// the app matching the template's leading directory.
func referencingView(ctx context.Context, st *ProjectState, templateName string) string {
	if i := strings.IndexByte(templateName, '/'); i > 0 {
		app := templateName[:i]
		if st.IsApp(ctx, app) {
			view := st.AppFile(app, "views.py")
			if st.Exists(ctx, view) {
				return view
			}
		}
	}
	return ""
}
