package planner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/fixpoint-ai/fixpoint/internal/remedy"
)

var moduleAttrRe = regexp.MustCompile(`AttributeError: module '([\w.]+)' has no attribute '(\w+)'`)

// diagnoseMissingAttribute handles attribute-not-found failures on a
// module. When the missing attribute is a view handler, it emits the whole
// chain up front (define the handler, declare the app namespace, include it
// from the root router), pre-empting the routing failure that would
// otherwise surface on the next cycle.
func diagnoseMissingAttribute(ctx context.Context, errs []*remedy.ErrorRecord, st *ProjectState) ([]remedy.Task, []*remedy.ErrorRecord) {
	var tasks []remedy.Task
	var remaining []*remedy.ErrorRecord

	for _, err := range errs {
		m := moduleAttrRe.FindStringSubmatch(err.Message)
		if err.Kind != remedy.KindLogic || m == nil {
			remaining = append(remaining, err)
			continue
		}
		module, attr := m[1], m[2]

		if !strings.HasSuffix(module, ".views") {
			// Not a handler: point the fix at the module failing to
			// provide the attribute.
			target := strings.ReplaceAll(module, ".", "/") + ".py"
			tasks = append(tasks, &remedy.FixLogicTask{
				Err:   err.WithFile(target),
				Files: []string{target},
				Description: fmt.Sprintf(
					"The module %s has no attribute %q but other code expects it. Define %s in %s.",
					module, attr, attr, target),
			})
			continue
		}

		app := strings.TrimSuffix(module, ".views")
		if i := strings.LastIndexByte(app, '.'); i >= 0 {
			app = app[i+1:]
		}
		views := st.AppFile(app, "views.py")
		appURLs := st.AppFile(app, "urls.py")
		rootURLs := st.RootURLsPath(ctx)

		tasks = append(tasks,
			&remedy.FixLogicTask{
				Err:   err.WithFile(views),
				Files: []string{views},
				Description: fmt.Sprintf(
					"The view handler %s.%s does not exist but the app router references it. Define the %s view in %s.",
					module, attr, attr, views),
			},
			&remedy.FixLogicTask{
				Err:   err.WithFile(appURLs),
				Files: []string{appURLs},
				Description: fmt.Sprintf(
					"Ensure %s declares app_name = '%s' and routes to views.%s.",
					appURLs, app, attr),
			},
			&remedy.FixLogicTask{
				Err:   err.WithFile(rootURLs),
				Files: []string{rootURLs},
				Description: fmt.Sprintf(
					"Ensure the root router %s includes '%s.urls' so the app's namespace is reachable.",
					rootURLs, app),
			},
		)
	}
	return tasks, remaining
}
