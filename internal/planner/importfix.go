package planner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/fixpoint-ai/fixpoint/internal/remedy"
)

var importNameRe = regexp.MustCompile(`ImportError: cannot import name '(\w+)' from '([\w.]+)'`)

// diagnoseImportName handles import-name-not-found failures. The fix is
// redirected at the exporting module that fails to provide the symbol,
// not at the importer that tripped over it.
func diagnoseImportName(ctx context.Context, errs []*remedy.ErrorRecord, st *ProjectState) ([]remedy.Task, []*remedy.ErrorRecord) {
	var tasks []remedy.Task
	var remaining []*remedy.ErrorRecord

	for _, err := range errs {
		m := importNameRe.FindStringSubmatch(err.Message)
		if m == nil {
			remaining = append(remaining, err)
			continue
		}
		symbol, module := m[1], m[2]

		exporter := strings.ReplaceAll(module, ".", "/") + ".py"
		if !st.Exists(ctx, exporter) {
			// Package import: the symbol lives in the package __init__.
			if pkg := strings.ReplaceAll(module, ".", "/") + "/__init__.py"; st.Exists(ctx, pkg) {
				exporter = pkg
			} else {
				remaining = append(remaining, err)
				continue
			}
		}

		tasks = append(tasks, &remedy.FixLogicTask{
			Err:   err.WithFile(exporter),
			Files: []string{exporter},
			Description: fmt.Sprintf(
				"Importing %q from %s fails because the module does not define it. Add or export %s in %s; do not change the importing file.",
				symbol, module, symbol, exporter),
		})
	}
	return tasks, remaining
}
