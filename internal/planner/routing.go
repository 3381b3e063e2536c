package planner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/fixpoint-ai/fixpoint/internal/remedy"
	"github.com/pmezard/go-difflib/difflib"
)

var (
	reverseRe      = regexp.MustCompile(`Reverse for '([^']+)' not found`)
	notNamespaceRe = regexp.MustCompile(`'([^']+)' is not a registered namespace`)
	includeAppRe   = regexp.MustCompile(`include\(\s*['"]([\w.]+)\.urls['"]`)
	namespaceArgRe = regexp.MustCompile(`namespace\s*=\s*['"]([\w-]+)['"]`)
	appNameRe      = regexp.MustCompile(`app_name\s*=\s*['"]([\w-]+)['"]`)
	templateAtRe   = regexp.MustCompile(`Error during template rendering[^\n]*\n[^\n]*?template ([\w\-./]+\.html)`)
)

// nameSimilarity scores two short identifiers, tolerating a misspelled
// namespace in a template.
func nameSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).Ratio()
}

// diagnoseRouting handles reverse-URL resolution failures. It parses the
// failing route name, cross-references the root router against the app's
// own router, and bundles every file involved into one task whose
// description states which of the three failure modes applies: the app's
// router is not included at all, it is included without a namespace, or
// the named route is missing inside it.
func diagnoseRouting(ctx context.Context, errs []*remedy.ErrorRecord, st *ProjectState) ([]remedy.Task, []*remedy.ErrorRecord) {
	var tasks []remedy.Task
	var remaining []*remedy.ErrorRecord

	for _, err := range errs {
		if err.Kind != remedy.KindRouting {
			remaining = append(remaining, err)
			continue
		}
		ref := extractRouteRef(err.Message)
		if ref == "" {
			remaining = append(remaining, err)
			continue
		}

		ns, route := splitRouteRef(ref)
		app, misspelled := resolveApp(ctx, st, ns)
		if app == "" {
			remaining = append(remaining, err)
			continue
		}

		rootURLs := st.RootURLsPath(ctx)
		appURLs := st.AppFile(app, "urls.py")
		appViews := st.AppFile(app, "views.py")

		diagnosis := diagnoseRouteFailure(ctx, st, rootURLs, appURLs, app, ns, route, misspelled)

		files := []string{rootURLs, appURLs, appViews}
		if tmpl := templateAtRe.FindStringSubmatch(err.Message); tmpl != nil {
			files = append(files, tmpl[1])
		}
		files = dedupeExisting(ctx, st, files)

		tasks = append(tasks, &remedy.FixLogicTask{
			Err:   err.WithHints(&remedy.Hints{Diagnosis: diagnosis, CandidateFiles: files}),
			Files: files,
			Description: fmt.Sprintf(
				"The URL reverse lookup for %q fails. Diagnosis: %s Fix the routing so the lookup resolves; return every requested file, unchanged where no edit is needed.",
				ref, diagnosis),
		})
	}
	return tasks, remaining
}

// extractRouteRef pulls the failing route reference out of the message.
func extractRouteRef(message string) string {
	if m := reverseRe.FindStringSubmatch(message); m != nil {
		return m[1]
	}
	if m := notNamespaceRe.FindStringSubmatch(message); m != nil {
		return m[1] + ":"
	}
	return ""
}

func splitRouteRef(ref string) (ns, route string) {
	if i := strings.IndexByte(ref, ':'); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return "", ref
}

// resolveApp maps a namespace (or bare route) onto a known app, using
// fuzzy matching to tolerate a misspelled namespace in a template.
func resolveApp(ctx context.Context, st *ProjectState, ns string) (app string, misspelled bool) {
	apps := st.Apps(ctx)
	if ns == "" {
		if len(apps) == 1 {
			return apps[0], false
		}
		return "", false
	}
	bestApp, bestScore := "", 0.0
	for _, a := range apps {
		if score := nameSimilarity(ns, a); score > bestScore {
			bestApp, bestScore = a, score
		}
	}
	if bestScore == 1.0 {
		return bestApp, false
	}
	if bestScore >= 0.75 {
		return bestApp, true
	}
	return "", false
}

// diagnoseRouteFailure inspects the routers and names the failure mode.
func diagnoseRouteFailure(ctx context.Context, st *ProjectState, rootURLs, appURLs, app, ns, route string, misspelled bool) string {
	if misspelled {
		return fmt.Sprintf("the namespace %q looks like a misspelling of the app %q; correct the reference or the namespace declaration.", ns, app)
	}

	rootContent := st.ReadFile(ctx, rootURLs)
	included := false
	for _, m := range includeAppRe.FindAllStringSubmatch(rootContent, -1) {
		if m[1] == app || strings.HasSuffix(m[1], "."+app) {
			included = true
			break
		}
	}
	if !included {
		return fmt.Sprintf("the root router %s does not include %s.urls at all; add an include for the app's router.", rootURLs, app)
	}

	appContent := st.ReadFile(ctx, appURLs)
	if appContent == "" {
		return fmt.Sprintf("the app router %s is missing; create it with app_name = '%s' and the %q route.", appURLs, app, route)
	}
	if ns != "" && appNameRe.FindStringSubmatch(appContent) == nil {
		return fmt.Sprintf("the app router %s is included but declares no namespace; add app_name = '%s'.", appURLs, app)
	}

	nameRe := regexp.MustCompile(`name\s*=\s*['"]` + regexp.QuoteMeta(route) + `['"]`)
	if route != "" && !nameRe.MatchString(appContent) {
		return fmt.Sprintf("the route named %q is missing from %s; add a path with that name (and a matching view).", route, appURLs)
	}
	return fmt.Sprintf("the route %q should resolve but does not; check the URL pattern arguments in %s.", route, appURLs)
}

// dedupeExisting drops duplicates and keeps only paths that either exist
// or are the app router (which a fix may need to create).
func dedupeExisting(ctx context.Context, st *ProjectState, files []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range files {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		if st.Exists(ctx, f) || strings.HasSuffix(f, "urls.py") {
			out = append(out, f)
		}
	}
	return out
}
