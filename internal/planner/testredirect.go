package planner

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/fixpoint-ai/fixpoint/internal/remedy"
)

var (
	stackFrameRe = regexp.MustCompile(`File "([^"]+)", line \d+`)
	// liveLogicKeywords suggest the failure is about application behavior
	// exercised through the test client, not the test's own logic.
	liveLogicKeywords = []string{
		"status_code", "response", "client.get", "client.post",
		"assertContains", "assertRedirects", "template", "href",
	}
	assetKeywords = []string{"href", "static", "link", "assertContains"}
)

// isDependencyPath mirrors the analyzer's frame filtering for raw trace
// walks done at planning time.
func isDependencyPath(p string) bool {
	for _, seg := range []string{"site-packages", "dist-packages", "lib/python", "venv", ".venv"} {
		if strings.Contains(p, seg) {
			return true
		}
	}
	return false
}

// diagnoseTestRedirect handles test failures whose message points at live
// application logic. It walks the raw trace for the deepest in-project
// test file, then picks the non-test file most likely at fault; errors
// sharing a fix file collapse into one task.
func diagnoseTestRedirect(ctx context.Context, errs []*remedy.ErrorRecord, st *ProjectState) ([]remedy.Task, []*remedy.ErrorRecord) {
	var remaining []*remedy.ErrorRecord
	grouped := make(map[string][]*remedy.ErrorRecord)
	testFileFor := make(map[string]string)

	for _, err := range errs {
		if err.Kind != remedy.KindTestFailure || !mentionsLiveLogic(err.Message) {
			remaining = append(remaining, err)
			continue
		}

		testFile := deepestTestFrame(err.Message)
		if testFile == "" {
			testFile = err.FilePath
		}
		if testFile == "" || !isTestFile(testFile) {
			remaining = append(remaining, err)
			continue
		}

		fixFile := redirectTarget(ctx, st, testFile, err.Message)
		if fixFile == "" {
			// No application file implicated; the test itself is the only
			// candidate.
			fixFile = testFile
		}
		grouped[fixFile] = append(grouped[fixFile], err)
		testFileFor[fixFile] = testFile
	}

	var tasks []remedy.Task
	fixFiles := make([]string, 0, len(grouped))
	for f := range grouped {
		fixFiles = append(fixFiles, f)
	}
	sort.Strings(fixFiles)

	for _, fixFile := range fixFiles {
		group := grouped[fixFile]
		testFile := testFileFor[fixFile]
		desc := fmt.Sprintf(
			"%d test failure(s) in %s point at application behavior. Fix %s so the tests pass.",
			len(group), testFile, fixFile)
		if fixFile != testFile {
			desc += fmt.Sprintf(" Do not modify %s: the tests define the expected behavior.", testFile)
		}
		tasks = append(tasks, &remedy.FixLogicTask{
			Err:         group[0].WithFile(fixFile),
			Files:       []string{fixFile},
			Description: desc,
		})
	}
	return tasks, remaining
}

func mentionsLiveLogic(message string) bool {
	for _, kw := range liveLogicKeywords {
		if strings.Contains(message, kw) {
			return true
		}
	}
	return false
}

// deepestTestFrame walks trace frames innermost-out and returns the first
// in-project test file.
func deepestTestFrame(message string) string {
	ms := stackFrameRe.FindAllStringSubmatch(message, -1)
	for i := len(ms) - 1; i >= 0; i-- {
		p := ms[i][1]
		if isDependencyPath(p) || strings.HasPrefix(p, "/usr/") {
			continue
		}
		if isTestFile(p) {
			return strings.TrimPrefix(p, "./")
		}
	}
	return ""
}

// redirectTarget applies the secondary heuristics: an assertion about a
// missing linked asset implies a template problem, not a test problem;
// anything else about responses points at the app's views.
func redirectTarget(ctx context.Context, st *ProjectState, testFile, message string) string {
	app := appOf(testFile)
	if app == "" || !st.IsApp(ctx, app) {
		return ""
	}

	if mentionsAsset(message) {
		if tmpl := firstTemplate(ctx, st, app); tmpl != "" {
			return tmpl
		}
	}
	for _, name := range []string{"views.py", "models.py"} {
		if f := st.AppFile(app, name); st.Exists(ctx, f) {
			return f
		}
	}
	return ""
}

func mentionsAsset(message string) bool {
	for _, kw := range assetKeywords {
		if strings.Contains(message, kw) {
			return true
		}
	}
	return false
}

// firstTemplate returns the app's first template file, walking the
// conventional templates directory one level deep.
func firstTemplate(ctx context.Context, st *ProjectState, app string) string {
	dir := path.Join(app, "templates")
	entries, err := st.fs.ListDir(ctx, dir)
	if err != nil {
		return ""
	}
	for _, entry := range entries {
		if entry.IsDir {
			if sub, err := st.fs.ListDir(ctx, entry.Path); err == nil {
				for _, s := range sub {
					if !s.IsDir && strings.HasSuffix(s.Path, ".html") {
						return s.Path
					}
				}
			}
			continue
		}
		if strings.HasSuffix(entry.Path, ".html") {
			return entry.Path
		}
	}
	return ""
}
