package planner

import (
	"context"
	"path"
	"regexp"
	"strings"

	"github.com/fixpoint-ai/fixpoint/internal/fs"
	"github.com/fixpoint-ai/fixpoint/internal/logger"
)

// ProjectState exposes the project layout facts diagnosers need: which
// apps exist, where the settings module lives, and which file is the root
// URL router. Discovery results are cached for the lifetime of one state,
// i.e. one planning pass; the next cycle rebuilds them against the
// possibly-changed tree.
type ProjectState struct {
	fs fs.FileSystem

	// SettingsCandidates are root-relative paths probed for the settings
	// module, in order.
	SettingsCandidates []string

	apps         []string
	appsLoaded   bool
	settingsPath string
	rootURLs     string
}

var rootURLConfRe = regexp.MustCompile(`ROOT_URLCONF\s*=\s*['"]([\w.]+)['"]`)

// NewProjectState creates a state bound to the project filesystem.
func NewProjectState(filesystem fs.FileSystem, settingsCandidates []string) *ProjectState {
	if len(settingsCandidates) == 0 {
		settingsCandidates = []string{"settings.py", "config/settings.py"}
	}
	return &ProjectState{fs: filesystem, SettingsCandidates: settingsCandidates}
}

// Apps returns the project's application packages: top-level directories
// carrying the conventional app modules.
func (s *ProjectState) Apps(ctx context.Context) []string {
	if s.appsLoaded {
		return s.apps
	}
	s.appsLoaded = true

	entries, err := s.fs.ListDir(ctx, ".")
	if err != nil {
		logger.Warn("planner: cannot list project root: %v", err)
		return nil
	}
	for _, entry := range entries {
		if !entry.IsDir {
			continue
		}
		name := path.Base(entry.Path)
		if strings.HasPrefix(name, ".") || name == "templates" || name == "static" {
			continue
		}
		for _, marker := range []string{"apps.py", "models.py", "views.py"} {
			if ok, _ := s.fs.Exists(ctx, path.Join(entry.Path, marker)); ok {
				s.apps = append(s.apps, name)
				break
			}
		}
	}
	return s.apps
}

// IsApp reports whether name is a known application package.
func (s *ProjectState) IsApp(ctx context.Context, name string) bool {
	for _, app := range s.Apps(ctx) {
		if app == name {
			return true
		}
	}
	return false
}

// SettingsPath resolves the project settings file. Falls back to the first
// candidate when none exists, so generated tasks still point somewhere
// sensible for the oracle to create.
func (s *ProjectState) SettingsPath(ctx context.Context) string {
	if s.settingsPath != "" {
		return s.settingsPath
	}
	for _, cand := range s.SettingsCandidates {
		if ok, _ := s.fs.Exists(ctx, cand); ok {
			s.settingsPath = cand
			return cand
		}
	}
	// A <project>/settings.py beside manage.py is the common layout.
	entries, _ := s.fs.ListDir(ctx, ".")
	for _, entry := range entries {
		if !entry.IsDir {
			continue
		}
		cand := path.Join(entry.Path, "settings.py")
		if ok, _ := s.fs.Exists(ctx, cand); ok {
			s.settingsPath = cand
			return cand
		}
	}
	s.settingsPath = s.SettingsCandidates[0]
	return s.settingsPath
}

// RootURLsPath resolves the top-level router file from the settings
// module's ROOT_URLCONF, falling back to a sibling urls.py of the settings
// file.
func (s *ProjectState) RootURLsPath(ctx context.Context) string {
	if s.rootURLs != "" {
		return s.rootURLs
	}
	settings := s.SettingsPath(ctx)
	if data, err := s.fs.ReadFile(ctx, settings); err == nil {
		if m := rootURLConfRe.FindSubmatch(data); m != nil {
			s.rootURLs = strings.ReplaceAll(string(m[1]), ".", "/") + ".py"
			return s.rootURLs
		}
	}
	s.rootURLs = path.Join(path.Dir(settings), "urls.py")
	return s.rootURLs
}

// AppFile returns the root-relative path of a conventional module inside
// an app (e.g. AppFile("shop", "urls.py") -> "shop/urls.py").
func (s *ProjectState) AppFile(app, name string) string {
	return path.Join(app, name)
}

// ReadFile reads a project file, returning "" when it does not exist.
func (s *ProjectState) ReadFile(ctx context.Context, p string) string {
	data, err := s.fs.ReadFile(ctx, p)
	if err != nil {
		return ""
	}
	return string(data)
}

// Exists reports whether a project file exists.
func (s *ProjectState) Exists(ctx context.Context, p string) bool {
	ok, _ := s.fs.Exists(ctx, p)
	return ok
}

// TemplatesDir returns the best directory to place a template for an app:
// the app's own templates directory when the app is known, otherwise the
// project-level one.
func (s *ProjectState) TemplatesDir(ctx context.Context, templateName string) string {
	if i := strings.IndexByte(templateName, '/'); i > 0 {
		if app := templateName[:i]; s.IsApp(ctx, app) {
			return path.Join(app, "templates")
		}
	}
	return "templates"
}
