package analyzer

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Frame is one entry of a Python traceback.
type Frame struct {
	File     string
	Line     int
	Function string
}

var (
	frameRe = regexp.MustCompile(`(?m)^\s*File "([^"]+)", line (\d+)(?:, in (\S+))?`)
	// excRe matches the terminating "ExcClass: message" line of a traceback.
	// The class may carry a dotted module path.
	excRe = regexp.MustCompile(`(?m)^([A-Za-z_][\w.]*(?:Error|Exception|Exit|Interrupt|NotFound|DoesNotExist|NoReverseMatch|ImproperlyConfigured))(?::\s?(.*))?$`)
)

// parseTraceback extracts the stack frames and the final exception from a
// raw log chunk. Frames are returned outermost first, the way Python prints
// them; the deepest frame is the last element.
func parseTraceback(text string) (frames []Frame, excName, excMsg string) {
	for _, m := range frameRe.FindAllStringSubmatch(text, -1) {
		f := Frame{File: m[1], Function: m[3]}
		f.Line = atoiSafe(m[2])
		frames = append(frames, f)
	}
	// The exception line is the last match so chained tracebacks
	// ("during handling of the above exception") report the surfaced one.
	if ms := excRe.FindAllStringSubmatch(text, -1); len(ms) > 0 {
		last := ms[len(ms)-1]
		excName = last[1]
		excMsg = strings.TrimSpace(last[2])
	}
	return frames, excName, excMsg
}

// dependencyDirs are path segments that mark frames as third-party or
// interpreter code rather than project code.
var dependencyDirs = []string{
	"site-packages",
	"dist-packages",
	"lib/python",
	"venv",
	".venv",
	"node_modules",
	"importlib",
}

// inProject reports whether a frame's file lives inside the project root
// and outside dependency directories. Relative paths are assumed to be
// project-relative already.
func (a *Analyzer) inProject(path string) bool {
	norm := filepath.ToSlash(path)
	for _, dep := range dependencyDirs {
		if strings.Contains(norm, dep) {
			return false
		}
	}
	if !filepath.IsAbs(path) {
		return !strings.HasPrefix(norm, "/")
	}
	root := filepath.ToSlash(a.root)
	return root != "" && strings.HasPrefix(norm, root)
}

// relToRoot rewrites an absolute project path relative to the root so every
// downstream layer works with root-relative paths.
func (a *Analyzer) relToRoot(path string) string {
	if !filepath.IsAbs(path) || a.root == "" {
		return filepath.ToSlash(path)
	}
	if rel, err := filepath.Rel(a.root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(path)
}

// deepestProjectFrame walks frames from innermost to outermost and returns
// the first one inside the project, or nil.
func (a *Analyzer) deepestProjectFrame(frames []Frame) *Frame {
	for i := len(frames) - 1; i >= 0; i-- {
		if a.inProject(frames[i].File) {
			f := frames[i]
			f.File = a.relToRoot(f.File)
			return &f
		}
	}
	return nil
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}
