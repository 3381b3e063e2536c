package patch

import (
	"fmt"
	"regexp"
	"strings"
)

var diffMarkerRe = regexp.MustCompile(`(?m)^@@ -\d+(?:,\d+)? \+\d+(?:,\d+)? @@`)

// LooksLikeDiff reports whether content is a unified diff rather than a
// full file. The oracle is told to return complete files, but models
// sometimes answer with a diff anyway; those are rendered instead of
// being written verbatim.
func LooksLikeDiff(content string) bool {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "--- ") && !strings.HasPrefix(trimmed, "@@ ") {
		return false
	}
	return diffMarkerRe.MatchString(trimmed)
}

// Render applies patchText to original in memory and returns the patched
// content, without touching any file and without syntax checking. The
// boolean is true when the fuzzy pass placed the hunks.
func Render(original, patchText string) (string, bool, error) {
	fd, err := parsePatch(patchText)
	if err != nil {
		return "", false, err
	}
	patched, strictErr := applyStrict(original, fd)
	if strictErr == nil {
		return patched, false, nil
	}
	patched, err = applyFuzzy(original, fd)
	if err != nil {
		return "", false, fmt.Errorf("strict failed (%v); fuzzy failed: %w", strictErr, err)
	}
	return patched, true, nil
}
