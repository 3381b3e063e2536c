package patch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// parsePatch parses a unified diff, tolerating missing file headers the way
// language models tend to emit them.
func parsePatch(patchText string) (*diff.FileDiff, error) {
	if !strings.HasPrefix(patchText, "---") && !strings.HasPrefix(patchText, "diff ") {
		patchText = "--- a/file\n+++ b/file\n" + patchText
	}
	fd, err := diff.ParseFileDiff([]byte(patchText))
	if err != nil {
		return nil, fmt.Errorf("parse unified diff: %w", err)
	}
	if len(fd.Hunks) == 0 {
		return nil, fmt.Errorf("diff contains no hunks")
	}
	sort.SliceStable(fd.Hunks, func(i, j int) bool {
		return fd.Hunks[i].OrigStartLine < fd.Hunks[j].OrigStartLine
	})
	return fd, nil
}

// hunkLines splits a hunk body into its original-side lines (context and
// deletions) and new-side lines (context and additions). "\ No newline"
// markers are dropped.
func hunkLines(body []byte) (orig, updated []string) {
	for _, line := range strings.Split(string(body), "\n") {
		if line == "" {
			continue
		}
		switch line[0] {
		case ' ':
			orig = append(orig, line[1:])
			updated = append(updated, line[1:])
		case '-':
			orig = append(orig, line[1:])
		case '+':
			updated = append(updated, line[1:])
		case '\\':
			// "\ No newline at end of file"
		}
	}
	return orig, updated
}

// applyStrict applies every hunk at its stated position, requiring each
// context and deletion line to match the original exactly. The first
// mismatch fails the whole attempt; the caller falls back to fuzzy
// matching.
func applyStrict(original string, fd *diff.FileDiff) (string, error) {
	lines := strings.Split(original, "\n")
	var out []string
	cursor := 0

	for _, hunk := range fd.Hunks {
		start := int(hunk.OrigStartLine) - 1
		if start < cursor || start > len(lines) {
			return "", fmt.Errorf("hunk at line %d overlaps or exceeds file (%d lines)",
				hunk.OrigStartLine, len(lines))
		}
		out = append(out, lines[cursor:start]...)
		cursor = start

		origSide, newSide := hunkLines(hunk.Body)
		for _, want := range origSide {
			if cursor >= len(lines) {
				return "", fmt.Errorf("hunk at line %d runs past end of file", hunk.OrigStartLine)
			}
			if lines[cursor] != want {
				return "", fmt.Errorf("context mismatch at line %d: have %q, patch expects %q",
					cursor+1, lines[cursor], want)
			}
			cursor++
		}
		out = append(out, newSide...)
	}

	out = append(out, lines[cursor:]...)
	return strings.Join(out, "\n"), nil
}
