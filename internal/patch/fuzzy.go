package patch

import (
	"fmt"
	"strings"

	"github.com/fixpoint-ai/fixpoint/internal/logger"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"
)

// FuzzyThreshold is the minimum similarity between a hunk's original lines
// and the best-matching window in the current file for the hunk to be
// applied at that window.
const FuzzyThreshold = 0.8

// ErrLowConfidence is returned when no window in the file matches a hunk
// well enough to splice it in.
var ErrLowConfidence = fmt.Errorf("no window matches hunk with similarity >= %.1f", FuzzyThreshold)

// applyFuzzy applies every hunk by sliding a window of the hunk's
// original-line count across the current file and splicing at the
// best-scoring position. The hunk's stated line numbers are ignored: files
// drift between the oracle reading them and the patch arriving, and the
// window score is the authority on placement.
func applyFuzzy(original string, fd *diff.FileDiff) (string, error) {
	lines := splitLines(original)

	for _, hunk := range fd.Hunks {
		origSide, newSide := hunkLines(hunk.Body)

		if len(origSide) == 0 {
			// Pure insertion: trust the stated position, clamped.
			at := int(hunk.OrigStartLine) - 1
			if at < 0 {
				at = 0
			}
			if at > len(lines) {
				at = len(lines)
			}
			lines = splice(lines, at, 0, newSide)
			continue
		}

		bestPos, bestScore := -1, 0.0
		for pos := 0; pos+len(origSide) <= len(lines); pos++ {
			window := lines[pos : pos+len(origSide)]
			score := difflib.NewMatcher(window, origSide).Ratio()
			if score > bestScore {
				bestPos, bestScore = pos, score
			}
		}
		if bestPos < 0 || bestScore < FuzzyThreshold {
			logger.Debug("patch: fuzzy best score %.3f below threshold for hunk @%d",
				bestScore, hunk.OrigStartLine)
			return "", ErrLowConfidence
		}
		logger.Debug("patch: fuzzy hunk @%d placed at line %d (score %.3f)",
			hunk.OrigStartLine, bestPos+1, bestScore)
		lines = splice(lines, bestPos, len(origSide), newSide)
	}

	return joinLines(lines), nil
}

func splice(lines []string, at, remove int, insert []string) []string {
	out := make([]string, 0, len(lines)-remove+len(insert))
	out = append(out, lines[:at]...)
	out = append(out, insert...)
	out = append(out, lines[at+remove:]...)
	return out
}

func splitLines(s string) []string { return strings.Split(s, "\n") }

func joinLines(lines []string) string { return strings.Join(lines, "\n") }
