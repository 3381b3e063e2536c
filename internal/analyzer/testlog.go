package analyzer

import (
	"regexp"
	"strings"

	"github.com/fixpoint-ai/fixpoint/internal/remedy"
)

// testBlockDelim separates per-test failure blocks in test-runner output.
const testBlockDelim = "======================================================================"

var (
	testHeaderRe = regexp.MustCompile(`^(FAIL|ERROR): (\S+)(?: \(([^)]+)\))?`)
	ranTestsRe   = regexp.MustCompile(`Ran (\d+) tests?`)
	failTallyRe  = regexp.MustCompile(`FAILED \(([^)]*)\)`)
	tallyPartRe  = regexp.MustCompile(`(failures|errors)=(\d+)`)
)

// analyzeTestRun splits a test-runner log into per-test failure blocks and
// produces one record per distinct failing test. Returns nil when the log
// does not look like test-runner output at all.
func (a *Analyzer) analyzeTestRun(command, output string) ([]*remedy.ErrorRecord, *remedy.TestSummary) {
	if !strings.Contains(output, testBlockDelim) {
		return nil, nil
	}

	summary := parseTestSummary(output)

	var records []*remedy.ErrorRecord
	seen := make(map[string]bool)

	blocks := strings.Split(output, testBlockDelim)
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		header := testHeaderRe.FindStringSubmatch(firstLine(block))
		if header == nil {
			continue
		}
		status, testName, testClass := header[1], header[2], header[3]
		testID := testName
		if testClass != "" {
			testID = testClass + "." + testName
		}

		frames, excName, excMsg := parseTraceback(block)
		kind := remedy.KindTestFailure
		if status == "ERROR" {
			// An errored test crashed in application code rather than
			// failing its assertion.
			kind = classifyException(excName, command)
			if kind == remedy.KindLogic {
				kind = remedy.KindTestFailure
			}
		}

		msg := excMsg
		if excName != "" {
			msg = baseExceptionName(excName) + ": " + excMsg
		}
		dedupKey := msg + "|" + testID
		if seen[dedupKey] {
			continue
		}
		seen[dedupKey] = true

		rec := &remedy.ErrorRecord{
			Kind:        kind,
			Message:     block,
			Summary:     testID + ": " + msg,
			Command:     command,
			TestContext: testID,
			AutoFixable: true,
		}
		if f := a.deepestProjectFrame(frames); f != nil {
			rec.FilePath = f.File
			rec.Line = f.Line
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, summary
	}
	return records, summary
}

func parseTestSummary(output string) *remedy.TestSummary {
	s := &remedy.TestSummary{}
	if m := ranTestsRe.FindStringSubmatch(output); m != nil {
		s.Ran = atoiSafe(m[1])
	}
	if m := failTallyRe.FindStringSubmatch(output); m != nil {
		for _, part := range tallyPartRe.FindAllStringSubmatch(m[1], -1) {
			switch part[1] {
			case "failures":
				s.Failures = atoiSafe(part[2])
			case "errors":
				s.Errors = atoiSafe(part[2])
			}
		}
	}
	if s.Ran == 0 && s.Failures == 0 && s.Errors == 0 {
		return nil
	}
	return s
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
