package oracle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// maxErrorTokens bounds how much raw error text goes into one prompt; logs
// from a wedged test run can be enormous and the useful part is at the end.
const maxErrorTokens = 4000

const systemPrompt = `You are an automated code-repair assistant embedded in a build pipeline.
You receive a task description, the current content of a fixed set of files, and the raw error output.
Respond ONLY with tagged blocks:
- one <file path="relative/path">...full new file content...</file> block per requested file, or
- a single <command>corrected command</command> block when asked for a corrected command.
Return every requested file, byte-complete, even ones you leave unchanged. Never return files that were not requested. No prose outside the blocks.`

// BuildPrompt renders a fix request into the user prompt sent to the
// provider. The error text is token-bounded from the tail; everything else
// goes in whole, since the file set is already the planner's minimal
// contract.
func BuildPrompt(req *FixRequest) string {
	var b strings.Builder

	b.WriteString("## Task\n")
	b.WriteString(req.Description)
	b.WriteString("\n\n")

	if req.ProjectTree != "" {
		b.WriteString("## Project layout\n")
		b.WriteString(req.ProjectTree)
		b.WriteString("\n")
	}

	if req.WantCommand {
		b.WriteString("## Failing command\nRespond with a single <command> block.\n\n")
	} else {
		b.WriteString("## Files\n")
		paths := make([]string, 0, len(req.Files))
		for p := range req.Files {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			content := req.Files[p]
			if content == "" && contains(req.CreatePaths, p) {
				fmt.Fprintf(&b, "### %s\n(this file does not exist yet; create it)\n\n", p)
				continue
			}
			fmt.Fprintf(&b, "### %s\n```\n%s\n```\n\n", p, content)
		}
	}

	b.WriteString("## Error output\n```\n")
	b.WriteString(TruncateTokens(req.ErrorText, maxErrorTokens))
	b.WriteString("\n```\n")

	if len(req.Feedback) > 0 {
		b.WriteString("\n## Corrections from previous attempts\n")
		for _, f := range req.Feedback {
			b.WriteString("- " + f + "\n")
		}
	}
	return b.String()
}

// SystemPrompt returns the provider-independent system prompt.
func SystemPrompt() string { return systemPrompt }

// TruncateTokens keeps the last maxTokens tokens of text. Truncation takes
// the tail because tracebacks put the failure at the bottom. Falls back to
// a character bound when no encoding is available.
func TruncateTokens(text string, maxTokens int) string {
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		if len(text) > maxTokens*4 {
			return text[len(text)-maxTokens*4:]
		}
		return text
	}
	tokens := encoder.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return encoder.Decode(tokens[len(tokens)-maxTokens:])
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
