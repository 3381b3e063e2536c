package oracle

import (
	"regexp"
	"strings"
)

var (
	fileBlockRe    = regexp.MustCompile(`(?s)<file\s+path="([^"]+)"\s*>\n?(.*?)</file>`)
	commandBlockRe = regexp.MustCompile(`(?s)<command>\n?(.*?)</command>`)
	fenceRe        = regexp.MustCompile("(?s)^```[a-zA-Z]*\n(.*)\n```$")
)

// ParseResponse extracts tagged content blocks from raw model output.
// File content keeps everything between the markers verbatim except for a
// markdown fence wrapped immediately inside the block, which models add
// despite instructions and which is never part of the file.
func ParseResponse(raw string) (*FixResponse, error) {
	resp := &FixResponse{Files: make(map[string]string)}

	for _, m := range fileBlockRe.FindAllStringSubmatch(raw, -1) {
		path := strings.TrimSpace(m[1])
		if path == "" {
			continue
		}
		resp.Files[path] = stripFence(m[2])
	}
	if m := commandBlockRe.FindStringSubmatch(raw); m != nil {
		resp.Command = strings.TrimSpace(stripFence(m[1]))
	}

	if len(resp.Files) == 0 && resp.Command == "" {
		return nil, ErrNoBlocks
	}
	return resp, nil
}

func stripFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if m := fenceRe.FindStringSubmatch(trimmed); m != nil {
		return m[1]
	}
	return strings.TrimSuffix(strings.TrimPrefix(content, "\n"), "\n")
}
