package syntax

import (
	"path/filepath"
	"strings"
)

// DetectLanguage determines the language from a file extension. Returns ""
// for files the validator has no business parsing (templates, configs,
// plain text), which callers treat as "skip the syntax check".
func DetectLanguage(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py", ".pyw":
		return "python"
	case ".go":
		return "go"
	case ".ts":
		return "typescript"
	case ".js", ".mjs":
		return "javascript"
	case ".sh", ".bash":
		return "bash"
	default:
		return ""
	}
}
