//go:build cgo

// Package syntax validates source files with tree-sitter. The patch engine
// and the orchestrator both refuse to put a file on disk that no longer
// parses, so this package is the last guardrail in front of every applied
// fix.
package syntax

import (
	"fmt"
	"strings"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_bash "github.com/tree-sitter/tree-sitter-bash/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// Validator parses code with per-language tree-sitter grammars.
type Validator struct {
	languages map[string]unsafe.Pointer
}

// Error is a single syntax error found during validation.
type Error struct {
	Line    int
	Column  int
	Message string
}

// Result is the outcome of validating one piece of code.
type Result struct {
	Valid    bool
	Errors   []Error
	Language string
}

// NewValidator creates a validator for the grammars the engine ships.
func NewValidator() *Validator {
	return &Validator{
		languages: map[string]unsafe.Pointer{
			"python":     tree_sitter_python.Language(),
			"go":         tree_sitter_go.Language(),
			"typescript": tree_sitter_typescript.LanguageTypescript(),
			"javascript": tree_sitter_typescript.LanguageTypescript(),
			"bash":       tree_sitter_bash.Language(),
		},
	}
}

// Supports reports whether the language has a grammar.
func (v *Validator) Supports(language string) bool {
	_, ok := v.languages[strings.ToLower(strings.TrimSpace(language))]
	return ok
}

// Validate parses code and collects error nodes. Unsupported languages are
// an error so callers can decide to skip the check rather than trust a
// vacuous pass.
func (v *Validator) Validate(code, language string) (*Result, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	if strings.TrimSpace(code) == "" {
		return &Result{Valid: true, Language: language}, nil
	}
	lang, ok := v.languages[language]
	if !ok {
		return nil, fmt.Errorf("no grammar for language %q", language)
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(tree_sitter.NewLanguage(lang)); err != nil {
		return nil, fmt.Errorf("set parser language: %w", err)
	}

	source := []byte(code)
	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("parser returned nil tree")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || !root.HasError() {
		return &Result{Valid: true, Language: language}, nil
	}

	errs := collectErrors(root, source)
	if len(errs) == 0 {
		pos := root.StartPosition()
		errs = append(errs, Error{
			Line:    int(pos.Row) + 1,
			Column:  int(pos.Column) + 1,
			Message: "syntax error",
		})
	}
	return &Result{Valid: false, Errors: errs, Language: language}, nil
}

func collectErrors(root *tree_sitter.Node, source []byte) []Error {
	var errs []Error

	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		if n == nil {
			return
		}
		kind := n.Kind()
		if kind == "ERROR" || strings.Contains(kind, "MISSING") {
			pos := n.StartPosition()
			errs = append(errs, Error{
				Line:    int(pos.Row) + 1,
				Column:  int(pos.Column) + 1,
				Message: errorMessage(n, source, kind),
			})
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return errs
}

func errorMessage(n *tree_sitter.Node, source []byte, kind string) string {
	start, end := n.StartByte(), n.EndByte()
	var snippet string
	if start < end && end <= uint(len(source)) {
		snippet = string(source[start:end])
		if len(snippet) > 50 {
			snippet = snippet[:50] + "..."
		}
		snippet = strings.ReplaceAll(snippet, "\n", "\\n")
	}
	if strings.Contains(kind, "MISSING") {
		return "missing token"
	}
	if snippet != "" {
		return fmt.Sprintf("syntax error near %q", snippet)
	}
	return "syntax error"
}
