// Package patch applies oracle-produced unified diffs to files with a
// two-tier strategy: a strict pass that requires exact context, and a fuzzy
// fallback that slides each hunk to the best-matching window. Either way,
// the result of patching a source file must still parse; a patch that
// breaks the syntax never reaches disk.
package patch

import (
	"context"
	"fmt"

	"github.com/fixpoint-ai/fixpoint/internal/fs"
	"github.com/fixpoint-ai/fixpoint/internal/logger"
	"github.com/fixpoint-ai/fixpoint/internal/syntax"
)

// Result describes a successful patch application.
type Result struct {
	Path string
	// Fuzzy is true when the strict pass failed and the fuzzy pass placed
	// the hunks.
	Fuzzy bool
	// Before and After carry the file content around the change so the
	// caller can render a diff for the user. Populated on fuzzy success,
	// where the applied change differs from what the patch literally said.
	Before string
	After  string
}

// SyntaxError is returned when a patch applied cleanly but left the file
// unparseable. The file on disk is untouched.
type SyntaxError struct {
	Path   string
	Errors []syntax.Error
}

func (e *SyntaxError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("patched %s no longer parses: line %d: %s",
			e.Path, e.Errors[0].Line, e.Errors[0].Message)
	}
	return fmt.Sprintf("patched %s no longer parses", e.Path)
}

// Engine applies patches against a filesystem.
type Engine struct {
	fs        fs.FileSystem
	validator *syntax.Validator
}

// NewEngine creates a patch engine.
func NewEngine(filesystem fs.FileSystem, validator *syntax.Validator) *Engine {
	return &Engine{fs: filesystem, validator: validator}
}

// Apply patches the file at path. Strict application is attempted first;
// on any hunk mismatch the fuzzy pass takes over. The patched content is
// syntax-checked before it is written; an invalid result leaves the file
// at its pre-patch content and fails the call regardless of how confident
// the fuzzy match was.
func (e *Engine) Apply(ctx context.Context, path, patchText string) (*Result, error) {
	data, err := e.fs.ReadFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	original := string(data)

	patched, fuzzy, err := Render(original, patchText)
	if err != nil {
		return nil, err
	}
	if fuzzy {
		logger.Debug("patch: strict application of %s failed, hunks placed fuzzily", path)
	}

	if lang := syntax.DetectLanguage(path); lang != "" && e.validator != nil && e.validator.Supports(lang) {
		result, err := e.validator.Validate(patched, lang)
		if err != nil {
			return nil, fmt.Errorf("validate %s: %w", path, err)
		}
		if !result.Valid {
			return nil, &SyntaxError{Path: path, Errors: result.Errors}
		}
	}

	if err := e.fs.WriteFile(ctx, path, []byte(patched)); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}

	res := &Result{Path: path, Fuzzy: fuzzy}
	if fuzzy {
		res.Before = original
		res.After = patched
	}
	return res, nil
}
