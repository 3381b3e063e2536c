// Package oracle is the engine's interface to the external code-fix model.
// The orchestrator hands it a task description, the current content of the
// files to fix, and the raw error text; the oracle answers with tagged
// content blocks, one per requested file, or a corrected command for
// command-fix tasks. Validating the returned file set against the request
// is the orchestrator's job, not this package's.
package oracle

import (
	"context"
	"errors"
)

// FixRequest is one attempt at one task.
type FixRequest struct {
	// Description is the planner's natural-language instruction.
	Description string
	// Files maps each file the oracle must return to its current content.
	// Missing files are represented with empty content and listed in
	// CreatePaths.
	Files map[string]string
	// CreatePaths are requested files that do not exist yet.
	CreatePaths []string
	// ErrorText is the raw failure output, pre-truncated by the request
	// builder.
	ErrorText string
	// ProjectTree is a compact listing of the project for orientation.
	ProjectTree string
	// Feedback accumulates correction notes from earlier failed attempts
	// at the same task.
	Feedback []string
	// WantCommand is true for command-fix tasks; the oracle answers with
	// a single corrected command instead of file blocks.
	WantCommand bool
}

// FixResponse is the parsed oracle answer.
type FixResponse struct {
	// Files maps returned file paths to their full replacement content.
	Files map[string]string
	// Command is the corrected command for command-fix tasks.
	Command string
}

// ErrNoBlocks is returned when the model's answer contains no recognizable
// tagged blocks at all.
var ErrNoBlocks = errors.New("oracle response contains no tagged content blocks")

// Oracle produces fixes.
type Oracle interface {
	// ProposeFix sends one fix request and parses the tagged response.
	ProposeFix(ctx context.Context, req *FixRequest) (*FixResponse, error)
	// Name identifies the backing provider for logs and metrics.
	Name() string
}
