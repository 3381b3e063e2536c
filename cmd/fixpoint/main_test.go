package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fixpoint-ai/fixpoint/internal/orchestrator"
)

func TestSessionExitCode(t *testing.T) {
	cases := []struct {
		name   string
		report *orchestrator.Report
		want   int
	}{
		{"success", &orchestrator.Report{Outcome: orchestrator.OutcomeSuccess}, 0},
		{"dry run", &orchestrator.Report{Outcome: orchestrator.OutcomeDryRun}, 0},
		{"no progress", &orchestrator.Report{Outcome: orchestrator.OutcomeNoProgress}, 2},
		{"progress made but not fixed", &orchestrator.Report{Outcome: orchestrator.OutcomeProgressMade}, 2},
		{"plan failed", &orchestrator.Report{Outcome: orchestrator.OutcomePlanFailed}, 2},
		{"execution failed", &orchestrator.Report{Outcome: orchestrator.OutcomeExecutionFailed}, 2},
		{"no report", nil, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, sessionExitCode(tc.report))
		})
	}
}
