package orchestrator

// Outcome is the terminal classification of a session or a single cycle.
type Outcome int

const (
	// OutcomeSuccess means the failing command now exits zero.
	OutcomeSuccess Outcome = iota
	// OutcomeProgressMade is cycle-level only: at least one pre-cycle
	// error signature vanished, so the session continues.
	OutcomeProgressMade
	// OutcomeNoProgress means no original error signature disappeared
	// this cycle. Terminal for the session.
	OutcomeNoProgress
	// OutcomePlanFailed means the planner produced no tasks for the
	// current error set.
	OutcomePlanFailed
	// OutcomeExecutionFailed means a task exhausted its oracle attempts
	// or a transaction could not be applied.
	OutcomeExecutionFailed
	// OutcomeDryRun means tasks were planned and reported only.
	OutcomeDryRun
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "SUCCESS"
	case OutcomeProgressMade:
		return "PROGRESS_MADE"
	case OutcomeNoProgress:
		return "NO_PROGRESS"
	case OutcomePlanFailed:
		return "PLAN_FAILED"
	case OutcomeExecutionFailed:
		return "EXECUTION_FAILED"
	case OutcomeDryRun:
		return "DRY_RUN"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the outcome ends a session.
func (o Outcome) Terminal() bool {
	return o != OutcomeProgressMade
}

// CycleReport records what one cycle did.
type CycleReport struct {
	Cycle       int
	Outcome     Outcome
	Tasks       []string
	ResolvedErr []string
	Remaining   int
}

// Report is the session summary handed back to the caller.
type Report struct {
	SessionID string
	Command   string
	Outcome   Outcome
	Cycles    []CycleReport
	// FinalErrors holds the most recent error summaries when the session
	// gave up, so the caller can explain the failure in terms of the
	// original errors.
	FinalErrors []string
	// FilesTouched lists every path modified or created across the
	// session, whether or not the changes survived rollback.
	FilesTouched []string
	// RolledBack is true when every change was reverted.
	RolledBack bool
}
