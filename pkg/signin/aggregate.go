package signin

import (
	"strings"
	"time"

	"github.com/lunarbay/rollcall/pkg/types"
)

// Process exit codes. Partial failure still exits zero because the
// check-in itself landed.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfig      = 2
	ExitInterrupted = 130
)

// Aggregate folds a run's step sequence into its execution summary.
// It is a pure function of its inputs; given the same sequence it
// always produces the same verdict.
func Aggregate(runID, account string, steps []types.StepResult, abort types.AbortReason, started, finished time.Time) types.ExecutionSummary {
	summary := types.ExecutionSummary{
		RunID:       runID,
		Account:     account,
		AbortReason: abort,
		Steps:       steps,
		StartedAt:   started,
		FinishedAt:  finished,
	}
	for _, s := range steps {
		summary.TotalRetries += s.Retries()
	}
	summary.Overall = overall(steps, abort)
	return summary
}

// overall derives the run verdict. Aborted runs fail outright.
// Otherwise the check-in step must have completed (or been validly
// skipped) with nothing outside the humanizing phase failed;
// humanizing failures alone downgrade success to partial failure.
func overall(steps []types.StepResult, abort types.AbortReason) types.OverallStatus {
	if abort != types.AbortNone {
		return types.RunFailure
	}

	checkinOK := false
	humanizeFailed := false
	for _, s := range steps {
		switch {
		case s.Step == types.StepCheckin:
			checkinOK = s.Status.Completed()
		case isHumanizeStep(s.Step):
			if s.Status == types.StepFailed {
				humanizeFailed = true
			}
		case s.Status == types.StepFailed:
			return types.RunFailure
		}
	}

	if !checkinOK {
		return types.RunFailure
	}
	if humanizeFailed {
		return types.RunPartialFailure
	}
	return types.RunSuccess
}

// isHumanizeStep reports whether a step name belongs to the
// humanizing phase, index suffixes included.
func isHumanizeStep(step string) bool {
	for _, name := range []string{types.StepHumanize, types.StepBrowse, types.StepReply} {
		if step == name || strings.HasPrefix(step, name+"-") {
			return true
		}
	}
	return false
}

// ExitCode maps a summary to the process exit code.
func ExitCode(summary types.ExecutionSummary) int {
	switch {
	case summary.AbortReason == types.AbortInterrupted:
		return ExitInterrupted
	case summary.Overall == types.RunFailure:
		return ExitFailure
	default:
		return ExitOK
	}
}
