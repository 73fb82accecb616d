// Package types defines the shared value types that flow between the
// session orchestrator, the humanizer, the result aggregator, and the
// notification dispatcher. Everything here is passive data: no I/O, no
// side effects, safe to construct in tests.
package types

import "time"

// StepStatus describes the outcome of a single orchestrated step.
type StepStatus string

const (
	StepSuccess StepStatus = "success" // StepSuccess indicates the step completed on the first attempt.
	StepSkipped StepStatus = "skipped" // StepSkipped indicates the step was intentionally not executed.
	StepRetried StepStatus = "retried" // StepRetried indicates the step succeeded after more than one attempt.
	StepFailed  StepStatus = "failed"  // StepFailed indicates the step did not complete successfully.
)

// Completed reports whether the status counts as a completed outcome
// for overall-status purposes (success, retried success, or an
// intentional skip).
func (s StepStatus) Completed() bool {
	return s == StepSuccess || s == StepRetried || s == StepSkipped
}

// Canonical step names recorded in the execution sequence. Humanizer
// actions append an index suffix past the first (for example
// "reply-2"); the bare "humanize" name records only a skip of the
// whole phase.
const (
	StepLogin     = "login"
	StepChallenge = "challenge"
	StepDetect    = "checkin-detect"
	StepCheckin   = "checkin"
	StepHumanize  = "humanize"
	StepBrowse    = "browse"
	StepReply     = "reply"
)

// CheckinState classifies the daily check-in as observed on the page.
type CheckinState string

const (
	CheckinUnknown     CheckinState = "unknown"      // CheckinUnknown means the page gave no usable signal.
	CheckinAlreadyDone CheckinState = "already-done" // CheckinAlreadyDone means today's check-in happened earlier.
	CheckinEligible    CheckinState = "eligible"     // CheckinEligible means the check-in can be submitted now.
	CheckinCompleted   CheckinState = "completed"    // CheckinCompleted means this run submitted and verified the check-in.
	CheckinFailed      CheckinState = "failed"       // CheckinFailed means submission was attempted but could not be verified.
)

// OverallStatus is the run-level verdict derived from the step sequence.
type OverallStatus string

const (
	RunSuccess        OverallStatus = "success"         // RunSuccess means the check-in goal was achieved (or validly skipped).
	RunPartialFailure OverallStatus = "partial-failure" // RunPartialFailure means check-in succeeded but humanizing actions failed.
	RunFailure        OverallStatus = "failure"         // RunFailure means the primary goal was not achieved.
)

// AbortReason names why a run left the state machine early.
type AbortReason string

const (
	AbortNone                  AbortReason = ""                       // AbortNone means the run reached Finalizing normally.
	AbortAuthFailed            AbortReason = "auth-failed"            // AbortAuthFailed means authentication exhausted its retry budget.
	AbortChallengeUnresolvable AbortReason = "challenge-unresolvable" // AbortChallengeUnresolvable means the security question could not be answered.
	AbortTimeout               AbortReason = "timeout"                // AbortTimeout means the wall-clock budget expired mid-run.
	AbortInterrupted           AbortReason = "interrupted"            // AbortInterrupted means the process received a stop signal mid-run.
)

// StepResult records one step of a run. Results are immutable once
// appended; their order in ExecutionSummary.Steps equals execution
// order.
type StepResult struct {
	// Step is the canonical step name, optionally index-suffixed.
	Step string `json:"step" yaml:"step"`

	// Status is the step outcome.
	Status StepStatus `json:"status" yaml:"status"`

	// Attempts counts how many times the underlying operation ran.
	// Skipped steps record zero.
	Attempts int `json:"attempts" yaml:"attempts"`

	// Duration is the wall-clock time spent on the step.
	Duration time.Duration `json:"duration" yaml:"duration"`

	// Error holds the human-readable failure detail, empty on success.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// Warning holds a non-fatal anomaly observed during a successful
	// step, such as a security question that differs from the
	// configured text.
	Warning string `json:"warning,omitempty" yaml:"warning,omitempty"`

	// Artifact references a file captured for this step (screenshot or
	// HTML dump), when one exists.
	Artifact string `json:"artifact,omitempty" yaml:"artifact,omitempty"`
}

// Retries returns the number of extra attempts beyond the first.
func (r StepResult) Retries() int {
	if r.Attempts > 1 {
		return r.Attempts - 1
	}
	return 0
}

// ChallengeState is the resolved security-question step for a run.
// It is resolved at most once, before the check-in.
type ChallengeState struct {
	// Present reports whether the page showed a security question.
	Present bool `json:"present" yaml:"present"`

	// Question is the prompt text found on the page.
	Question string `json:"question,omitempty" yaml:"question,omitempty"`

	// Answer is the answer that was submitted. Masked before logging.
	Answer string `json:"-" yaml:"-"`

	// Mismatch reports that the page prompt did not match the
	// configured question text. The configured answer is submitted
	// anyway and the step records a warning.
	Mismatch bool `json:"mismatch,omitempty" yaml:"mismatch,omitempty"`
}

// Artifacts references the files captured for a run that notification
// sinks may attach. Empty references mean the artifact was not
// captured; payloads degrade, they never fail.
type Artifacts struct {
	// LogFile is the run's log file path.
	LogFile string `json:"log_file,omitempty" yaml:"log_file,omitempty"`

	// Screenshot is the most recent screenshot path.
	Screenshot string `json:"screenshot,omitempty" yaml:"screenshot,omitempty"`

	// HTMLDump is the most recent sanitized page dump path.
	HTMLDump string `json:"html_dump,omitempty" yaml:"html_dump,omitempty"`
}

// Thread is a discoverable reply target on a forum listing page.
type Thread struct {
	// Title is the visible thread title.
	Title string `json:"title" yaml:"title"`

	// URL is the absolute thread URL.
	URL string `json:"url" yaml:"url"`
}

// ExecutionSummary is the terminal aggregate of one run. Exactly one
// summary exists per run; the notification dispatcher consumes it and
// nothing persists it beyond log and artifact files.
type ExecutionSummary struct {
	// RunID identifies the run in logs and artifact names.
	RunID string `json:"run_id" yaml:"run_id"`

	// Account is the site username the run acted for. Never a secret.
	Account string `json:"account" yaml:"account"`

	// Overall is the run-level verdict.
	Overall OverallStatus `json:"overall" yaml:"overall"`

	// AbortReason is set when the run left the state machine early.
	AbortReason AbortReason `json:"abort_reason,omitempty" yaml:"abort_reason,omitempty"`

	// Steps is the ordered step sequence, execution order preserved.
	Steps []StepResult `json:"steps" yaml:"steps"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`

	// TotalRetries sums the extra attempts across all steps.
	TotalRetries int `json:"total_retries" yaml:"total_retries"`
}

// Duration returns the wall-clock span of the run.
func (s ExecutionSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Step returns the first result with the given step name and true,
// or a zero result and false when the step never ran.
func (s ExecutionSummary) Step(name string) (StepResult, bool) {
	for _, r := range s.Steps {
		if r.Step == name {
			return r, true
		}
	}
	return StepResult{}, false
}
