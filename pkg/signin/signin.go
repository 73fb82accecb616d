// Package signin implements the session state machine: authenticate,
// resolve the security question, detect and perform the daily
// check-in, run the optional humanizing activities, and finalize into
// one execution summary. A run moves strictly sequentially through
// Init, Authenticating, ChallengeCheck, CheckinStateDetect,
// CheckingIn, Humanizing, and Finalizing; unrecoverable failures jump
// to an aborted terminal state instead. Whatever path a run takes,
// the browser session is torn down and the summary is dispatched
// exactly once.
package signin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lunarbay/rollcall/pkg/config"
	rcerrors "github.com/lunarbay/rollcall/pkg/errors"
	"github.com/lunarbay/rollcall/pkg/logging"
	"github.com/lunarbay/rollcall/pkg/retry"
	"github.com/lunarbay/rollcall/pkg/timing"
	"github.com/lunarbay/rollcall/pkg/types"
)

// checkinRetryBudget caps check-in submission attempts below the
// general retry budget. Repeated submissions read as abuse.
const checkinRetryBudget = 2

// SessionDriver is the complete page-automation capability a run
// needs. forum.Driver satisfies it; the orchestrator consumes the
// session-lifecycle subset directly and the humanizer drives the
// listing and reply methods.
type SessionDriver interface {
	Login(ctx context.Context) error
	ResolveChallenge(ctx context.Context) (types.ChallengeState, error)
	DetectCheckin(ctx context.Context) (types.CheckinState, error)
	SubmitCheckin(ctx context.Context) error

	OpenSection(ctx context.Context) error
	OpenSectionPage(ctx context.Context, page int) error
	NextPage(ctx context.Context) (bool, error)
	BrowsePage(ctx context.Context) error
	ListThreads(ctx context.Context) ([]types.Thread, error)
	OpenThread(ctx context.Context, thread types.Thread) error
	Reply(ctx context.Context, message string) error

	Screenshot(ctx context.Context) ([]byte, error)
	PageSource(ctx context.Context) (string, error)
	CurrentURL() string
	Close() error
}

// Humanizer is the optional activity phase.
type Humanizer interface {
	Enabled() bool
	Run(ctx context.Context) []types.StepResult
}

// Notifier receives the terminal summary. Dispatch must tolerate
// individual sink failure and never propagate it.
type Notifier interface {
	Dispatch(ctx context.Context, summary types.ExecutionSummary, artifacts types.Artifacts)
}

// Evidence captures page state for step artifacts.
type Evidence interface {
	CaptureFailure(ctx context.Context, step string) string
	CaptureSuccess(ctx context.Context, step string) string
	Artifacts() types.Artifacts
}

// Options wires an Orchestrator.
type Options struct {
	Driver    SessionDriver
	Humanizer Humanizer
	Notifier  Notifier
	Evidence  Evidence
	Config    *config.Config
	Policy    *timing.Policy
	Logger    *logging.Logger
	RunID     string
}

// Orchestrator owns one run end to end.
type Orchestrator struct {
	driver    SessionDriver
	humanizer Humanizer
	notifier  Notifier
	evidence  Evidence
	cfg       *config.Config
	pace      *timing.Policy
	log       *logging.Logger
	runID     string
}

// New builds an Orchestrator. Driver, Config, Policy, and Logger are
// required; Humanizer, Notifier, and Evidence may be nil.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		driver:    opts.Driver,
		humanizer: opts.Humanizer,
		notifier:  opts.Notifier,
		evidence:  opts.Evidence,
		cfg:       opts.Config,
		pace:      opts.Policy,
		log:       opts.Logger,
		runID:     opts.RunID,
	}
}

// Run drives the state machine under the configured wall-clock budget
// and returns the run's one execution summary. The driver is torn
// down and the summary dispatched on every path out.
func (o *Orchestrator) Run(parent context.Context) types.ExecutionSummary {
	started := time.Now()
	o.log.WithFields(map[string]any{
		"account": o.cfg.Site.Username,
		"timeout": o.cfg.Runtime.Timeout.String(),
	}).Info("run starting")

	ctx, cancel := context.WithTimeout(parent, o.cfg.Runtime.Timeout)
	defer cancel()
	// Close is idempotent; the defer covers panic paths.
	defer o.closeDriver()

	steps, abort := o.execute(ctx)
	summary := Aggregate(o.runID, o.cfg.Site.Username, steps, abort, started, time.Now())

	o.closeDriver()
	o.dispatch(context.WithoutCancel(parent), summary)

	o.log.WithFields(map[string]any{
		"overall":  string(summary.Overall),
		"retries":  summary.TotalRetries,
		"duration": summary.Duration().String(),
	}).Info("run finished")
	return summary
}

// execute walks the states in order and returns the recorded steps
// plus the abort reason, if any.
func (o *Orchestrator) execute(ctx context.Context) ([]types.StepResult, types.AbortReason) {
	var steps []types.StepResult

	login, err := o.authenticate(ctx)
	steps = append(steps, login)
	if err != nil {
		return steps, o.abortFor(ctx, err, types.AbortAuthFailed)
	}

	if err := o.pace.SettleAfterLogin(ctx); err != nil {
		return steps, o.abortFor(ctx, err, types.AbortTimeout)
	}

	challenge, err := o.resolveChallenge(ctx)
	steps = append(steps, challenge)
	if err != nil {
		return steps, o.abortFor(ctx, err, types.AbortChallengeUnresolvable)
	}

	detect, checkin := o.checkinPhase(ctx)
	steps = append(steps, detect, checkin)
	if err := ctx.Err(); err != nil {
		return steps, o.abortFor(ctx, err, types.AbortTimeout)
	}

	steps = append(steps, o.humanizePhase(ctx, checkin)...)
	if err := ctx.Err(); err != nil {
		return steps, o.abortFor(ctx, err, types.AbortTimeout)
	}

	return steps, types.AbortNone
}

// authenticate runs the login step under the configured retry budget.
func (o *Orchestrator) authenticate(ctx context.Context) (types.StepResult, error) {
	o.log.Info("authenticating")
	started := time.Now()

	ctrl := retry.New(retry.Options{
		MaxAttempts: o.cfg.Runtime.MaxRetries,
		Backoff:     o.pace.Backoff,
		Logger:      o.log,
	})
	attempts, err := ctrl.Do(ctx, types.StepLogin, o.driver.Login)

	result := types.StepResult{
		Step:     types.StepLogin,
		Status:   statusFor(attempts, err),
		Attempts: attempts,
		Duration: time.Since(started),
	}
	if err != nil {
		result.Error = err.Error()
		result.Artifact = o.captureFailure(ctx, types.StepLogin)
		o.log.Error(err, "authentication failed")
	}
	return result, err
}

// resolveChallenge runs the security-question step. Disabled means
// skipped; a prompt that differs from the configured question is a
// warning on a successful step, not a failure.
func (o *Orchestrator) resolveChallenge(ctx context.Context) (types.StepResult, error) {
	result := types.StepResult{Step: types.StepChallenge, Status: types.StepSkipped}
	if !o.cfg.Challenge.Enabled {
		o.log.Debug("security question disabled, skipping")
		return result, nil
	}

	started := time.Now()
	result.Attempts = 1

	state, err := o.driver.ResolveChallenge(ctx)
	result.Duration = time.Since(started)
	if err != nil {
		result.Status = types.StepFailed
		result.Error = err.Error()
		result.Artifact = o.captureFailure(ctx, types.StepChallenge)
		o.log.Error(err, "challenge unresolved")
		return result, err
	}

	result.Status = types.StepSuccess
	if state.Mismatch {
		result.Warning = fmt.Sprintf("page question %q does not match the configured question", state.Question)
	}
	return result, nil
}

// checkinPhase covers state detection and the guarded submission. The
// detect result always exists; the check-in result records skip,
// submission, or why submission was not attempted.
func (o *Orchestrator) checkinPhase(ctx context.Context) (types.StepResult, types.StepResult) {
	if !o.cfg.CheckinEnabled {
		o.log.Info("check-in disabled")
		return types.StepResult{Step: types.StepDetect, Status: types.StepSkipped},
			types.StepResult{Step: types.StepCheckin, Status: types.StepSkipped}
	}

	detect, state := o.detect(ctx)
	switch state {
	case types.CheckinAlreadyDone:
		o.log.Info("already checked in today")
		return detect, types.StepResult{Step: types.StepCheckin, Status: types.StepSkipped}
	case types.CheckinEligible:
		return detect, o.submitCheckin(ctx)
	default:
		// Submitting blind risks a double submission; the step fails
		// unattempted.
		return detect, types.StepResult{
			Step:   types.StepCheckin,
			Status: types.StepFailed,
			Error:  "not attempted: check-in state " + string(state),
		}
	}
}

// detect classifies the check-in state from the sign-in page.
func (o *Orchestrator) detect(ctx context.Context) (types.StepResult, types.CheckinState) {
	started := time.Now()
	result := types.StepResult{Step: types.StepDetect, Attempts: 1}

	state, err := o.driver.DetectCheckin(ctx)
	result.Duration = time.Since(started)

	switch {
	case err != nil:
		result.Status = types.StepFailed
		result.Error = err.Error()
		result.Artifact = o.captureFailure(ctx, types.StepDetect)
		o.log.Error(err, "check-in detection failed")
	case state == types.CheckinUnknown:
		result.Status = types.StepFailed
		result.Error = "check-in state could not be classified"
		result.Artifact = o.captureFailure(ctx, types.StepDetect)
	default:
		result.Status = types.StepSuccess
	}
	return result, state
}

// submitCheckin submits under the small check-in budget and trusts
// only an observed state change as success.
func (o *Orchestrator) submitCheckin(ctx context.Context) types.StepResult {
	started := time.Now()

	budget := o.cfg.Runtime.MaxRetries
	if budget > checkinRetryBudget {
		budget = checkinRetryBudget
	}
	ctrl := retry.New(retry.Options{
		MaxAttempts: budget,
		Backoff:     o.pace.Backoff,
		Logger:      o.log,
	})

	attempts, err := ctrl.Do(ctx, types.StepCheckin, func(ctx context.Context) error {
		if err := o.driver.SubmitCheckin(ctx); err != nil {
			return err
		}
		return o.verifyCheckin(ctx)
	})

	result := types.StepResult{
		Step:     types.StepCheckin,
		Status:   statusFor(attempts, err),
		Attempts: attempts,
		Duration: time.Since(started),
	}
	if err != nil {
		result.Error = err.Error()
		result.Artifact = o.captureFailure(ctx, types.StepCheckin)
		o.log.Error(err, "check-in failed")
		return result
	}

	result.Artifact = o.captureSuccess(ctx, types.StepCheckin)
	o.log.Info("check-in confirmed")
	return result
}

// verifyCheckin re-reads the page state after a submission. Anything
// short of a visible change to signed is a state inconsistency, which
// stops the step, never a resubmission.
func (o *Orchestrator) verifyCheckin(ctx context.Context) error {
	state, err := o.driver.DetectCheckin(ctx)
	if err != nil {
		return err
	}
	if state == types.CheckinAlreadyDone || state == types.CheckinCompleted {
		return nil
	}
	return rcerrors.NewStateError(string(types.CheckinAlreadyDone), string(state))
}

// humanizePhase runs the optional activities. Disabled, unavailable,
// or following a failed check-in, the whole phase records one skip.
func (o *Orchestrator) humanizePhase(ctx context.Context, checkin types.StepResult) []types.StepResult {
	skipped := []types.StepResult{{Step: types.StepHumanize, Status: types.StepSkipped}}

	if o.humanizer == nil || !o.humanizer.Enabled() {
		o.log.Debug("humanizing disabled")
		return skipped
	}
	if checkin.Status == types.StepFailed {
		// Cosmetic activity after a failed check-in only muddies the
		// report.
		o.log.Info("check-in failed, humanizing skipped")
		return skipped
	}
	if ctx.Err() != nil {
		return skipped
	}

	o.log.Info("humanizing phase starting")
	results := o.humanizer.Run(ctx)
	if len(results) == 0 {
		return skipped
	}
	return results
}

// dispatch hands the summary to the notifier exactly once per run.
func (o *Orchestrator) dispatch(ctx context.Context, summary types.ExecutionSummary) {
	arts := types.Artifacts{}
	if o.evidence != nil {
		arts = o.evidence.Artifacts()
	}
	if o.notifier == nil {
		o.log.Info("no notifier configured, summary stays local")
		return
	}
	o.notifier.Dispatch(ctx, summary, arts)
}

// closeDriver tears the browser session down. The driver's Close is
// idempotent, so the panic-guard defer and the normal path can both
// call it.
func (o *Orchestrator) closeDriver() {
	if o.driver == nil {
		return
	}
	if err := o.driver.Close(); err != nil {
		o.log.Error(err, "driver teardown failed")
	}
}

// abortFor picks the abort reason: an expired budget reads as
// timeout, a cancellation as interrupt, an auth-rooted error as
// auth-failed, anything else as the caller's fallback.
func (o *Orchestrator) abortFor(ctx context.Context, err error, fallback types.AbortReason) types.AbortReason {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return types.AbortTimeout
	case errors.Is(ctx.Err(), context.Canceled):
		return types.AbortInterrupted
	}

	var auth *rcerrors.AuthError
	if err != nil && errors.As(err, &auth) {
		return types.AbortAuthFailed
	}
	return fallback
}

// captureFailure records page evidence for a failed step.
func (o *Orchestrator) captureFailure(ctx context.Context, step string) string {
	if o.evidence == nil {
		return ""
	}
	return o.evidence.CaptureFailure(ctx, step)
}

// captureSuccess records page evidence for a landed check-in.
func (o *Orchestrator) captureSuccess(ctx context.Context, step string) string {
	if o.evidence == nil {
		return ""
	}
	return o.evidence.CaptureSuccess(ctx, step)
}

// statusFor maps a retry outcome to a step status.
func statusFor(attempts int, err error) types.StepStatus {
	switch {
	case err != nil:
		return types.StepFailed
	case attempts > 1:
		return types.StepRetried
	default:
		return types.StepSuccess
	}
}
