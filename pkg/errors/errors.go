// Package errors defines the classified error taxonomy for a check-in
// run. Every failure the orchestrator can meet maps to one of these
// types, and the retry layer uses Classify to decide between retrying
// and stopping. Raw driver errors are always wrapped, never surfaced
// directly to a notification sink.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Class partitions failures for the retry controller.
type Class int

const (
	// Recoverable failures may succeed on a later attempt.
	Recoverable Class = iota
	// Terminal failures stop the current operation immediately.
	Terminal
)

// ConfigError reports missing or invalid configuration. It fails the
// process before any browser session starts.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

// NewConfigError constructs a ConfigError for the given option name.
func NewConfigError(field, message string, err error) error {
	return &ConfigError{Field: field, Message: message, Err: err}
}

func (e *ConfigError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("config error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TransientSessionError reports a page interaction that failed for a
// reason expected to clear on retry: a timeout, an element not yet
// rendered, a navigation that landed short.
type TransientSessionError struct {
	Op  string
	Err error
}

// NewTransientError constructs a TransientSessionError for the given
// driver operation.
func NewTransientError(op string, err error) error {
	return &TransientSessionError{Op: op, Err: err}
}

func (e *TransientSessionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("transient session error during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transient session error: %v", e.Err)
}

// Unwrap exposes the underlying error.
func (e *TransientSessionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// AuthError reports a failed authentication. Lockout marks the
// account-locked variant, which no amount of retrying can fix.
type AuthError struct {
	Reason  string
	Lockout bool
	Err     error
}

// NewAuthError constructs a retriable AuthError.
func NewAuthError(reason string, err error) error {
	return &AuthError{Reason: reason, Err: err}
}

// NewLockoutError constructs a terminal AuthError for a locked account.
func NewLockoutError(reason string) error {
	return &AuthError{Reason: reason, Lockout: true}
}

func (e *AuthError) Error() string {
	if e == nil {
		return ""
	}
	if e.Lockout {
		return fmt.Sprintf("auth error: account locked: %s", e.Reason)
	}
	if e.Reason != "" {
		return fmt.Sprintf("auth error: %s", e.Reason)
	}
	return fmt.Sprintf("auth error: %v", e.Err)
}

// Unwrap exposes the underlying error.
func (e *AuthError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ChallengeError reports a security-question step that could not be
// resolved: the answer field is absent or submission failed outright.
type ChallengeError struct {
	Question string
	Message  string
	Err      error
}

// NewChallengeError constructs a ChallengeError.
func NewChallengeError(question, message string, err error) error {
	return &ChallengeError{Question: question, Message: message, Err: err}
}

func (e *ChallengeError) Error() string {
	if e == nil {
		return ""
	}
	if e.Question != "" {
		return fmt.Sprintf("challenge error [%s]: %s", e.Question, e.Message)
	}
	return fmt.Sprintf("challenge error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ChallengeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// StateInconsistencyError reports a check-in that was submitted but
// whose observable state did not change. Submission without a state
// change is never trusted as success.
type StateInconsistencyError struct {
	Expected string
	Actual   string
}

// NewStateError constructs a StateInconsistencyError.
func NewStateError(expected, actual string) error {
	return &StateInconsistencyError{Expected: expected, Actual: actual}
}

func (e *StateInconsistencyError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("state inconsistency: expected %s, page still shows %s", e.Expected, e.Actual)
}

// HumanizationError reports a failed browse or reply action. These are
// isolated per action and never abort the run.
type HumanizationError struct {
	Action string
	Err    error
}

// NewHumanizationError constructs a HumanizationError.
func NewHumanizationError(action string, err error) error {
	return &HumanizationError{Action: action, Err: err}
}

func (e *HumanizationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Action != "" {
		return fmt.Sprintf("humanization error on %s: %v", e.Action, e.Err)
	}
	return fmt.Sprintf("humanization error: %v", e.Err)
}

// Unwrap exposes the underlying error.
func (e *HumanizationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NotificationSinkError reports a delivery failure for one sink. It is
// logged and dropped; one sink's failure never blocks another's.
type NotificationSinkError struct {
	Sink string
	Err  error
}

// NewSinkError constructs a NotificationSinkError.
func NewSinkError(sink string, err error) error {
	return &NotificationSinkError{Sink: sink, Err: err}
}

func (e *NotificationSinkError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("notification sink %s: %v", e.Sink, e.Err)
}

// Unwrap exposes the underlying error.
func (e *NotificationSinkError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Classify maps an error to its retry class. Transient session and
// humanization failures are recoverable; locked accounts, unresolvable
// challenges, state inconsistencies, and configuration problems are
// terminal. Plain auth failures stay recoverable so the configured
// attempt budget applies; the budget itself turns them terminal.
func Classify(err error) Class {
	if err == nil {
		return Recoverable
	}

	var auth *AuthError
	if stderrors.As(err, &auth) {
		if auth.Lockout {
			return Terminal
		}
		return Recoverable
	}

	var transient *TransientSessionError
	var humanize *HumanizationError
	if stderrors.As(err, &transient) || stderrors.As(err, &humanize) {
		return Recoverable
	}

	var cfg *ConfigError
	var challenge *ChallengeError
	var state *StateInconsistencyError
	if stderrors.As(err, &cfg) || stderrors.As(err, &challenge) || stderrors.As(err, &state) {
		return Terminal
	}

	// Unknown errors default to recoverable so the attempt budget, not
	// the classification, bounds them.
	return Recoverable
}

// IsTerminal reports whether Classify considers err terminal.
func IsTerminal(err error) bool {
	return Classify(err) == Terminal
}

// IsLockout reports whether err is an account-lockout AuthError.
func IsLockout(err error) bool {
	var auth *AuthError
	return stderrors.As(err, &auth) && auth.Lockout
}
