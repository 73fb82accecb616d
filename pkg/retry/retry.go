// Package retry bounds fallible steps with a fixed attempt budget,
// classified stop conditions, and policy-driven backoff. Terminal
// failures stop immediately no matter how much budget remains;
// recoverable failures retry until the budget runs out, and the final
// error is always the classified error from the last attempt, never a
// bare low-level one.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	rcerrors "github.com/lunarbay/rollcall/pkg/errors"
	"github.com/lunarbay/rollcall/pkg/logging"
)

// BackoffFunc maps a 1-based attempt index to the delay before the
// next attempt. The timing policy's Backoff method satisfies it.
type BackoffFunc func(attempt int) time.Duration

// Options configures a Controller.
type Options struct {
	// MaxAttempts is the total invocation budget, floored at 1.
	MaxAttempts int

	// Classify decides recoverable versus terminal. Nil means the
	// shared taxonomy classifier.
	Classify func(error) rcerrors.Class

	// Backoff supplies inter-attempt delays. Nil means no delay.
	Backoff BackoffFunc

	// Logger receives per-attempt warnings. Nil disables them.
	Logger *logging.Logger
}

// Controller executes operations under one retry discipline. Build
// one per budget (authentication and check-in use different budgets).
type Controller struct {
	maxAttempts int
	classify    func(error) rcerrors.Class
	backoff     BackoffFunc
	log         *logging.Logger
}

// New constructs a Controller, normalizing the attempt floor.
func New(opts Options) *Controller {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Classify == nil {
		opts.Classify = rcerrors.Classify
	}
	return &Controller{
		maxAttempts: opts.MaxAttempts,
		classify:    opts.Classify,
		backoff:     opts.Backoff,
		log:         opts.Logger,
	}
}

// MaxAttempts returns the normalized budget.
func (c *Controller) MaxAttempts() int {
	return c.maxAttempts
}

// Do runs op until it succeeds, turns terminal, exhausts the budget,
// or the context ends. It reports how many times op actually ran
// together with the final classified error, nil on success.
func (c *Controller) Do(ctx context.Context, step string, op func(context.Context) error) (int, error) {
	attempts := 0
	var lastErr error

	backoff := retry.WithMaxRetries(uint64(c.maxAttempts-1), retry.BackoffFunc(func() (time.Duration, bool) {
		if c.backoff == nil {
			return 0, false
		}
		return c.backoff(attempts), false
	}))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		opErr := op(ctx)
		if opErr == nil {
			lastErr = nil
			return nil
		}
		lastErr = opErr
		if c.classify(opErr) == rcerrors.Terminal {
			c.logAttempt(step, attempts, opErr, false)
			return opErr
		}
		c.logAttempt(step, attempts, opErr, attempts < c.maxAttempts)
		return retry.RetryableError(opErr)
	})

	switch {
	case err == nil:
		return attempts, nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		// The run budget ending mid-wait outranks whatever the last
		// attempt reported.
		return attempts, err
	case lastErr != nil:
		// Strip the retryable marker so step reports carry the
		// classified error, not the wrapper.
		return attempts, lastErr
	default:
		return attempts, err
	}
}

func (c *Controller) logAttempt(step string, attempt int, err error, willRetry bool) {
	if c.log == nil {
		return
	}
	l := c.log.WithFields(map[string]any{
		"step":    step,
		"attempt": attempt,
		"budget":  c.maxAttempts,
	})
	if willRetry {
		l.Error(err, "attempt failed, retrying")
		return
	}
	l.Error(err, "attempt failed")
}
