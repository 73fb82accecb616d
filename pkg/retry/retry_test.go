package retry

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rcerrors "github.com/lunarbay/rollcall/pkg/errors"
)

func TestDoSucceedsFirstAttempt(t *testing.T) {
	c := New(Options{MaxAttempts: 3})

	attempts, err := c.Do(context.Background(), "login", func(context.Context) error {
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	c := New(Options{MaxAttempts: 3})

	calls := 0
	attempts, err := c.Do(context.Background(), "login", func(context.Context) error {
		calls++
		if calls < 3 {
			return rcerrors.NewTransientError("submit", stderrors.New("flaky"))
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsBudget(t *testing.T) {
	c := New(Options{MaxAttempts: 3})

	opErr := rcerrors.NewAuthError("bad credentials", nil)
	attempts, err := c.Do(context.Background(), "login", func(context.Context) error {
		return opErr
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	// The classified error comes back unwrapped, without any
	// retry-internal marker in its text.
	assert.Equal(t, opErr.Error(), err.Error())

	var auth *rcerrors.AuthError
	assert.True(t, stderrors.As(err, &auth))
}

func TestDoStopsOnTerminal(t *testing.T) {
	c := New(Options{MaxAttempts: 5})

	attempts, err := c.Do(context.Background(), "login", func(context.Context) error {
		return rcerrors.NewLockoutError("too many wrong passwords")
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "terminal errors must not consume the budget")
	assert.True(t, rcerrors.IsLockout(err))
}

func TestDoTerminalAfterRecoverable(t *testing.T) {
	c := New(Options{MaxAttempts: 5})

	calls := 0
	attempts, err := c.Do(context.Background(), "checkin", func(context.Context) error {
		calls++
		if calls == 1 {
			return rcerrors.NewTransientError("submit", stderrors.New("timeout"))
		}
		return rcerrors.NewStateError("completed", "eligible")
	})

	require.Error(t, err)
	assert.Equal(t, 2, attempts)

	var state *rcerrors.StateInconsistencyError
	assert.True(t, stderrors.As(err, &state))
}

func TestDoRespectsContextCancellation(t *testing.T) {
	c := New(Options{
		MaxAttempts: 10,
		Backoff:     func(int) time.Duration { return time.Hour },
	})

	ctx, cancel := context.WithCancel(context.Background())

	attempts, err := c.Do(ctx, "login", func(context.Context) error {
		cancel()
		return rcerrors.NewTransientError("nav", stderrors.New("slow"))
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts, "the backoff wait must observe cancellation")
}

func TestNewNormalizesBudget(t *testing.T) {
	assert.Equal(t, 1, New(Options{MaxAttempts: 0}).MaxAttempts())
	assert.Equal(t, 1, New(Options{MaxAttempts: -4}).MaxAttempts())
	assert.Equal(t, 7, New(Options{MaxAttempts: 7}).MaxAttempts())
}

func TestDoUsesSuppliedClassifier(t *testing.T) {
	sentinel := stderrors.New("always stop")
	c := New(Options{
		MaxAttempts: 5,
		Classify: func(err error) rcerrors.Class {
			if stderrors.Is(err, sentinel) {
				return rcerrors.Terminal
			}
			return rcerrors.Recoverable
		},
	})

	attempts, err := c.Do(context.Background(), "custom", func(context.Context) error {
		return sentinel
	})

	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, attempts)
}
