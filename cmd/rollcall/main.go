// Package main is the rollcall command. One invocation performs one
// check-in session against the configured forum, reports the outcome,
// and exits with a code schedulers can act on.
package main

import (
	"errors"
	"fmt"
	"os"

	rcerrors "github.com/lunarbay/rollcall/pkg/errors"
	"github.com/lunarbay/rollcall/pkg/signin"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a command error onto the exit contract: config
// problems are distinguishable from run failures, and an interrupt
// keeps its conventional code.
func exitCodeFor(err error) int {
	var outcome *runOutcomeError
	if errors.As(err, &outcome) {
		return outcome.code
	}
	var cfgErr *rcerrors.ConfigError
	if errors.As(err, &cfgErr) {
		return signin.ExitConfig
	}
	return signin.ExitFailure
}
