package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/steveant/mgit/internal/errs"
)

// osExit is os.Exit indirected so tests can override it.
var osExit = os.Exit

// Exit codes per the CLI's external interface contract: 0 success, 1
// partial failure (at least one per-repository task failed), 2 usage
// error, 3 authentication error, 4 cancelled.
const (
	exitSuccess        = 0
	exitPartialFailure = 1
	exitUsageError     = 2
	exitAuthError      = 3
	exitCancelled      = 4
)

// exitCodeForErr maps a fatal command error to a process exit code. A
// context cancellation surfaces as exit 4 whether or not the call site
// wrapped it into an errs.EngineError first (an interrupt can abort
// Authenticate/ListRepositories/Plan before any bulk task ever starts, so
// there's no Summary yet to carry the Cancelled flag for this path).
func exitCodeForErr(err error) int {
	if errors.Is(err, context.Canceled) {
		return exitCancelled
	}

	kind, ok := errs.KindOf(err)
	if !ok {
		return exitUsageError
	}
	switch kind {
	case errs.KindAuthError:
		return exitAuthError
	case errs.KindCancelled:
		return exitCancelled
	case errs.KindConfigError, errs.KindProfileNotFound, errs.KindAmbiguousDefault,
		errs.KindInvalidQuery, errs.KindInvalidName, errs.KindNameCollision:
		return exitUsageError
	default:
		return exitUsageError
	}
}

// exitCodeForSummary maps a completed bulk run to a process exit code.
// Cancellation takes precedence over the failure count: a run stopped by
// an interrupt reports exit 4 even if some tasks had already failed.
// Otherwise, any per-repository failure degrades success to partial
// failure regardless of how many repositories succeeded.
func exitCodeForSummary(cancelled bool, failed int) int {
	switch {
	case cancelled:
		return exitCancelled
	case failed > 0:
		return exitPartialFailure
	default:
		return exitSuccess
	}
}
