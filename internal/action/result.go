// internal/action/result.go

package action

import (
	"errors"
	"fmt"
	"time"

	"github.com/xkilldash9x/uiharness/internal/browser"
	"github.com/xkilldash9x/uiharness/internal/session"
)

// Outcome is the terminal state of a wait or a wait-wrapped interaction.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeTimedOut
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimedOut:
		return "timed_out"
	default:
		return "failed"
	}
}

// FailureKind classifies what went wrong while probing or interacting.
type FailureKind int

const (
	KindNone FailureKind = iota
	KindNotFound
	KindStale
	KindSession
	KindDriver
)

func (k FailureKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotFound:
		return "not_found"
	case KindStale:
		return "stale"
	case KindSession:
		return "session"
	default:
		return "driver"
	}
}

// kindOf maps a driver error onto a FailureKind.
func kindOf(err error) FailureKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, browser.ErrElementNotFound):
		return KindNotFound
	case errors.Is(err, browser.ErrStaleElement):
		return KindStale
	case errors.Is(err, session.ErrNoSession), errors.Is(err, browser.ErrDriverClosed):
		return KindSession
	default:
		return KindDriver
	}
}

// Result reports how a wait ended. Polling never panics or returns an error;
// callers branch on Outcome instead.
type Result struct {
	Outcome  Outcome
	Kind     FailureKind
	Err      error
	Attempts int
	Elapsed  time.Duration
}

// OK reports whether the condition was met.
func (r Result) OK() bool { return r.Outcome == OutcomeSuccess }

// TimedOut reports whether the policy timeout passed before the condition held.
// Err then carries the last ignored probe error, if any.
func (r Result) TimedOut() bool { return r.Outcome == OutcomeTimedOut }

func (r Result) String() string {
	switch r.Outcome {
	case OutcomeFailed:
		return fmt.Sprintf("failed(%s) after %d attempts in %s: %v", r.Kind, r.Attempts, r.Elapsed, r.Err)
	default:
		return fmt.Sprintf("%s after %d attempts in %s", r.Outcome, r.Attempts, r.Elapsed)
	}
}

func failed(err error, attempts int, elapsed time.Duration) Result {
	return Result{Outcome: OutcomeFailed, Kind: kindOf(err), Err: err, Attempts: attempts, Elapsed: elapsed}
}
