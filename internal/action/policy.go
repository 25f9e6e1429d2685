// internal/action/policy.go

package action

import "time"

const (
	// ExplicitPoll is the cadence of an explicit wait.
	ExplicitPoll = 500 * time.Millisecond
	// FluentPoll is the fixed cadence of a fluent wait.
	FluentPoll = time.Second
)

// WaitPolicy controls a polling wait. Poll never exceeds Timeout.
type WaitPolicy struct {
	Name    string
	Timeout time.Duration
	Poll    time.Duration
	// Ignore lists probe failures that keep the wait polling instead of ending it.
	Ignore []FailureKind
}

// NewPolicy builds a policy, clamping poll to at most timeout. A zero timeout
// makes a single check.
func NewPolicy(name string, timeout, poll time.Duration, ignore ...FailureKind) WaitPolicy {
	if timeout < 0 {
		timeout = 0
	}
	if poll <= 0 {
		poll = ExplicitPoll
	}
	if poll > timeout {
		poll = timeout
	}
	return WaitPolicy{Name: name, Timeout: timeout, Poll: poll, Ignore: ignore}
}

// Explicit polls at the default cadence and keeps polling through stale
// elements. Any other probe failure ends the wait.
func Explicit(timeout time.Duration) WaitPolicy {
	return NewPolicy("explicit", timeout, ExplicitPoll, KindStale)
}

// Fluent polls once per second and also keeps polling through element-not-found.
func Fluent(timeout time.Duration) WaitPolicy {
	return NewPolicy("fluent", timeout, FluentPoll, KindNotFound, KindStale)
}

func (p WaitPolicy) ignores(k FailureKind) bool {
	for _, ig := range p.Ignore {
		if ig == k {
			return true
		}
	}
	return false
}
