// internal/action/wait.go

package action

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/uiharness/internal/browser"
)

// minProbeBudget is the least time a single probe gets, so a zero-timeout
// policy still makes one real check instead of probing with an expired context.
const minProbeBudget = time.Second

// condition is a predicate over a probed element state.
type condition struct {
	name string
	met  func(browser.ElementState) bool
}

var (
	condVisible   = condition{"visible", func(s browser.ElementState) bool { return s.Found && s.Visible }}
	condClickable = condition{"clickable", browser.ElementState.Clickable}
	condInvisible = condition{"invisible", func(s browser.ElementState) bool { return !s.Found || !s.Visible }}
)

// WaitUntilVisible polls until loc is present and displayed.
func (e *Engine) WaitUntilVisible(ctx context.Context, loc browser.Locator, p WaitPolicy) Result {
	return e.wait(ctx, loc, condVisible, p)
}

// WaitUntilClickable polls until loc is displayed and enabled.
func (e *Engine) WaitUntilClickable(ctx context.Context, loc browser.Locator, p WaitPolicy) Result {
	return e.wait(ctx, loc, condClickable, p)
}

// WaitUntilInvisible polls until loc is hidden or gone.
func (e *Engine) WaitUntilInvisible(ctx context.Context, loc browser.Locator, p WaitPolicy) Result {
	r := e.wait(ctx, loc, condInvisible, p)
	if r.TimedOut() && e.capturer != nil {
		e.capturer.CaptureError(ctx, e.sess, "isElementInvisible", nil)
	}
	return r
}

// wait runs the polling loop. It returns once cond holds, a probe fails with a
// kind the policy does not ignore, or the policy timeout has passed. With
// probes that answer promptly a wait that never succeeds ends within
// [Timeout, Timeout+Poll]; a hung probe is cut off after probeLimit. The
// caller's cancellation is not honoured; only its values are kept.
func (e *Engine) wait(ctx context.Context, loc browser.Locator, cond condition, p WaitPolicy) Result {
	ctx = browser.Detach(ctx)
	logger := e.logger.With(
		zap.Stringer("element", loc),
		zap.String("condition", cond.name),
		zap.String("policy", p.Name),
	)
	logger.Debug("Waiting for element.", zap.Duration("timeout", p.Timeout), zap.Duration("poll", p.Poll))

	start := time.Now()
	deadline := start.Add(p.Timeout)

	limiter := rate.NewLimiter(rate.Every(p.Poll), 1)
	limiter.Allow()

	pollCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var (
		attempts int
		lastErr  error
	)
	for {
		attempts++
		state, err := e.probe(ctx, loc, probeLimit(deadline, p.Poll))
		switch {
		case err == nil && cond.met(state):
			r := Result{Outcome: OutcomeSuccess, Attempts: attempts, Elapsed: time.Since(start)}
			e.metrics.ObserveWait(cond.name, r.Outcome.String(), r.Elapsed)
			logger.Debug("Element condition met.", zap.Int("attempts", attempts), zap.Duration("elapsed", r.Elapsed))
			return r
		case err != nil && !p.ignores(kindOf(err)) && time.Now().Before(deadline):
			r := failed(err, attempts, time.Since(start))
			e.metrics.ObserveWait(cond.name, r.Outcome.String(), r.Elapsed)
			logger.Warn("Element probe failed; aborting wait.", zap.Stringer("kind", r.Kind), zap.Error(err))
			return r
		case err != nil:
			lastErr = err
		}

		if !time.Now().Before(deadline) {
			r := Result{Outcome: OutcomeTimedOut, Attempts: attempts, Elapsed: time.Since(start), Err: lastErr}
			e.metrics.ObserveWait(cond.name, r.Outcome.String(), r.Elapsed)
			logger.Warn("Timed out waiting for element.", zap.Int("attempts", attempts), zap.Duration("elapsed", r.Elapsed))
			return r
		}

		// Wait refuses a reservation that would overrun the deadline; the last
		// check then happens at the deadline itself.
		if err := limiter.Wait(pollCtx); err != nil {
			sleepUntil(deadline)
		}
	}
}

// probe checks loc once, bounded by limit.
func (e *Engine) probe(ctx context.Context, loc browser.Locator, limit time.Time) (browser.ElementState, error) {
	if err := e.ready(); err != nil {
		return browser.ElementState{}, err
	}
	pctx, cancel := context.WithDeadline(ctx, limit)
	defer cancel()
	return e.driver.Probe(pctx, loc)
}

// probeLimit is the deadline for one probe: the later of deadline and now,
// plus at least minProbeBudget.
func probeLimit(deadline time.Time, poll time.Duration) time.Time {
	if now := time.Now(); now.After(deadline) {
		deadline = now
	}
	if poll < minProbeBudget {
		poll = minProbeBudget
	}
	return deadline.Add(poll)
}

func sleepUntil(t time.Time) {
	d := time.Until(t)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	<-timer.C
}

// WaitForPageLoad polls document.readyState until it is "complete" or timeout
// passes. Evaluation errors during navigation are retried.
func (e *Engine) WaitForPageLoad(ctx context.Context, timeout time.Duration) bool {
	ctx = browser.Detach(ctx)
	p := NewPolicy("page_load", timeout, ExplicitPoll)
	deadline := time.Now().Add(p.Timeout)

	limiter := rate.NewLimiter(rate.Every(p.Poll), 1)
	limiter.Allow()
	pollCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	for {
		var state string
		ectx, ecancel := context.WithDeadline(ctx, probeLimit(deadline, p.Poll))
		err := e.driver.Evaluate(ectx, "document.readyState", &state)
		ecancel()
		if err == nil && state == "complete" {
			return true
		}
		if err != nil {
			e.logger.Debug("Ready state check failed.", zap.Error(err))
		}
		if !time.Now().Before(deadline) {
			e.logger.Warn("Page did not finish loading.", zap.Duration("timeout", timeout), zap.String("ready_state", state))
			return false
		}
		if err := limiter.Wait(pollCtx); err != nil {
			sleepUntil(deadline)
		}
	}
}
