// internal/action/engine.go

// Package action performs element waits and interactions against one worker's
// browser session, and diagnoses failed navigations.
package action

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uiharness/internal/browser"
	"github.com/xkilldash9x/uiharness/internal/config"
	"github.com/xkilldash9x/uiharness/internal/metrics"
	"github.com/xkilldash9x/uiharness/internal/session"
)

// ErrInteraction marks every failed direct interaction.
var ErrInteraction = errors.New("element interaction failed")

// errPageLoadTimeout reads as a timeout to Classify.
var errPageLoadTimeout = errors.New("page load timeout")

// InteractionError reports a failed action on a named element.
type InteractionError struct {
	Action  string
	Element string
	Err     error
}

func (e *InteractionError) Error() string {
	return fmt.Sprintf("%s on %s failed: %v", e.Action, e.Element, e.Err)
}

func (e *InteractionError) Unwrap() []error { return []error{ErrInteraction, e.Err} }

// Capturer records evidence for a failed action. It must not panic or block
// for longer than its own bounded timeout.
type Capturer interface {
	CaptureError(ctx context.Context, sess *session.Session, action string, cause error)
}

// Engine performs actions against exactly one session.
type Engine struct {
	sess     *session.Session
	driver   browser.Driver
	logger   *zap.Logger
	capturer Capturer
	metrics  *metrics.Metrics

	explicitWait    time.Duration
	pageLoadTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithCapturer sets where failure screenshots go. Without one, none are taken.
func WithCapturer(c Capturer) Option {
	return func(e *Engine) { e.capturer = c }
}

// WithMetrics records wait outcomes, wait durations and navigation failures on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New returns an Engine bound to sess, using the wait and page load timeouts of cfg.
func New(sess *session.Session, cfg config.BrowserConfig, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		sess:   sess,
		driver: sess.Driver(),
		logger: logger.Named("action_engine").With(
			zap.String("worker_id", sess.WorkerID()),
			zap.String("session_id", sess.ID()),
		),
		explicitWait:    cfg.ExplicitWait,
		pageLoadTimeout: cfg.PageLoadTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ForWorker returns an Engine for the worker's Active session in reg.
func ForWorker(reg *session.Registry, workerID string, cfg config.BrowserConfig, logger *zap.Logger, opts ...Option) (*Engine, error) {
	sess, ok := reg.Get(workerID)
	if !ok {
		return nil, fmt.Errorf("%w: worker %s", session.ErrNoSession, workerID)
	}
	return New(sess, cfg, logger, opts...), nil
}

// Session is the worker session the engine drives. Page caches key on it.
func (e *Engine) Session() *session.Session { return e.sess }

// Explicit is the explicit wait policy with the configured timeout.
func (e *Engine) Explicit() WaitPolicy { return Explicit(e.explicitWait) }

// Fluent is the fluent wait policy with the configured timeout.
func (e *Engine) Fluent() WaitPolicy { return Fluent(e.explicitWait) }

func (e *Engine) ready() error {
	if !e.sess.Active() {
		return fmt.Errorf("%w: session %s is %s", session.ErrNoSession, e.sess.ID(), e.sess.State())
	}
	return nil
}

func (e *Engine) interactionErr(action string, loc browser.Locator, err error) error {
	e.logger.Error("Interaction failed.", zap.String("action", action), zap.Stringer("element", loc), zap.Error(err))
	return &InteractionError{Action: action, Element: loc.String(), Err: err}
}

// interact runs one direct interaction with entry and outcome logging.
func (e *Engine) interact(ctx context.Context, action string, loc browser.Locator, fn func(context.Context) error) error {
	e.logger.Debug("Performing interaction.", zap.String("action", action), zap.Stringer("element", loc))
	if err := e.ready(); err != nil {
		return e.interactionErr(action, loc, err)
	}
	if err := fn(ctx); err != nil {
		return e.interactionErr(action, loc, err)
	}
	e.logger.Info("Interaction succeeded.", zap.String("action", action), zap.Stringer("element", loc))
	return nil
}

// Click clicks loc immediately. Failures are screenshotted and returned as
// *InteractionError.
func (e *Engine) Click(ctx context.Context, loc browser.Locator) error {
	return e.interact(ctx, "click", loc, func(ctx context.Context) error {
		return e.driver.Click(ctx, loc)
	})
}

func (e *Engine) SendKeys(ctx context.Context, loc browser.Locator, text string) error {
	return e.interact(ctx, "send_keys", loc, func(ctx context.Context) error {
		return e.driver.SendKeys(ctx, loc, text)
	})
}

func (e *Engine) Clear(ctx context.Context, loc browser.Locator) error {
	return e.interact(ctx, "clear", loc, func(ctx context.Context) error {
		return e.driver.Clear(ctx, loc)
	})
}

// GetText returns the visible text of loc without waiting.
func (e *Engine) GetText(ctx context.Context, loc browser.Locator) (string, error) {
	var text string
	err := e.interact(ctx, "get_text", loc, func(ctx context.Context) (err error) {
		text, err = e.driver.Text(ctx, loc)
		return err
	})
	return text, err
}

// GetAttribute returns the attribute value and whether it is present.
func (e *Engine) GetAttribute(ctx context.Context, loc browser.Locator, name string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := e.interact(ctx, "get_attribute:"+name, loc, func(ctx context.Context) (err error) {
		value, ok, err = e.driver.Attribute(ctx, loc, name)
		return err
	})
	return value, ok, err
}

// withWait waits for cond and then runs fn. A wait that does not succeed is
// logged and returned without running fn. An fn error is reported as Failed.
func (e *Engine) withWait(ctx context.Context, action string, loc browser.Locator, cond condition, p WaitPolicy, fn func(context.Context) error) Result {
	r := e.wait(ctx, loc, cond, p)
	if !r.OK() {
		e.logger.Warn("Element not ready; skipping interaction.",
			zap.String("action", action),
			zap.Stringer("element", loc),
			zap.Stringer("outcome", r.Outcome),
		)
		return r
	}
	if err := fn(ctx); err != nil {
		return failed(e.interactionErr(action, loc, err), r.Attempts, r.Elapsed)
	}
	e.logger.Info("Interaction succeeded.", zap.String("action", action), zap.Stringer("element", loc))
	return r
}

// ClickWithWait waits for loc to be clickable under p and clicks it.
func (e *Engine) ClickWithWait(ctx context.Context, loc browser.Locator, p WaitPolicy) Result {
	return e.withWait(ctx, "click", loc, condClickable, p, func(ctx context.Context) error {
		return e.driver.Click(ctx, loc)
	})
}

// SendKeysWithWait waits for loc to be clickable under p and types text into it.
func (e *Engine) SendKeysWithWait(ctx context.Context, loc browser.Locator, text string, p WaitPolicy) Result {
	return e.withWait(ctx, "send_keys", loc, condClickable, p, func(ctx context.Context) error {
		return e.driver.SendKeys(ctx, loc, text)
	})
}

func (e *Engine) ClearWithWait(ctx context.Context, loc browser.Locator, p WaitPolicy) Result {
	return e.withWait(ctx, "clear", loc, condClickable, p, func(ctx context.Context) error {
		return e.driver.Clear(ctx, loc)
	})
}

// GetTextWithWait returns "" when the element never becomes visible.
func (e *Engine) GetTextWithWait(ctx context.Context, loc browser.Locator, p WaitPolicy) (string, Result) {
	var text string
	r := e.withWait(ctx, "get_text", loc, condVisible, p, func(ctx context.Context) (err error) {
		text, err = e.driver.Text(ctx, loc)
		return err
	})
	return text, r
}

// GetAttributeWithWait returns "" when the element never becomes visible or lacks the attribute.
func (e *Engine) GetAttributeWithWait(ctx context.Context, loc browser.Locator, name string, p WaitPolicy) (string, Result) {
	var value string
	r := e.withWait(ctx, "get_attribute:"+name, loc, condVisible, p, func(ctx context.Context) (err error) {
		value, _, err = e.driver.Attribute(ctx, loc, name)
		return err
	})
	return value, r
}

// OpenURL navigates to rawURL and waits for the document to finish loading.
// Every failure is classified, screenshotted, and returned as a *NavigationFailure.
func (e *Engine) OpenURL(ctx context.Context, rawURL string) error {
	e.logger.Info("Opening URL.", zap.String("url", rawURL))
	if err := e.ready(); err != nil {
		return e.navigationFailed(ctx, rawURL, err)
	}
	if err := validateURL(rawURL); err != nil {
		return e.navigationFailed(ctx, rawURL, err)
	}

	// Navigation and the readiness poll share one page load budget.
	navCtx := ctx
	loadBudget := e.pageLoadTimeout
	if e.pageLoadTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, e.pageLoadTimeout)
		defer cancel()
	}
	if err := e.driver.Navigate(navCtx, rawURL); err != nil {
		return e.navigationFailed(ctx, rawURL, err)
	}
	if dl, ok := navCtx.Deadline(); ok {
		loadBudget = time.Until(dl)
	}
	if !e.WaitForPageLoad(ctx, loadBudget) {
		err := fmt.Errorf("%w: document.readyState did not reach complete within %s", errPageLoadTimeout, e.pageLoadTimeout)
		return e.navigationFailed(ctx, rawURL, err)
	}

	e.logger.Info("URL opened successfully.", zap.String("url", rawURL))
	return nil
}

func validateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" {
		return fmt.Errorf("invalid URL %q: missing scheme", raw)
	}
	return nil
}

func (e *Engine) navigationFailed(ctx context.Context, rawURL string, cause error) error {
	nav := Diagnose(rawURL, cause.Error())
	nav.Err = cause
	e.metrics.NavigationFailed(nav.Category.String())
	e.logger.Error("Failed to open URL.",
		zap.String("url", rawURL),
		zap.Stringer("category", nav.Category),
		zap.Error(cause),
	)
	if e.capturer != nil {
		e.capturer.CaptureError(ctx, e.sess, "openUrl_"+nav.Category.slug()+"_"+urlSlug(rawURL), nav)
	}
	return nav
}

// CurrentURL is the address of the top-level document.
func (e *Engine) CurrentURL(ctx context.Context) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	u, err := e.driver.CurrentURL(ctx)
	if err != nil {
		return "", fmt.Errorf("reading current URL: %w", err)
	}
	e.logger.Debug("Current URL.", zap.String("url", u))
	return u, nil
}

func (e *Engine) Title(ctx context.Context) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	t, err := e.driver.Title(ctx)
	if err != nil {
		return "", fmt.Errorf("reading page title: %w", err)
	}
	e.logger.Debug("Page title.", zap.String("title", t))
	return t, nil
}

// Refresh reloads the current page.
func (e *Engine) Refresh(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	e.logger.Info("Refreshing page.")
	if err := e.driver.Reload(ctx); err != nil {
		return fmt.Errorf("refreshing page: %w", err)
	}
	return nil
}

// ScrollBy scrolls the window down by pixels (up when negative).
func (e *Engine) ScrollBy(ctx context.Context, pixels int) error {
	e.logger.Info("Scrolling window.", zap.Int("pixels", pixels))
	if err := e.ready(); err != nil {
		return &InteractionError{Action: "scroll", Element: "window", Err: err}
	}
	if err := e.driver.Evaluate(ctx, fmt.Sprintf("window.scrollBy(0, %d);", pixels), nil); err != nil {
		e.logger.Error("Error scrolling window.", zap.Error(err))
		return &InteractionError{Action: "scroll", Element: "window", Err: err}
	}
	return nil
}

// IsContainerScrollable reports whether the content of loc overflows it in
// either direction.
func (e *Engine) IsContainerScrollable(ctx context.Context, loc browser.Locator) (bool, error) {
	var scrollable bool
	err := e.interact(ctx, "check_scrollable", loc, func(ctx context.Context) error {
		var dims [4]int
		for i, prop := range []string{"scrollHeight", "clientHeight", "scrollWidth", "clientWidth"} {
			if err := e.driver.Property(ctx, loc, prop, &dims[i]); err != nil {
				return fmt.Errorf("reading %s: %w", prop, err)
			}
		}
		scrollable = dims[0] > dims[1] || dims[2] > dims[3]
		return nil
	})
	if err == nil {
		e.logger.Debug("Container scrollability checked.", zap.Stringer("element", loc), zap.Bool("scrollable", scrollable))
	}
	return scrollable, err
}

// ScrollContainerToBottom sets the scroll position of loc to its scroll height.
func (e *Engine) ScrollContainerToBottom(ctx context.Context, loc browser.Locator) error {
	return e.interact(ctx, "scroll_container", loc, func(ctx context.Context) error {
		var height int
		if err := e.driver.Property(ctx, loc, "scrollHeight", &height); err != nil {
			return fmt.Errorf("reading scrollHeight: %w", err)
		}
		return e.driver.SetProperty(ctx, loc, "scrollTop", strconv.Itoa(height))
	})
}

// SwitchToFrame scopes later lookups to the frame at loc.
func (e *Engine) SwitchToFrame(ctx context.Context, loc browser.Locator) error {
	return e.interact(ctx, "switch_to_frame", loc, func(ctx context.Context) error {
		return e.driver.SwitchToFrame(ctx, loc)
	})
}

func (e *Engine) SwitchToDefaultContent(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.driver.SwitchToDefaultContent(ctx); err != nil {
		return fmt.Errorf("switching to default content: %w", err)
	}
	e.logger.Debug("Switched to default content.")
	return nil
}

func (e *Engine) SwitchToParentFrame(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.driver.SwitchToParentFrame(ctx); err != nil {
		return fmt.Errorf("switching to parent frame: %w", err)
	}
	e.logger.Debug("Switched to parent frame.")
	return nil
}
