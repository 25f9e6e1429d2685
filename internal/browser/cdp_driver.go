// internal/browser/cdp_driver.go

package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// probeFunction is called with the element as `this`. It reports the same
// visibility notion Selenium uses: a non-empty box that is not hidden by style.
const probeFunction = `function() {
	const rect = this.getBoundingClientRect();
	const style = window.getComputedStyle(this);
	const visible = rect.width > 0 && rect.height > 0 &&
		style.visibility !== 'hidden' && style.display !== 'none' && style.opacity !== '0';
	return { visible: visible, enabled: !this.disabled };
}`

// cdpDriver drives Chrome through the DevTools protocol using chromedp.
type cdpDriver struct {
	kind   Kind
	logger *zap.Logger

	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc

	remoteID     string
	implicitWait atomic.Int64

	// frames is the path from the top document to the current frame.
	mu     sync.Mutex
	frames []*cdp.Node
	closed bool
}

var _ Driver = (*cdpDriver)(nil)

// startCDPDriver opens a browser tab on allocCtx and waits up to startupTimeout
// for it to come up. allocCancel is owned by the returned driver.
func startCDPDriver(ctx context.Context, allocCtx context.Context, allocCancel context.CancelFunc, kind Kind, startupTimeout time.Duration, logger *zap.Logger) (*cdpDriver, error) {
	sugar := logger.Sugar()
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)

	d := &cdpDriver{
		kind:          kind,
		logger:        logger,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}

	// The first Run allocates the browser and ties its lifetime to browserCtx,
	// so it must not run under a derived deadline.
	errCh := make(chan error, 1)
	go func() { errCh <- chromedp.Run(browserCtx) }()

	timer := time.NewTimer(startupTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		if err != nil {
			d.release()
			return nil, err
		}
	case <-timer.C:
		d.release()
		return nil, fmt.Errorf("browser did not start within %s", startupTimeout)
	case <-ctx.Done():
		d.release()
		return nil, ctx.Err()
	}

	if c := chromedp.FromContext(browserCtx); c != nil && c.Target != nil {
		d.remoteID = string(c.Target.TargetID)
	}
	return d, nil
}

func (d *cdpDriver) release() {
	d.browserCancel()
	d.allocCancel()
}

func (d *cdpDriver) Kind() Kind       { return d.kind }
func (d *cdpDriver) RemoteID() string { return d.remoteID }

func (d *cdpDriver) SetImplicitWait(wait time.Duration) { d.implicitWait.Store(int64(wait)) }

// opCtx derives an operation context carrying the browser target and the
// caller's cancellation, bounded by timeout when it is positive.
func (d *cdpDriver) opCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil, nil, ErrDriverClosed
	}

	combined, cancelCombined := CombineContext(d.browserCtx, ctx)
	if timeout <= 0 {
		return combined, cancelCombined, nil
	}
	bounded, cancelBounded := context.WithTimeout(combined, timeout)
	return bounded, func() {
		cancelBounded()
		cancelCombined()
	}, nil
}

// run executes actions under timeout and turns context expiry into a timeout error.
func (d *cdpDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	octx, cancel, err := d.opCtx(ctx, timeout)
	if err != nil {
		return err
	}
	defer cancel()

	err = chromedp.Run(octx, actions...)
	if err == nil {
		return nil
	}
	// CombineContext reports a caller deadline as cancellation; recover the cause.
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("operation timeout: %w", context.DeadlineExceeded)
		}
		return ctx.Err()
	}
	if errors.Is(octx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("operation timeout after %s: %w", timeout, context.DeadlineExceeded)
	}
	return err
}

// runElement is run for element lookups, mapping lookup timeouts onto ErrElementNotFound.
func (d *cdpDriver) runElement(ctx context.Context, loc Locator, actions ...chromedp.Action) error {
	err := d.run(ctx, time.Duration(d.implicitWait.Load()), actions...)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrElementNotFound, loc)
	}
	if isStale(err) {
		return fmt.Errorf("%w: %s", ErrStaleElement, loc)
	}
	return err
}

func isStale(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "could not find node") || strings.Contains(msg, "no node with given id")
}

// selector translates loc into a chromedp selector scoped to the current frame.
func (d *cdpDriver) selector(loc Locator) (string, []chromedp.QueryOption) {
	sel := loc.Value
	var opts []chromedp.QueryOption
	switch loc.By {
	case ByXPath:
		opts = append(opts, chromedp.BySearch)
	case ByID:
		sel = fmt.Sprintf(`[id=%q]`, loc.Value)
		opts = append(opts, chromedp.ByQuery)
	default:
		opts = append(opts, chromedp.ByQuery)
	}

	d.mu.Lock()
	if n := len(d.frames); n > 0 {
		opts = append(opts, chromedp.FromNode(d.frames[n-1]))
	}
	d.mu.Unlock()
	return sel, opts
}

func (d *cdpDriver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, 0, chromedp.Navigate(url))
}

func (d *cdpDriver) Reload(ctx context.Context) error {
	return d.run(ctx, 0, chromedp.Reload())
}

func (d *cdpDriver) CurrentURL(ctx context.Context) (string, error) {
	var u string
	err := d.run(ctx, 0, chromedp.Location(&u))
	return u, err
}

func (d *cdpDriver) Title(ctx context.Context) (string, error) {
	var title string
	err := d.run(ctx, 0, chromedp.Title(&title))
	return title, err
}

func (d *cdpDriver) Evaluate(ctx context.Context, expression string, res interface{}) error {
	d.mu.Lock()
	var frame *cdp.Node
	if n := len(d.frames); n > 0 {
		frame = d.frames[n-1]
	}
	d.mu.Unlock()

	if frame == nil {
		return d.run(ctx, 0, chromedp.Evaluate(expression, res))
	}

	lit, err := jsoniter.MarshalToString(expression)
	if err != nil {
		return err
	}
	return d.run(ctx, 0, callOnNode(frame, "function() { return this.contentWindow.eval("+lit+"); }", res))
}

// callOnNode calls fn with the node as `this` and decodes the returned value into res.
func callOnNode(node *cdp.Node, fn string, res interface{}) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(node.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		out, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if res == nil || len(out.Value) == 0 {
			return nil
		}
		return jsoniter.Unmarshal(out.Value, res)
	})
}

func (d *cdpDriver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := d.run(ctx, 0, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

func (d *cdpDriver) Probe(ctx context.Context, loc Locator) (ElementState, error) {
	sel, opts := d.selector(loc)
	opts = append(opts, chromedp.AtLeast(0))

	var nodes []*cdp.Node
	if err := d.run(ctx, 0, chromedp.Nodes(sel, &nodes, opts...)); err != nil {
		return ElementState{}, err
	}
	if len(nodes) == 0 {
		return ElementState{}, nil
	}

	var raw struct {
		Visible bool `json:"visible"`
		Enabled bool `json:"enabled"`
	}
	if err := d.run(ctx, 0, callOnNode(nodes[0], probeFunction, &raw)); err != nil {
		if isStale(err) {
			return ElementState{}, fmt.Errorf("%w: %s", ErrStaleElement, loc)
		}
		return ElementState{}, err
	}
	return ElementState{Found: true, Visible: raw.Visible, Enabled: raw.Enabled}, nil
}

func (d *cdpDriver) Click(ctx context.Context, loc Locator) error {
	sel, opts := d.selector(loc)
	return d.runElement(ctx, loc,
		chromedp.ScrollIntoView(sel, opts...),
		chromedp.Click(sel, opts...),
	)
}

func (d *cdpDriver) SendKeys(ctx context.Context, loc Locator, text string) error {
	sel, opts := d.selector(loc)
	return d.runElement(ctx, loc, chromedp.SendKeys(sel, text, opts...))
}

func (d *cdpDriver) Clear(ctx context.Context, loc Locator) error {
	sel, opts := d.selector(loc)
	return d.runElement(ctx, loc, chromedp.Clear(sel, opts...))
}

func (d *cdpDriver) Text(ctx context.Context, loc Locator) (string, error) {
	sel, opts := d.selector(loc)
	var text string
	err := d.runElement(ctx, loc, chromedp.Text(sel, &text, opts...))
	return strings.TrimSpace(text), err
}

func (d *cdpDriver) Attribute(ctx context.Context, loc Locator, name string) (string, bool, error) {
	sel, opts := d.selector(loc)
	var (
		value string
		ok    bool
	)
	err := d.runElement(ctx, loc, chromedp.AttributeValue(sel, name, &value, &ok, opts...))
	return value, ok, err
}

func (d *cdpDriver) Property(ctx context.Context, loc Locator, name string, res interface{}) error {
	sel, opts := d.selector(loc)
	return d.runElement(ctx, loc, chromedp.JavascriptAttribute(sel, name, res, opts...))
}

func (d *cdpDriver) SetProperty(ctx context.Context, loc Locator, name, value string) error {
	sel, opts := d.selector(loc)
	return d.runElement(ctx, loc, chromedp.SetJavascriptAttribute(sel, name, value, opts...))
}

func (d *cdpDriver) SwitchToFrame(ctx context.Context, loc Locator) error {
	sel, opts := d.selector(loc)
	var nodes []*cdp.Node
	if err := d.runElement(ctx, loc, chromedp.Nodes(sel, &nodes, opts...)); err != nil {
		return err
	}
	if len(nodes) == 0 {
		return fmt.Errorf("%w: %s", ErrElementNotFound, loc)
	}
	switch strings.ToUpper(nodes[0].NodeName) {
	case "IFRAME", "FRAME":
	default:
		return fmt.Errorf("%w: %s is a %s", ErrNoFrame, loc, nodes[0].NodeName)
	}

	d.mu.Lock()
	d.frames = append(d.frames, nodes[0])
	d.mu.Unlock()
	return nil
}

func (d *cdpDriver) SwitchToParentFrame(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := len(d.frames); n > 0 {
		d.frames = d.frames[:n-1]
	}
	return nil
}

func (d *cdpDriver) SwitchToDefaultContent(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = nil
	return nil
}

// Quit closes the tab and, for locally launched browsers, the browser process.
// It is safe to call more than once.
func (d *cdpDriver) Quit(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.frames = nil
	d.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(d.browserCtx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = fmt.Errorf("browser did not close in time: %w", ctx.Err())
	}
	d.release()
	if errors.Is(err, context.Canceled) {
		// Cancel reports the context it just canceled; that is a clean shutdown.
		err = nil
	}
	return err
}
