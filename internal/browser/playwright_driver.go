// internal/browser/playwright_driver.go

package browser

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

const playwrightInstallTimeout = 5 * time.Minute

// playwrightRuntime owns the Playwright driver process and one launched browser
// per Kind. Sessions are isolated BrowserContexts on top of those browsers.
type playwrightRuntime struct {
	logger *zap.Logger

	initOnce sync.Once
	initErr  error

	// mu guards pw, closed and browsers.
	mu       sync.Mutex
	pw       *playwright.Playwright
	closed   bool
	browsers map[Kind]playwright.Browser
}

func newPlaywrightRuntime(logger *zap.Logger) *playwrightRuntime {
	return &playwrightRuntime{
		logger:   logger.Named("playwright"),
		browsers: make(map[Kind]playwright.Browser),
	}
}

// playwrightBrowserName maps a Kind onto the Playwright browser it is emulated with.
func playwrightBrowserName(kind Kind) string {
	switch kind {
	case KindFirefox:
		return "firefox"
	case KindSafari:
		return "webkit"
	default:
		return "chromium"
	}
}

// initialize installs the browsers on first use and starts the driver.
func (r *playwrightRuntime) initialize(ctx context.Context) error {
	r.initOnce.Do(func() {
		r.logger.Info("Initializing Playwright driver...")
		if err := r.ensureInstallation(ctx); err != nil {
			r.initErr = err
			return
		}
		pw, err := playwright.Run(&playwright.RunOptions{Verbose: false, Stdout: io.Discard, Stderr: io.Discard})
		if err != nil {
			r.initErr = fmt.Errorf("failed to start playwright driver: %w", err)
			return
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			_ = pw.Stop()
			r.initErr = ErrDriverClosed
			return
		}
		r.pw = pw
	})
	return r.initErr
}

func (r *playwrightRuntime) ensureInstallation(ctx context.Context) error {
	installCtx, cancel := context.WithTimeout(ctx, playwrightInstallTimeout)
	defer cancel()

	installErr := make(chan error, 1)
	go func() {
		opts := &playwright.RunOptions{
			Browsers: []string{"chromium", "firefox", "webkit"},
			Verbose:  false,
			Stdout:   io.Discard,
			Stderr:   io.Discard,
		}
		if err := playwright.Install(opts); err != nil {
			installErr <- fmt.Errorf("failed to install playwright browsers: %w", err)
			return
		}
		installErr <- nil
	}()

	select {
	case err := <-installErr:
		return err
	case <-installCtx.Done():
		return fmt.Errorf("timeout waiting for Playwright installation: %w", installCtx.Err())
	}
}

// browser returns the shared browser for spec.Kind, launching it on first use.
func (r *playwrightRuntime) browser(spec LaunchSpec) (playwright.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pw == nil {
		return nil, ErrDriverClosed
	}
	if b, ok := r.browsers[spec.Kind]; ok && b.IsConnected() {
		return b, nil
	}

	var bt playwright.BrowserType
	switch spec.Kind {
	case KindFirefox:
		bt = r.pw.Firefox
	case KindSafari:
		bt = r.pw.WebKit
	default:
		bt = r.pw.Chromium
	}

	b, err := bt.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(spec.Headless),
		Args:     playwrightArgs(spec),
		Timeout:  playwright.Float(60000),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch %s: %w", playwrightBrowserName(spec.Kind), err)
	}
	r.browsers[spec.Kind] = b
	r.logger.Info("Browser launched.", zap.String("browser", playwrightBrowserName(spec.Kind)), zap.String("version", b.Version()))
	return b, nil
}

// playwrightArgs drops the switches Playwright manages itself: headless mode
// is a launch option and every BrowserContext is already private.
func playwrightArgs(spec LaunchSpec) []string {
	var args []string
	for _, a := range spec.Args {
		name, _, _ := splitFlag(a)
		switch name {
		case "headless", "incognito", "private":
			continue
		}
		args = append(args, a)
	}
	if spec.Kind == KindChrome {
		args = append(args, "--disable-dev-shm-usage", "--no-sandbox")
	}
	return args
}

// newSession opens an isolated context and page on the shared browser.
func (r *playwrightRuntime) newSession(ctx context.Context, spec LaunchSpec, defaultTimeout time.Duration) (*playwrightDriver, error) {
	if err := r.initialize(ctx); err != nil {
		return nil, err
	}
	b, err := r.browser(spec)
	if err != nil {
		return nil, err
	}

	opts := playwright.BrowserNewContextOptions{}
	if spec.Maximize {
		opts.NoViewport = playwright.Bool(true)
	} else {
		opts.Viewport = &playwright.Size{Width: 1920, Height: 1080}
	}
	bctx, err := b.NewContext(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	page.SetDefaultNavigationTimeout(float64(defaultTimeout.Milliseconds()))

	return &playwrightDriver{
		kind:    spec.Kind,
		context: bctx,
		page:    page,
		frame:   page.MainFrame(),
	}, nil
}

// Close shuts down every launched browser and the driver process.
func (r *playwrightRuntime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	var firstErr error
	for kind, b := range r.browsers {
		if err := b.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close %s: %w", playwrightBrowserName(kind), err)
		}
		delete(r.browsers, kind)
	}
	if r.pw != nil {
		if err := r.pw.Stop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to stop playwright driver: %w", err)
		}
		r.pw = nil
	}
	return firstErr
}

// playwrightDriver adapts a Playwright page to Driver. Playwright identifies
// pages only by object handles, so RemoteID is always empty.
type playwrightDriver struct {
	kind         Kind
	context      playwright.BrowserContext
	page         playwright.Page
	implicitWait atomic.Int64

	mu     sync.Mutex
	frame  playwright.Frame
	closed bool
}

var _ Driver = (*playwrightDriver)(nil)

func (d *playwrightDriver) Kind() Kind       { return d.kind }
func (d *playwrightDriver) RemoteID() string { return "" }

func (d *playwrightDriver) SetImplicitWait(wait time.Duration) { d.implicitWait.Store(int64(wait)) }

func (d *playwrightDriver) current() (playwright.Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrDriverClosed
	}
	return d.frame, nil
}

func playwrightSelector(loc Locator) string {
	switch loc.By {
	case ByXPath:
		return "xpath=" + loc.Value
	case ByID:
		return "id=" + loc.Value
	default:
		return "css=" + loc.Value
	}
}

// timeoutMillis converts the remaining time on ctx into a Playwright timeout.
// Zero means Playwright's own default applies.
func timeoutMillis(ctx context.Context) *float64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return nil
	}
	remaining := time.Until(deadline)
	if remaining < time.Millisecond {
		remaining = time.Millisecond
	}
	return playwright.Float(float64(remaining.Milliseconds()))
}

// find waits up to the implicit wait for loc to be attached in the current frame.
func (d *playwrightDriver) find(loc Locator) (playwright.ElementHandle, error) {
	frame, err := d.current()
	if err != nil {
		return nil, err
	}
	sel := playwrightSelector(loc)
	wait := time.Duration(d.implicitWait.Load())

	var handle playwright.ElementHandle
	if wait > 0 {
		handle, err = frame.WaitForSelector(sel, playwright.FrameWaitForSelectorOptions{
			State:   playwright.WaitForSelectorStateAttached,
			Timeout: playwright.Float(float64(wait.Milliseconds())),
		})
	} else {
		handle, err = frame.QuerySelector(sel)
	}
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "timeout") {
			return nil, fmt.Errorf("%w: %s", ErrElementNotFound, loc)
		}
		return nil, err
	}
	if handle == nil {
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, loc)
	}
	return handle, nil
}

func (d *playwrightDriver) withElement(loc Locator, fn func(playwright.ElementHandle) error) error {
	handle, err := d.find(loc)
	if err != nil {
		return err
	}
	defer handle.Dispose()
	if err := fn(handle); err != nil {
		if strings.Contains(err.Error(), "not attached") {
			return fmt.Errorf("%w: %s", ErrStaleElement, loc)
		}
		return err
	}
	return nil
}

func (d *playwrightDriver) Navigate(ctx context.Context, url string) error {
	if _, err := d.current(); err != nil {
		return err
	}
	_, err := d.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   timeoutMillis(ctx),
	})
	d.mu.Lock()
	d.frame = d.page.MainFrame()
	d.mu.Unlock()
	return err
}

func (d *playwrightDriver) Reload(ctx context.Context) error {
	if _, err := d.current(); err != nil {
		return err
	}
	_, err := d.page.Reload(playwright.PageReloadOptions{Timeout: timeoutMillis(ctx)})
	return err
}

func (d *playwrightDriver) CurrentURL(ctx context.Context) (string, error) {
	if _, err := d.current(); err != nil {
		return "", err
	}
	return d.page.URL(), nil
}

func (d *playwrightDriver) Title(ctx context.Context) (string, error) {
	if _, err := d.current(); err != nil {
		return "", err
	}
	return d.page.Title()
}

func (d *playwrightDriver) Evaluate(ctx context.Context, expression string, res interface{}) error {
	frame, err := d.current()
	if err != nil {
		return err
	}
	out, err := frame.Evaluate(expression)
	if err != nil {
		return err
	}
	return decodeInto(out, res)
}

// decodeInto copies a loosely typed Playwright result into res.
func decodeInto(v interface{}, res interface{}) error {
	if res == nil {
		return nil
	}
	data, err := jsoniter.Marshal(v)
	if err != nil {
		return err
	}
	return jsoniter.Unmarshal(data, res)
}

func (d *playwrightDriver) Screenshot(ctx context.Context) ([]byte, error) {
	if _, err := d.current(); err != nil {
		return nil, err
	}
	return d.page.Screenshot(playwright.PageScreenshotOptions{Timeout: timeoutMillis(ctx)})
}

func (d *playwrightDriver) Probe(ctx context.Context, loc Locator) (ElementState, error) {
	frame, err := d.current()
	if err != nil {
		return ElementState{}, err
	}
	handle, err := frame.QuerySelector(playwrightSelector(loc))
	if err != nil {
		return ElementState{}, err
	}
	if handle == nil {
		return ElementState{}, nil
	}
	defer handle.Dispose()

	visible, err := handle.IsVisible()
	if err != nil {
		return ElementState{}, fmt.Errorf("%w: %s", ErrStaleElement, loc)
	}
	enabled, err := handle.IsEnabled()
	if err != nil {
		return ElementState{}, fmt.Errorf("%w: %s", ErrStaleElement, loc)
	}
	return ElementState{Found: true, Visible: visible, Enabled: enabled}, nil
}

func (d *playwrightDriver) Click(ctx context.Context, loc Locator) error {
	return d.withElement(loc, func(h playwright.ElementHandle) error {
		return h.Click(playwright.ElementHandleClickOptions{Timeout: timeoutMillis(ctx)})
	})
}

func (d *playwrightDriver) SendKeys(ctx context.Context, loc Locator, text string) error {
	return d.withElement(loc, func(h playwright.ElementHandle) error {
		return h.Type(text, playwright.ElementHandleTypeOptions{Timeout: timeoutMillis(ctx)})
	})
}

func (d *playwrightDriver) Clear(ctx context.Context, loc Locator) error {
	return d.withElement(loc, func(h playwright.ElementHandle) error {
		return h.Fill("", playwright.ElementHandleFillOptions{Timeout: timeoutMillis(ctx)})
	})
}

func (d *playwrightDriver) Text(ctx context.Context, loc Locator) (string, error) {
	var text string
	err := d.withElement(loc, func(h playwright.ElementHandle) error {
		var err error
		text, err = h.InnerText()
		return err
	})
	return strings.TrimSpace(text), err
}

func (d *playwrightDriver) Attribute(ctx context.Context, loc Locator, name string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := d.withElement(loc, func(h playwright.ElementHandle) error {
		out, err := h.Evaluate("(el, name) => el.hasAttribute(name) ? el.getAttribute(name) : null", name)
		if err != nil {
			return err
		}
		if s, isString := out.(string); isString {
			value, ok = s, true
		}
		return nil
	})
	return value, ok, err
}

func (d *playwrightDriver) Property(ctx context.Context, loc Locator, name string, res interface{}) error {
	return d.withElement(loc, func(h playwright.ElementHandle) error {
		out, err := h.Evaluate("(el, name) => el[name]", name)
		if err != nil {
			return err
		}
		return decodeInto(out, res)
	})
}

func (d *playwrightDriver) SetProperty(ctx context.Context, loc Locator, name, value string) error {
	return d.withElement(loc, func(h playwright.ElementHandle) error {
		_, err := h.Evaluate("(el, args) => { el[args[0]] = args[1]; }", []string{name, value})
		return err
	})
}

func (d *playwrightDriver) SwitchToFrame(ctx context.Context, loc Locator) error {
	handle, err := d.find(loc)
	if err != nil {
		return err
	}
	defer handle.Dispose()

	frame, err := handle.ContentFrame()
	if err != nil || frame == nil {
		return fmt.Errorf("%w: %s", ErrNoFrame, loc)
	}
	d.mu.Lock()
	d.frame = frame
	d.mu.Unlock()
	return nil
}

func (d *playwrightDriver) SwitchToParentFrame(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if parent := d.frame.ParentFrame(); parent != nil {
		d.frame = parent
	}
	return nil
}

func (d *playwrightDriver) SwitchToDefaultContent(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frame = d.page.MainFrame()
	return nil
}

// Quit closes the session's BrowserContext. The shared browser stays up for
// other sessions until the factory is closed.
func (d *playwrightDriver) Quit(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	if err := d.context.Close(); err != nil {
		return fmt.Errorf("failed to close browser context: %w", err)
	}
	return nil
}
