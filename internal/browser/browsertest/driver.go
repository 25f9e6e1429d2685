// internal/browser/browsertest/driver.go

// Package browsertest provides an in-memory browser.Driver for tests that must
// not start a real browser.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/uiharness/internal/browser"
)

// onePixelPNG is a valid 1x1 transparent PNG.
var onePixelPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// Element is a fake DOM element addressed by its locator value.
type Element struct {
	Visible bool
	Enabled bool
	Text    string
	Value   string
	Frame   bool
	Attrs   map[string]string
	Props   map[string]interface{}

	// ProbeFunc, when set, replaces the static visibility fields.
	ProbeFunc func() (browser.ElementState, error)
	// ClickErr is returned by Click.
	ClickErr error
}

// Driver is a scriptable browser.Driver. The zero value is not usable; call New.
type Driver struct {
	mu sync.Mutex

	kind     browser.Kind
	remoteID string
	elements map[string]*Element

	// NavigateFunc decides the outcome of Navigate. A nil func succeeds.
	NavigateFunc func(url string) error
	// EvalFunc handles expressions other than document.readyState.
	EvalFunc func(expression string) (interface{}, error)
	// ReadyState is reported for document.readyState; it defaults to "complete".
	ReadyState string

	ScreenshotErr   error
	ScreenshotDelay time.Duration
	QuitErr         error

	url          string
	title        string
	frames       []string
	implicitWait time.Duration
	calls        []string
	quits        int
}

var _ browser.Driver = (*Driver)(nil)

// New returns a chrome Driver with the given remote id ("" for none).
func New(remoteID string) *Driver {
	return &Driver{
		kind:       browser.KindChrome,
		remoteID:   remoteID,
		elements:   make(map[string]*Element),
		ReadyState: "complete",
	}
}

// Put registers an element under the locator value it will be found by.
func (d *Driver) Put(value string, el *Element) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.elements[value] = el
	return d
}

// Remove deletes an element, as if it left the DOM.
func (d *Driver) Remove(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.elements, value)
}

// SetTitle sets the title reported after navigation.
func (d *Driver) SetTitle(title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.title = title
}

// Calls returns the operations recorded so far, e.g. "click:#submit".
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// QuitCount reports how many times Quit was called.
func (d *Driver) QuitCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.quits
}

// ImplicitWait reports the last implicit wait applied.
func (d *Driver) ImplicitWait() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.implicitWait
}

// Frames returns the current frame path.
func (d *Driver) Frames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.frames...)
}

func (d *Driver) record(format string, args ...interface{}) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

func (d *Driver) lookup(loc browser.Locator) (*Element, error) {
	el, ok := d.elements[loc.Value]
	if !ok {
		return nil, fmt.Errorf("%w: %s", browser.ErrElementNotFound, loc)
	}
	return el, nil
}

func (d *Driver) Kind() browser.Kind { return d.kind }
func (d *Driver) RemoteID() string   { return d.remoteID }

func (d *Driver) SetImplicitWait(wait time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.implicitWait = wait
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	d.record("navigate:%s", url)
	fn := d.NavigateFunc
	d.mu.Unlock()

	if fn != nil {
		if err := fn(url); err != nil {
			return err
		}
	}
	d.mu.Lock()
	d.url = url
	d.frames = nil
	d.mu.Unlock()
	return ctx.Err()
}

func (d *Driver) Reload(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("reload")
	return nil
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *Driver) Title(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.title, nil
}

func (d *Driver) Evaluate(ctx context.Context, expression string, res interface{}) error {
	d.mu.Lock()
	d.record("eval:%s", expression)
	ready, fn := d.ReadyState, d.EvalFunc
	d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	var out interface{}
	switch {
	case strings.TrimSpace(expression) == "document.readyState":
		out = ready
	case fn != nil:
		var err error
		if out, err = fn(expression); err != nil {
			return err
		}
	}
	if res == nil {
		return nil
	}
	data, err := jsoniter.Marshal(out)
	if err != nil {
		return err
	}
	return jsoniter.Unmarshal(data, res)
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	d.record("screenshot")
	delay, err := d.ScreenshotDelay, d.ScreenshotErr
	d.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), onePixelPNG...), nil
}

// Probe fails with ctx.Err() once ctx is done, as the chromedp driver does.
func (d *Driver) Probe(ctx context.Context, loc browser.Locator) (browser.ElementState, error) {
	if err := ctx.Err(); err != nil {
		return browser.ElementState{}, err
	}
	d.mu.Lock()
	el, ok := d.elements[loc.Value]
	d.mu.Unlock()
	if !ok {
		return browser.ElementState{}, nil
	}
	if el.ProbeFunc != nil {
		return el.ProbeFunc()
	}
	return browser.ElementState{Found: true, Visible: el.Visible, Enabled: el.Enabled}, nil
}

func (d *Driver) Click(ctx context.Context, loc browser.Locator) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, err := d.lookup(loc)
	if err != nil {
		return err
	}
	if el.ClickErr != nil {
		return el.ClickErr
	}
	d.record("click:%s", loc.Value)
	return nil
}

func (d *Driver) SendKeys(ctx context.Context, loc browser.Locator, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, err := d.lookup(loc)
	if err != nil {
		return err
	}
	el.Value += text
	d.record("sendkeys:%s:%s", loc.Value, text)
	return nil
}

func (d *Driver) Clear(ctx context.Context, loc browser.Locator) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, err := d.lookup(loc)
	if err != nil {
		return err
	}
	el.Value = ""
	d.record("clear:%s", loc.Value)
	return nil
}

func (d *Driver) Text(ctx context.Context, loc browser.Locator) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, err := d.lookup(loc)
	if err != nil {
		return "", err
	}
	return el.Text, nil
}

func (d *Driver) Attribute(ctx context.Context, loc browser.Locator, name string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, err := d.lookup(loc)
	if err != nil {
		return "", false, err
	}
	v, ok := el.Attrs[name]
	return v, ok, nil
}

func (d *Driver) Property(ctx context.Context, loc browser.Locator, name string, res interface{}) error {
	d.mu.Lock()
	el, err := d.lookup(loc)
	var v interface{}
	if err == nil {
		v = el.Props[name]
	}
	d.mu.Unlock()
	if err != nil {
		return err
	}
	data, err := jsoniter.Marshal(v)
	if err != nil {
		return err
	}
	return jsoniter.Unmarshal(data, res)
}

func (d *Driver) SetProperty(ctx context.Context, loc browser.Locator, name, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, err := d.lookup(loc)
	if err != nil {
		return err
	}
	if el.Props == nil {
		el.Props = make(map[string]interface{})
	}
	el.Props[name] = value
	d.record("setprop:%s:%s=%s", loc.Value, name, value)
	return nil
}

func (d *Driver) SwitchToFrame(ctx context.Context, loc browser.Locator) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	el, err := d.lookup(loc)
	if err != nil {
		return err
	}
	if !el.Frame {
		return fmt.Errorf("%w: %s", browser.ErrNoFrame, loc)
	}
	d.frames = append(d.frames, loc.Value)
	return nil
}

func (d *Driver) SwitchToParentFrame(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n := len(d.frames); n > 0 {
		d.frames = d.frames[:n-1]
	}
	return nil
}

func (d *Driver) SwitchToDefaultContent(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = nil
	return nil
}

func (d *Driver) Quit(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quits++
	d.record("quit")
	return d.QuitErr
}
