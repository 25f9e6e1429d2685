// internal/pages/page.go

package pages

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xkilldash9x/uiharness/internal/action"
	"github.com/xkilldash9x/uiharness/internal/browser"
	"github.com/xkilldash9x/uiharness/internal/session"
)

var (
	// ErrUnknownControl is returned for a control name missing from a page's locator table.
	ErrUnknownControl = errors.New("unknown page control")
	// ErrNotReady is returned when a control never reached the state an operation needs.
	ErrNotReady = errors.New("page control not ready")
	// ErrCheck is returned when a page flow observes something other than what it expected.
	ErrCheck = errors.New("page check failed")
)

// Locators is a page's static table of named element lookups.
type Locators map[string]browser.Locator

func locators(list ...browser.Locator) Locators {
	t := make(Locators, len(list))
	for _, l := range list {
		t[l.Name] = l
	}
	return t
}

// Lookup returns the locator registered under name.
func (l Locators) Lookup(name string) (browser.Locator, error) {
	loc, ok := l[name]
	if !ok {
		return browser.Locator{}, fmt.Errorf("%w: %s", ErrUnknownControl, name)
	}
	return loc, nil
}

// Page binds a locator table to one worker's action engine. Concrete pages
// embed it for the display, click, and text checks every control supports.
type Page struct {
	name     string
	engine   *action.Engine
	locators Locators
}

func newPage(name string, engine *action.Engine, table Locators) Page {
	return Page{name: name, engine: engine, locators: table}
}

// Name is the page type name.
func (p Page) Name() string { return p.name }

// Engine is the action engine the page delegates to.
func (p Page) Engine() *action.Engine { return p.engine }

// Session is the session the page was built for.
func (p Page) Session() *session.Session { return p.engine.Session() }

// Controls lists the names in the page's locator table.
func (p Page) Controls() []string {
	names := make([]string, 0, len(p.locators))
	for n := range p.locators {
		names = append(names, n)
	}
	return names
}

// IsDisplayed waits for the named control to become visible.
func (p Page) IsDisplayed(ctx context.Context, control string) bool {
	loc, err := p.locators.Lookup(control)
	if err != nil {
		return false
	}
	return p.engine.WaitUntilVisible(ctx, loc, p.engine.Explicit()).OK()
}

// IsClickable waits for the named control to become clickable.
func (p Page) IsClickable(ctx context.Context, control string) bool {
	loc, err := p.locators.Lookup(control)
	if err != nil {
		return false
	}
	return p.engine.WaitUntilClickable(ctx, loc, p.engine.Explicit()).OK()
}

// IsInvisible waits for the named control to be hidden or gone.
func (p Page) IsInvisible(ctx context.Context, control string) bool {
	loc, err := p.locators.Lookup(control)
	if err != nil {
		return false
	}
	return p.engine.WaitUntilInvisible(ctx, loc, p.engine.Explicit()).OK()
}

// Click waits for the named control to be clickable and clicks it.
func (p Page) Click(ctx context.Context, control string) error {
	loc, err := p.locators.Lookup(control)
	if err != nil {
		return err
	}
	return resultErr(loc, p.engine.ClickWithWait(ctx, loc, p.engine.Explicit()))
}

// Type waits for the named control and sends text to it.
func (p Page) Type(ctx context.Context, control, text string) error {
	loc, err := p.locators.Lookup(control)
	if err != nil {
		return err
	}
	return resultErr(loc, p.engine.SendKeysWithWait(ctx, loc, text, p.engine.Explicit()))
}

// Text returns the visible text of the named control.
func (p Page) Text(ctx context.Context, control string) (string, error) {
	loc, err := p.locators.Lookup(control)
	if err != nil {
		return "", err
	}
	text, r := p.engine.GetTextWithWait(ctx, loc, p.engine.Explicit())
	return text, resultErr(loc, r)
}

// Attribute returns an attribute of the named control.
func (p Page) Attribute(ctx context.Context, control, attr string) (string, error) {
	loc, err := p.locators.Lookup(control)
	if err != nil {
		return "", err
	}
	value, r := p.engine.GetAttributeWithWait(ctx, loc, attr, p.engine.Explicit())
	return value, resultErr(loc, r)
}

func resultErr(loc browser.Locator, r action.Result) error {
	switch {
	case r.OK():
		return nil
	case r.Err != nil && r.Outcome == action.OutcomeFailed:
		return r.Err
	default:
		return fmt.Errorf("%w: %s (%s)", ErrNotReady, loc, r)
	}
}

func checkf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrCheck, fmt.Sprintf(format, args...))
}

var whitespaceRun = regexp.MustCompile(`\s*\n\s*`)

// singleLine joins multi-line element text with single spaces.
func singleLine(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// nth addresses the i-th (1-based) match of an xpath locator.
func nth(loc browser.Locator, i int) browser.Locator {
	return browser.XPath(fmt.Sprintf("%s[%d]", loc.Name, i), fmt.Sprintf("(%s)[%d]", loc.Value, i))
}

// within addresses rel relative to the i-th match of loc.
func within(loc browser.Locator, i int, rel, name string) browser.Locator {
	return browser.XPath(name, fmt.Sprintf("(%s)[%d]/%s", loc.Value, i, strings.TrimPrefix(rel, "./")))
}

// present checks loc once without waiting.
func present(ctx context.Context, e *action.Engine, loc browser.Locator) bool {
	return e.WaitUntilVisible(ctx, loc, action.NewPolicy("presence", 0, 0)).OK()
}
