// internal/browser/driver.go

package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrSessionCreation marks every failure to start a browser session.
	ErrSessionCreation = errors.New("browser session could not be created")
	// ErrElementNotFound is returned when a locator matches nothing within the implicit wait.
	ErrElementNotFound = errors.New("element not found")
	// ErrStaleElement is returned when a matched element left the document before it was used.
	ErrStaleElement = errors.New("element is no longer attached to the document")
	// ErrNoFrame is returned when a frame switch targets something that is not a frame.
	ErrNoFrame = errors.New("element is not a frame")
	// ErrDriverClosed is returned by every call made after Quit.
	ErrDriverClosed = errors.New("driver has been closed")
)

// Kind names a browser family.
type Kind string

const (
	KindChrome  Kind = "chrome"
	KindFirefox Kind = "firefox"
	KindSafari  Kind = "safari"
)

// ParseKind maps a configured browser name onto a Kind. Unrecognized names
// select chrome and report false.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "chrome", "chromium":
		return KindChrome, true
	case "firefox":
		return KindFirefox, true
	case "safari", "webkit":
		return KindSafari, true
	default:
		return KindChrome, false
	}
}

// By selects the lookup strategy of a Locator.
type By string

const (
	ByCSS   By = "css"
	ByXPath By = "xpath"
	ByID    By = "id"
	ByTag   By = "tag"
)

// Locator is a named element lookup. Name is used only for diagnostics.
type Locator struct {
	Name  string
	By    By
	Value string
}

// CSS returns a css Locator.
func CSS(name, selector string) Locator { return Locator{Name: name, By: ByCSS, Value: selector} }

// XPath returns an xpath Locator.
func XPath(name, expr string) Locator { return Locator{Name: name, By: ByXPath, Value: expr} }

// ID returns a Locator matching the element id.
func ID(name, id string) Locator { return Locator{Name: name, By: ByID, Value: id} }

func (l Locator) String() string {
	if l.Name != "" {
		return fmt.Sprintf("%s (%s=%s)", l.Name, l.By, l.Value)
	}
	return fmt.Sprintf("%s=%s", l.By, l.Value)
}

// ElementState is a point-in-time observation of a locator.
type ElementState struct {
	Found   bool
	Visible bool
	Enabled bool
}

// Clickable reports whether the element can receive a click.
func (s ElementState) Clickable() bool { return s.Found && s.Visible && s.Enabled }

// Driver is the browser automation surface the harness is written against.
//
// Probe never waits: it observes the current document and returns a zero
// ElementState when nothing matches. Every other element operation waits up to
// the implicit wait for the locator to match before failing with ErrElementNotFound.
type Driver interface {
	Kind() Kind
	// RemoteID returns the identifier assigned by the browser, or "" when there is none.
	RemoteID() string
	SetImplicitWait(d time.Duration)

	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// Evaluate runs expression in the current frame and decodes its result into res.
	Evaluate(ctx context.Context, expression string, res interface{}) error
	Screenshot(ctx context.Context) ([]byte, error)

	Probe(ctx context.Context, loc Locator) (ElementState, error)
	Click(ctx context.Context, loc Locator) error
	SendKeys(ctx context.Context, loc Locator, text string) error
	Clear(ctx context.Context, loc Locator) error
	Text(ctx context.Context, loc Locator) (string, error)
	// Attribute returns the attribute value and whether the attribute is present.
	Attribute(ctx context.Context, loc Locator, name string) (string, bool, error)
	// Property reads a DOM property such as scrollHeight.
	Property(ctx context.Context, loc Locator, name string, res interface{}) error
	SetProperty(ctx context.Context, loc Locator, name, value string) error

	SwitchToFrame(ctx context.Context, loc Locator) error
	SwitchToParentFrame(ctx context.Context) error
	SwitchToDefaultContent(ctx context.Context) error

	Quit(ctx context.Context) error
}

// SessionCreationError reports a browser that could not be started.
type SessionCreationError struct {
	Strategy string
	Kind     Kind
	Err      error
}

func (e *SessionCreationError) Error() string {
	return fmt.Sprintf("failed to create %s session using %s: %v", e.Kind, e.Strategy, e.Err)
}

func (e *SessionCreationError) Unwrap() []error { return []error{ErrSessionCreation, e.Err} }
