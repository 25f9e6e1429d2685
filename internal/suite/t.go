// internal/suite/t.go

package suite

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uiharness/internal/action"
	"github.com/xkilldash9x/uiharness/internal/pages"
	"github.com/xkilldash9x/uiharness/internal/report"
)

// ErrSkip marks a case that chose not to run.
var ErrSkip = errors.New("test skipped")

// T is the handle a running case uses to reach its worker's browser.
type T struct {
	ctx      context.Context
	name     string
	workerID string
	engine   *action.Engine
	pages    *pages.Set
	baseURL  string
	logger   *zap.Logger
	recorder *report.Recorder
}

func (t *T) Context() context.Context { return t.ctx }
func (t *T) Name() string             { return t.name }
func (t *T) WorkerID() string         { return t.workerID }
func (t *T) Logger() *zap.Logger      { return t.logger }

// Engine is the action engine bound to the worker's session.
func (t *T) Engine() *action.Engine { return t.engine }

// BaseURL is the resolved base URL of the environment under test.
func (t *T) BaseURL() string { return t.baseURL }

// Page objects for the worker's current session, built once per session.
func (t *T) Home() (*pages.HomePage, error)                  { return t.pages.Home(t.engine) }
func (t *T) Charts() (*pages.ChartsPage, error)              { return t.pages.Charts(t.engine) }
func (t *T) SymbolSearch() (*pages.SymbolSearchPopup, error) { return t.pages.SymbolSearch(t.engine) }

// Log adds an info entry to the case's report.
func (t *T) Log(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	t.logger.Info(msg)
	if test, ok := t.recorder.Active(t.workerID); ok {
		test.Info(msg, "")
	}
}

// Skip returns an error that marks the case skipped. Return it from Run.
func (t *T) Skip(reason string) error {
	return fmt.Errorf("%w: %s", ErrSkip, reason)
}
