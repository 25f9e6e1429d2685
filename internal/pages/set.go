// internal/pages/set.go

package pages

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiharness/internal/action"
	"github.com/xkilldash9x/uiharness/internal/metrics"
)

// Set holds one cache per page type. A page is reused for as long as the
// worker keeps the same session and rebuilt once the session changes.
type Set struct {
	logger *zap.Logger

	home   *Cache[*HomePage]
	charts *Cache[*ChartsPage]
	search *Cache[*SymbolSearchPopup]
}

// NewSet returns empty page caches.
func NewSet(logger *zap.Logger, m *metrics.Metrics) *Set {
	return &Set{
		logger: logger,
		home:   NewCache[*HomePage]("home", logger, m),
		charts: NewCache[*ChartsPage]("charts", logger, m),
		search: NewCache[*SymbolSearchPopup]("symbol_search", logger, m),
	}
}

// Home returns the home page cached for e's session.
func (s *Set) Home(e *action.Engine) (*HomePage, error) {
	sess := e.Session()
	return s.home.GetOrCreate(sess.WorkerID(), sess.ID(), func() (*HomePage, error) {
		return NewHomePage(e), nil
	})
}

func (s *Set) Charts(e *action.Engine) (*ChartsPage, error) {
	sess := e.Session()
	return s.charts.GetOrCreate(sess.WorkerID(), sess.ID(), func() (*ChartsPage, error) {
		return NewChartsPage(e, s.logger), nil
	})
}

func (s *Set) SymbolSearch(e *action.Engine) (*SymbolSearchPopup, error) {
	sess := e.Session()
	return s.search.GetOrCreate(sess.WorkerID(), sess.ID(), func() (*SymbolSearchPopup, error) {
		return NewSymbolSearchPopup(e, s.logger), nil
	})
}

// Forget drops every cached page of the worker.
func (s *Set) Forget(workerID string) {
	s.home.Invalidate(workerID)
	s.charts.Invalidate(workerID)
	s.search.Invalidate(workerID)
}
