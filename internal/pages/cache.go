// internal/pages/cache.go

// Package pages holds the page objects of the application under test and the
// per-worker cache that hands them out.
package pages

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uiharness/internal/metrics"
)

// entry is one worker's cached page and the session identity it was built for.
type entry[T any] struct {
	mu       sync.RWMutex
	identity string
	page     T
	built    bool
}

// Cache hands out one page object of type T per worker, rebuilding it whenever
// the worker's session identity changes. Workers never contend with each other.
type Cache[T any] struct {
	page    string
	logger  *zap.Logger
	metrics *metrics.Metrics

	entries sync.Map // workerID -> *entry[T]
}

// NewCache returns an empty cache for the page type named page.
func NewCache[T any](page string, logger *zap.Logger, m *metrics.Metrics) *Cache[T] {
	return &Cache[T]{
		page:    page,
		logger:  logger.Named("page_cache").With(zap.String("page", page)),
		metrics: m,
	}
}

func (c *Cache[T]) slot(workerID string) *entry[T] {
	e, _ := c.entries.LoadOrStore(workerID, &entry[T]{})
	return e.(*entry[T])
}

// GetOrCreate returns the worker's page when it was built for identity, or
// builds a new one with factory. A failed build leaves any previous page in
// place but never returns it for the new identity.
func (c *Cache[T]) GetOrCreate(workerID, identity string, factory func() (T, error)) (T, error) {
	e := c.slot(workerID)

	e.mu.RLock()
	if e.built && e.identity == identity {
		page := e.page
		e.mu.RUnlock()
		return page, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Re-check under the write lock; a concurrent caller for this worker may
	// have rebuilt it already.
	if e.built && e.identity == identity {
		return e.page, nil
	}

	page, err := factory()
	if err != nil {
		var zero T
		return zero, fmt.Errorf("building %s for worker %s: %w", c.page, workerID, err)
	}
	if e.built {
		c.logger.Debug("Session identity changed; page rebuilt.",
			zap.String("worker_id", workerID),
			zap.String("old_identity", e.identity),
			zap.String("identity", identity),
		)
	}
	e.identity, e.page, e.built = identity, page, true
	c.metrics.PageBuilt(c.page)
	return page, nil
}

// Invalidate drops the worker's page, if any.
func (c *Cache[T]) Invalidate(workerID string) {
	c.entries.Delete(workerID)
}

// Len counts workers holding a built page.
func (c *Cache[T]) Len() int {
	n := 0
	c.entries.Range(func(_, v any) bool {
		e := v.(*entry[T])
		e.mu.RLock()
		if e.built {
			n++
		}
		e.mu.RUnlock()
		return true
	})
	return n
}
