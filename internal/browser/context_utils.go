// internal/browser/context_utils.go

package browser

import (
	"context"
	"time"
)

// CombineContext returns a context that carries the values of valueCtx (for
// chromedp, the browser target) and is canceled when either valueCtx or opCtx is.
// opCtx typically carries the caller's deadline.
func CombineContext(valueCtx, opCtx context.Context) (context.Context, context.CancelFunc) {
	combinedCtx, cancel := context.WithCancel(valueCtx)

	go func() {
		select {
		case <-opCtx.Done():
			cancel()
		case <-combinedCtx.Done():
		}
	}()

	return combinedCtx, cancel
}

// valueOnlyContext keeps the values of its parent but drops its deadline and cancellation.
type valueOnlyContext struct {
	context.Context
}

func (valueOnlyContext) Deadline() (deadline time.Time, ok bool) { return }
func (valueOnlyContext) Done() <-chan struct{}                   { return nil }
func (valueOnlyContext) Err() error                              { return nil }

// Detach returns a context that inherits values from ctx but is not canceled when ctx is.
// Browser processes are allocated under a detached context so that they outlive
// the call that created them; their lifetime ends with Driver.Quit instead.
func Detach(ctx context.Context) context.Context {
	return valueOnlyContext{ctx}
}
