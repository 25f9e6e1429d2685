// internal/browser/context_utils_test.go

package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

type ctxKey string

func TestCombineContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	const key ctxKey = "target"

	t.Run("inherits values from the value context", func(t *testing.T) {
		valueCtx := context.WithValue(context.Background(), key, "tab-1")
		combined, cancel := CombineContext(valueCtx, context.Background())
		defer cancel()

		assert.Equal(t, "tab-1", combined.Value(key))
		assert.NoError(t, combined.Err())
	})

	t.Run("is canceled by the value context", func(t *testing.T) {
		valueCtx, cancelValue := context.WithCancel(context.Background())
		combined, cancel := CombineContext(valueCtx, context.Background())
		defer cancel()

		cancelValue()
		<-combined.Done()
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})

	t.Run("is canceled when the operation deadline passes", func(t *testing.T) {
		opCtx, cancelOp := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancelOp()
		combined, cancel := CombineContext(context.Background(), opCtx)
		defer cancel()

		select {
		case <-combined.Done():
		case <-time.After(time.Second):
			t.Fatal("combined context outlived the operation deadline")
		}
		assert.ErrorIs(t, combined.Err(), context.Canceled)
	})
}

func TestDetach(t *testing.T) {
	const key ctxKey = "worker"

	parent, cancel := context.WithTimeout(context.WithValue(context.Background(), key, "worker-1"), time.Millisecond)
	cancel()

	detached := Detach(parent)
	assert.Equal(t, "worker-1", detached.Value(key))
	assert.NoError(t, detached.Err())
	assert.Nil(t, detached.Done())
	_, hasDeadline := detached.Deadline()
	assert.False(t, hasDeadline)
}
