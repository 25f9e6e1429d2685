// internal/session/registry_test.go

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/uiharness/internal/browser"
	"github.com/xkilldash9x/uiharness/internal/browser/browsertest"
	"github.com/xkilldash9x/uiharness/internal/metrics"
)

func stubCreator(remoteID string) Creator {
	return func(context.Context) (browser.Driver, error) {
		return browsertest.New(remoteID), nil
	}
}

func TestRegistry_BindAndGet(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t), WithIDGenerator(func() string { return "local-1" }))

	_, ok := r.Get("w1")
	assert.False(t, ok, "nothing is bound before the first Bind")

	sess, err := r.Bind("w1", browsertest.New(""))
	require.NoError(t, err)
	assert.Equal(t, "local-1", sess.ID())
	assert.False(t, sess.Remote())
	assert.Equal(t, "w1", sess.WorkerID())
	assert.Equal(t, StateActive, sess.State())
	assert.WithinDuration(t, time.Now(), sess.CreatedAt(), time.Second)

	got, ok := r.Get("w1")
	require.True(t, ok)
	assert.Same(t, sess, got)
}

func TestRegistry_RemoteIdentity(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))

	sess, err := r.Bind("w1", browsertest.New("target-42"))
	require.NoError(t, err)
	assert.Equal(t, "target-42", sess.ID())
	assert.True(t, sess.Remote())

	_, err = r.Bind("w2", browsertest.New("target-42"))
	assert.ErrorIs(t, err, ErrSessionInUse)

	require.NoError(t, r.Release(context.Background(), "w1"))
	_, err = r.Bind("w2", browsertest.New("target-42"))
	assert.NoError(t, err, "the remote id is free again after release")
}

func TestRegistry_SecondBindIsRejected(t *testing.T) {
	r := NewRegistry(zaptest.NewLogger(t))
	_, err := r.Bind("w1", browsertest.New(""))
	require.NoError(t, err)

	_, err = r.Bind("w1", browsertest.New(""))
	assert.ErrorIs(t, err, ErrAlreadyBound)
}

func TestRegistry_Release(t *testing.T) {
	t.Run("closes, quits and forgets the session", func(t *testing.T) {
		m := metrics.New()
		r := NewRegistry(zaptest.NewLogger(t), WithMetrics(m))
		d := browsertest.New("")
		sess, err := r.Bind("w1", d)
		require.NoError(t, err)

		require.NoError(t, r.Release(context.Background(), "w1"))
		assert.Equal(t, StateClosed, sess.State())
		assert.Equal(t, 1, d.QuitCount())
		assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionsActive))

		_, ok := r.Get("w1")
		assert.False(t, ok)

		next, err := r.GetOrCreate(context.Background(), "w1", stubCreator(""))
		require.NoError(t, err)
		assert.NotSame(t, sess, next, "a closed session is never reused")
	})

	t.Run("logs quit failures without returning them", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		r := NewRegistry(zap.New(core))
		d := browsertest.New("")
		d.QuitErr = errors.New("browser already gone")
		_, err := r.Bind("w1", d)
		require.NoError(t, err)

		assert.NoError(t, r.Release(context.Background(), "w1"))
		require.Equal(t, 1, logs.FilterMessage("Browser quit failed; continuing teardown.").Len())
	})

	t.Run("quits even when the caller is cancelled", func(t *testing.T) {
		r := NewRegistry(zaptest.NewLogger(t))
		d := browsertest.New("")
		_, err := r.Bind("w1", d)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.NoError(t, r.Release(ctx, "w1"))
		assert.Equal(t, 1, d.QuitCount())
	})

	t.Run("reports a missing session", func(t *testing.T) {
		r := NewRegistry(zaptest.NewLogger(t))
		assert.ErrorIs(t, r.Release(context.Background(), "nobody"), ErrNoSession)
	})
}

func TestRegistry_GetOrCreate(t *testing.T) {
	t.Run("creates lazily and only once", func(t *testing.T) {
		r := NewRegistry(zaptest.NewLogger(t))
		calls := 0
		create := func(context.Context) (browser.Driver, error) {
			calls++
			return browsertest.New(""), nil
		}

		first, err := r.GetOrCreate(context.Background(), "w1", create)
		require.NoError(t, err)
		second, err := r.GetOrCreate(context.Background(), "w1", create)
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Equal(t, 1, calls)
	})

	t.Run("returns creation failures unchanged", func(t *testing.T) {
		m := metrics.New()
		r := NewRegistry(zaptest.NewLogger(t), WithMetrics(m))
		boom := &browser.SessionCreationError{Strategy: "driver-local", Kind: browser.KindChrome, Err: errors.New("no chrome")}

		_, err := r.GetOrCreate(context.Background(), "w1", func(context.Context) (browser.Driver, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, browser.ErrSessionCreation)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionFailures))

		_, ok := r.Get("w1")
		assert.False(t, ok)
	})

	t.Run("quits a driver that cannot be bound", func(t *testing.T) {
		r := NewRegistry(zaptest.NewLogger(t))
		_, err := r.Bind("w1", browsertest.New("dup"))
		require.NoError(t, err)

		d := browsertest.New("dup")
		_, err = r.GetOrCreate(context.Background(), "w2", func(context.Context) (browser.Driver, error) { return d, nil })
		assert.ErrorIs(t, err, ErrSessionInUse)
		assert.Equal(t, 1, d.QuitCount())
	})
}

func TestRegistry_AffinityUnderConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRegistry(zaptest.NewLogger(t))
	const workers, rounds = 16, 50

	seen := make([]*Session, workers)
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("worker-%d", i)
			for j := 0; j < rounds; j++ {
				sess, err := r.GetOrCreate(context.Background(), id, stubCreator(""))
				if err != nil {
					errs <- err
					return
				}
				if seen[i] == nil {
					seen[i] = sess
				} else if seen[i] != sess {
					errs <- fmt.Errorf("%s observed two sessions", id)
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	ids := make(map[string]bool)
	for i, sess := range seen {
		require.NotNil(t, sess, "worker %d", i)
		assert.False(t, ids[sess.ID()], "session identities must be distinct")
		ids[sess.ID()] = true
	}

	r.ReleaseAll(context.Background())
	for i := 0; i < workers; i++ {
		_, ok := r.Get(fmt.Sprintf("worker-%d", i))
		assert.False(t, ok)
	}
}

func TestRegistry_ConcurrentReleaseAndCreate(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRegistry(zaptest.NewLogger(t))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("worker-%d", i)
			for j := 0; j < 20; j++ {
				sess, err := r.GetOrCreate(context.Background(), id, stubCreator(""))
				if !assert.NoError(t, err) {
					return
				}
				assert.True(t, sess.Active())
				assert.NoError(t, r.Release(context.Background(), id))
				assert.False(t, sess.Active())
			}
		}(i)
	}
	wg.Wait()
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "UNINITIALIZED", StateUninitialized.String())
	assert.Equal(t, "ACTIVE", StateActive.String())
	assert.Equal(t, "CLOSED", StateClosed.String())
}
