// internal/session/registry.go

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiharness/internal/browser"
	"github.com/xkilldash9x/uiharness/internal/metrics"
)

var (
	// ErrAlreadyBound is returned by Bind when the worker still holds an Active session.
	ErrAlreadyBound = errors.New("worker already has an active session")
	// ErrNoSession is returned when a worker has no session to operate on.
	ErrNoSession = errors.New("worker has no active session")
	// ErrSessionInUse is returned when a driver's remote id is already bound to another worker.
	ErrSessionInUse = errors.New("browser session is bound to another worker")
)

const defaultQuitTimeout = 10 * time.Second

// Creator starts the driver for a worker's new session.
type Creator func(ctx context.Context) (browser.Driver, error)

// slot is the per-worker entry. Its mutex serializes bind and release for one
// worker without blocking any other.
type slot struct {
	mu   sync.Mutex
	sess *Session
}

// Registry tracks the Active session of every worker.
type Registry struct {
	logger      *zap.Logger
	metrics     *metrics.Metrics
	quitTimeout time.Duration
	newID       func() string

	slots     sync.Map // worker id -> *slot
	remoteIDs sync.Map // remote id -> worker id
}

// Option configures a Registry.
type Option func(*Registry)

// WithQuitTimeout bounds how long Release waits for the browser to quit.
func WithQuitTimeout(d time.Duration) Option {
	return func(r *Registry) { r.quitTimeout = d }
}

// WithMetrics tracks bound, released and failed sessions on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithIDGenerator replaces the UUID generator used for sessions without a remote id.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) { r.newID = fn }
}

// NewRegistry returns an empty Registry. Sessions without a remote id get a
// random UUID unless WithIDGenerator says otherwise.
func NewRegistry(logger *zap.Logger, opts ...Option) *Registry {
	r := &Registry{
		logger:      logger.Named("session_registry"),
		quitTimeout: defaultQuitTimeout,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// lockSlot returns the worker's slot locked. A slot removed by Release while
// the caller waited for its lock is discarded and a fresh one is used.
func (r *Registry) lockSlot(workerID string) *slot {
	for {
		v, _ := r.slots.LoadOrStore(workerID, &slot{})
		s := v.(*slot)
		s.mu.Lock()
		if cur, ok := r.slots.Load(workerID); ok && cur == s {
			return s
		}
		s.mu.Unlock()
	}
}

// Get returns the worker's Active session.
func (r *Registry) Get(workerID string) (*Session, bool) {
	v, ok := r.slots.Load(workerID)
	if !ok {
		return nil, false
	}
	s := v.(*slot)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil || !s.sess.Active() {
		return nil, false
	}
	return s.sess, true
}

// Bind makes driver the worker's Active session. Binding twice without a
// Release in between is a programming error and returns ErrAlreadyBound.
func (r *Registry) Bind(workerID string, driver browser.Driver) (*Session, error) {
	s := r.lockSlot(workerID)
	defer s.mu.Unlock()
	return r.bindLocked(s, workerID, driver)
}

func (r *Registry) bindLocked(s *slot, workerID string, driver browser.Driver) (*Session, error) {
	if s.sess != nil && s.sess.Active() {
		return nil, fmt.Errorf("%w: worker %s, session %s", ErrAlreadyBound, workerID, s.sess.id)
	}

	sess := &Session{workerID: workerID, createdAt: time.Now(), driver: driver}
	if remoteID := driver.RemoteID(); remoteID != "" {
		if owner, loaded := r.remoteIDs.LoadOrStore(remoteID, workerID); loaded && owner != workerID {
			return nil, fmt.Errorf("%w: %s is owned by worker %v", ErrSessionInUse, remoteID, owner)
		}
		sess.id, sess.remote = remoteID, true
	} else {
		sess.id = r.newID()
	}
	sess.state.Store(int32(StateActive))
	s.sess = sess

	r.metrics.SessionBound()
	r.logger.Info("Session bound.",
		zap.String("worker_id", workerID),
		zap.String("session_id", sess.id),
		zap.Bool("remote_identity", sess.remote),
	)
	return sess, nil
}

// GetOrCreate returns the worker's Active session, creating and binding one
// with create on first access. Creation failures are returned unchanged.
func (r *Registry) GetOrCreate(ctx context.Context, workerID string, create Creator) (*Session, error) {
	s := r.lockSlot(workerID)
	defer s.mu.Unlock()

	if s.sess != nil && s.sess.Active() {
		return s.sess, nil
	}

	r.logger.Debug("Creating session for worker.", zap.String("worker_id", workerID))
	driver, err := create(ctx)
	if err != nil {
		r.metrics.SessionFailed()
		return nil, err
	}
	sess, err := r.bindLocked(s, workerID, driver)
	if err != nil {
		r.quit(ctx, workerID, "", driver)
		return nil, err
	}
	return sess, nil
}

// Release closes the worker's session and forgets it, so the next GetOrCreate
// starts a new one. Quit failures are logged and not returned.
func (r *Registry) Release(ctx context.Context, workerID string) error {
	v, ok := r.slots.Load(workerID)
	if !ok {
		return fmt.Errorf("%w: worker %s", ErrNoSession, workerID)
	}
	s := v.(*slot)
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sess
	if sess == nil || !sess.Active() {
		return fmt.Errorf("%w: worker %s", ErrNoSession, workerID)
	}
	sess.state.Store(int32(StateClosed))
	s.sess = nil
	r.slots.Delete(workerID)
	if sess.remote {
		r.remoteIDs.Delete(sess.id)
	}
	r.metrics.SessionReleased()

	r.quit(ctx, workerID, sess.id, sess.driver)
	r.logger.Info("Session released.", zap.String("worker_id", workerID), zap.String("session_id", sess.id))
	return nil
}

// ReleaseAll releases every Active session. It is used at suite teardown.
func (r *Registry) ReleaseAll(ctx context.Context) {
	var workers []string
	r.slots.Range(func(key, _ any) bool {
		workers = append(workers, key.(string))
		return true
	})
	for _, w := range workers {
		if err := r.Release(ctx, w); err != nil && !errors.Is(err, ErrNoSession) {
			r.logger.Warn("Failed to release session.", zap.String("worker_id", w), zap.Error(err))
		}
	}
}

// quit closes the browser within quitTimeout. It runs on a detached context so
// a cancelled caller cannot leave the browser process behind.
func (r *Registry) quit(ctx context.Context, workerID, sessionID string, driver browser.Driver) {
	ctx, cancel := context.WithTimeout(browser.Detach(ctx), r.quitTimeout)
	defer cancel()
	if err := driver.Quit(ctx); err != nil {
		r.logger.Warn("Browser quit failed; continuing teardown.",
			zap.String("worker_id", workerID),
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
}
