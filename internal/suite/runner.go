// internal/suite/runner.go

// Package suite runs test cases across parallel workers, each with its own
// browser session, and records their outcomes.
package suite

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/uiharness/internal/action"
	"github.com/xkilldash9x/uiharness/internal/browser"
	"github.com/xkilldash9x/uiharness/internal/config"
	"github.com/xkilldash9x/uiharness/internal/failure"
	"github.com/xkilldash9x/uiharness/internal/metrics"
	"github.com/xkilldash9x/uiharness/internal/pages"
	"github.com/xkilldash9x/uiharness/internal/report"
	"github.com/xkilldash9x/uiharness/internal/session"
)

// SessionFactory starts browsers. *browser.Factory implements it.
type SessionFactory interface {
	CreateSession(ctx context.Context, cfg config.BrowserConfig) (browser.Driver, error)
}

// Case is one test. Run returns nil to pass, an error wrapping ErrSkip to
// skip, and any other error to fail.
type Case struct {
	Name       string
	Categories []string
	Run        func(t *T) error
}

// Runner distributes cases over workers. Each worker owns one session at a time.
type Runner struct {
	cfg      config.Interface
	logger   *zap.Logger
	factory  SessionFactory
	registry *session.Registry
	recorder *report.Recorder
	reporter *failure.Reporter
	pages    *pages.Set
	metrics  *metrics.Metrics
	runID    string
}

// Option configures a Runner.
type Option func(*Runner)

// WithMetrics shares m with every layer the runner builds: its own registry, the
// failure reporter, the page caches and each worker's action engine.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithRegistry replaces the runner's session registry.
func WithRegistry(reg *session.Registry) Option {
	return func(r *Runner) { r.registry = reg }
}

// NewRunner wires a runner from cfg. Options are applied before the
// registry, recorder, reporter and page caches are created, so they all share
// the configured metrics.
func NewRunner(cfg config.Interface, factory SessionFactory, logger *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		logger:  logger.Named("suite"),
		factory: factory,
		runID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = session.NewRegistry(logger, session.WithMetrics(r.metrics))
	}
	r.recorder = report.NewRecorder(logger)
	r.reporter = failure.NewReporter(cfg.Artifacts(), r.recorder, logger, failure.WithMetrics(r.metrics))
	r.pages = pages.NewSet(logger, r.metrics)
	return r
}

// Accessors for the collaborators built by NewRunner.
func (r *Runner) Recorder() *report.Recorder  { return r.recorder }
func (r *Runner) Reporter() *failure.Reporter { return r.reporter }
func (r *Runner) Registry() *session.Registry { return r.registry }
func (r *Runner) RunID() string               { return r.runID }

// Run executes cases and returns the summary once every worker is done.
// Case i runs on worker i mod workers; a worker runs its cases in order.
func (r *Runner) Run(ctx context.Context, cases []Case) report.Summary {
	env := r.cfg.Environment()
	r.recorder.SetSystemInfo("Environment", env.Name)
	r.recorder.SetSystemInfo("Browser", r.cfg.Browser().Kind)
	r.recorder.SetSystemInfo("Platform", string(env.Platform))
	r.recorder.SetSystemInfo("Host", r.cfg.Host())
	r.recorder.SetSystemInfo("Run ID", r.runID)

	workers := r.cfg.Suite().Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(cases) {
		workers = len(cases)
	}
	r.logger.Info("Starting suite.",
		zap.String("run_id", r.runID),
		zap.Int("cases", len(cases)),
		zap.Int("workers", workers),
	)

	buckets := make([][]Case, workers)
	for i, c := range cases {
		buckets[i%workers] = append(buckets[i%workers], c)
	}

	var g errgroup.Group
	for i, bucket := range buckets {
		workerID := fmt.Sprintf("worker-%d", i+1)
		g.Go(func() error {
			r.runWorker(ctx, workerID, bucket)
			return nil
		})
	}
	_ = g.Wait()

	summary := r.recorder.Summary()
	r.logger.Info(summary.String(), zap.String("run_id", r.runID), zap.Float64("pass_percentage", summary.PassPercentage()))
	return summary
}

func (r *Runner) runWorker(ctx context.Context, workerID string, cases []Case) {
	logger := r.logger.With(zap.String("worker_id", workerID))
	defer func() {
		// Teardown runs even for a cancelled suite.
		if err := r.registry.Release(browser.Detach(ctx), workerID); err != nil && !errors.Is(err, session.ErrNoSession) {
			logger.Warn("Session release failed.", zap.Error(err))
		}
		r.pages.Forget(workerID)
	}()

	var setupErr error
	for _, c := range cases {
		r.recorder.Begin(workerID, c.Name, c.Categories...)
		switch {
		case setupErr != nil:
			r.finish(workerID, report.StatusSkip, "browser session could not be created: "+setupErr.Error())
			continue
		case ctx.Err() != nil:
			r.finish(workerID, report.StatusSkip, "suite cancelled")
			continue
		}

		sess, err := r.registry.GetOrCreate(ctx, workerID, func(ctx context.Context) (browser.Driver, error) {
			return r.factory.CreateSession(ctx, r.cfg.Browser())
		})
		if err != nil {
			logger.Error("Worker setup failed; skipping its remaining cases.", zap.Error(err))
			setupErr = err
			r.finish(workerID, report.StatusSkip, "browser session could not be created: "+err.Error())
			continue
		}
		r.runCase(ctx, workerID, sess, c)
	}
}

func (r *Runner) runCase(ctx context.Context, workerID string, sess *session.Session, c Case) {
	engine := action.New(sess, r.cfg.Browser(), r.logger, action.WithCapturer(r.reporter), action.WithMetrics(r.metrics))
	t := &T{
		ctx:      ctx,
		name:     c.Name,
		workerID: workerID,
		engine:   engine,
		pages:    r.pages,
		baseURL:  r.cfg.Environment().BaseURL,
		logger:   r.logger.With(zap.String("worker_id", workerID), zap.String("test", c.Name)),
		recorder: r.recorder,
	}

	start := time.Now()
	err := r.invoke(t, c)
	t.logger.Debug("Case returned.", zap.Duration("elapsed", time.Since(start)), zap.Error(err))

	switch {
	case err == nil:
		r.finish(workerID, report.StatusPass, "")
	case errors.Is(err, ErrSkip):
		r.finish(workerID, report.StatusSkip, err.Error())
	default:
		// The failure screenshot must come from the session the case ran on,
		// before anything else touches the browser.
		r.reporter.AttachFailure(ctx, workerID, sess, c.Name, err)
		r.finish(workerID, report.StatusFail, err.Error())
	}
}

// invoke runs the case body, turning a panic into a failure.
func (r *Runner) invoke(t *T, c Case) (err error) {
	defer func() {
		if p := recover(); p != nil {
			t.logger.Error("Case panicked.", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	if c.Run == nil {
		return fmt.Errorf("%w: case has no body", ErrSkip)
	}
	return c.Run(t)
}

func (r *Runner) finish(workerID string, status report.Status, reason string) {
	r.recorder.End(workerID, status, reason)
	r.metrics.CaseFinished(string(status))
}
