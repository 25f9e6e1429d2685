// internal/failure/reporter.go

// Package failure captures screenshot evidence for failed actions and tests.
//
// Nothing in this package returns an error or panics to its caller: it runs on
// failure paths and must never replace the failure being reported.
package failure

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/uiharness/internal/browser"
	"github.com/xkilldash9x/uiharness/internal/config"
	"github.com/xkilldash9x/uiharness/internal/metrics"
	"github.com/xkilldash9x/uiharness/internal/report"
	"github.com/xkilldash9x/uiharness/internal/session"
)

const (
	defaultName      = "screenshot"
	timestampLayout  = "20060102_150405"
	maxNameCollision = 5
)

// Artifact describes one captured screenshot.
type Artifact struct {
	Name      string
	Path      string
	Inline    string
	Timestamp time.Time
	// Cause links the capture to the failure that triggered it, if any.
	Cause error
}

// Reporter writes screenshots to the artifacts directory and attaches them to
// the worker's active report test.
type Reporter struct {
	logger   *zap.Logger
	metrics  *metrics.Metrics
	recorder *report.Recorder
	now      func() time.Time

	dir            string
	captureTimeout time.Duration
	nameMaxLength  int
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithMetrics counts every capture attempt by target and result. A nil m disables counting.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reporter) { r.metrics = m }
}

// WithClock replaces time.Now for timestamps and retention cutoffs.
func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

// NewReporter returns a Reporter configured by cfg. recorder may be nil, in
// which case attachments only log a warning.
func NewReporter(cfg config.ArtifactsConfig, recorder *report.Recorder, logger *zap.Logger, opts ...Option) *Reporter {
	r := &Reporter{
		logger:         logger.Named("failure_reporter"),
		recorder:       recorder,
		now:            time.Now,
		dir:            cfg.ScreenshotsDir,
		captureTimeout: cfg.CaptureTimeout,
		nameMaxLength:  cfg.NameMaxLength,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dir is the screenshots directory.
func (r *Reporter) Dir() string { return r.dir }

// Sanitize maps name onto [A-Za-z0-9._-], replacing every other character with
// '_', and caps the result at maxLen bytes. An empty name becomes "screenshot".
func Sanitize(name string, maxLen int) string {
	if name == "" {
		return defaultName
	}
	clean := strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '_', c == '-':
			return c
		default:
			return '_'
		}
	}, name)
	if maxLen > 0 && len(clean) > maxLen {
		clean = clean[:maxLen]
	}
	return clean
}

// Timestamp formats t as yyyyMMdd_HHmmss_SSS.
func Timestamp(t time.Time) string {
	return fmt.Sprintf("%s_%03d", t.Format(timestampLayout), t.Nanosecond()/int(time.Millisecond))
}

// guard logs a recovered panic so that it never reaches the caller.
func (r *Reporter) guard(op string) {
	if p := recover(); p != nil {
		r.logger.Error("Recovered from panic in failure reporter.", zap.String("operation", op), zap.Any("panic", p))
	}
}

// screenshot takes one capture, bounded by the capture timeout. The caller's
// cancellation is ignored so evidence is still collected on a cancelled test.
func (r *Reporter) screenshot(ctx context.Context, sess *session.Session) ([]byte, error) {
	if sess == nil || sess.Driver() == nil {
		return nil, session.ErrNoSession
	}
	cctx, cancel := context.WithTimeout(browser.Detach(ctx), r.captureTimeout)
	defer cancel()

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("screenshot panicked: %v", p)}
			}
		}()
		data, err := sess.Driver().Screenshot(cctx)
		done <- result{data, err}
	}()

	select {
	case res := <-done:
		if res.err == nil && len(res.data) == 0 {
			res.err = errors.New("driver returned an empty screenshot")
		}
		return res.data, res.err
	case <-cctx.Done():
		return nil, fmt.Errorf("screenshot exceeded %s: %w", r.captureTimeout, cctx.Err())
	}
}

func captureResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// CaptureToFile writes a screenshot to <dir>/<sanitized name>_<timestamp>.png
// and returns its path. It returns false when the capture or write fails.
func (r *Reporter) CaptureToFile(ctx context.Context, sess *session.Session, name string) (path string, ok bool) {
	defer r.guard("capture_to_file")

	data, err := r.screenshot(ctx, sess)
	r.metrics.Captured("file", captureResult(err))
	if err != nil {
		r.logger.Error("Error taking screenshot.", zap.String("name", name), zap.Error(err))
		return "", false
	}

	path, err = r.write(Sanitize(name, r.nameMaxLength), data)
	if err != nil {
		r.logger.Error("Failed to save screenshot.", zap.String("name", name), zap.Error(err))
		return "", false
	}
	r.logger.Info("Screenshot saved.", zap.String("path", path))
	return path, true
}

// write stores data under a unique timestamped name. A name already taken in
// the same millisecond moves on to the next millisecond.
func (r *Reporter) write(base string, data []byte) (string, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshots directory %s: %w", r.dir, err)
	}
	ts := r.now()
	for i := 0; i < maxNameCollision; i++ {
		path := filepath.Join(r.dir, base+"_"+Timestamp(ts)+".png")
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			ts = ts.Add(time.Millisecond)
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			os.Remove(path)
			return "", err
		}
		return path, f.Close()
	}
	return "", fmt.Errorf("no free file name for %s", base)
}

// CaptureInline returns the screenshot as a base64 string without touching disk.
func (r *Reporter) CaptureInline(ctx context.Context, sess *session.Session) (payload string, ok bool) {
	defer r.guard("capture_inline")

	data, err := r.screenshot(ctx, sess)
	r.metrics.Captured("inline", captureResult(err))
	if err != nil {
		r.logger.Error("Error taking inline screenshot.", zap.Error(err))
		return "", false
	}
	return base64.StdEncoding.EncodeToString(data), true
}

func (r *Reporter) activeTest(workerID, what string) (*report.Test, bool) {
	if r.recorder == nil {
		r.logger.Warn("Cannot attach "+what+": no report is configured.", zap.String("worker_id", workerID))
		return nil, false
	}
	t, ok := r.recorder.Active(workerID)
	if !ok {
		r.logger.Warn("Cannot attach "+what+": no active report test.", zap.String("worker_id", workerID))
	}
	return t, ok
}

// Attach adds message and an inline screenshot of sess to the worker's active
// report test. It does nothing but warn when no test is active.
func (r *Reporter) Attach(ctx context.Context, workerID string, sess *session.Session, message string) {
	defer r.guard("attach")

	t, ok := r.activeTest(workerID, "screenshot")
	if !ok {
		return
	}
	payload, ok := r.CaptureInline(ctx, sess)
	if !ok {
		t.Info(message, "")
		return
	}
	t.Info(message, payload)
	r.logger.Info("Screenshot attached to report.", zap.String("worker_id", workerID), zap.String("message", message))
}

// AttachFailure records a failed test: a FAILURE_<test> file, an inline
// screenshot marked as failed, and the saved path.
func (r *Reporter) AttachFailure(ctx context.Context, workerID string, sess *session.Session, testName string, cause error) *Artifact {
	defer r.guard("attach_failure")

	t, ok := r.activeTest(workerID, "failure screenshot")
	if !ok {
		return nil
	}
	if cause != nil {
		t.Fail(cause.Error(), "")
	}

	art := &Artifact{Name: "FAILURE_" + testName, Timestamp: r.now(), Cause: cause}
	art.Path, _ = r.CaptureToFile(ctx, sess, art.Name)
	payload, ok := r.CaptureInline(ctx, sess)
	if !ok {
		r.logger.Warn("Could not capture failure screenshot.", zap.String("test", testName))
		return art
	}
	art.Inline = payload
	t.Fail("Failure Screenshot", payload)
	if art.Path != "" {
		t.Info("Screenshot saved at: "+art.Path, "")
	}
	r.logger.Info("Failure screenshot attached to report.", zap.String("test", testName))
	return art
}

// CaptureError saves an ERROR_<action> screenshot and attaches an inline copy
// to the session's worker. It satisfies action.Capturer.
func (r *Reporter) CaptureError(ctx context.Context, sess *session.Session, action string, cause error) {
	defer r.guard("capture_error")

	if sess == nil {
		r.logger.Warn("Cannot capture error screenshot: no session.", zap.String("action", action))
		return
	}
	if path, ok := r.CaptureToFile(ctx, sess, "ERROR_"+action); ok {
		r.logger.Info("Error screenshot captured.", zap.String("action", action), zap.String("path", path))
	}

	msg := "Error screenshot captured during: " + action
	if cause != nil {
		msg += " (" + cause.Error() + ")"
	}
	r.Attach(ctx, sess.WorkerID(), sess, msg)
}

// CleanupOlderThan deletes .png files whose modification time is strictly
// before now minus days. It returns the number of files removed.
func (r *Reporter) CleanupOlderThan(days int) (removed int) {
	defer r.guard("cleanup")

	entries, err := os.ReadDir(r.dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0
	}
	if err != nil {
		r.logger.Error("Error during screenshot cleanup.", zap.String("dir", r.dir), zap.Error(err))
		return 0
	}

	cutoff := r.now().Add(-time.Duration(days) * 24 * time.Hour)
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasSuffix(entry.Name(), ".png") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(r.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			r.logger.Warn("Failed to delete old screenshot.", zap.String("path", path), zap.Error(err))
			continue
		}
		removed++
		r.logger.Debug("Deleted old screenshot.", zap.String("path", path))
	}
	r.logger.Info("Cleaned up old screenshots.", zap.Int("days", days), zap.Int("removed", removed))
	return removed
}
