// internal/report/recorder.go

// Package report records test outcomes per worker and summarizes a run.
// Rendering the records into a report document is left to the consumer.
package report

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the recorded outcome of a test or log entry.
type Status string

const (
	StatusInfo Status = "INFO"
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
	StatusSkip Status = "SKIP"
)

// Entry is one line in a test's log. Screenshot holds an inline base64 PNG.
type Entry struct {
	Time       time.Time `json:"time"`
	Status     Status    `json:"status"`
	Message    string    `json:"message"`
	Screenshot string    `json:"screenshot,omitempty"`
}

// Test is the record of one executed test.
type Test struct {
	mu sync.Mutex

	Name       string    `json:"name"`
	WorkerID   string    `json:"worker_id"`
	Categories []string  `json:"categories,omitempty"`
	Started    time.Time `json:"started"`
	Ended      time.Time `json:"ended,omitempty"`
	Status     Status    `json:"status,omitempty"`
	Entries    []Entry   `json:"entries"`
}

// Log appends an entry. screenshot may be empty.
func (t *Test) Log(status Status, message, screenshot string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Entries = append(t.Entries, Entry{Time: time.Now(), Status: status, Message: message, Screenshot: screenshot})
}

func (t *Test) Info(message, screenshot string) { t.Log(StatusInfo, message, screenshot) }
func (t *Test) Fail(message, screenshot string) { t.Log(StatusFail, message, screenshot) }

// snapshot copies t so it can be read without holding its lock.
func (t *Test) snapshot() *Test {
	t.mu.Lock()
	defer t.mu.Unlock()
	return &Test{
		Name:       t.Name,
		WorkerID:   t.WorkerID,
		Categories: append([]string(nil), t.Categories...),
		Started:    t.Started,
		Ended:      t.Ended,
		Status:     t.Status,
		Entries:    append([]Entry(nil), t.Entries...),
	}
}

// Recorder tracks the active test of each worker and the finished tests of a run.
type Recorder struct {
	logger *zap.Logger

	mu         sync.Mutex
	systemInfo map[string]string
	active     map[string]*Test
	finished   []*Test
	summary    Summary
}

// NewRecorder returns an empty Recorder.
func NewRecorder(logger *zap.Logger) *Recorder {
	return &Recorder{
		logger:     logger.Named("report"),
		systemInfo: make(map[string]string),
		active:     make(map[string]*Test),
	}
}

// SetSystemInfo records a run-level attribute such as the environment or browser.
func (r *Recorder) SetSystemInfo(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.systemInfo[key] = value
}

func (r *Recorder) SystemInfo() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.systemInfo))
	for k, v := range r.systemInfo {
		out[k] = v
	}
	return out
}

// Begin starts a test for the worker, replacing any test still active for it.
func (r *Recorder) Begin(workerID, name string, categories ...string) *Test {
	t := &Test{Name: name, WorkerID: workerID, Categories: categories, Started: time.Now()}

	r.mu.Lock()
	prev := r.active[workerID]
	r.active[workerID] = t
	r.mu.Unlock()

	if prev != nil {
		r.logger.Warn("Replacing a test that was never ended.", zap.String("worker_id", workerID), zap.String("test", prev.Name))
	}
	r.logger.Debug("Test started.", zap.String("worker_id", workerID), zap.String("test", name), zap.Strings("categories", categories))
	return t
}

// Active returns the worker's current test.
func (r *Recorder) Active(workerID string) (*Test, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.active[workerID]
	return t, ok
}

// End finishes the worker's active test with status, counts it, and returns a
// copy of the finished record.
func (r *Recorder) End(workerID string, status Status, reason string) *Test {
	r.mu.Lock()
	t, ok := r.active[workerID]
	delete(r.active, workerID)
	r.mu.Unlock()

	if !ok {
		r.logger.Warn("No active test to end.", zap.String("worker_id", workerID), zap.String("status", string(status)))
		return nil
	}

	msg := fmt.Sprintf("Test %s: %s", statusVerb(status), t.Name)
	if reason != "" {
		msg += " - " + reason
	}
	t.Log(status, msg, "")

	t.mu.Lock()
	t.Ended = time.Now()
	t.Status = status
	t.mu.Unlock()

	r.mu.Lock()
	r.finished = append(r.finished, t)
	r.summary.add(status)
	r.mu.Unlock()

	r.logger.Info("Test finished.", zap.String("worker_id", workerID), zap.String("test", t.Name), zap.String("status", string(status)))
	return t.snapshot()
}

func statusVerb(s Status) string {
	switch s {
	case StatusPass:
		return "Passed"
	case StatusFail:
		return "Failed"
	case StatusSkip:
		return "Skipped"
	default:
		return string(s)
	}
}

// Tests returns copies of the finished tests in completion order.
func (r *Recorder) Tests() []*Test {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Test, len(r.finished))
	for i, t := range r.finished {
		out[i] = t.snapshot()
	}
	return out
}

// Summary returns the aggregate counts of finished tests.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}
