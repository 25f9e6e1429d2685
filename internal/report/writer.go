// internal/report/writer.go

package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Document is the serialized form of a run.
type Document struct {
	GeneratedAt    time.Time         `json:"generated_at"`
	SystemInfo     map[string]string `json:"system_info"`
	Summary        Summary           `json:"summary"`
	PassPercentage float64           `json:"pass_percentage"`
	Tests          []*Test           `json:"tests"`
}

// Snapshot captures the recorder's current state as a Document.
func (r *Recorder) Snapshot() Document {
	s := r.Summary()
	return Document{
		GeneratedAt:    time.Now(),
		SystemInfo:     r.SystemInfo(),
		Summary:        s,
		PassPercentage: s.PassPercentage(),
		Tests:          r.Tests(),
	}
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// Open returns a writer for path. An empty path or "stdout" writes to stdout,
// which Close leaves open. Parent directories are created on demand.
func Open(path string) (io.WriteCloser, error) {
	if path == "" || path == "stdout" {
		return nopWriteCloser{os.Stdout}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	return f, nil
}

// WriteJSON encodes doc as indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
