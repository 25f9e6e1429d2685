// internal/report/summary.go

package report

import (
	"fmt"
	"time"
)

// Summary counts finished tests by outcome.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

func (s *Summary) add(status Status) {
	switch status {
	case StatusPass:
		s.Passed++
	case StatusFail:
		s.Failed++
	case StatusSkip:
		s.Skipped++
	default:
		return
	}
	s.Total++
}

// PassPercentage is Passed over Total, or 0 for an empty run.
func (s Summary) PassPercentage() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Passed) * 100 / float64(s.Total)
}

// String renders the summary as the familiar runner line.
func (s Summary) String() string {
	return fmt.Sprintf("Tests run: %d, Passed: %d, Failures: %d, Errors: 0, Skipped: %d",
		s.Total, s.Passed, s.Failed, s.Skipped)
}

// FileName is the report file name for the day of now.
func FileName(now time.Time) string {
	return "ExtentReport_" + now.Format("02-01-2006") + ".html"
}
