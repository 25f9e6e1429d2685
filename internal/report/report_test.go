// internal/report/report_test.go

package report

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestFileName(t *testing.T) {
	now := time.Date(2025, time.March, 7, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "ExtentReport_07-03-2025.html", FileName(now))
}

func TestSummary(t *testing.T) {
	s := Summary{}
	for _, st := range []Status{StatusPass, StatusPass, StatusPass, StatusFail, StatusSkip, StatusInfo} {
		s.add(st)
	}
	assert.Equal(t, Summary{Total: 5, Passed: 3, Failed: 1, Skipped: 1}, s)
	assert.InDelta(t, 60.0, s.PassPercentage(), 0.0001)
	assert.Equal(t, "Tests run: 5, Passed: 3, Failures: 1, Errors: 0, Skipped: 1", s.String())
	assert.Zero(t, Summary{}.PassPercentage())
}

func TestRecorder_Lifecycle(t *testing.T) {
	r := NewRecorder(zaptest.NewLogger(t))

	_, ok := r.Active("w1")
	assert.False(t, ok)

	test := r.Begin("w1", "HomeScreenTest.verifySearch", "smoke", "home")
	active, ok := r.Active("w1")
	require.True(t, ok)
	assert.Same(t, test, active)

	test.Info("opened home page", "")
	test.Fail("Failure Screenshot", "aGVsbG8=")

	done := r.End("w1", StatusFail, "element missing")
	require.NotNil(t, done)
	assert.Equal(t, StatusFail, done.Status)
	assert.False(t, done.Ended.IsZero())
	require.Len(t, done.Entries, 3)
	assert.Equal(t, "aGVsbG8=", done.Entries[1].Screenshot)
	assert.Equal(t, "Test Failed: HomeScreenTest.verifySearch - element missing", done.Entries[2].Message)

	_, ok = r.Active("w1")
	assert.False(t, ok, "End clears the active test")
	assert.Equal(t, Summary{Total: 1, Failed: 1}, r.Summary())
}

func TestRecorder_EndWithoutActiveTest(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	r := NewRecorder(zap.New(core))

	assert.Nil(t, r.End("ghost", StatusPass, ""))
	assert.Equal(t, 1, logs.FilterMessage("No active test to end.").Len())
	assert.Zero(t, r.Summary().Total)
}

func TestRecorder_WorkersAreIndependent(t *testing.T) {
	r := NewRecorder(zaptest.NewLogger(t))
	const workers = 12

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("w%d", i)
			for j := 0; j < 10; j++ {
				test := r.Begin(id, fmt.Sprintf("case-%d", j))
				test.Info("step", "")
				active, ok := r.Active(id)
				assert.True(t, ok)
				assert.Same(t, test, active)
				status := StatusPass
				if j%5 == 0 {
					status = StatusSkip
				}
				r.End(id, status, "")
			}
		}(i)
	}
	wg.Wait()

	s := r.Summary()
	assert.Equal(t, workers*10, s.Total)
	assert.Equal(t, workers*2, s.Skipped)
	assert.Len(t, r.Tests(), workers*10)
}

func TestWriteJSON(t *testing.T) {
	r := NewRecorder(zaptest.NewLogger(t))
	r.SetSystemInfo("environment", "qa")
	r.Begin("w1", "passes")
	r.End("w1", StatusPass, "")

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, r.Snapshot()))

	var decoded map[string]interface{}
	require.NoError(t, jsoniter.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 100.0, decoded["pass_percentage"])
	assert.Equal(t, "qa", decoded["system_info"].(map[string]interface{})["environment"])
	tests := decoded["tests"].([]interface{})
	require.Len(t, tests, 1)
	assert.Equal(t, "PASS", tests[0].(map[string]interface{})["status"])
}

func TestOpen(t *testing.T) {
	t.Run("stdout is not closed", func(t *testing.T) {
		w, err := Open("")
		require.NoError(t, err)
		assert.NoError(t, w.Close())
	})

	t.Run("creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reports", "nested", "run.json")
		w, err := Open(path)
		require.NoError(t, err)
		_, err = w.Write([]byte("{}"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "{}", string(data))
	})
}
