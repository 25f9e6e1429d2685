// cmd/uiharness/main_test.go

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(errors.New("test failures: 1 of 3")))
	assert.Equal(t, 130, exitCode(fmt.Errorf("run: %w", context.Canceled)))
}

func TestHandlePanic(t *testing.T) {
	defer resetMocks()

	t.Run("writes the panic log", func(t *testing.T) {
		var (
			path    string
			written string
			code    = -1
		)
		osWriteFile = func(name string, data []byte, perm os.FileMode) error {
			path, written = name, string(data)
			return nil
		}
		osExit = func(c int) { code = c }

		func() {
			defer handlePanic()
			panic("registry corrupted")
		}()

		assert.Equal(t, panicLogFile, path)
		assert.Contains(t, written, "panic: registry corrupted")
		assert.Contains(t, written, "goroutine")
		assert.Equal(t, 2, code)
	})

	t.Run("falls back to stderr when the log cannot be written", func(t *testing.T) {
		code := -1
		osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only filesystem") }
		osExit = func(c int) { code = c }

		func() {
			defer handlePanic()
			panic("boom")
		}()
		assert.Equal(t, 2, code)
	})

	t.Run("no panic is a no-op", func(t *testing.T) {
		osExit = func(int) { require.Fail(t, "exit must not be called") }
		func() {
			defer handlePanic()
		}()
	})
}
