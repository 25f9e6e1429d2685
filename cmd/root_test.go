// cmd/root_test.go

package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/uiharness/internal/config"
)

// isolate points every writable location at a temp dir and quiets the logger.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("UIHARNESS_ARTIFACTS_SCREENSHOTS_DIR", filepath.Join(dir, "screenshots"))
	t.Setenv("UIHARNESS_ARTIFACTS_REPORTS_DIR", filepath.Join(dir, "reports"))
	t.Setenv("UIHARNESS_LOGGER_LEVEL", "error")
	return dir
}

func executeCommand(t *testing.T, root *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

// withProbe adds a subcommand that captures the loaded configuration.
func withProbe(root *cobra.Command, got **config.Config) *cobra.Command {
	root.AddCommand(&cobra.Command{
		Use: "probe",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			*got = cfg
			return err
		},
	})
	return root
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "uiharness.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRootCmd_VersionFlag(t *testing.T) {
	out, err := executeCommand(t, NewRootCommand(), "--version")
	require.NoError(t, err)
	assert.Equal(t, "uiharness version "+Version+"\n", out)
}

func TestRootCmd_NoArgs(t *testing.T) {
	out, err := executeCommand(t, NewRootCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "uiharness drives browser UI suites")
	for _, sub := range []string{"run", "classify", "cleanup", "version"} {
		assert.Contains(t, out, sub)
	}
}

func TestVersionCmd(t *testing.T) {
	// A broken config file must not matter.
	out, err := executeCommand(t, NewRootCommand(), "version", "--config", "/does/not/exist.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "uiharness "+Version)
}

func TestConfigLoading(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		isolate(t)
		var cfg *config.Config
		_, err := executeCommand(t, withProbe(NewRootCommand(), &cfg), "probe")
		require.NoError(t, err)

		assert.Equal(t, "dev", cfg.Environment().Name)
		assert.Equal(t, "http://localhost:3000", cfg.Environment().BaseURL)
		assert.Equal(t, config.PlatformMac, cfg.Environment().Platform)
		assert.Equal(t, "chrome", cfg.Browser().Kind)
		assert.Equal(t, "local", cfg.Host())
		assert.Equal(t, 5*time.Second, cfg.Browser().ExplicitWait)
		assert.True(t, cfg.Browser().WindowMaximize)
		assert.Equal(t, 2, cfg.Suite().Workers)
	})

	t.Run("environment variables", func(t *testing.T) {
		isolate(t)
		t.Setenv("UIHARNESS_ENV", "testing")
		t.Setenv("UIHARNESS_BROWSER", "Firefox")
		t.Setenv("UIHARNESS_HOST", "jenkins-7")
		t.Setenv("UIHARNESS_PLATFORM", "Windows 11")
		t.Setenv("UIHARNESS_SUITE_WORKERS", "6")

		var cfg *config.Config
		_, err := executeCommand(t, withProbe(NewRootCommand(), &cfg), "probe")
		require.NoError(t, err)

		assert.Equal(t, "qa", cfg.Environment().Name)
		assert.Equal(t, "firefox", cfg.Browser().Kind)
		assert.Equal(t, "jenkins-7", cfg.Host())
		assert.Equal(t, config.PlatformWindows, cfg.Environment().Platform)
		assert.Equal(t, 6, cfg.Suite().Workers)
	})

	t.Run("flags win over environment", func(t *testing.T) {
		isolate(t)
		t.Setenv("UIHARNESS_ENV", "qa")
		t.Setenv("UIHARNESS_BROWSER", "firefox")

		var cfg *config.Config
		_, err := executeCommand(t, withProbe(NewRootCommand(), &cfg), "probe", "--env", "production", "--browser", "safari", "--host", "ci")
		require.NoError(t, err)

		assert.Equal(t, "prod", cfg.Environment().Name)
		assert.Equal(t, "safari", cfg.Browser().Kind)
		assert.Equal(t, "ci", cfg.Host())
	})

	t.Run("config file", func(t *testing.T) {
		isolate(t)
		path := writeConfig(t, `
environment:
  env: qa
  base_urls:
    qa: https://qa.thetaswap.example
browser:
  headless: "TRUE"
  explicitWait: "7"
  pageLoadTimeout: abc
suite:
  workers: 3
`)
		var cfg *config.Config
		_, err := executeCommand(t, withProbe(NewRootCommand(), &cfg), "probe", "--config", path)
		require.NoError(t, err)

		assert.Equal(t, "qa", cfg.Environment().Name)
		assert.Equal(t, "https://qa.thetaswap.example", cfg.Environment().BaseURL)
		assert.True(t, cfg.Browser().Headless)
		assert.Equal(t, 7*time.Second, cfg.Browser().ExplicitWait)
		assert.Equal(t, 30*time.Second, cfg.Browser().PageLoadTimeout, "a malformed integer falls back to its default")
		assert.Equal(t, 3, cfg.Suite().Workers)
	})

	t.Run("driver flag", func(t *testing.T) {
		isolate(t)
		var cfg *config.Config
		_, err := executeCommand(t, withProbe(NewRootCommand(), &cfg), "probe", "--driver", "managed")
		require.NoError(t, err)
		assert.Equal(t, config.DriverManaged, config.NormalizeDriverType(cfg.Server().DriverType))
	})

	t.Run("invalid values fail validation", func(t *testing.T) {
		isolate(t)
		var cfg *config.Config
		_, err := executeCommand(t, withProbe(NewRootCommand(), &cfg), "probe", "--driver", "grid")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unsupported driver_type "grid"`)
		assert.Nil(t, cfg)
	})

	t.Run("unreadable config file", func(t *testing.T) {
		isolate(t)
		path := writeConfig(t, "suite: [unclosed")
		_, err := executeCommand(t, NewRootCommand(), "cleanup", "--config", path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "error reading config file")
	})
}

func TestGetConfigFromContext(t *testing.T) {
	_, err := getConfigFromContext(context.Background())
	assert.EqualError(t, err, "configuration not found in context")

	cfg := config.NewDefaultConfig()
	got, err := getConfigFromContext(context.WithValue(context.Background(), configKey, cfg))
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}
