// internal/config/config.go

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Driver strategies accepted by the driver_type key.
const (
	DriverLocal   = "driver-local"
	DriverRemote  = "remote-web-driver"
	DriverManaged = "web-driver-manager"
)

// Interface is the read side of Config handed to the runner and drivers.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Environment() EnvironmentConfig
	Artifacts() ArtifactsConfig
	Suite() SuiteConfig
	Metrics() MetricsConfig
	Server() ServerConfig
	Host() string

	SetBrowserHeadless(bool)
	SetBrowserKind(string)
	SetSuiteWorkers(int)
}

// Config holds the entire application configuration.
//
// The browser, environment and host sections are not decoded by Unmarshal: their
// values are read as raw strings and resolved leniently by Resolve so that a
// malformed value falls back to its default instead of failing the whole load.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	ArtifactsCfg ArtifactsConfig `mapstructure:"artifacts" yaml:"artifacts"`
	SuiteCfg     SuiteConfig     `mapstructure:"suite" yaml:"suite"`
	MetricsCfg   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	ServerCfg    ServerConfig    `mapstructure:"server" yaml:"server"`

	BrowserCfg     BrowserConfig     `mapstructure:"-" yaml:"browser"`
	EnvironmentCfg EnvironmentConfig `mapstructure:"-" yaml:"environment"`
	HostCfg        string            `mapstructure:"-" yaml:"host"`
}

// Getters.

func (c *Config) Logger() LoggerConfig           { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig         { return c.BrowserCfg }
func (c *Config) Environment() EnvironmentConfig { return c.EnvironmentCfg }
func (c *Config) Artifacts() ArtifactsConfig     { return c.ArtifactsCfg }
func (c *Config) Suite() SuiteConfig             { return c.SuiteCfg }
func (c *Config) Metrics() MetricsConfig         { return c.MetricsCfg }
func (c *Config) Server() ServerConfig           { return c.ServerCfg }
func (c *Config) Host() string                   { return c.HostCfg }

// Setters used by CLI overrides.

func (c *Config) SetBrowserHeadless(b bool)  { c.BrowserCfg.Headless = b }
func (c *Config) SetBrowserKind(kind string) { c.BrowserCfg.Kind = kind }
func (c *Config) SetSuiteWorkers(n int)      { c.SuiteCfg.Workers = n }

// LoggerConfig configures the console sink and the optional rotating file.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names a console color per log level.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// ServerConfig selects how browser sessions are created.
type ServerConfig struct {
	DriverType string `mapstructure:"driver_type" yaml:"driver_type"`
	// RemoteURL is the DevTools websocket endpoint used by the remote strategy.
	RemoteURL string `mapstructure:"remote_url" yaml:"remote_url"`
}

// BrowserConfig holds the resolved settings applied to every session.
type BrowserConfig struct {
	Kind            string        `yaml:"kind"`
	Headless        bool          `yaml:"headless"`
	WindowMaximize  bool          `yaml:"window_maximize"`
	Incognito       bool          `yaml:"incognito"`
	ImplicitWait    time.Duration `yaml:"implicit_wait"`
	ExplicitWait    time.Duration `yaml:"explicit_wait"`
	PageLoadTimeout time.Duration `yaml:"page_load_timeout"`
	ScriptTimeout   time.Duration `yaml:"script_timeout"`
	Args            []string      `yaml:"args"`
}

// EnvironmentConfig describes the system under test.
type EnvironmentConfig struct {
	Name     string   `yaml:"name"`
	BaseURL  string   `yaml:"base_url"`
	Platform Platform `yaml:"platform"`
}

// ArtifactsConfig controls where failure evidence and reports are written.
type ArtifactsConfig struct {
	ScreenshotsDir string        `mapstructure:"screenshots_dir" yaml:"screenshots_dir"`
	ReportsDir     string        `mapstructure:"reports_dir" yaml:"reports_dir"`
	RetentionDays  int           `mapstructure:"retention_days" yaml:"retention_days"`
	CaptureTimeout time.Duration `mapstructure:"capture_timeout" yaml:"capture_timeout"`
	NameMaxLength  int           `mapstructure:"name_max_length" yaml:"name_max_length"`
}

// SuiteConfig configures the parallel runner.
type SuiteConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// MetricsConfig configures the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// Platform is the operating system family the suite is reported against.
type Platform string

const (
	PlatformMac     Platform = "MAC"
	PlatformWindows Platform = "WINDOWS"
	PlatformLinux   Platform = "LINUX"
)

// ParsePlatform maps a free-form platform name onto a Platform, defaulting to mac.
func ParsePlatform(s string) Platform {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "mac"), strings.Contains(lower, "darwin"):
		return PlatformMac
	case strings.Contains(lower, "win"):
		return PlatformWindows
	case strings.Contains(lower, "linux"):
		return PlatformLinux
	default:
		return PlatformMac
	}
}

// NewDefaultConfig returns the configuration produced by SetDefaults alone.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v, zap.NewNop())
	if err != nil {
		// unreachable with the registered defaults
		panic(fmt.Sprintf("failed to build default config: %v", err))
	}
	return cfg
}

// SetDefaults registers every default on v.
// The lenient browser and environment keys are absent here: their
// defaults live in Resolve so that an explicit but malformed value can be told
// apart from a missing one.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "uiharness")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Server --
	v.SetDefault("server.driver_type", DriverLocal)
	v.SetDefault("server.remote_url", "")

	// -- Artifacts --
	v.SetDefault("artifacts.screenshots_dir", "test-output/screenshots")
	v.SetDefault("artifacts.reports_dir", "test-output/reports")
	v.SetDefault("artifacts.retention_days", 7)
	v.SetDefault("artifacts.capture_timeout", "5s")
	v.SetDefault("artifacts.name_max_length", 100)

	// -- Suite --
	v.SetDefault("suite.workers", 2)

	// -- Metrics --
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9464")
}

// NewConfigFromViper unmarshals v, resolves the lenient properties and validates the result.
func NewConfigFromViper(v *viper.Viper, logger *zap.Logger) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	// A bare driver_type key (UIHARNESS_DRIVER_TYPE, --driver) overrides the server section.
	if dt := strings.TrimSpace(v.GetString("driver_type")); dt != "" {
		cfg.ServerCfg.DriverType = dt
	}

	Resolve(v, &cfg, logger)

	var err error
	if cfg.ArtifactsCfg.ScreenshotsDir, err = homedir.Expand(cfg.ArtifactsCfg.ScreenshotsDir); err != nil {
		return nil, fmt.Errorf("invalid artifacts.screenshots_dir: %w", err)
	}
	if cfg.ArtifactsCfg.ReportsDir, err = homedir.Expand(cfg.ArtifactsCfg.ReportsDir); err != nil {
		return nil, fmt.Errorf("invalid artifacts.reports_dir: %w", err)
	}
	if cfg.LoggerCfg.LogFile, err = homedir.Expand(cfg.LoggerCfg.LogFile); err != nil {
		return nil, fmt.Errorf("invalid logger.log_file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate rejects values the runner cannot work with.
func (c *Config) Validate() error {
	if c.SuiteCfg.Workers <= 0 {
		return fmt.Errorf("suite.workers must be a positive integer")
	}
	if c.ArtifactsCfg.NameMaxLength <= 0 {
		return fmt.Errorf("artifacts.name_max_length must be a positive integer")
	}
	if c.ArtifactsCfg.CaptureTimeout <= 0 {
		return fmt.Errorf("artifacts.capture_timeout must be a positive duration")
	}
	switch NormalizeDriverType(c.ServerCfg.DriverType) {
	case DriverLocal, DriverManaged:
	case DriverRemote:
		if c.ServerCfg.RemoteURL == "" {
			return fmt.Errorf("server.remote_url is required for driver_type %q", DriverRemote)
		}
	default:
		return fmt.Errorf("unsupported driver_type %q", c.ServerCfg.DriverType)
	}
	return nil
}

// NormalizeDriverType maps accepted aliases onto the canonical strategy names.
// An empty value selects the local strategy.
func NormalizeDriverType(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", DriverLocal, "local":
		return DriverLocal
	case DriverRemote, "remote":
		return DriverRemote
	case DriverManaged, "managed":
		return DriverManaged
	default:
		return s
	}
}
