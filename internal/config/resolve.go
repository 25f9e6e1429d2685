// internal/config/resolve.go

package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	defaultEnv      = "dev"
	defaultPlatform = "mac"
	defaultBrowser  = "chrome"
	defaultHost     = "local"

	defaultImplicitWait    = 10
	defaultExplicitWait    = 5
	defaultPageLoadTimeout = 30
	defaultScriptTimeout   = 15
)

// Built-in base URLs, overridable through environment.base_urls.<name>.
var defaultBaseURLs = map[string]string{
	"dev":  "http://localhost:3000",
	"qa":   "http://127.0.0.1:3000",
	"prod": "http://127.0.0.1:3000",
}

// Resolve fills the leniently parsed sections of cfg from v.
//
// Each value is looked up first under its sectioned key and then under the bare
// property name (env, platform, browser, host) that the CLI flags and
// UIHARNESS_* variables bind to. Missing or malformed values never fail: they
// are defaulted and, when malformed, logged at warn level.
func Resolve(v *viper.Viper, cfg *Config, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("config")

	env := firstNonEmpty(v.GetString("environment.env"), v.GetString("env"), defaultEnv)
	platform := firstNonEmpty(v.GetString("environment.platform"), v.GetString("platform"), defaultPlatform)
	browser := firstNonEmpty(v.GetString("environment.browser"), v.GetString("browser"), defaultBrowser)

	name, ok := NormalizeEnvironment(env)
	if !ok {
		logger.Warn("Unknown environment, defaulting to dev.", zap.String("env", env))
	}
	cfg.EnvironmentCfg = EnvironmentConfig{
		Name:     name,
		BaseURL:  baseURL(v, name),
		Platform: ParsePlatform(platform),
	}

	cfg.HostCfg = firstNonEmpty(v.GetString("jenkins.host"), v.GetString("host"), defaultHost)

	cfg.BrowserCfg = BrowserConfig{
		Kind:            strings.ToLower(strings.TrimSpace(browser)),
		Headless:        ParseBool(v.GetString("browser.headless"), false),
		WindowMaximize:  ParseBool(v.GetString("browser.windowMaximize"), true),
		Incognito:       ParseBool(v.GetString("browser.incognito"), false),
		ImplicitWait:    seconds(ParseInt(v.GetString("browser.implicitWait"), defaultImplicitWait, "browser.implicitWait", logger)),
		ExplicitWait:    seconds(ParseInt(v.GetString("browser.explicitWait"), defaultExplicitWait, "browser.explicitWait", logger)),
		PageLoadTimeout: seconds(ParseInt(v.GetString("browser.pageLoadTimeout"), defaultPageLoadTimeout, "browser.pageLoadTimeout", logger)),
		ScriptTimeout:   seconds(ParseInt(v.GetString("browser.scriptTimeout"), defaultScriptTimeout, "browser.scriptTimeout", logger)),
		Args:            v.GetStringSlice("browser.args"),
	}

	logger.Debug("Configuration resolved.",
		zap.String("driver_type", cfg.ServerCfg.DriverType),
		zap.String("environment", cfg.EnvironmentCfg.Name),
		zap.String("platform", string(cfg.EnvironmentCfg.Platform)),
		zap.String("browser", cfg.BrowserCfg.Kind),
		zap.String("host", cfg.HostCfg),
		zap.Bool("headless", cfg.BrowserCfg.Headless),
		zap.String("base_url", cfg.EnvironmentCfg.BaseURL),
	)
}

// ParseBool reports true only for a case-insensitive "true". A missing value
// yields def; any other present value yields false.
func ParseBool(s string, def bool) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	return strings.EqualFold(s, "true")
}

// ParseInt parses a decimal integer, falling back to def when s is missing or malformed.
func ParseInt(s string, def int, key string, logger *zap.Logger) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		if logger != nil {
			logger.Warn("Invalid integer value, using default.",
				zap.String("key", key), zap.String("value", s), zap.Int("default", def))
		}
		return def
	}
	return n
}

// NormalizeEnvironment maps environment aliases onto dev, qa or prod.
// The boolean is false when the name was not recognised and dev was substituted.
func NormalizeEnvironment(name string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "dev", "development":
		return "dev", true
	case "qa", "test", "testing":
		return "qa", true
	case "prod", "production":
		return "prod", true
	default:
		return "dev", false
	}
}

func baseURL(v *viper.Viper, env string) string {
	if u := v.GetString("environment.base_urls." + env); u != "" {
		return strings.TrimRight(u, "/")
	}
	return defaultBaseURLs[env]
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func firstNonEmpty(values ...string) string {
	for _, s := range values {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
