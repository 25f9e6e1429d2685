// internal/browser/factory.go

package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiharness/internal/config"
)

const defaultStartupTimeout = 60 * time.Second

// Launcher starts a browser for spec. It is the unit a driver strategy plugs in as.
type Launcher func(ctx context.Context, spec LaunchSpec, cfg config.BrowserConfig) (Driver, error)

// Factory creates browser sessions using the strategy named by server.driver_type.
type Factory struct {
	logger         *zap.Logger
	server         config.ServerConfig
	startupTimeout time.Duration
	launchers      map[string]Launcher

	// pwMu guards pw, which launchManaged creates on first use.
	pwMu sync.Mutex
	pw   *playwrightRuntime
}

// FactoryOption customizes a Factory.
type FactoryOption func(*Factory)

// WithLauncher registers or replaces the launcher for a driver strategy.
func WithLauncher(strategy string, l Launcher) FactoryOption {
	return func(f *Factory) { f.launchers[config.NormalizeDriverType(strategy)] = l }
}

// WithStartupTimeout bounds how long a local or remote browser may take to come up.
func WithStartupTimeout(d time.Duration) FactoryOption {
	return func(f *Factory) { f.startupTimeout = d }
}

// NewFactory returns a Factory with the three built-in strategies registered.
func NewFactory(server config.ServerConfig, logger *zap.Logger, opts ...FactoryOption) *Factory {
	f := &Factory{
		logger:         logger.Named("driver_factory"),
		server:         server,
		startupTimeout: defaultStartupTimeout,
		launchers:      make(map[string]Launcher),
	}
	f.launchers[config.DriverLocal] = f.launchLocal
	f.launchers[config.DriverRemote] = f.launchRemote
	f.launchers[config.DriverManaged] = f.launchManaged
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateSession starts a browser configured by cfg and applies its implicit wait.
// Any failure is returned as a *SessionCreationError.
func (f *Factory) CreateSession(ctx context.Context, cfg config.BrowserConfig) (Driver, error) {
	kind, known := ParseKind(cfg.Kind)
	if !known {
		f.logger.Warn("Unrecognized browser, defaulting to chrome.", zap.String("browser", cfg.Kind))
	}
	spec := BuildLaunchSpec(kind, cfg)
	strategy := config.NormalizeDriverType(f.server.DriverType)

	f.logger.Info("Creating browser session.",
		zap.String("strategy", strategy),
		zap.String("browser", string(spec.Kind)),
		zap.Strings("args", spec.Args),
		zap.Bool("headless", spec.Headless),
	)

	launch, ok := f.launchers[strategy]
	if !ok {
		return nil, f.fail(strategy, spec.Kind, fmt.Errorf("unsupported driver_type %q", f.server.DriverType))
	}

	start := time.Now()
	d, err := launch(ctx, spec, cfg)
	if err != nil {
		return nil, f.fail(strategy, spec.Kind, err)
	}
	d.SetImplicitWait(cfg.ImplicitWait)

	f.logger.Info("Browser session created.",
		zap.String("strategy", strategy),
		zap.String("remote_id", d.RemoteID()),
		zap.Duration("startup", time.Since(start)),
	)
	return d, nil
}

func (f *Factory) fail(strategy string, kind Kind, err error) error {
	f.logger.Error("Failed to create browser session.", zap.String("strategy", strategy), zap.String("browser", string(kind)), zap.Error(err))
	return &SessionCreationError{Strategy: strategy, Kind: kind, Err: err}
}

// Close releases resources shared between sessions, such as the Playwright driver.
// It is safe to call while sessions are still being created.
func (f *Factory) Close() error {
	f.pwMu.Lock()
	pw := f.pw
	f.pwMu.Unlock()
	if pw == nil {
		return nil
	}
	return pw.Close()
}

// managedRuntime returns the shared Playwright runtime, creating it on first use.
func (f *Factory) managedRuntime() *playwrightRuntime {
	f.pwMu.Lock()
	defer f.pwMu.Unlock()
	if f.pw == nil {
		f.pw = newPlaywrightRuntime(f.logger)
	}
	return f.pw
}

var errNotCDP = errors.New("only chrome can be driven over the DevTools protocol; use driver_type " + config.DriverManaged)

// execAllocatorOptions converts spec into chromedp allocator options.
func execAllocatorOptions(spec LaunchSpec) []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("enable-automation", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if !spec.Maximize {
		opts = append(opts, chromedp.WindowSize(1920, 1080))
	}
	for _, arg := range spec.Args {
		name, value, hasValue := splitFlag(arg)
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}

func (f *Factory) launchLocal(ctx context.Context, spec LaunchSpec, cfg config.BrowserConfig) (Driver, error) {
	if spec.Kind != KindChrome {
		return nil, errNotCDP
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), execAllocatorOptions(spec)...)
	return startCDPDriver(ctx, allocCtx, allocCancel, spec.Kind, f.startupTimeout, f.logger)
}

func (f *Factory) launchRemote(ctx context.Context, spec LaunchSpec, cfg config.BrowserConfig) (Driver, error) {
	if spec.Kind != KindChrome {
		return nil, errNotCDP
	}
	if f.server.RemoteURL == "" {
		return nil, errors.New("server.remote_url is not set")
	}
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(Detach(ctx), f.server.RemoteURL)
	return startCDPDriver(ctx, allocCtx, allocCancel, spec.Kind, f.startupTimeout, f.logger)
}

func (f *Factory) launchManaged(ctx context.Context, spec LaunchSpec, cfg config.BrowserConfig) (Driver, error) {
	return f.managedRuntime().newSession(ctx, spec, cfg.PageLoadTimeout)
}
