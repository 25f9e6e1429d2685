// cmd/run.go

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiharness/internal/browser"
	"github.com/xkilldash9x/uiharness/internal/config"
	"github.com/xkilldash9x/uiharness/internal/metrics"
	"github.com/xkilldash9x/uiharness/internal/observability"
	"github.com/xkilldash9x/uiharness/internal/report"
	"github.com/xkilldash9x/uiharness/internal/suite"
)

// ErrTestsFailed is returned by run when at least one case failed.
var ErrTestsFailed = errors.New("test failures")

// newSessionFactory builds the browser launcher used by run. Tests replace it.
var newSessionFactory = func(server config.ServerConfig, logger *zap.Logger) (suite.SessionFactory, io.Closer) {
	f := browser.NewFactory(server, logger)
	return f, f
}

type runOptions struct {
	suite       string
	workers     int
	headless    bool
	metricsAddr string
	jsonOut     string
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	runCmd := &cobra.Command{
		Use:   "run [urls...]",
		Short: "Run a UI suite",
		Long: `Runs a suite in parallel browser workers and reports the outcome.
The smoke suite opens every given URL, or checks the home page of the configured
environment when no URL is given. The home suite runs the home page scenarios
against the configured environment and takes no URLs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if _, ok := suite.Suites[opts.suite]; !ok {
				return fmt.Errorf("unknown suite %q (want %s)", opts.suite, strings.Join(suiteNames(), ", "))
			}
			if cmd.Flags().Changed("workers") {
				if opts.workers < 1 {
					return fmt.Errorf("--workers must be at least 1, got %d", opts.workers)
				}
				cfg.SetSuiteWorkers(opts.workers)
			}
			if cmd.Flags().Changed("headless") {
				cfg.SetBrowserHeadless(opts.headless)
			}
			return runSuite(cmd.Context(), cmd.OutOrStdout(), cfg, args, opts)
		},
	}

	runCmd.Flags().StringVarP(&opts.suite, "suite", "s", "smoke", "suite to run ("+strings.Join(suiteNames(), ", ")+")")
	runCmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "number of parallel browser workers (overrides suite.workers)")
	runCmd.Flags().BoolVar(&opts.headless, "headless", false, "run browsers without a visible window")
	runCmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	runCmd.Flags().StringVar(&opts.jsonOut, "json", "", "write the run report as JSON to this path (\"stdout\" for standard output)")
	return runCmd
}

func suiteNames() []string {
	names := make([]string, 0, len(suite.Suites))
	for name := range suite.Suites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func runSuite(ctx context.Context, out io.Writer, cfg *config.Config, urls []string, opts runOptions) error {
	logger := observability.GetLogger()
	m := metrics.New()

	addr := opts.metricsAddr
	if addr == "" && cfg.Metrics().Enabled {
		addr = cfg.Metrics().Addr
	}
	if addr != "" {
		stop, err := serveMetrics(addr, m, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	factory, closer := newSessionFactory(cfg.Server(), logger)
	defer func() {
		if err := closer.Close(); err != nil {
			logger.Warn("Failed to close session factory.", zap.Error(err))
		}
	}()

	runner := suite.NewRunner(cfg, factory, logger, suite.WithMetrics(m))
	if opts.suite != "smoke" && len(urls) > 0 {
		logger.Warn("URL arguments are ignored by this suite.", zap.String("suite", opts.suite), zap.Strings("urls", urls))
	}
	summary := runner.Run(ctx, suite.Suites[opts.suite](urls))

	if err := printResults(out, runner.Recorder().Tests(), summary); err != nil {
		return err
	}

	if opts.jsonOut != "" {
		if err := writeReport(opts.jsonOut, runner.Recorder()); err != nil {
			return err
		}
	}

	if days := cfg.Artifacts().RetentionDays; days > 0 {
		runner.Reporter().CleanupOlderThan(days)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrTestsFailed, summary.Failed, summary.Total)
	}
	return nil
}

// serveMetrics starts the /metrics endpoint. The returned func shuts it down.
func serveMetrics(addr string, m *metrics.Metrics, logger *zap.Logger) (func(), error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	// Surface an immediate bind failure instead of running without metrics.
	select {
	case err := <-errCh:
		return nil, fmt.Errorf("metrics server on %s: %w", addr, err)
	case <-time.After(50 * time.Millisecond):
	}
	logger.Info("Serving metrics.", zap.String("addr", addr))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Metrics server shutdown failed.", zap.Error(err))
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics server stopped with error.", zap.Error(err))
		}
	}, nil
}

// printResults renders one row per test followed by the summary line.
func printResults(out io.Writer, tests []*report.Test, summary report.Summary) error {
	table := tablewriter.NewTable(out,
		tablewriter.WithAlignment(tw.Alignment{tw.AlignLeft, tw.AlignLeft, tw.AlignLeft, tw.AlignRight}),
		tablewriter.WithRendition(tw.Rendition{Borders: tw.BorderNone}),
	)
	table.Header("Test", "Worker", "Status", "Duration")

	for _, t := range tests {
		row := []string{t.Name, t.WorkerID, string(t.Status), t.Ended.Sub(t.Started).Round(time.Millisecond).String()}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("adding result row for %s: %w", t.Name, err)
		}
	}
	table.Footer("total "+strconv.Itoa(summary.Total), "", fmt.Sprintf("%.1f%% passed", summary.PassPercentage()), "")
	if err := table.Render(); err != nil {
		return fmt.Errorf("rendering results table: %w", err)
	}

	_, err := fmt.Fprintln(out, summary.String())
	return err
}

func writeReport(path string, recorder *report.Recorder) error {
	w, err := report.Open(path)
	if err != nil {
		return err
	}
	if err := report.WriteJSON(w, recorder.Snapshot()); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
