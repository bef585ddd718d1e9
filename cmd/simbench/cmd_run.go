package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"simbench/internal/collector"
	"simbench/internal/config"
	"simbench/internal/driver"
	"simbench/internal/logging"
	"simbench/internal/progress"
	"simbench/internal/simnet"
)

type runOptions struct {
	configPath  string
	output      string
	quiet       bool
	verbose     bool
	metricsAddr string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured workloads against the simulated cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBenchmark(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "path to YAML config file (required)")
	f.StringVar(&opts.output, "output", "text", "output format: text, json")
	f.BoolVar(&opts.quiet, "quiet", false, "suppress progress output during the run")
	f.BoolVar(&opts.verbose, "verbose", false, "enable debug logging")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address during the run")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runBenchmark(cmd *cobra.Command, opts *runOptions) error {
	if opts.output != "text" && opts.output != "json" {
		return &exitError{code: ExitError, err: fmt.Errorf("--output must be 'text' or 'json', got %q", opts.output)}
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return &exitError{code: ExitError, err: err}
	}
	workloads, err := cfg.BuildWorkloads()
	if err != nil {
		return &exitError{code: ExitError, err: err}
	}
	cluster, err := simnet.NewCluster(cfg.ClusterConfig())
	if err != nil {
		return &exitError{code: ExitError, err: err}
	}

	logger, err := logging.New(opts.verbose)
	if err != nil {
		return &exitError{code: ExitError, err: fmt.Errorf("creating logger: %w", err)}
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	if opts.metricsAddr != "" {
		shutdown, err := serveMetrics(opts.metricsAddr, registry, logger)
		if err != nil {
			return &exitError{code: ExitError, err: err}
		}
		defer shutdown()
	}

	prog := progress.NewProgress(opts.quiet)
	prog.SetOutput(cmd.ErrOrStderr())
	prog.Printf("simbench starting: %d workloads, %d validators, preset %q, duration %v, max operations %d",
		len(workloads), cfg.Simulation.Validators, cfg.Simulation.Preset, cfg.Run.Duration, cfg.Run.MaxOperations)

	d := driver.New(cfg.Run.StatInterval, cluster,
		driver.WithDuration(cfg.Run.Duration),
		driver.WithMaxOperations(cfg.Run.MaxOperations),
		driver.WithAbortPolicy(cfg.Run.Abort.MaxFailureRate, cfg.Run.Abort.MinSamples),
		driver.WithSubmitTimeout(cfg.Run.SubmitTimeout),
		driver.WithLogger(logger),
	)
	final, runErr := d.Run(ctx, workloads, prog, registry)
	prog.Stop()

	if ctx.Err() != nil && !opts.quiet {
		fmt.Fprintln(cmd.ErrOrStderr(), "Received interrupt signal, shut down")
	}

	thresholdResults := cfg.Thresholds.Check(final)
	if opts.output == "json" {
		collector.FormatJSON(cmd.OutOrStdout(), final, thresholdResults)
	} else {
		collector.FormatText(cmd.OutOrStdout(), final, thresholdResults)
	}

	switch {
	case errors.Is(runErr, driver.ErrRunAborted):
		return &exitError{code: ExitThresholdFailed, err: runErr}
	case runErr != nil:
		return &exitError{code: ExitError, err: runErr}
	case !thresholdResults.Passed:
		if opts.output == "text" {
			fmt.Fprintln(cmd.ErrOrStderr(), "\nThreshold check failed!")
		}
		return &exitError{code: ExitThresholdFailed}
	}
	return nil
}

// serveMetrics exposes registry over HTTP until the returned func is called.
func serveMetrics(addr string, registry *prometheus.Registry, logger *zap.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening for metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
