package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/attestify/evload/internal/config"
	"github.com/attestify/evload/internal/httpclient"
	"github.com/attestify/evload/internal/logging"
	"github.com/attestify/evload/internal/metrics"
	"github.com/attestify/evload/internal/output"
	"github.com/attestify/evload/internal/runner"
	"github.com/attestify/evload/internal/threshold"
	"github.com/attestify/evload/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

// errThresholdsFailed makes the process exit non-zero after the report is
// printed.
var errThresholdsFailed = errors.New("one or more thresholds failed")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	runID := ulid.Make().String()
	logger, err := logging.New(stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	logger = logger.With("run_id", runID)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing, runID)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	prom := metrics.NewPromObserver(runID)
	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr, prom.Handler(), logger)
		defer stop()
	}
	collector := metrics.NewCollector(prom)

	var backstop time.Duration
	if cfg.Timeout > 0 {
		backstop = cfg.Timeout + shutdownTimeout
	}
	executor := httpclient.NewExecutor(httpclient.NewClient(backstop), provider)
	targets, err := buildTargets(cfg, executor)
	if err != nil {
		return err
	}
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return fmt.Errorf("thresholds: %w", err)
	}

	r, err := runner.New(runner.Options{
		Scenarios:    toRunnerScenarios(cfg, targets),
		RunBudget:    cfg.RunBudget,
		Requester:    targets.fallback,
		Pacing:       toPaceTable(cfg.Pacing),
		Collector:    collector,
		Thresholds:   thresholds,
		Logger:       logger,
		LogErrors:    cfg.LogErrors,
		Workers:      prom,
		ArrivalModel: toRunnerArrivalModel(cfg.Arrival.Model),
	})
	if err != nil {
		return err
	}

	logger.Info("warmup starting", "attempts", cfg.Warmup.Attempts, "target", targets.fallback.Builder.Target(),
		"endpoint", targets.fallback.Tags["endpoint"])
	warm := runner.Warmup(ctx, targets.fallback, toWarmupConfig(cfg.Warmup), runner.RealClock())
	logger.Info("warmup finished", "attempts", warm.Attempts, "successes", warm.Successes, "duration", warm.Duration)

	var progress *output.ProgressReporter
	if cfg.Progress {
		progress = output.NewProgressReporter(r.Collector(), progressInterval, stderr)
		progress.Start()
	}

	logger.Info("run starting", "profile", cfg.Profile, "scenarios", len(cfg.Scenarios))
	result := r.Run(ctx)
	if progress != nil {
		progress.Stop()
		fmt.Fprintln(stderr)
	}
	logger.Info("run finished", "iterations", result.Stats.Total, "failures", result.Stats.Failures,
		"passed", result.Passed, "interrupted", result.Interrupted)

	report := output.NewReport(runID, cfg.Profile, result, warm)
	if err := output.Print(stdout, output.Format(cfg.Output), report); err != nil {
		return err
	}
	if cfg.SummaryFile != "" {
		if err := output.AppendSummary(cfg.SummaryFile, output.NewSummary(report, time.Now())); err != nil {
			logger.Error("summary not written", "path", cfg.SummaryFile, "error", err)
		}
	}

	if !result.Passed {
		return errThresholdsFailed
	}
	return nil
}

// serveMetrics exposes handler on addr/metrics until the returned stop func
// is called.
func serveMetrics(addr string, handler http.Handler, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
