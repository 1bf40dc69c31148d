package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"market-metrics/src/config"
	"market-metrics/src/logger"
	"market-metrics/src/pipeline"
)

// Run modes selected with -mode.
const (
	modeIngest  = "ingest"
	modeMetrics = "metrics"
	modeRun     = "run"
	modeServe   = "serve"
)

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	mode := flag.String("mode", modeRun, "ingest | metrics | run | serve")
	dataDir := flag.String("data-dir", "", "price file directory (overrides ingest.data_dir)")
	start := flag.String("start", "", "metrics start date YYYY-MM-DD (default: end minus lookback)")
	end := flag.String("end", "", "metrics end date YYYY-MM-DD (default: last trading day)")
	flag.Parse()

	// Load config from YAML file
	cfg, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Ingest.DataDir = *dataDir
	}

	// Setup logger
	appLogger := logger.NewLogger(cfg.MConfig, cfg.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := setup(ctx, cfg, *mode == modeServe, appLogger)
	if err != nil {
		appLogger.Critical("Setup failed: %v", err)
	}
	defer app.Close()

	switch *mode {
	case modeIngest:
		err = stageResult(runIngest(ctx, app))
	case modeMetrics:
		err = stageResult(runMetrics(ctx, app, *start, *end))
	case modeRun:
		err = runAll(ctx, app, *start, *end)
	case modeServe:
		err = serve(ctx, app)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}

	if err != nil {
		appLogger.Error("%s: %v", *mode, err)
		app.Close()
		os.Exit(1)
	}
}

// -----------------------------------------------------------------------------

// runIngest returns the per-symbol failures of the run separately from an
// error that stops the run as a whole (unreadable data dir, cancellation).
func runIngest(ctx context.Context, app *application) (failures error, err error) {
	reports, err := app.Runner.IngestDir(ctx, app.Config.Ingest.DataDir, app.Config.Ingest.Symbols)
	logSummary(app.Logger, "Ingest", reports)
	if err != nil {
		return nil, err
	}
	return pipeline.FailureOf(reports), nil
}

func runMetrics(ctx context.Context, app *application, start, end string) (failures error, err error) {
	reports, err := app.Runner.ComputeMetrics(ctx, app.Config.Metrics.Symbols, start, end)
	logSummary(app.Logger, "Metrics", reports)
	if err != nil {
		return nil, err
	}
	return pipeline.FailureOf(reports), nil
}

// runAll ingests then computes metrics. Symbols that failed to ingest do not
// keep the others from getting metrics.
func runAll(ctx context.Context, app *application, start, end string) error {
	ingestFailures, err := runIngest(ctx, app)
	if err != nil {
		return err
	}
	metricsFailures, err := runMetrics(ctx, app, start, end)
	if err != nil {
		return errors.Join(ingestFailures, err)
	}
	return errors.Join(ingestFailures, metricsFailures)
}

// stageResult folds a stage's failures and fatal error into one.
func stageResult(failures, err error) error {
	if err != nil {
		return err
	}
	return failures
}
