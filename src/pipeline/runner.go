package pipeline

import (
	"context"
	"errors"
	"time"

	"market-metrics/src/analysis"
	"market-metrics/src/helpers"
	"market-metrics/src/ingest"
	"market-metrics/src/interfaces"
	"market-metrics/src/logger"
	"market-metrics/src/models"
	"market-metrics/src/query"
	"market-metrics/src/storage"
	"market-metrics/src/utils"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Runner executes ingest and metrics runs one symbol at a time per worker.
// A symbol's failure ends up in its report and never stops the others.
type Runner struct {
	Loader    *ingest.Loader
	Validator *ingest.Validator
	Writer    *storage.BatchWriter
	Query     *query.Service
	Engine    *analysis.MetricsEngine
	Locker    interfaces.ISymbolLocker
	Sink      interfaces.IReportSink
	Metrics   *Metrics
	Calendars *utils.CalendarRegistry
	Logger    *logger.Logger

	Workers      int
	MaxRetries   int
	RetryBase    time.Duration
	LookbackDays int

	// Now is the clock for default date ranges and report times.
	Now func() time.Time
}

// -----------------------------------------------------------------------------

// NewRunner wires the ingest and metrics stages over one database.
func NewRunner(cfg *models.MConfig, db interfaces.IDatabase, locker interfaces.ISymbolLocker, sink interfaces.IReportSink, metrics *Metrics, log *logger.Logger) *Runner {
	timeout := time.Duration(cfg.Storage.TimeoutSeconds) * time.Second
	loader := ingest.NewLoader(cfg.Ingest.Source, log.Named("ingest"))
	svc := query.NewService(db, timeout, log.Named("query"))
	svc.PreferredSource = loader.Source
	return &Runner{
		Loader:       loader,
		Validator:    ingest.NewValidator(),
		Writer:       storage.NewBatchWriter(db, timeout, log.Named("storage")),
		Query:        svc,
		Engine:       analysis.NewMetricsEngine(cfg.Metrics, log.Named("analysis")),
		Locker:       locker,
		Sink:         sink,
		Metrics:      metrics,
		Calendars:    utils.NewCalendarRegistry(cfg.Metrics.CalendarMIC, log),
		Logger:       log,
		Workers:      cfg.Pipeline.Workers,
		MaxRetries:   cfg.Storage.MaxRetries,
		RetryBase:    time.Duration(cfg.Storage.RetryBaseMillis) * time.Millisecond,
		LookbackDays: cfg.Metrics.LookbackDays,
	}
}

// -----------------------------------------------------------------------------

// forEach runs fn for n units on at most Workers goroutines. Units not yet
// started when ctx is cancelled are handed to skip instead.
func (r *Runner) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int), skip func(i int, err error)) error {
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			skip(i, err)
			continue
		}
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				skip(i, err)
				return nil
			}
			fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// -----------------------------------------------------------------------------

// withRetry retries transient store failures with backoff.
func (r *Runner) withRetry(ctx context.Context, log *logger.Logger, op string, fn func(ctx context.Context) error) error {
	base := r.RetryBase
	if base <= 0 {
		base = time.Duration(utils.DefaultRetryBaseMillis) * time.Millisecond
	}
	return helpers.RetryWithBackoff(ctx, log, op, r.MaxRetries, base, fn)
}

// -----------------------------------------------------------------------------

// lock takes the per-symbol lock when a locker is configured.
func (r *Runner) lock(ctx context.Context, symbol string) (func(), error) {
	if r.Locker == nil {
		return func() {}, nil
	}
	return r.Locker.Lock(ctx, symbol)
}

// -----------------------------------------------------------------------------

func (r *Runner) newReport(runID, stage, symbol string) models.MRunReport {
	return models.MRunReport{
		RunID:     runID,
		Stage:     stage,
		Symbol:    symbol,
		StartedAt: r.now(),
	}
}

// finish stamps the report, records its outcome and hands it to the sink.
func (r *Runner) finish(ctx context.Context, report *models.MRunReport, err error) {
	report.FinishedAt = r.now()
	if err != nil {
		report.Error = err.Error()
		report.ErrorClass = string(helpers.ClassOf(err))
		if errors.Is(err, context.Canceled) {
			report.ErrorClass = "canceled"
		}
	}

	r.Metrics.Observe(*report)
	if r.Sink != nil {
		// publish even when the run ctx is cancelled
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if perr := r.Sink.Publish(pubCtx, *report); perr != nil {
			r.Logger.Warning("Failed to publish %s report for %s: %v", report.Stage, report.Symbol, perr)
		}
	}
}

// -----------------------------------------------------------------------------

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func newRunID() string {
	return uuid.NewString()
}
