package pipeline

import (
	"context"
	"errors"
	"fmt"

	"market-metrics/src/helpers"
	"market-metrics/src/logger"
	"market-metrics/src/models"

	"github.com/robfig/cron/v3"
)

// Scheduler re-runs ingest and metrics on cron expressions.
type Scheduler struct {
	Cron    *cron.Cron
	Runner  *Runner
	Config  *models.MConfig
	Errors  *helpers.ErrorHandler
	Logger  *logger.Logger
	Ctx     context.Context
	cancel  context.CancelFunc
	tripped func()
}

// NewScheduler builds a scheduler whose jobs run under ctx. onTrip, if set,
// is called when too many consecutive runs fail.
func NewScheduler(ctx context.Context, cfg *models.MConfig, runner *Runner, log *logger.Logger, onTrip func()) *Scheduler {
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		// overlapping runs of the same job are skipped
		Cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		Runner:  runner,
		Config:  cfg,
		Errors:  helpers.NewErrorHandler(log, 0),
		Logger:  log,
		Ctx:     ctx,
		cancel:  cancel,
		tripped: onTrip,
	}
}

// -----------------------------------------------------------------------------

// RegisterAll adds the configured jobs. Empty expressions are skipped.
func (s *Scheduler) RegisterAll() error {
	if c := s.Config.Schedule.IngestCron; c != "" {
		if _, err := s.Cron.AddFunc(c, s.RunIngestNow); err != nil {
			return fmt.Errorf("register ingest job: %w", err)
		}
		s.Logger.Info("Ingest scheduled at %q", c)
	}
	if c := s.Config.Schedule.MetricsCron; c != "" {
		if _, err := s.Cron.AddFunc(c, s.RunMetricsNow); err != nil {
			return fmt.Errorf("register metrics job: %w", err)
		}
		s.Logger.Info("Metrics scheduled at %q", c)
	}
	return nil
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return len(s.Cron.Entries())
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Info("Scheduler started with %d jobs", s.Jobs())
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.Cron.Stop().Done()
	s.Logger.Info("Scheduler stopped")
}

// -----------------------------------------------------------------------------

// RunIngestNow ingests the configured data directory once.
func (s *Scheduler) RunIngestNow() {
	reports, err := s.Runner.IngestDir(s.Ctx, s.Config.Ingest.DataDir, s.Config.Ingest.Symbols)
	s.after("scheduled ingest", reports, err)
}

// RunMetricsNow computes metrics over the default lookback range once.
func (s *Scheduler) RunMetricsNow() {
	reports, err := s.Runner.ComputeMetrics(s.Ctx, s.Config.Metrics.Symbols, "", "")
	s.after("scheduled metrics", reports, err)
}

// -----------------------------------------------------------------------------

func (s *Scheduler) after(job string, reports []models.MRunReport, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if err == nil {
		err = FailureOf(reports)
	}
	if s.Errors.Handle(err, job) {
		s.Logger.Error("%s failed %d times in a row", job, s.Errors.ErrorCount())
		s.Errors.ResetErrorCount()
		if s.tripped != nil {
			s.tripped()
		}
	}
}

// FailureOf joins the errors of failed reports, nil when all succeeded.
func FailureOf(reports []models.MRunReport) error {
	var errs []error
	for i := range reports {
		if reports[i].Failed() {
			errs = append(errs, fmt.Errorf("%s %s: %s", reports[i].Stage, reports[i].Symbol, reports[i].Error))
		}
	}
	return errors.Join(errs...)
}
