package pipeline

import (
	"context"
	"path/filepath"

	"market-metrics/src/ingest"
	"market-metrics/src/models"
)

// -----------------------------------------------------------------------------

// IngestDir ingests every price file in dir. only optionally restricts symbols.
func (r *Runner) IngestDir(ctx context.Context, dir string, only []string) ([]models.MRunReport, error) {
	files, err := r.Loader.ScanDir(dir, only)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		r.Logger.Warning("No price files found in %s", dir)
	}
	return r.IngestFiles(ctx, files)
}

// -----------------------------------------------------------------------------

// IngestFiles loads, validates and writes each file as its own unit of work.
// Reports come back in input order; the error is non-nil only on cancellation.
func (r *Runner) IngestFiles(ctx context.Context, files []ingest.SourceFile) ([]models.MRunReport, error) {
	runID := newRunID()
	reports := make([]models.MRunReport, len(files))

	r.Logger.Info("Ingest run %s: %d files, %d workers", runID, len(files), r.Workers)

	err := r.forEach(ctx, len(files),
		func(ctx context.Context, i int) {
			reports[i] = r.ingestOne(ctx, runID, files[i])
		},
		func(i int, err error) {
			rep := r.newReport(runID, models.StageIngest, files[i].Symbol)
			rep.File = files[i].Path
			r.finish(ctx, &rep, err)
			reports[i] = rep
		},
	)
	return reports, err
}

// -----------------------------------------------------------------------------

func (r *Runner) ingestOne(ctx context.Context, runID string, file ingest.SourceFile) models.MRunReport {
	report := r.newReport(runID, models.StageIngest, file.Symbol)
	report.File = file.Path
	log := r.Logger.With("run_id", runID, "symbol", file.Symbol)

	rows, err := r.Loader.LoadFile(file.Path, file.Symbol)
	if err != nil {
		r.finish(ctx, &report, err)
		return report
	}
	report.RowsRead = len(rows)

	res := r.Validator.Validate(rows)
	report.RowsDropped = res.DropCount()
	report.DropReasons = res.Dropped
	report.DropSummary = res.Summary
	if report.RowsDropped > 0 {
		log.Warning("%s: dropped %d of %d rows (%s)", filepath.Base(file.Path), report.RowsDropped, report.RowsRead, res.SummaryString())
	}

	if len(res.Points) == 0 {
		report.NoData = true
		r.finish(ctx, &report, nil)
		return report
	}

	unlock, err := r.lock(ctx, file.Symbol)
	if err != nil {
		r.finish(ctx, &report, err)
		return report
	}
	defer unlock()

	err = r.withRetry(ctx, log, "write "+file.Symbol+" prices", func(ctx context.Context) error {
		n, err := r.Writer.WritePrices(ctx, res.Points)
		report.RecordsWritten = n
		return err
	})
	r.finish(ctx, &report, err)
	return report
}
