package pipeline

import (
	"context"
	"fmt"
	"time"

	"market-metrics/src/helpers"
	"market-metrics/src/models"
	"market-metrics/src/query"
	"market-metrics/src/utils"
)

// -----------------------------------------------------------------------------

// ResolveRange turns optional YYYY-MM-DD bounds into a range. A missing end
// is the symbol exchange's last trading day; a missing start is LookbackDays
// before the end.
func (r *Runner) ResolveRange(symbol, start, end string) (query.DateRange, error) {
	if end == "" {
		var last time.Time
		if r.Calendars != nil {
			last = r.Calendars.ForSymbol(symbol).LastTradingDay(r.now())
		} else {
			last = r.now()
		}
		end = last.Format(utils.DateLayout)
	}
	if start == "" {
		e, err := time.Parse(utils.DateLayout, end)
		if err != nil {
			return query.DateRange{}, helpers.NewValidationError(fmt.Sprintf("invalid end_date %q, expected YYYY-MM-DD", end))
		}
		start = e.AddDate(0, 0, -r.lookback()).Format(utils.DateLayout)
	}
	return query.ParseDateRange(start, end)
}

func (r *Runner) lookback() int {
	if r.LookbackDays > 0 {
		return r.LookbackDays
	}
	return utils.DefaultLookbackDays
}

// -----------------------------------------------------------------------------

// ComputeMetrics derives and appends metric series for each symbol. With no
// symbols given, every symbol with stored prices is processed.
func (r *Runner) ComputeMetrics(ctx context.Context, symbols []string, start, end string) ([]models.MRunReport, error) {
	if len(symbols) == 0 {
		listed, err := r.Query.ListSymbols(ctx)
		if err != nil {
			return nil, err
		}
		symbols = listed
	}

	runID := newRunID()
	reports := make([]models.MRunReport, len(symbols))

	r.Logger.Info("Metrics run %s: %d symbols, %d workers", runID, len(symbols), r.Workers)

	err := r.forEach(ctx, len(symbols),
		func(ctx context.Context, i int) {
			reports[i] = r.metricsOne(ctx, runID, symbols[i], start, end)
		},
		func(i int, err error) {
			rep := r.newReport(runID, models.StageMetrics, symbols[i])
			r.finish(ctx, &rep, err)
			reports[i] = rep
		},
	)
	return reports, err
}

// -----------------------------------------------------------------------------

func (r *Runner) metricsOne(ctx context.Context, runID, symbol, start, end string) models.MRunReport {
	report := r.newReport(runID, models.StageMetrics, symbol)
	log := r.Logger.With("run_id", runID, "symbol", symbol)

	rng, err := r.ResolveRange(symbol, start, end)
	if err != nil {
		r.finish(ctx, &report, err)
		return report
	}

	// held across read and write so no ingest of this symbol is in flight
	unlock, err := r.lock(ctx, symbol)
	if err != nil {
		r.finish(ctx, &report, err)
		return report
	}
	defer unlock()

	var prices query.Result[models.MPricePoint]
	err = r.withRetry(ctx, log, "read "+symbol+" prices", func(ctx context.Context) error {
		var qerr error
		prices, qerr = r.Query.PricesBetween(ctx, symbol, rng)
		return qerr
	})
	if err != nil {
		r.finish(ctx, &report, err)
		return report
	}

	report.RowsRead = len(prices.Rows)
	if prices.Empty {
		report.NoData = true
		r.finish(ctx, &report, nil)
		return report
	}

	records := r.Engine.Compute(symbol, prices.Rows)
	if len(records) == 0 {
		report.NoData = true
		r.finish(ctx, &report, nil)
		return report
	}

	err = r.withRetry(ctx, log, "write "+symbol+" metrics", func(ctx context.Context) error {
		n, err := r.Writer.WriteMetrics(ctx, records)
		report.RecordsWritten = n
		return err
	})
	r.finish(ctx, &report, err)
	return report
}
