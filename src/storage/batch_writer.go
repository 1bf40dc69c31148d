package storage

import (
	"context"
	"time"

	"market-metrics/src/helpers"
	"market-metrics/src/interfaces"
	"market-metrics/src/logger"
	"market-metrics/src/models"
)

// BatchWriter turns record lists into one columnar store call each. A call
// either stores the whole batch or fails with a classified StoreError; it
// never retries.
type BatchWriter struct {
	DB      interfaces.IDatabase
	Timeout time.Duration
	Logger  *logger.Logger
}

func NewBatchWriter(db interfaces.IDatabase, timeout time.Duration, log *logger.Logger) *BatchWriter {
	return &BatchWriter{DB: db, Timeout: timeout, Logger: log}
}

// -----------------------------------------------------------------------------

// WritePrices persists validated price points. Rows already stored under the
// same (symbol, timestamp, source) are not counted.
func (w *BatchWriter) WritePrices(ctx context.Context, points []models.MPricePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}
	return w.write(ctx, PriceBatch(points))
}

// -----------------------------------------------------------------------------

// WriteMetrics appends metric records.
func (w *BatchWriter) WriteMetrics(ctx context.Context, records []models.MMetricRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	return w.write(ctx, MetricBatch(records))
}

// -----------------------------------------------------------------------------

func (w *BatchWriter) write(ctx context.Context, batch *models.MColumnBatch) (int, error) {
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}

	start := time.Now()
	n, err := w.DB.InsertBatch(ctx, batch)
	if err != nil {
		serr := helpers.NewStoreError("insert "+batch.Table, err)
		if w.Logger != nil {
			w.Logger.Error("Batch of %d rows into %s rejected (%s): %v", batch.Len(), batch.Table, helpers.ClassOf(serr), err)
		}
		return 0, serr
	}

	if w.Logger != nil {
		w.Logger.Debug("Wrote %d/%d rows into %s in %v", n, batch.Len(), batch.Table, time.Since(start))
	}
	return n, nil
}
