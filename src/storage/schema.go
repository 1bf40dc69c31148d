package storage

import (
	"market-metrics/src/models"
)

// Table names
const (
	PriceTable  = "price_data"
	MetricTable = "risk_metrics"
)

// Fixed column orders of the two series.
var (
	PriceColumns  = []string{"timestamp", "symbol", "open", "high", "low", "close", "volume", "source"}
	MetricColumns = []string{"timestamp", "symbol", "metric_name", "metric_value", "window_size", "calculation_date"}

	// PriceKey identifies a price row; re-ingesting the same file skips rows on it.
	PriceKey = []string{"symbol", "timestamp", "source"}
)

// -----------------------------------------------------------------------------

// PriceBatch lays points out in PriceColumns order.
func PriceBatch(points []models.MPricePoint) *models.MColumnBatch {
	rows := make([][]any, 0, len(points))
	for _, p := range points {
		rows = append(rows, []any{
			p.Timestamp.UTC(), p.Symbol, p.Open, p.High, p.Low, p.Close, p.Volume, p.Source,
		})
	}
	return &models.MColumnBatch{
		Table:     PriceTable,
		Columns:   PriceColumns,
		Rows:      rows,
		UniqueKey: PriceKey,
	}
}

// -----------------------------------------------------------------------------

// MetricBatch lays records out in MetricColumns order.
func MetricBatch(records []models.MMetricRecord) *models.MColumnBatch {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, []any{
			r.Timestamp.UTC(), r.Symbol, string(r.MetricName), r.MetricValue, r.WindowSize, r.CalculationDate.UTC(),
		})
	}
	return &models.MColumnBatch{
		Table:   MetricTable,
		Columns: MetricColumns,
		Rows:    rows,
	}
}
