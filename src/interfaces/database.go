package interfaces

import (
	"context"
	"time"

	"market-metrics/src/models"
)

// -----------------------------------------------------------------------------
// IDatabase defines the contract for storage operations.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize creates missing tables. Existing data is left alone.
	Initialize(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// InsertBatch appends one columnar batch and returns the rows written.
	// Price rows already present for (symbol, timestamp, source) are skipped.
	InsertBatch(ctx context.Context, batch *models.MColumnBatch) (int, error)

	// -----------------------------------------------------------------------------

	// QueryPrices returns price rows in [from, to) ordered by timestamp.
	QueryPrices(ctx context.Context, symbol string, from, to time.Time) ([]models.MPricePoint, error)

	// -----------------------------------------------------------------------------

	// QueryMetrics returns metric rows in [from, to) ordered by timestamp.
	QueryMetrics(ctx context.Context, symbol string, metric models.MetricName, from, to time.Time) ([]models.MMetricRecord, error)

	// -----------------------------------------------------------------------------

	// ListSymbols returns the distinct symbols with stored prices.
	ListSymbols(ctx context.Context) ([]string, error)

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
