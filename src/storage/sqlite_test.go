package storage

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"market-metrics/src/logger"
	"market-metrics/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteDB {
	t.Helper()
	cfg := &models.MConfig{Storage: models.MStorageConfig{
		DBType: "sqlite",
		DBPath: filepath.Join(t.TempDir(), "nested", "metrics.db"),
	}}
	db, err := NewSQLiteDB(cfg, logger.NewLoggerWithWriter(io.Discard, "ERROR", "text", "sqlite"))
	require.NoError(t, err)
	require.NoError(t, db.Initialize(context.Background()))
	t.Cleanup(func() { db.Close() })
	return db
}

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func samplePrices(symbol string, closes ...float64) []models.MPricePoint {
	out := make([]models.MPricePoint, len(closes))
	for i, c := range closes {
		out[i] = models.MPricePoint{
			Timestamp: day(i + 1), Symbol: symbol,
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000,
			Source: "file_import",
		}
	}
	return out
}

func TestSQLiteInitializeIsNonDestructive(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	n, err := db.InsertBatch(ctx, PriceBatch(samplePrices("TEST", 100, 101)))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, db.Initialize(ctx))

	got, err := db.QueryPrices(ctx, "TEST", day(1), day(10))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSQLitePriceRoundTripAndRange(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	_, err := db.InsertBatch(ctx, PriceBatch(samplePrices("TEST", 100, 102, 101, 105, 103)))
	require.NoError(t, err)
	_, err = db.InsertBatch(ctx, PriceBatch(samplePrices("OTHER", 10)))
	require.NoError(t, err)

	got, err := db.QueryPrices(ctx, "TEST", day(2), day(4))
	require.NoError(t, err)
	require.Len(t, got, 2, "half-open range")
	assert.Equal(t, day(2), got[0].Timestamp)
	assert.Equal(t, 102.0, got[0].Close)
	assert.Equal(t, "TEST", got[0].Symbol)
	assert.Equal(t, "file_import", got[0].Source)
	assert.Equal(t, day(3), got[1].Timestamp)

	symbols, err := db.ListSymbols(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"OTHER", "TEST"}, symbols)
}

func TestSQLitePriceIngestIsIdempotent(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()
	points := samplePrices("TEST", 100, 102, 101)

	n, err := db.InsertBatch(ctx, PriceBatch(points))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = db.InsertBatch(ctx, PriceBatch(points))
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := db.QueryPrices(ctx, "TEST", day(1), day(10))
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSQLiteMetricsAppendAndQuery(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()
	calc := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

	records := []models.MMetricRecord{
		{Timestamp: day(1), Symbol: "TEST", MetricName: models.MetricDrawdown, MetricValue: 0, WindowSize: 0, CalculationDate: calc},
		{Timestamp: day(2), Symbol: "TEST", MetricName: models.MetricDrawdown, MetricValue: -0.01, WindowSize: 0, CalculationDate: calc},
		{Timestamp: day(2), Symbol: "TEST", MetricName: models.MetricVolatility, MetricValue: 0.2, WindowSize: 3, CalculationDate: calc},
	}
	n, err := db.InsertBatch(ctx, MetricBatch(records))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := db.QueryMetrics(ctx, "TEST", models.MetricDrawdown, day(1), day(3))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, records[0], got[0])
	assert.Equal(t, records[1], got[1])

	again, err := db.QueryMetrics(ctx, "TEST", models.MetricDrawdown, day(1), day(3))
	require.NoError(t, err)
	assert.Equal(t, got, again)

	vol, err := db.QueryMetrics(ctx, "TEST", models.MetricVolatility, day(1), day(3))
	require.NoError(t, err)
	require.Len(t, vol, 1)
	assert.Equal(t, 3, vol[0].WindowSize)
}

func TestSQLiteEmptyQueries(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	got, err := db.QueryPrices(ctx, "NONE", day(1), day(10))
	require.NoError(t, err)
	assert.Empty(t, got)

	n, err := db.InsertBatch(ctx, &models.MColumnBatch{Table: PriceTable, Columns: PriceColumns})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteRejectsMisshapenBatch(t *testing.T) {
	db := newTestSQLite(t)

	_, err := db.InsertBatch(context.Background(), &models.MColumnBatch{
		Table:   "nope",
		Columns: []string{"a"},
		Rows:    [][]any{{1}},
	})
	assert.Error(t, err)

	_, err = db.InsertBatch(context.Background(), &models.MColumnBatch{
		Table:   PriceTable,
		Columns: PriceColumns,
		Rows:    [][]any{{day(1), "TEST"}},
	})
	assert.Error(t, err)
}
