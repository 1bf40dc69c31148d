package query

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"market-metrics/src/helpers"
	"market-metrics/src/logger"
	"market-metrics/src/models"
	"market-metrics/src/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func seededService(t *testing.T) *Service {
	t.Helper()
	cfg := &models.MConfig{Storage: models.MStorageConfig{DBType: "sqlite", DBPath: filepath.Join(t.TempDir(), "q.db")}}
	log := logger.NewLoggerWithWriter(io.Discard, "ERROR", "text", "query")
	db, err := storage.NewSQLiteDB(cfg, log)
	require.NoError(t, err)
	require.NoError(t, db.Initialize(context.Background()))
	t.Cleanup(func() { db.Close() })

	var prices []models.MPricePoint
	for d := 1; d <= 5; d++ {
		prices = append(prices, models.MPricePoint{
			Timestamp: day(d).Add(16 * time.Hour), Symbol: "TEST",
			Open: 1, High: 1, Low: 1, Close: float64(100 + d), Volume: 10, Source: "file_import",
		})
	}
	w := storage.NewBatchWriter(db, time.Second, log)
	_, err = w.WritePrices(context.Background(), prices)
	require.NoError(t, err)

	first := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)
	_, err = w.WriteMetrics(context.Background(), []models.MMetricRecord{
		{Timestamp: day(2), Symbol: "TEST", MetricName: models.MetricDrawdown, MetricValue: -0.1, CalculationDate: first},
		{Timestamp: day(3), Symbol: "TEST", MetricName: models.MetricDrawdown, MetricValue: -0.2, CalculationDate: first},
		{Timestamp: day(3), Symbol: "TEST", MetricName: models.MetricDrawdown, MetricValue: -0.3, CalculationDate: second},
	})
	require.NoError(t, err)

	return NewService(db, time.Second, log)
}

func TestPricesInclusiveEndDate(t *testing.T) {
	svc := seededService(t)

	res, err := svc.Prices(context.Background(), "TEST", "2024-01-02", "2024-01-04")
	require.NoError(t, err)
	assert.False(t, res.Empty)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, 102.0, res.Rows[0].Close)
	assert.Equal(t, 104.0, res.Rows[2].Close, "end day included")

	again, err := svc.Prices(context.Background(), "TEST", "2024-01-02", "2024-01-04")
	require.NoError(t, err)
	assert.Equal(t, res, again)
}

func TestPricesNoDataIsNotAnError(t *testing.T) {
	svc := seededService(t)

	res, err := svc.Prices(context.Background(), "TEST", "2023-01-01", "2023-12-31")
	require.NoError(t, err)
	assert.True(t, res.Empty)
	assert.NotNil(t, res.Rows)

	res, err = svc.Prices(context.Background(), "UNKNOWN", "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.True(t, res.Empty)
}

func TestMetricsLatestCalculationWins(t *testing.T) {
	svc := seededService(t)

	res, err := svc.Metrics(context.Background(), "TEST", "drawdown", "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, -0.1, res.Rows[0].MetricValue)
	assert.Equal(t, -0.3, res.Rows[1].MetricValue)

	svc.LatestOnly = false
	res, err = svc.Metrics(context.Background(), "TEST", "drawdown", "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Len(t, res.Rows, 3)

	res, err = svc.Metrics(context.Background(), "TEST", "volatility", "2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.True(t, res.Empty)
}

func TestQueryValidation(t *testing.T) {
	svc := seededService(t)
	ctx := context.Background()
	var verr *helpers.ValidationError

	_, err := svc.Metrics(ctx, "TEST", "beta", "2024-01-01", "2024-01-31")
	assert.ErrorAs(t, err, &verr)

	_, err = svc.Prices(ctx, "TEST", "01/01/2024", "2024-01-31")
	assert.ErrorAs(t, err, &verr)

	_, err = svc.Prices(ctx, "TEST", "2024-02-01", "2024-01-31")
	assert.ErrorAs(t, err, &verr)

	_, err = svc.Prices(ctx, " ", "2024-01-01", "2024-01-31")
	assert.ErrorAs(t, err, &verr)
}

func TestListSymbols(t *testing.T) {
	svc := seededService(t)
	symbols, err := svc.ListSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"TEST"}, symbols)
}

type failingDB struct {
	storage.SQLiteDB
}

func (failingDB) QueryPrices(ctx context.Context, symbol string, from, to time.Time) ([]models.MPricePoint, error) {
	return nil, context.DeadlineExceeded
}

func (failingDB) ListSymbols(ctx context.Context) ([]string, error) {
	return nil, errors.New("no such table: price_data")
}

func TestStoreErrorsAreDistinctFromEmpty(t *testing.T) {
	svc := NewService(&failingDB{}, time.Second, nil)

	res, err := svc.Prices(context.Background(), "TEST", "2024-01-01", "2024-01-02")
	require.Error(t, err)
	assert.False(t, res.Empty)
	assert.True(t, helpers.IsTransient(err))

	_, err = svc.ListSymbols(context.Background())
	require.Error(t, err)
	assert.False(t, helpers.IsTransient(err))
}

func TestParseDateRangeBounds(t *testing.T) {
	r, err := ParseDateRange("2024-01-01", "2024-01-01")
	require.NoError(t, err)
	from, to := r.Bounds()
	assert.Equal(t, day(1), from)
	assert.Equal(t, day(2), to)
}

func TestPricesOneRowPerTimestampAcrossSources(t *testing.T) {
	svc := seededService(t)
	ctx := context.Background()

	vendor := []models.MPricePoint{
		{Timestamp: day(2).Add(16 * time.Hour), Symbol: "TEST", Open: 1, High: 1, Low: 1, Close: 900, Volume: 10, Source: "a_vendor"},
		{Timestamp: day(3).Add(16 * time.Hour), Symbol: "TEST", Open: 1, High: 1, Low: 1, Close: 901, Volume: 10, Source: "a_vendor"},
	}
	n, err := storage.NewBatchWriter(svc.DB, time.Second, nil).WritePrices(ctx, vendor)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// no preference: first source by name
	res, err := svc.Prices(ctx, "TEST", "2024-01-01", "2024-01-05")
	require.NoError(t, err)
	require.Len(t, res.Rows, 5)
	assert.Equal(t, "a_vendor", res.Rows[1].Source)
	assert.Equal(t, 900.0, res.Rows[1].Close)

	svc.PreferredSource = "file_import"
	res, err = svc.Prices(ctx, "TEST", "2024-01-01", "2024-01-05")
	require.NoError(t, err)
	require.Len(t, res.Rows, 5)
	for i, p := range res.Rows {
		assert.Equal(t, "file_import", p.Source, "row %d", i)
		if i > 0 {
			assert.True(t, res.Rows[i-1].Timestamp.Before(p.Timestamp))
		}
	}
}

func TestRepeatedQueriesAreIdentical(t *testing.T) {
	svc := seededService(t)
	ctx := context.Background()

	prices, err := svc.Prices(ctx, "TEST", "2024-01-01", "2024-01-05")
	require.NoError(t, err)
	metrics, err := svc.Metrics(ctx, "TEST", "drawdown", "2024-01-01", "2024-01-05")
	require.NoError(t, err)

	// a later calculation of an already covered timestamp
	later := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	_, err = storage.NewBatchWriter(svc.DB, time.Second, nil).WriteMetrics(ctx, []models.MMetricRecord{
		{Timestamp: day(2), Symbol: "TEST", MetricName: models.MetricDrawdown, MetricValue: -0.15, CalculationDate: later},
	})
	require.NoError(t, err)

	first, err := svc.Metrics(ctx, "TEST", "drawdown", "2024-01-01", "2024-01-05")
	require.NoError(t, err)
	second, err := svc.Metrics(ctx, "TEST", "drawdown", "2024-01-01", "2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.Len(t, first.Rows, 2)
	assert.Equal(t, -0.15, first.Rows[0].MetricValue)
	assert.Equal(t, metrics.Rows[1], first.Rows[1])

	pricesAgain, err := svc.Prices(ctx, "TEST", "2024-01-01", "2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, prices, pricesAgain)
}
