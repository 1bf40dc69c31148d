package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"market-metrics/src/logger"
	"market-metrics/src/models"
)

// sqlDialect holds what differs between the database/sql backends.
type sqlDialect struct {
	name        string
	qualify     func(table string) string
	placeholder func(n int) string // n is 1-based
	realType    string
}

// sqlStore implements the shared part of IDatabase over database/sql.
// Times are stored as unix seconds.
type sqlStore struct {
	DB      *sql.DB
	Logger  *logger.Logger
	dialect sqlDialect
}

// -----------------------------------------------------------------------------

func (s *sqlStore) createTables(ctx context.Context) error {
	prices := s.dialect.qualify(PriceTable)
	metrics := s.dialect.qualify(MetricTable)
	floatType := s.dialect.realType

	// Create price_data
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			timestamp BIGINT NOT NULL,
			symbol TEXT NOT NULL,
			open %[2]s,
			high %[2]s,
			low %[2]s,
			close %[2]s,
			volume %[2]s,
			source TEXT NOT NULL,
			PRIMARY KEY (symbol, timestamp, source)
		);
	`, prices, floatType)
	if _, err := s.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s: %w", PriceTable, err)
	}

	// Create risk_metrics (append-only, no key)
	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			timestamp BIGINT NOT NULL,
			symbol TEXT NOT NULL,
			metric_name TEXT NOT NULL,
			metric_value %[2]s,
			window_size INTEGER NOT NULL,
			calculation_date BIGINT NOT NULL
		);
	`, metrics, floatType)
	if _, err := s.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s: %w", MetricTable, err)
	}

	query = fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_risk_metrics_lookup ON %s (symbol, metric_name, timestamp)`, metrics)
	if _, err := s.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to index %s: %w", MetricTable, err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) Ping(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("%s: database not initialized", s.dialect.name)
	}
	return s.DB.PingContext(ctx)
}

// -----------------------------------------------------------------------------

func (s *sqlStore) insertQuery(batch *models.MColumnBatch) string {
	marks := make([]string, len(batch.Columns))
	for i := range marks {
		marks[i] = s.dialect.placeholder(i + 1)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.dialect.qualify(batch.Table), strings.Join(batch.Columns, ", "), strings.Join(marks, ", "))
	if len(batch.UniqueKey) > 0 {
		query += fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", strings.Join(batch.UniqueKey, ", "))
	}
	return query
}

// -----------------------------------------------------------------------------

// InsertBatch writes the whole batch in one transaction.
func (s *sqlStore) InsertBatch(ctx context.Context, batch *models.MColumnBatch) (int, error) {
	if batch.Len() == 0 {
		return 0, nil
	}
	if err := checkBatch(batch); err != nil {
		return 0, err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.insertQuery(batch))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	written := 0
	args := make([]any, len(batch.Columns))
	for _, row := range batch.Rows {
		for i, v := range row {
			args[i] = bindValue(v)
		}
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, err
		}
		if n, err := res.RowsAffected(); err == nil {
			written += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

// -----------------------------------------------------------------------------

func (s *sqlStore) QueryPrices(ctx context.Context, symbol string, from, to time.Time) ([]models.MPricePoint, error) {
	p := s.dialect.placeholder
	query := fmt.Sprintf(`
		SELECT timestamp, symbol, open, high, low, close, volume, source
		FROM %s
		WHERE symbol = %s AND timestamp >= %s AND timestamp < %s
		ORDER BY timestamp, source
	`, s.dialect.qualify(PriceTable), p(1), p(2), p(3))

	rows, err := s.DB.QueryContext(ctx, query, symbol, from.Unix(), to.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MPricePoint
	for rows.Next() {
		var (
			pp models.MPricePoint
			ts int64
		)
		if err := rows.Scan(&ts, &pp.Symbol, &pp.Open, &pp.High, &pp.Low, &pp.Close, &pp.Volume, &pp.Source); err != nil {
			return nil, err
		}
		pp.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, pp)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func (s *sqlStore) QueryMetrics(ctx context.Context, symbol string, metric models.MetricName, from, to time.Time) ([]models.MMetricRecord, error) {
	p := s.dialect.placeholder
	query := fmt.Sprintf(`
		SELECT timestamp, symbol, metric_name, metric_value, window_size, calculation_date
		FROM %s
		WHERE symbol = %s AND metric_name = %s AND timestamp >= %s AND timestamp < %s
		ORDER BY timestamp, calculation_date
	`, s.dialect.qualify(MetricTable), p(1), p(2), p(3), p(4))

	rows, err := s.DB.QueryContext(ctx, query, symbol, string(metric), from.Unix(), to.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MMetricRecord
	for rows.Next() {
		var (
			rec      models.MMetricRecord
			name     string
			ts, calc int64
		)
		if err := rows.Scan(&ts, &rec.Symbol, &name, &rec.MetricValue, &rec.WindowSize, &calc); err != nil {
			return nil, err
		}
		rec.Timestamp = time.Unix(ts, 0).UTC()
		rec.CalculationDate = time.Unix(calc, 0).UTC()
		rec.MetricName = models.MetricName(name)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func (s *sqlStore) ListSymbols(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf("SELECT DISTINCT symbol FROM %s ORDER BY symbol", s.dialect.qualify(PriceTable))
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func (s *sqlStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------

func bindValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.Unix()
	}
	return v
}

// checkBatch rejects batches for unknown tables or misaligned rows.
func checkBatch(batch *models.MColumnBatch) error {
	var want []string
	switch batch.Table {
	case PriceTable:
		want = PriceColumns
	case MetricTable:
		want = MetricColumns
	default:
		return fmt.Errorf("unknown table %q", batch.Table)
	}
	if strings.Join(batch.Columns, ",") != strings.Join(want, ",") {
		return fmt.Errorf("column mismatch for %s: got %v, want %v", batch.Table, batch.Columns, want)
	}
	for i, row := range batch.Rows {
		if len(row) != len(want) {
			return fmt.Errorf("row %d of %s has %d values, want %d", i, batch.Table, len(row), len(want))
		}
	}
	return nil
}
