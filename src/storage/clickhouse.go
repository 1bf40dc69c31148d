package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"market-metrics/src/logger"
	"market-metrics/src/models"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// -----------------------------------------------------------------------------

// ClickHouseDB stores both series in MergeTree tables. price_data is a
// ReplacingMergeTree on (symbol, timestamp, source) and is read with FINAL.
type ClickHouseDB struct {
	Config *models.MConfig
	Conn   driver.Conn
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewClickHouseDB(cfg *models.MConfig, log *logger.Logger) (*ClickHouseDB, error) {
	if len(cfg.Storage.Addr) == 0 {
		return nil, fmt.Errorf("clickhouse: no address configured")
	}
	return &ClickHouseDB{Config: cfg, Logger: log}, nil
}

// -----------------------------------------------------------------------------

func (d *ClickHouseDB) Initialize(ctx context.Context) error {
	st := d.Config.Storage
	database := st.Database
	if database == "" {
		database = "default"
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: st.Addr,
		Auth: clickhouse.Auth{
			Database: database,
			Username: st.Username,
			Password: st.Password,
		},
		DialTimeout: time.Duration(st.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return err
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return err
	}
	d.Conn = conn

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			timestamp DateTime('UTC'),
			symbol LowCardinality(String),
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			volume Float64,
			source LowCardinality(String)
		) ENGINE = ReplacingMergeTree
		ORDER BY (symbol, timestamp, source)
	`, PriceTable)
	if err := conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s: %w", PriceTable, err)
	}

	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			timestamp DateTime('UTC'),
			symbol LowCardinality(String),
			metric_name LowCardinality(String),
			metric_value Float64,
			window_size Int32,
			calculation_date DateTime('UTC')
		) ENGINE = MergeTree
		ORDER BY (symbol, metric_name, timestamp)
	`, MetricTable)
	if err := conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create %s: %w", MetricTable, err)
	}

	d.Logger.Info("ClickHouseDB initialized (%s, database %s)", strings.Join(st.Addr, ","), database)
	return nil
}

// -----------------------------------------------------------------------------

func (d *ClickHouseDB) Ping(ctx context.Context) error {
	if d.Conn == nil {
		return fmt.Errorf("clickhouse: connection not initialized")
	}
	return d.Conn.Ping(ctx)
}

// -----------------------------------------------------------------------------

// InsertBatch sends the batch as one native block. Price rows already stored
// are filtered out first so the returned count matches what is new.
func (d *ClickHouseDB) InsertBatch(ctx context.Context, batch *models.MColumnBatch) (int, error) {
	if batch.Len() == 0 {
		return 0, nil
	}
	if err := checkBatch(batch); err != nil {
		return 0, err
	}

	rows := batch.Rows
	if len(batch.UniqueKey) > 0 {
		fresh, err := d.skipExisting(ctx, batch)
		if err != nil {
			return 0, err
		}
		rows = fresh
	}
	if len(rows) == 0 {
		return 0, nil
	}

	b, err := d.Conn.PrepareBatch(ctx, fmt.Sprintf("INSERT INTO %s (%s)", batch.Table, strings.Join(batch.Columns, ", ")))
	if err != nil {
		return 0, err
	}
	defer b.Abort()

	for _, row := range rows {
		vals := make([]any, len(row))
		for i, v := range row {
			if n, ok := v.(int); ok {
				v = int32(n)
			}
			vals[i] = v
		}
		if err := b.Append(vals...); err != nil {
			return 0, err
		}
	}

	if err := b.Send(); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// -----------------------------------------------------------------------------

// skipExisting drops price rows whose (symbol, timestamp, source) is stored.
func (d *ClickHouseDB) skipExisting(ctx context.Context, batch *models.MColumnBatch) ([][]any, error) {
	type group struct {
		symbol, source string
		min, max       time.Time
	}
	type key struct {
		symbol, source string
		ts             int64
	}

	groups := map[[2]string]*group{}
	for _, row := range batch.Rows {
		ts, sym, src := row[0].(time.Time), row[1].(string), row[7].(string)
		g, ok := groups[[2]string{sym, src}]
		if !ok {
			groups[[2]string{sym, src}] = &group{symbol: sym, source: src, min: ts, max: ts}
			continue
		}
		if ts.Before(g.min) {
			g.min = ts
		}
		if ts.After(g.max) {
			g.max = ts
		}
	}

	existing := map[key]bool{}
	for _, g := range groups {
		rows, err := d.Conn.Query(ctx, fmt.Sprintf(`
			SELECT timestamp FROM %s FINAL
			WHERE symbol = ? AND source = ? AND timestamp >= ? AND timestamp <= ?
		`, PriceTable), g.symbol, g.source, g.min, g.max)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var ts time.Time
			if err := rows.Scan(&ts); err != nil {
				rows.Close()
				return nil, err
			}
			existing[key{g.symbol, g.source, ts.Unix()}] = true
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}

	fresh := make([][]any, 0, len(batch.Rows))
	for _, row := range batch.Rows {
		k := key{row[1].(string), row[7].(string), row[0].(time.Time).Unix()}
		if existing[k] {
			continue
		}
		existing[k] = true
		fresh = append(fresh, row)
	}
	return fresh, nil
}

// -----------------------------------------------------------------------------

func (d *ClickHouseDB) QueryPrices(ctx context.Context, symbol string, from, to time.Time) ([]models.MPricePoint, error) {
	rows, err := d.Conn.Query(ctx, fmt.Sprintf(`
		SELECT timestamp, symbol, open, high, low, close, volume, source
		FROM %s FINAL
		WHERE symbol = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp, source
	`, PriceTable), symbol, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MPricePoint
	for rows.Next() {
		var pp models.MPricePoint
		if err := rows.Scan(&pp.Timestamp, &pp.Symbol, &pp.Open, &pp.High, &pp.Low, &pp.Close, &pp.Volume, &pp.Source); err != nil {
			return nil, err
		}
		pp.Timestamp = pp.Timestamp.UTC()
		out = append(out, pp)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *ClickHouseDB) QueryMetrics(ctx context.Context, symbol string, metric models.MetricName, from, to time.Time) ([]models.MMetricRecord, error) {
	rows, err := d.Conn.Query(ctx, fmt.Sprintf(`
		SELECT timestamp, symbol, metric_name, metric_value, window_size, calculation_date
		FROM %s
		WHERE symbol = ? AND metric_name = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp, calculation_date
	`, MetricTable), symbol, string(metric), from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MMetricRecord
	for rows.Next() {
		var (
			rec  models.MMetricRecord
			name string
			ws   int32
		)
		if err := rows.Scan(&rec.Timestamp, &rec.Symbol, &name, &rec.MetricValue, &ws, &rec.CalculationDate); err != nil {
			return nil, err
		}
		rec.Timestamp = rec.Timestamp.UTC()
		rec.CalculationDate = rec.CalculationDate.UTC()
		rec.MetricName = models.MetricName(name)
		rec.WindowSize = int(ws)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *ClickHouseDB) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := d.Conn.Query(ctx, fmt.Sprintf("SELECT DISTINCT symbol FROM %s ORDER BY symbol", PriceTable))
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

func (d *ClickHouseDB) Close() error {
	if d.Conn != nil {
		return d.Conn.Close()
	}
	return nil
}
