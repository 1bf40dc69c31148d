package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"market-metrics/src/logger"
	"market-metrics/src/models"

	"github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	sqlStore
	Config *models.MConfig
	Schema string
}

// -----------------------------------------------------------------------------

// NewPostgresDB keeps its tables in their own schema: storage.database when
// set, otherwise the application name.
func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	if cfg.Storage.DBConnectionString == "" {
		return nil, fmt.Errorf("postgres: empty connection string")
	}

	schema := cfg.Storage.Database
	if schema == "" {
		schema = cfg.Name
	}
	schema = strings.ReplaceAll(strings.ToLower(schema), "-", "_")
	if schema == "" {
		schema = "public"
	}

	return &PostgresDB{
		sqlStore: sqlStore{
			Logger: log,
			dialect: sqlDialect{
				name: "postgres",
				qualify: func(table string) string {
					return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(table)
				},
				placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
				realType:    "DOUBLE PRECISION",
			},
		},
		Config: cfg,
		Schema: schema,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize(ctx context.Context) error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return err
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pq.QuoteIdentifier(d.Schema))); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(ctx); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}
