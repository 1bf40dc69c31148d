package storage

import (
	"fmt"

	"market-metrics/src/interfaces"
	"market-metrics/src/logger"
	"market-metrics/src/models"
)

// NewDatabase returns the backend named by storage.db_type. The caller still
// has to Initialize it.
func NewDatabase(cfg *models.MConfig, log *logger.Logger) (interfaces.IDatabase, error) {
	switch cfg.Storage.DBType {
	case "sqlite", "":
		return NewSQLiteDB(cfg, log)
	case "postgres":
		return NewPostgresDB(cfg, log)
	case "clickhouse":
		return NewClickHouseDB(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported database type '%s'", cfg.Storage.DBType)
	}
}
