package config

import (
	"os"
	"path/filepath"
	"testing"

	"market-metrics/src/models"
	"market-metrics/src/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestNewConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  db_type: sqlite
  db_path: ./data/metrics.db
`)

	cfg, err := NewConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "market-metrics", cfg.Name)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, utils.DefaultWindowSize, cfg.Metrics.WindowSize)
	assert.Equal(t, utils.DefaultAnnualizationFactor, cfg.Metrics.AnnualizationFactor)
	assert.Equal(t, utils.DefaultRiskFreeRate, cfg.Metrics.RiskFreeRate)
	assert.Equal(t, utils.DefaultSource, cfg.Ingest.Source)
	assert.Equal(t, "memory", cfg.Pipeline.LockBackend)
	assert.ElementsMatch(t, models.AllMetrics, cfg.MetricNames())
}

func TestNewConfigKeepsExplicitZeroRiskFreeRate(t *testing.T) {
	path := writeConfig(t, `
storage:
  db_type: sqlite
  db_path: x.db
metrics:
  risk_free_rate: 0
`)

	cfg, err := NewConfig(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.Metrics.RiskFreeRate)
}

func TestNewConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("MM_DB_TYPE", "postgres")
	t.Setenv("MM_DB_DSN", "postgres://u:p@localhost/metrics?sslmode=disable")
	t.Setenv("MM_LOG_LEVEL", "DEBUG")

	path := writeConfig(t, `
log_level: INFO
storage:
  db_type: sqlite
  db_path: x.db
`)

	cfg, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Storage.DBType)
	assert.Equal(t, "postgres://u:p@localhost/metrics?sslmode=disable", cfg.Storage.DBConnectionString)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() *Config {
		c := &Config{MConfig: &models.MConfig{
			Storage: models.MStorageConfig{DBType: "sqlite", DBPath: "x.db"},
		}}
		c.ApplyDefaults()
		return c
	}

	require.NoError(t, base().Validate())

	cases := map[string]func(c *Config){
		"window too small":  func(c *Config) { c.Metrics.WindowSize = 1 },
		"unknown metric":    func(c *Config) { c.Metrics.Enabled = []string{"beta"} },
		"unknown db":        func(c *Config) { c.Storage.DBType = "oracle" },
		"postgres no dsn":   func(c *Config) { c.Storage.DBType = "postgres" },
		"clickhouse no add": func(c *Config) { c.Storage.DBType = "clickhouse" },
		"bad cron":          func(c *Config) { c.Schedule.IngestCron = "every minute" },
		"redis no addr":     func(c *Config) { c.Pipeline.LockBackend = "redis" },
		"kafka no topic":    func(c *Config) { c.Events.KafkaBrokers = []string{"localhost:9092"} },
		"privileged port":   func(c *Config) { c.Port = 80 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	c := &Config{MConfig: &models.MConfig{
		Storage: models.MStorageConfig{DBType: "sqlite", DBPath: "x.db"},
		Schedule: models.MScheduleConfig{
			IngestCron: "*/15 * * * *",
		},
	}}
	c.ApplyDefaults()

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, c.Save(path))

	loaded, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "*/15 * * * *", loaded.Schedule.IngestCron)
	assert.Equal(t, c.Metrics.WindowSize, loaded.Metrics.WindowSize)
}

func TestMissingFile(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
