package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"market-metrics/src/models"
	"market-metrics/src/utils"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override (MM_DB_DSN, MM_LOG_LEVEL, ...).
const EnvPrefix = "MM"

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// envOverrides holds the settings that may come from the environment,
// typically secrets kept out of the YAML file.
type envOverrides struct {
	LogLevel     string   `envconfig:"LOG_LEVEL"`
	DBType       string   `envconfig:"DB_TYPE"`
	DBPath       string   `envconfig:"DB_PATH"`
	DSN          string   `envconfig:"DB_DSN"`
	DBAddr       []string `envconfig:"DB_ADDR"`
	DBName       string   `envconfig:"DB_NAME"`
	DBUser       string   `envconfig:"DB_USER"`
	DBPassword   string   `envconfig:"DB_PASSWORD"`
	DataDir      string   `envconfig:"DATA_DIR"`
	RedisAddr    string   `envconfig:"REDIS_ADDR"`
	RedisPass    string   `envconfig:"REDIS_PASSWORD"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config from a YAML file, a sibling .env file and
// MM_* environment variables, in increasing order of precedence.
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	// risk_free_rate may legitimately be 0, so its default is seeded before parsing
	modelConfig := models.MConfig{Metrics: models.MMetricsConfig{RiskFreeRate: utils.DefaultRiskFreeRate}}
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}

	// 3. Environment overrides (.env is optional)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	config.ApplyDefaults()

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// ApplyEnv overlays non-empty MM_* environment variables.
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to read environment overrides: %w", err)
	}

	setIf := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	setIf(&c.LogLevel, env.LogLevel)
	setIf(&c.Storage.DBType, env.DBType)
	setIf(&c.Storage.DBPath, env.DBPath)
	setIf(&c.Storage.DBConnectionString, env.DSN)
	setIf(&c.Storage.Database, env.DBName)
	setIf(&c.Storage.Username, env.DBUser)
	setIf(&c.Storage.Password, env.DBPassword)
	setIf(&c.Ingest.DataDir, env.DataDir)
	setIf(&c.Pipeline.RedisAddr, env.RedisAddr)
	setIf(&c.Pipeline.RedisPassword, env.RedisPass)
	if len(env.DBAddr) > 0 {
		c.Storage.Addr = env.DBAddr
	}
	if len(env.KafkaBrokers) > 0 {
		c.Events.KafkaBrokers = env.KafkaBrokers
	}
	return nil
}

// -----------------------------------------------------------------------------

// ApplyDefaults fills unset values.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "market-metrics"
	}
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.Storage.DBType == "" {
		c.Storage.DBType = "sqlite"
	}
	if c.Storage.TimeoutSeconds == 0 {
		c.Storage.TimeoutSeconds = utils.DefaultStoreTimeoutSeconds
	}
	if c.Storage.RetryBaseMillis == 0 {
		c.Storage.RetryBaseMillis = utils.DefaultRetryBaseMillis
	}
	if c.Ingest.Source == "" {
		c.Ingest.Source = utils.DefaultSource
	}
	if c.Metrics.WindowSize == 0 {
		c.Metrics.WindowSize = utils.DefaultWindowSize
	}
	if c.Metrics.AnnualizationFactor == 0 {
		c.Metrics.AnnualizationFactor = utils.DefaultAnnualizationFactor
	}
	if len(c.Metrics.Enabled) == 0 {
		for _, m := range models.AllMetrics {
			c.Metrics.Enabled = append(c.Metrics.Enabled, string(m))
		}
	}
	if c.Metrics.LookbackDays == 0 {
		c.Metrics.LookbackDays = utils.DefaultLookbackDays
	}
	if c.Pipeline.Workers == 0 {
		c.Pipeline.Workers = 1
	}
	if c.Pipeline.LockBackend == "" {
		c.Pipeline.LockBackend = "memory"
	}
	if c.Pipeline.LockTTLSeconds == 0 {
		c.Pipeline.LockTTLSeconds = utils.DefaultLockTTLSeconds
	}
	if c.Pipeline.RecentRuns == 0 {
		c.Pipeline.RecentRuns = utils.DefaultRecentRuns
	}
}

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Server
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid grpc port number: %d", c.GrpcPort)
	}

	// Storage
	switch c.Storage.DBType {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("connection string cannot be empty for postgres")
		}
	case "clickhouse":
		if len(c.Storage.Addr) == 0 {
			return fmt.Errorf("at least one address is required for clickhouse")
		}
	default:
		return fmt.Errorf("unsupported database type '%s'", c.Storage.DBType)
	}
	if c.Storage.TimeoutSeconds < 0 {
		return fmt.Errorf("storage timeout cannot be negative")
	}
	if c.Storage.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	// Metrics
	if c.Metrics.WindowSize < 2 {
		return fmt.Errorf("metrics window size must be at least 2, got %d", c.Metrics.WindowSize)
	}
	if c.Metrics.AnnualizationFactor <= 0 {
		return fmt.Errorf("annualization factor must be greater than 0")
	}
	for _, m := range c.Metrics.Enabled {
		if _, err := models.ParseMetricName(m); err != nil {
			return fmt.Errorf("metrics.enabled: %w", err)
		}
	}
	if c.Metrics.LookbackDays < 0 {
		return fmt.Errorf("lookback days cannot be negative")
	}

	// Pipeline
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	switch strings.ToLower(c.Pipeline.LockBackend) {
	case "memory":
	case "redis":
		if c.Pipeline.RedisAddr == "" {
			return fmt.Errorf("redis address required for redis lock backend")
		}
	default:
		return fmt.Errorf("unsupported lock backend '%s'", c.Pipeline.LockBackend)
	}

	// Events
	if len(c.Events.KafkaBrokers) > 0 && c.Events.KafkaTopic == "" {
		return fmt.Errorf("kafka topic cannot be empty when brokers are configured")
	}

	// Schedule
	for name, spec := range map[string]string{"ingest_cron": c.Schedule.IngestCron, "metrics_cron": c.Schedule.MetricsCron} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, spec, err)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// MetricNames returns the enabled metrics as typed names.
func (c *Config) MetricNames() []models.MetricName {
	out := make([]models.MetricName, 0, len(c.Metrics.Enabled))
	for _, m := range c.Metrics.Enabled {
		if name, err := models.ParseMetricName(m); err == nil {
			out = append(out, name)
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
