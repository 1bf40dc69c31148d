package models

// MConfig Structure
type MConfig struct {
	Name      string          `yaml:"name"`
	Host      string          `yaml:"host"`
	Port      int             `yaml:"port"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"`
	GrpcHost  string          `yaml:"grpc_host"`
	GrpcPort  int             `yaml:"grpc_port"`
	Storage   MStorageConfig  `yaml:"storage"`
	Ingest    MIngestConfig   `yaml:"ingest"`
	Metrics   MMetricsConfig  `yaml:"metrics"`
	Pipeline  MPipelineConfig `yaml:"pipeline"`
	Events    MEventsConfig   `yaml:"events"`
	Schedule  MScheduleConfig `yaml:"schedule"`
}

type MStorageConfig struct {
	DBType             string   `yaml:"db_type"`
	DBPath             string   `yaml:"db_path"`
	DBConnectionString string   `yaml:"db_connection_string"`
	Addr               []string `yaml:"addr"` // clickhouse native endpoints
	Database           string   `yaml:"database"`
	Username           string   `yaml:"username"`
	Password           string   `yaml:"password"`
	TimeoutSeconds     int      `yaml:"timeout_seconds"`
	MaxRetries         int      `yaml:"max_retries"`
	RetryBaseMillis    int      `yaml:"retry_base_millis"`
}

type MIngestConfig struct {
	DataDir string   `yaml:"data_dir"`
	Source  string   `yaml:"source"`
	Symbols []string `yaml:"symbols"` // optional filter on file-derived symbols
}

type MMetricsConfig struct {
	WindowSize          int      `yaml:"window_size"`
	AnnualizationFactor float64  `yaml:"annualization_factor"`
	RiskFreeRate        float64  `yaml:"risk_free_rate"`
	Enabled             []string `yaml:"enabled"`
	Symbols             []string `yaml:"symbols"`
	LookbackDays        int      `yaml:"lookback_days"`
	CalendarMIC         string   `yaml:"calendar_mic"` // forces one exchange calendar for end-date defaults
}

type MPipelineConfig struct {
	Workers        int    `yaml:"workers"`
	LockBackend    string `yaml:"lock_backend"` // "memory" or "redis"
	RedisAddr      string `yaml:"redis_addr"`
	RedisPassword  string `yaml:"redis_password"`
	RedisDB        int    `yaml:"redis_db"`
	LockTTLSeconds int    `yaml:"lock_ttl_seconds"`
	RecentRuns     int    `yaml:"recent_runs"`
}

type MEventsConfig struct {
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
}

type MScheduleConfig struct {
	IngestCron  string `yaml:"ingest_cron"`
	MetricsCron string `yaml:"metrics_cron"`
}
