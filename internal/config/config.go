package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/sports-qc/internal/db"
)

// Config holds the full application configuration.
type Config struct {
	QC          QCConfig          `yaml:"qc" mapstructure:"qc"`
	ReportStore ReportStoreConfig `yaml:"report_store" mapstructure:"report_store"`
	Ingest      IngestConfig      `yaml:"ingest" mapstructure:"ingest"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Monitoring  MonitoringConfig  `yaml:"monitoring" mapstructure:"monitoring"`
	Fetch       FetchConfig       `yaml:"fetch" mapstructure:"fetch"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// QCConfig configures pipeline runs.
type QCConfig struct {
	// Profile selects the threshold set: "professional" or "college", or a
	// profile defined in ProfilesFile.
	Profile      string `yaml:"profile" mapstructure:"profile"`
	ProfilesFile string `yaml:"profiles_file" mapstructure:"profiles_file"`
	// MADThreshold and StrictMADThreshold override the profile's tiers
	// when non-zero.
	MADThreshold       float64 `yaml:"mad_threshold" mapstructure:"mad_threshold"`
	StrictMADThreshold float64 `yaml:"strict_mad_threshold" mapstructure:"strict_mad_threshold"`
	AutoRejectFailures bool    `yaml:"auto_reject_failures" mapstructure:"auto_reject_failures"`
	AutoRejectOutliers bool    `yaml:"auto_reject_outliers" mapstructure:"auto_reject_outliers"`
	IncludeFlagged     bool    `yaml:"include_flagged" mapstructure:"include_flagged"`
	MinConfidence      float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	BatchSize          int     `yaml:"batch_size" mapstructure:"batch_size"`
	Workers            int     `yaml:"workers" mapstructure:"workers"`
}

// ReportStoreConfig selects and configures the report store backend.
type ReportStoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"` // memory, redis, sqlite or postgres
	TTLHours      int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	SQLitePath    string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
}

// TTL returns the report expiry. Zero or negative hours keep reports
// forever.
func (c ReportStoreConfig) TTL() time.Duration {
	if c.TTLHours <= 0 {
		return -1
	}
	return time.Duration(c.TTLHours) * time.Hour
}

// IngestConfig configures forwarding of validated data to the warehouse.
type IngestConfig struct {
	// DatabaseURL is the warehouse connection string. Empty disables
	// forwarding.
	DatabaseURL         string        `yaml:"database_url" mapstructure:"database_url"`
	MaxRejectRate       float64       `yaml:"max_reject_rate" mapstructure:"max_reject_rate"`
	PersistTimeoutSecs  int           `yaml:"persist_timeout_secs" mapstructure:"persist_timeout_secs"`
	Pool                db.PoolConfig `yaml:"pool" mapstructure:"pool"`
	Retry               RetryConfig   `yaml:"retry" mapstructure:"retry"`
	BreakerThreshold    int           `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int           `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// RetryConfig configures retries of transient warehouse and webhook errors.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	ReadTimeoutSecs  int      `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	WriteTimeoutSecs int      `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
	MaxBodyMB        int      `yaml:"max_body_mb" mapstructure:"max_body_mb"`
	CORSOrigins      []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// MonitoringConfig configures QC alerting.
type MonitoringConfig struct {
	WebhookURL                string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	RejectRateThreshold       float64 `yaml:"reject_rate_threshold" mapstructure:"reject_rate_threshold"`
	CompletenessDropThreshold float64 `yaml:"completeness_drop_threshold" mapstructure:"completeness_drop_threshold"`
	ExtremeOutlierThreshold   int     `yaml:"extreme_outlier_threshold" mapstructure:"extreme_outlier_threshold"`
	CheckIntervalSecs         int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackReports           int     `yaml:"lookback_reports" mapstructure:"lookback_reports"`
	AlertsPerMinute           float64 `yaml:"alerts_per_minute" mapstructure:"alerts_per_minute"`
}

// FetchConfig configures downloads of remote batch files.
type FetchConfig struct {
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"` // hosts without a built-in rate
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SPORTSQC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("qc.profile", "professional")
	v.SetDefault("qc.mad_threshold", 0.0)
	v.SetDefault("qc.strict_mad_threshold", 0.0)
	v.SetDefault("qc.auto_reject_failures", false)
	v.SetDefault("qc.auto_reject_outliers", false)
	v.SetDefault("qc.include_flagged", true)
	v.SetDefault("qc.min_confidence", 0.0)
	v.SetDefault("qc.batch_size", 1000)
	v.SetDefault("qc.workers", 4)
	v.SetDefault("report_store.driver", "sqlite")
	v.SetDefault("report_store.ttl_hours", 720)
	v.SetDefault("report_store.redis_addr", "localhost:6379")
	v.SetDefault("report_store.sqlite_path", "sports-qc.db")
	v.SetDefault("fetch.user_agent", "sports-qc/1.0")
	v.SetDefault("fetch.timeout_secs", 30)
	v.SetDefault("fetch.rate_per_sec", 20.0)
	v.SetDefault("ingest.max_reject_rate", 0.2)
	v.SetDefault("ingest.persist_timeout_secs", 10)
	v.SetDefault("ingest.retry.max_attempts", 3)
	v.SetDefault("ingest.retry.initial_backoff_ms", 500)
	v.SetDefault("ingest.retry.max_backoff_ms", 10000)
	v.SetDefault("ingest.breaker_threshold", 5)
	v.SetDefault("ingest.breaker_cooldown_secs", 30)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_secs", 15)
	v.SetDefault("server.write_timeout_secs", 60)
	v.SetDefault("server.max_body_mb", 32)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("monitoring.reject_rate_threshold", 0.2)
	v.SetDefault("monitoring.completeness_drop_threshold", 10.0)
	v.SetDefault("monitoring.extreme_outlier_threshold", 10)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_reports", 50)
	v.SetDefault("monitoring.alerts_per_minute", 6.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate rejects settings no command can run with.
func (c *Config) Validate() error {
	switch {
	case c.QC.MADThreshold < 0 || c.QC.StrictMADThreshold < 0:
		return eris.New("config: qc mad thresholds must not be negative")
	case c.QC.MinConfidence < 0 || c.QC.MinConfidence > 1:
		return eris.Errorf("config: qc.min_confidence %v outside [0, 1]", c.QC.MinConfidence)
	case c.QC.BatchSize < 0:
		return eris.Errorf("config: qc.batch_size %d must not be negative", c.QC.BatchSize)
	case c.Ingest.MaxRejectRate < 0 || c.Ingest.MaxRejectRate > 1:
		return eris.Errorf("config: ingest.max_reject_rate %v outside [0, 1]", c.Ingest.MaxRejectRate)
	}

	switch c.ReportStore.Driver {
	case "memory", "sqlite":
	case "redis":
		if c.ReportStore.RedisAddr == "" {
			return eris.New("config: report_store.redis_addr is required for the redis driver")
		}
	case "postgres":
		if c.ReportStore.DatabaseURL == "" && c.Ingest.DatabaseURL == "" {
			return eris.New("config: report_store.database_url is required for the postgres driver")
		}
	default:
		return eris.Errorf("config: unknown report_store.driver %q", c.ReportStore.Driver)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
