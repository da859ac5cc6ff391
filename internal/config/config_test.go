package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "professional", cfg.QC.Profile)
	assert.Zero(t, cfg.QC.MADThreshold)
	assert.Zero(t, cfg.QC.StrictMADThreshold)
	assert.True(t, cfg.QC.IncludeFlagged)
	assert.False(t, cfg.QC.AutoRejectOutliers)
	assert.Equal(t, 1000, cfg.QC.BatchSize)
	assert.Equal(t, "sqlite", cfg.ReportStore.Driver)
	assert.Equal(t, 720, cfg.ReportStore.TTLHours)
	assert.Equal(t, 0.2, cfg.Ingest.MaxRejectRate)
	assert.Equal(t, 3, cfg.Ingest.Retry.MaxAttempts)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 10.0, cfg.Monitoring.CompletenessDropThreshold)
	assert.Equal(t, 300, cfg.Monitoring.CheckIntervalSecs)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "sports-qc/1.0", cfg.Fetch.UserAgent)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.InDelta(t, 20.0, cfg.Fetch.RatePerSec, 1e-9)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
qc:
  profile: college
  auto_reject_outliers: true
  batch_size: 250
report_store:
  driver: redis
  redis_addr: cache:6379
ingest:
  max_reject_rate: 0.1
  pool:
    max_conns: 8
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "college", cfg.QC.Profile)
	assert.True(t, cfg.QC.AutoRejectOutliers)
	assert.Equal(t, 250, cfg.QC.BatchSize)
	assert.Equal(t, "redis", cfg.ReportStore.Driver)
	assert.Equal(t, "cache:6379", cfg.ReportStore.RedisAddr)
	assert.Equal(t, 0.1, cfg.Ingest.MaxRejectRate)
	assert.Equal(t, int32(8), cfg.Ingest.Pool.MaxConns)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
report_store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("SPORTSQC_REPORT_STORE_DRIVER", "memory")
	t.Setenv("SPORTSQC_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.ReportStore.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("SPORTSQC_SERVER_PORT", "3000")
	t.Setenv("SPORTSQC_QC_MIN_CONFIDENCE", "0.75")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 0.75, cfg.QC.MinConfidence)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("qc: [unterminated"), 0o644))

	_, err := Load()
	assert.Error(t, err)
}

func TestReportStoreTTL(t *testing.T) {
	assert.Equal(t, 48*time.Hour, ReportStoreConfig{TTLHours: 48}.TTL())
	assert.Equal(t, time.Duration(-1), ReportStoreConfig{}.TTL())
}

func validDefaults() *Config {
	cfg := &Config{}
	cfg.QC.MADThreshold = 5
	cfg.QC.StrictMADThreshold = 7
	cfg.QC.BatchSize = 1000
	cfg.ReportStore.Driver = "memory"
	cfg.Ingest.MaxRejectRate = 0.2
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "negative mad", mutate: func(c *Config) { c.QC.MADThreshold = -1 }, wantErr: "mad thresholds"},
		{name: "confidence above one", mutate: func(c *Config) { c.QC.MinConfidence = 1.5 }, wantErr: "min_confidence"},
		{name: "negative batch", mutate: func(c *Config) { c.QC.BatchSize = -10 }, wantErr: "batch_size"},
		{name: "reject rate", mutate: func(c *Config) { c.Ingest.MaxRejectRate = 2 }, wantErr: "max_reject_rate"},
		{name: "unknown driver", mutate: func(c *Config) { c.ReportStore.Driver = "mongo" }, wantErr: "unknown report_store.driver"},
		{name: "redis without addr", mutate: func(c *Config) { c.ReportStore.Driver = "redis" }, wantErr: "redis_addr"},
		{name: "postgres without url", mutate: func(c *Config) { c.ReportStore.Driver = "postgres" }, wantErr: "database_url"},
		{
			name: "postgres falls back to ingest url",
			mutate: func(c *Config) {
				c.ReportStore.Driver = "postgres"
				c.Ingest.DatabaseURL = "postgres://localhost/warehouse"
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}
