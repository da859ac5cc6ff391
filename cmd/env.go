package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/sports-qc/internal/config"
	"github.com/sells-group/sports-qc/internal/db"
	"github.com/sells-group/sports-qc/internal/fetcher"
	"github.com/sells-group/sports-qc/internal/ingest"
	"github.com/sells-group/sports-qc/internal/qc"
	"github.com/sells-group/sports-qc/internal/reportstore"
	"github.com/sells-group/sports-qc/internal/resilience"
	"github.com/sells-group/sports-qc/internal/validate"
)

// thresholds resolves the configured profile, looking in the profiles file
// first and falling back to the built-in profiles.
func thresholds(c config.QCConfig) (validate.Thresholds, error) {
	if c.ProfilesFile != "" {
		profiles, err := validate.LoadProfiles(c.ProfilesFile)
		if err != nil {
			return validate.Thresholds{}, err
		}
		if th, ok := profiles[c.Profile]; ok {
			return th, nil
		}
	}
	return validate.Profile(c.Profile)
}

// qcConfig maps the qc config section onto a pipeline config.
func qcConfig(c config.QCConfig) (qc.Config, error) {
	th, err := thresholds(c)
	if err != nil {
		return qc.Config{}, err
	}
	return qc.Config{
		MADThreshold:       c.MADThreshold,
		StrictMADThreshold: c.StrictMADThreshold,
		AutoRejectFailures: c.AutoRejectFailures,
		AutoRejectOutliers: c.AutoRejectOutliers,
		ExcludeFlagged:     !c.IncludeFlagged,
		MinConfidence:      c.MinConfidence,
		BatchSize:          c.BatchSize,
		Thresholds:         &th,
	}, nil
}

// initReportStore opens the configured report store.
func initReportStore(ctx context.Context, c *config.Config) (reportstore.Store, error) {
	rs := c.ReportStore
	switch rs.Driver {
	case "memory":
		return reportstore.NewMemory(), nil
	case "redis":
		return reportstore.NewRedis(ctx, rs.RedisAddr, rs.RedisPassword, rs.RedisDB, rs.TTL())
	case "sqlite":
		return reportstore.NewSQLite(ctx, rs.SQLitePath, rs.TTL())
	case "postgres":
		url := rs.DatabaseURL
		if url == "" {
			url = c.Ingest.DatabaseURL
		}
		pool, err := db.Connect(ctx, url, c.Ingest.Pool)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return reportstore.NewPostgres(pool, rs.TTL(), pool.Close), nil
	default:
		return nil, eris.Errorf("unsupported report store driver: %s", rs.Driver)
	}
}

// retryPolicy builds the warehouse retry policy from config.
func retryPolicy(c config.RetryConfig) resilience.Policy {
	return resilience.NewPolicy(
		c.MaxAttempts,
		time.Duration(c.InitialBackoffMs)*time.Millisecond,
		time.Duration(c.MaxBackoffMs)*time.Millisecond,
	)
}

// initFetcher builds the downloader for http(s) batch sources. Remote
// downloads reuse the ingest retry settings.
func initFetcher(c *config.Config) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:   c.Fetch.UserAgent,
		Timeout:     time.Duration(c.Fetch.TimeoutSecs) * time.Second,
		Policy:      retryPolicy(c.Ingest.Retry),
		DefaultRate: rate.Limit(c.Fetch.RatePerSec),
	})
}

// initSink connects the warehouse sink. It returns a nil sink when no
// warehouse is configured. Callers should defer the returned close func.
func initSink(ctx context.Context, c *config.Config) (ingest.Sink, func(), error) {
	if c.Ingest.DatabaseURL == "" {
		zap.L().Info("no warehouse configured, validated batches are not forwarded")
		return nil, func() {}, nil
	}

	pool, err := db.Connect(ctx, c.Ingest.DatabaseURL, c.Ingest.Pool)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	breaker := resilience.NewBreaker("warehouse",
		c.Ingest.BreakerThreshold,
		time.Duration(c.Ingest.BreakerCooldownSecs)*time.Second,
	)
	return ingest.NewPostgresSink(pool, retryPolicy(c.Ingest.Retry), breaker), pool.Close, nil
}
