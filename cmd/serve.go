package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sports-qc/internal/api"
	"github.com/sells-group/sports-qc/internal/ingest"
	"github.com/sells-group/sports-qc/internal/monitoring"
	"github.com/sells-group/sports-qc/internal/reportstore"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the QC ingestion API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		qcCfg, err := qcConfig(cfg.QC)
		if err != nil {
			return err
		}

		st, err := initReportStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		purgeExpired(ctx, st)

		sink, closeSink, err := initSink(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeSink()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := monitoring.NewMetrics(reg)

		persister := reportstore.NewPersister(st, time.Duration(cfg.Ingest.PersistTimeoutSecs)*time.Second)
		persister.OnError = func(string, error) { metrics.StoreErrors.Inc() }

		alerter := monitoring.NewAlerter(cfg.Monitoring, metrics)
		if cfg.Monitoring.WebhookURL != "" {
			checker := monitoring.NewChecker(monitoring.NewCollector(st), alerter, cfg.Monitoring)
			go checker.Run(ctx)
		}

		ing := ingest.New(qcCfg, ingest.Options{
			MaxRejectRate: cfg.Ingest.MaxRejectRate,
			Sink:          sink,
			Persister:     persister,
			Metrics:       metrics,
			Alerter:       alerter,
		})
		defer ing.Wait()

		router := api.NewRouter(api.NewHandler(ing, st), api.RouterOptions{
			CORSOrigins:  cfg.Server.CORSOrigins,
			MaxBodyBytes: int64(cfg.Server.MaxBodyMB) << 20,
			Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
			WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("report_store", cfg.ReportStore.Driver),
			zap.Bool("forwarding", sink != nil),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// purgeExpired drops expired reports from stores that do not expire them
// on their own.
func purgeExpired(ctx context.Context, st reportstore.Store) {
	sq, ok := st.(*reportstore.SQLiteStore)
	if !ok {
		return
	}
	n, err := sq.DeleteExpired(ctx)
	if err != nil {
		zap.L().Warn("purge expired reports", zap.Error(err))
		return
	}
	if n > 0 {
		zap.L().Info("purged expired reports", zap.Int("count", n))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
