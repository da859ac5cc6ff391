// Package ingest runs submitted batches through QC and forwards the records
// that survive to the warehouse.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sports-qc/internal/model"
	"github.com/sells-group/sports-qc/internal/monitoring"
	"github.com/sells-group/sports-qc/internal/qc"
	"github.com/sells-group/sports-qc/internal/reportstore"
)

// DefaultMaxRejectRate is the rejection rate above which a batch is held
// back.
const DefaultMaxRejectRate = 0.2

// Sink receives validated records. Forward must be idempotent for the same
// batch and returns rows written per table.
type Sink interface {
	Forward(ctx context.Context, r *model.Report, batch model.Batch) (map[string]int64, error)
}

// RejectRateError is returned when a batch rejects more records than the
// configured limit. Nothing is forwarded.
type RejectRateError struct {
	ReportID        string
	Rate            float64
	Limit           float64
	Recommendations []string
}

func (e *RejectRateError) Error() string {
	return fmt.Sprintf("ingest: report %s rejected %.1f%% of records (limit %.1f%%)", e.ReportID, e.Rate*100, e.Limit*100)
}

// Result summarizes one ingest call.
type Result struct {
	ReportID        string           `json:"report_id"`
	DataSource      string           `json:"data_source"`
	TotalRecords    int              `json:"total_records"`
	RecordsPassed   int              `json:"records_passed"`
	RecordsFlagged  int              `json:"records_flagged"`
	RecordsRejected int              `json:"records_rejected"`
	RejectionRate   float64          `json:"rejection_rate"`
	Forwarded       map[string]int64 `json:"forwarded,omitempty"`
	Recommendations []string         `json:"recommendations"`
	DurationMs      int64            `json:"duration_ms"`

	Report *model.Report `json:"-"`
}

// Options wires the optional collaborators of an Ingestor. Nil fields are
// skipped.
type Options struct {
	// MaxRejectRate gates forwarding. Zero uses DefaultMaxRejectRate.
	MaxRejectRate float64
	Sink          Sink
	Persister     *reportstore.Persister
	Metrics       *monitoring.Metrics
	Alerter       *monitoring.Alerter
}

// Ingestor validates batches and forwards them.
type Ingestor struct {
	cfg  qc.Config
	opts Options

	alerts sync.WaitGroup
}

// New creates an Ingestor that runs the pipeline with cfg.
func New(cfg qc.Config, opts Options) *Ingestor {
	if opts.MaxRejectRate <= 0 {
		opts.MaxRejectRate = DefaultMaxRejectRate
	}
	return &Ingestor{cfg: cfg, opts: opts}
}

// Ingest runs batch through QC, saves the report in the background and,
// unless the rejection rate exceeds the limit, forwards the filtered records
// to the sink. A gated batch returns its Result together with a
// *RejectRateError.
func (i *Ingestor) Ingest(ctx context.Context, batch model.Batch) (*Result, error) {
	log := zap.L().With(zap.String("component", "ingest"), zap.String("data_source", batch.DataSource))

	start := time.Now()
	res, err := qc.RunBatch(batch, i.cfg)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: qc run")
	}
	elapsed := time.Since(start)
	report := res.Report

	i.opts.Metrics.ObserveReport(report, elapsed)
	i.opts.Persister.Persist(report)
	i.alert(ctx, report)

	out := &Result{
		ReportID:        report.ID,
		DataSource:      report.DataSource,
		TotalRecords:    report.TotalRecords,
		RecordsPassed:   report.RecordsPassed,
		RecordsFlagged:  report.RecordsFlagged,
		RecordsRejected: report.RecordsRejected,
		RejectionRate:   report.RejectionRate(),
		Recommendations: report.Recommendations,
		DurationMs:      elapsed.Milliseconds(),
		Report:          report,
	}

	log = log.With(zap.String("report_id", report.ID))
	if out.RejectionRate > i.opts.MaxRejectRate {
		if i.opts.Metrics != nil {
			i.opts.Metrics.GateRejections.Inc()
		}
		log.Warn("ingest: batch held back",
			zap.Float64("rejection_rate", out.RejectionRate),
			zap.Float64("limit", i.opts.MaxRejectRate),
		)
		return out, &RejectRateError{
			ReportID:        report.ID,
			Rate:            out.RejectionRate,
			Limit:           i.opts.MaxRejectRate,
			Recommendations: report.Recommendations,
		}
	}

	if i.opts.Sink == nil || res.Filtered.Len() == 0 {
		return out, nil
	}

	forwarded, err := i.opts.Sink.Forward(ctx, report, res.Filtered)
	if err != nil {
		return out, eris.Wrapf(err, "ingest: forward report %s", report.ID)
	}
	out.Forwarded = forwarded
	if i.opts.Metrics != nil {
		for table, n := range forwarded {
			i.opts.Metrics.ForwardedRows.WithLabelValues(table).Add(float64(n))
		}
	}

	log.Info("ingest: batch forwarded",
		zap.Int("records", res.Filtered.Len()),
		zap.Int64("duration_ms", out.DurationMs),
	)
	return out, nil
}

// alert sends threshold alerts for r without blocking the caller.
func (i *Ingestor) alert(ctx context.Context, r *model.Report) {
	if i.opts.Alerter == nil {
		return
	}
	alerts := i.opts.Alerter.EvaluateReport(r)
	if len(alerts) == 0 {
		return
	}

	i.alerts.Add(1)
	go func() {
		defer i.alerts.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		i.opts.Alerter.SendAlerts(ctx, alerts)
	}()
}

// Wait blocks until background report saves and alert deliveries finish.
func (i *Ingestor) Wait() {
	i.alerts.Wait()
	i.opts.Persister.Wait()
}
