package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sells-group/sports-qc/internal/model"
)

// Metrics holds the Prometheus collectors for QC runs.
type Metrics struct {
	Records        *prometheus.CounterVec
	Outliers       *prometheus.CounterVec
	CheckFailures  *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	RejectionRate  *prometheus.GaugeVec
	ForwardedRows  *prometheus.CounterVec
	GateRejections prometheus.Counter
	StoreErrors    prometheus.Counter
	AlertsSent     *prometheus.CounterVec
}

// NewMetrics creates the QC collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sportsqc_records_total",
				Help: "Records processed by disposition",
			},
			[]string{"source", "disposition"},
		),
		Outliers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sportsqc_outliers_total",
				Help: "Outlier verdicts above ACCEPT by metric and recommendation",
			},
			[]string{"metric", "recommendation"},
		),
		CheckFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sportsqc_check_failures_total",
				Help: "Failed validator checks by check name",
			},
			[]string{"check"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sportsqc_run_duration_seconds",
				Help:    "Duration of a QC pipeline run in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"source"},
		),
		RejectionRate: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sportsqc_last_rejection_rate",
				Help: "Rejection rate of the most recent run per source",
			},
			[]string{"source"},
		),
		ForwardedRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sportsqc_forwarded_rows_total",
				Help: "Rows forwarded to the warehouse by table",
			},
			[]string{"table"},
		),
		GateRejections: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sportsqc_gate_rejections_total",
				Help: "Batches held back because their rejection rate exceeded the limit",
			},
		),
		StoreErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sportsqc_report_store_errors_total",
				Help: "Failed report store writes",
			},
		),
		AlertsSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sportsqc_alerts_sent_total",
				Help: "Alerts delivered to the webhook by type",
			},
			[]string{"type"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.Records, m.Outliers, m.CheckFailures, m.RunDuration, m.RejectionRate,
			m.ForwardedRows, m.GateRejections, m.StoreErrors, m.AlertsSent,
		)
	}
	return m
}

// ObserveReport records the counts of one finished run.
func (m *Metrics) ObserveReport(r *model.Report, d time.Duration) {
	if m == nil || r == nil {
		return
	}
	src := sourceLabel(r.DataSource)
	m.Records.WithLabelValues(src, string(model.DispositionPassed)).Add(float64(r.RecordsPassed))
	m.Records.WithLabelValues(src, string(model.DispositionFlagged)).Add(float64(r.RecordsFlagged))
	m.Records.WithLabelValues(src, string(model.DispositionRejected)).Add(float64(r.RecordsRejected))
	m.RunDuration.WithLabelValues(src).Observe(d.Seconds())
	m.RejectionRate.WithLabelValues(src).Set(r.RejectionRate())

	for _, o := range r.Outliers {
		if o.Recommendation == model.RecommendAccept {
			continue
		}
		m.Outliers.WithLabelValues(o.Metric, string(o.Recommendation)).Inc()
	}
	for _, c := range r.Checks {
		if c.Status == model.CheckFail {
			m.CheckFailures.WithLabelValues(c.Check).Inc()
		}
	}
}

func sourceLabel(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
