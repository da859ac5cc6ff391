package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/sports-qc/internal/config"
	"github.com/sells-group/sports-qc/internal/model"
	"github.com/sells-group/sports-qc/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRejectionRate    AlertType = "rejection_rate"
	AlertCompletenessDrop AlertType = "completeness_drop"
	AlertExtremeOutliers  AlertType = "extreme_outliers"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates QC snapshots against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg     config.MonitoringConfig
	client  *http.Client
	policy  resilience.Policy
	breaker *resilience.Breaker
	limiter *rate.Limiter
	metrics *Metrics
}

// NewAlerter creates a new Alerter with the given monitoring config.
// metrics may be nil.
func NewAlerter(cfg config.MonitoringConfig, metrics *Metrics) *Alerter {
	perMinute := cfg.AlertsPerMinute
	if perMinute <= 0 {
		perMinute = 6
	}
	burst := int(perMinute)
	if burst < 1 {
		burst = 1
	}

	policy := resilience.DefaultPolicy()
	policy.MaxBackoff = 5 * time.Second

	return &Alerter{
		cfg:     cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		policy:  policy,
		breaker: resilience.NewBreaker("alert-webhook", 3, time.Minute),
		limiter: rate.NewLimiter(rate.Limit(perMinute/60), burst),
		metrics: metrics,
	}
}

// EvaluateReport checks a single report against thresholds.
func (a *Alerter) EvaluateReport(r *model.Report) []Alert {
	return a.Evaluate(Summarize([]*model.Report{r}))
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	if snap == nil || snap.Reports == 0 {
		return nil
	}

	var alerts []Alert
	now := time.Now().UTC()

	if a.cfg.RejectRateThreshold > 0 && snap.WorstRejectionRate > a.cfg.RejectRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertRejectionRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Rejection rate %.1f%% in report %s exceeds threshold %.1f%% (%d rejected / %d records across %d reports)",
				snap.WorstRejectionRate*100, snap.WorstReportID, a.cfg.RejectRateThreshold*100,
				snap.RecordsRejected, snap.TotalRecords, snap.Reports,
			),
			Details: map[string]any{
				"rejection_rate":       snap.RejectionRate,
				"worst_rejection_rate": snap.WorstRejectionRate,
				"report_id":            snap.WorstReportID,
				"threshold":            a.cfg.RejectRateThreshold,
				"failed_checks":        topChecks(snap.FailedChecks, 5),
			},
			Timestamp: now,
		})
	}

	if a.cfg.CompletenessDropThreshold > 0 && snap.CompletenessDrop > a.cfg.CompletenessDropThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertCompletenessDrop,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Game completeness dropped %.1f points after QC (threshold %.1f)",
				snap.CompletenessDrop, a.cfg.CompletenessDropThreshold,
			),
			Details: map[string]any{
				"drop":      snap.CompletenessDrop,
				"threshold": a.cfg.CompletenessDropThreshold,
			},
			Timestamp: now,
		})
	}

	if a.cfg.ExtremeOutlierThreshold > 0 && snap.ExtremeOutliers >= a.cfg.ExtremeOutlierThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertExtremeOutliers,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d values scored REJECT across %d reports (threshold %d)",
				snap.ExtremeOutliers, snap.Reports, a.cfg.ExtremeOutlierThreshold,
			),
			Details: map[string]any{
				"extreme_outliers": snap.ExtremeOutliers,
				"threshold":        a.cfg.ExtremeOutlierThreshold,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent. Alerts over the rate
// limit are dropped.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if !a.limiter.Allow() {
			zap.L().Warn("monitoring: alert rate limited", zap.String("type", string(alert.Type)))
			continue
		}

		err := a.breaker.Do(ctx, func(ctx context.Context) error {
			return resilience.Retry(ctx, a.policy, "alert webhook", func(ctx context.Context) error {
				return a.sendWebhook(ctx, alert)
			})
		})
		if err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		if a.metrics != nil {
			a.metrics.AlertsSent.WithLabelValues(string(alert.Type)).Inc()
		}
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		err := eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
		if resilience.TransientStatus(resp.StatusCode) {
			return resilience.Transient(err, resp.StatusCode)
		}
		return err
	}
	return nil
}

func topChecks(counts map[string]int, n int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > n {
		names = names[:n]
	}
	return names
}
