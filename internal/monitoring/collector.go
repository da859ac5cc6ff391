package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sports-qc/internal/model"
	"github.com/sells-group/sports-qc/internal/reportstore"
)

// Snapshot aggregates the most recent QC reports.
type Snapshot struct {
	Reports         int     `json:"reports"`
	TotalRecords    int     `json:"total_records"`
	RecordsFlagged  int     `json:"records_flagged"`
	RecordsRejected int     `json:"records_rejected"`
	RejectionRate   float64 `json:"rejection_rate"`
	// WorstRejectionRate is the highest rate of any single report.
	WorstRejectionRate float64 `json:"worst_rejection_rate"`
	WorstReportID      string  `json:"worst_report_id,omitempty"`
	// CompletenessDrop is the largest before/after completeness drop in
	// percentage points.
	CompletenessDrop float64        `json:"completeness_drop"`
	ExtremeOutliers  int            `json:"extreme_outliers"`
	FailedChecks     map[string]int `json:"failed_checks"`
	CollectedAt      time.Time      `json:"collected_at"`
}

// Summarize folds reports into a snapshot. Nil reports are skipped.
func Summarize(reports []*model.Report) *Snapshot {
	snap := &Snapshot{
		FailedChecks: make(map[string]int),
		CollectedAt:  time.Now().UTC(),
	}
	for _, r := range reports {
		if r == nil {
			continue
		}
		snap.Reports++
		snap.TotalRecords += r.TotalRecords
		snap.RecordsFlagged += r.RecordsFlagged
		snap.RecordsRejected += r.RecordsRejected

		if rate := r.RejectionRate(); rate > snap.WorstRejectionRate {
			snap.WorstRejectionRate = rate
			snap.WorstReportID = r.ID
		}
		if r.MetricsBefore.TotalGames > 0 {
			drop := r.MetricsBefore.CompletenessPct - r.MetricsAfter.CompletenessPct
			if drop > snap.CompletenessDrop {
				snap.CompletenessDrop = drop
			}
		}
		for _, o := range r.Outliers {
			if o.Recommendation == model.RecommendReject {
				snap.ExtremeOutliers++
			}
		}
		for _, c := range r.Checks {
			if c.Status == model.CheckFail {
				snap.FailedChecks[c.Check]++
			}
		}
	}
	if snap.TotalRecords > 0 {
		snap.RejectionRate = float64(snap.RecordsRejected) / float64(snap.TotalRecords)
	}
	return snap
}

// Collector reads recent reports from the report store.
type Collector struct {
	store reportstore.Store
}

// NewCollector creates a collector over st.
func NewCollector(st reportstore.Store) *Collector {
	return &Collector{store: st}
}

// Collect summarizes the newest lookback reports. Reports that expire
// between listing and loading are skipped.
func (c *Collector) Collect(ctx context.Context, lookback int) (*Snapshot, error) {
	ids, err := c.store.ListRecent(ctx, "", lookback)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list reports")
	}

	reports := make([]*model.Report, 0, len(ids))
	for _, id := range ids {
		r, err := c.store.Get(ctx, id)
		if err != nil {
			zap.L().Warn("monitoring: skip unreadable report", zap.String("report_id", id), zap.Error(err))
			continue
		}
		reports = append(reports, r)
	}
	return Summarize(reports), nil
}
