package model

import "time"

// CheckStatus is the outcome of a single validator.
type CheckStatus string

const (
	CheckPass    CheckStatus = "PASS"
	CheckFail    CheckStatus = "FAIL"
	CheckWarning CheckStatus = "WARNING"
)

// CheckResult is the output of one validator applied to one record.
type CheckResult struct {
	Check           string         `json:"check"`
	Status          CheckStatus    `json:"status"`
	Message         string         `json:"message"`
	RecordID        string         `json:"record_id,omitempty"`
	AffectedRecords *int           `json:"affected_records,omitempty"`
	Details         map[string]any `json:"details,omitempty"`
}

// Recommendation is the outlier detector's verdict for one value.
type Recommendation string

const (
	RecommendAccept Recommendation = "ACCEPT"
	RecommendFlag   Recommendation = "FLAG"
	RecommendReject Recommendation = "REJECT"
)

// OutlierResult is the outlier verdict for one value in one metric column.
type OutlierResult struct {
	Metric         string         `json:"metric"`
	RecordID       string         `json:"record_id,omitempty"`
	Value          float64        `json:"value"`
	MADScore       float64        `json:"mad_score"`
	IsOutlier      bool           `json:"is_outlier"`
	Threshold      float64        `json:"threshold"`
	Recommendation Recommendation `json:"recommendation"`
}

// Disposition is the bucket a record ends up in after a pipeline run.
type Disposition string

const (
	DispositionPassed   Disposition = "PASSED"
	DispositionFlagged  Disposition = "FLAGGED"
	DispositionRejected Disposition = "REJECTED"
)

func (d Disposition) rank() int {
	switch d {
	case DispositionFlagged:
		return 1
	case DispositionRejected:
		return 2
	}
	return 0
}

// Escalate returns the more severe of d and next. Dispositions never downgrade.
func (d Disposition) Escalate(next Disposition) Disposition {
	if next.rank() > d.rank() {
		return next
	}
	if d == "" {
		return DispositionPassed
	}
	return d
}

// Metrics is a descriptive snapshot of a batch. Nil pointers mean the sample
// for that metric was empty.
type Metrics struct {
	AvgBattingAvg       *float64 `json:"avg_batting_avg,omitempty"`
	MedianPitchVelocity *float64 `json:"median_pitch_velocity,omitempty"`
	MedianExitVelocity  *float64 `json:"median_exit_velocity,omitempty"`
	TotalGames          int      `json:"total_games"`
	CompleteGames       int      `json:"complete_games"`
	CompletenessPct     float64  `json:"completeness_pct"`
	TotalPlayerStats    int      `json:"total_player_stats"`
}

// Report is the immutable artifact of one pipeline run.
type Report struct {
	ID              string          `json:"report_id"`
	GeneratedAt     time.Time       `json:"generated_at"`
	DataSource      string          `json:"data_source"`
	TotalRecords    int             `json:"total_records"`
	RecordsPassed   int             `json:"records_passed"`
	RecordsFlagged  int             `json:"records_flagged"`
	RecordsRejected int             `json:"records_rejected"`
	Checks          []CheckResult   `json:"checks"`
	Outliers        []OutlierResult `json:"outliers"`
	MetricsBefore   Metrics         `json:"metrics_before"`
	MetricsAfter    Metrics         `json:"metrics_after"`
	Recommendations []string        `json:"recommendations"`
}

// RejectionRate returns rejected/total, or 0 for an empty report.
func (r *Report) RejectionRate() float64 {
	if r.TotalRecords == 0 {
		return 0
	}
	return float64(r.RecordsRejected) / float64(r.TotalRecords)
}

// Batch is a set of records from one data source submitted for QC.
type Batch struct {
	Games       []GameRecord       `json:"games,omitempty"`
	PlayerStats []PlayerStatLine   `json:"player_stats,omitempty"`
	Simulations []SimulationResult `json:"simulations,omitempty"`
	DataSource  string             `json:"data_source"`
}

// Len returns the total number of records in the batch.
func (b Batch) Len() int {
	return len(b.Games) + len(b.PlayerStats) + len(b.Simulations)
}
