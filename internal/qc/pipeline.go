// Package qc runs sports records through validation and outlier detection,
// sorts them into passed, flagged and rejected buckets and builds the QC
// report.
package qc

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sports-qc/internal/model"
	"github.com/sells-group/sports-qc/internal/outlier"
	"github.com/sells-group/sports-qc/internal/validate"
)

// Result is the outcome of a pipeline run.
type Result struct {
	Report *model.Report `json:"report"`
	// Filtered is the batch handed to ingestion: passed records followed by
	// flagged records unless flagged records are excluded.
	Filtered model.Batch `json:"filtered_data"`

	Passed   model.Batch `json:"-"`
	Flagged  model.Batch `json:"-"`
	Rejected model.Batch `json:"-"`
}

// record tracks one input record through a run. Validation sets the
// disposition first; outlier detection may only escalate it.
type record struct {
	checks      []model.CheckResult
	validated   model.Disposition
	disposition model.Disposition
}

func (r *record) escalate(d model.Disposition) {
	r.disposition = r.disposition.Escalate(d)
}

// Run validates one batch in a single pass. It returns an error only for
// invalid configuration or malformed input; bad data ends up in the report.
func Run(batch model.Batch, cfg Config) (*Result, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	th := *cfg.Thresholds
	v := validate.New(th, validate.WithClock(cfg.Clock))

	games := make([]record, len(batch.Games))
	for i, g := range batch.Games {
		games[i] = classify(v.GameData(g), g.Source, g.ID, cfg)
	}

	stats := make([]record, len(batch.PlayerStats))
	for i, s := range batch.PlayerStats {
		stats[i] = classify(v.PlayerStats(s), s.Source, s.Key(), cfg)
	}

	sims := make([]record, len(batch.Simulations))
	for i, s := range batch.Simulations {
		sims[i] = classify(v.SimulationResults(s), s.Source, s.ID, cfg)
	}

	outliers, err := detectStatOutliers(batch.PlayerStats, stats, cfg)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	partition(batch.Games, games, &res.Passed.Games, &res.Flagged.Games, &res.Rejected.Games)
	partition(batch.PlayerStats, stats, &res.Passed.PlayerStats, &res.Flagged.PlayerStats, &res.Rejected.PlayerStats)
	partition(batch.Simulations, sims, &res.Passed.Simulations, &res.Flagged.Simulations, &res.Rejected.Simulations)
	for _, b := range []*model.Batch{&res.Passed, &res.Flagged, &res.Rejected} {
		b.DataSource = batch.DataSource
	}

	now := cfg.Clock()
	report := &model.Report{
		ID:              NewReportID(now),
		GeneratedAt:     now.UTC(),
		DataSource:      batch.DataSource,
		TotalRecords:    batch.Len(),
		RecordsPassed:   res.Passed.Len(),
		RecordsFlagged:  res.Flagged.Len(),
		RecordsRejected: res.Rejected.Len(),
		Outliers:        outliers,
		MetricsBefore:   CalculateMetrics(batch.Games, batch.PlayerStats, th),
		MetricsAfter:    CalculateMetrics(res.Passed.Games, res.Passed.PlayerStats, th),
	}
	report.Checks = make([]model.CheckResult, 0)
	for _, group := range [][]record{games, stats, sims} {
		for _, r := range group {
			report.Checks = append(report.Checks, r.checks...)
		}
	}
	report.Recommendations = recommend(report, th)

	res.Report = report
	res.Filtered = filtered(res, cfg)

	zap.L().Debug("qc: pipeline run complete",
		zap.String("report_id", report.ID),
		zap.String("data_source", batch.DataSource),
		zap.Int("total", report.TotalRecords),
		zap.Int("passed", report.RecordsPassed),
		zap.Int("flagged", report.RecordsFlagged),
		zap.Int("rejected", report.RecordsRejected),
	)
	return res, nil
}

// classify applies the confidence floor and routes a record by its worst
// check status.
func classify(checks []model.CheckResult, src model.SourceMetadata, id string, cfg Config) record {
	if src.Confidence != nil && *src.Confidence < cfg.MinConfidence {
		checks = append(checks, model.CheckResult{
			Check:    "confidence_floor",
			Status:   model.CheckFail,
			Message:  fmt.Sprintf("source confidence %.2f below floor %.2f", *src.Confidence, cfg.MinConfidence),
			RecordID: id,
			Details:  map[string]any{"confidence": *src.Confidence, "floor": cfg.MinConfidence},
		})
	}

	d := model.DispositionPassed
	for _, c := range checks {
		switch c.Status {
		case model.CheckFail:
			if cfg.AutoRejectFailures {
				d = d.Escalate(model.DispositionRejected)
			} else {
				d = d.Escalate(model.DispositionFlagged)
			}
		case model.CheckWarning:
			d = d.Escalate(model.DispositionFlagged)
		}
	}
	return record{checks: checks, validated: d, disposition: d}
}

type column struct {
	metric string
	value  func(model.PlayerStatLine) (float64, bool)
}

func statColumns(th validate.Thresholds) []column {
	return []column{
		{"batting_avg", func(s model.PlayerStatLine) (float64, bool) {
			if s.Batting == nil || s.Batting.Avg == nil {
				return 0, false
			}
			return *s.Batting.Avg, true
		}},
		{"pitch_velocity", func(s model.PlayerStatLine) (float64, bool) {
			if s.Tracking == nil || s.Tracking.Velocity == nil {
				return 0, false
			}
			return *s.Tracking.Velocity, true
		}},
		{"exit_velocity", func(s model.PlayerStatLine) (float64, bool) {
			if s.Tracking == nil || s.Tracking.ExitVelocity == nil {
				return 0, false
			}
			return *s.Tracking.ExitVelocity, true
		}},
		{"era", func(s model.PlayerStatLine) (float64, bool) {
			if s.Pitching == nil {
				return 0, false
			}
			return validate.EffectiveERA(s.Pitching, th.ERACap), true
		}},
		{"spin_rate", func(s model.PlayerStatLine) (float64, bool) {
			if s.Tracking == nil || s.Tracking.SpinRate == nil {
				return 0, false
			}
			return *s.Tracking.SpinRate, true
		}},
	}
}

// detectStatOutliers scores each numeric column across the whole batch and
// escalates records that passed validation.
func detectStatOutliers(lines []model.PlayerStatLine, recs []record, cfg Config) ([]model.OutlierResult, error) {
	results := make([]model.OutlierResult, 0)
	for _, col := range statColumns(*cfg.Thresholds) {
		var samples []outlier.Sample
		var index []int
		for i, line := range lines {
			if v, ok := col.value(line); ok {
				samples = append(samples, outlier.Sample{RecordID: line.Key(), Value: v})
				index = append(index, i)
			}
		}
		if len(samples) == 0 {
			continue
		}

		scored, err := outlier.Detect(samples, col.metric, cfg.MADThreshold, cfg.tiers())
		if err != nil {
			return nil, eris.Wrapf(err, "qc: outliers for %s", col.metric)
		}

		for j, r := range scored {
			rec := &recs[index[j]]
			if rec.validated != model.DispositionPassed {
				continue
			}
			switch r.Recommendation {
			case model.RecommendReject:
				if cfg.AutoRejectOutliers {
					rec.escalate(model.DispositionRejected)
				} else {
					rec.escalate(model.DispositionFlagged)
				}
			case model.RecommendFlag:
				rec.escalate(model.DispositionFlagged)
			}
		}
		results = append(results, scored...)
	}
	return results, nil
}

func partition[T any](items []T, recs []record, passed, flagged, rejected *[]T) {
	for i, item := range items {
		switch recs[i].disposition {
		case model.DispositionRejected:
			*rejected = append(*rejected, item)
		case model.DispositionFlagged:
			*flagged = append(*flagged, item)
		default:
			*passed = append(*passed, item)
		}
	}
}

func filtered(res *Result, cfg Config) model.Batch {
	out := model.Batch{DataSource: res.Passed.DataSource}
	out.Games = append(out.Games, res.Passed.Games...)
	out.PlayerStats = append(out.PlayerStats, res.Passed.PlayerStats...)
	out.Simulations = append(out.Simulations, res.Passed.Simulations...)
	if !cfg.ExcludeFlagged {
		out.Games = append(out.Games, res.Flagged.Games...)
		out.PlayerStats = append(out.PlayerStats, res.Flagged.PlayerStats...)
		out.Simulations = append(out.Simulations, res.Flagged.Simulations...)
	}
	return out
}

// NewReportID returns a unique, opaque report identifier: a millisecond
// timestamp prefix and a random suffix.
func NewReportID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("qc_%d_%s", now.UnixMilli(), suffix)
}
