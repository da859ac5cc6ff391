package qc

import (
	"github.com/sells-group/sports-qc/internal/model"
	"github.com/sells-group/sports-qc/internal/outlier"
	"github.com/sells-group/sports-qc/internal/validate"
)

// CalculateMetrics computes descriptive statistics over a batch for
// before/after comparison. Metrics with no sample are left nil.
func CalculateMetrics(games []model.GameRecord, stats []model.PlayerStatLine, th validate.Thresholds) model.Metrics {
	m := model.Metrics{
		TotalGames:       len(games),
		TotalPlayerStats: len(stats),
	}

	for _, g := range games {
		if validate.Completeness(g.Fields(), th.RequiredGameFields, "game_completeness").Status == model.CheckPass {
			m.CompleteGames++
		}
	}
	if m.TotalGames > 0 {
		m.CompletenessPct = float64(m.CompleteGames) / float64(m.TotalGames) * 100
	}

	var avgs, velocities, exitVelocities []float64
	for _, s := range stats {
		if s.Batting != nil && s.Batting.Avg != nil {
			avgs = append(avgs, *s.Batting.Avg)
		}
		if s.Tracking != nil {
			if s.Tracking.Velocity != nil {
				velocities = append(velocities, *s.Tracking.Velocity)
			}
			if s.Tracking.ExitVelocity != nil {
				exitVelocities = append(exitVelocities, *s.Tracking.ExitVelocity)
			}
		}
	}

	if len(avgs) > 0 {
		var sum float64
		for _, v := range avgs {
			sum += v
		}
		mean := sum / float64(len(avgs))
		m.AvgBattingAvg = &mean
	}
	m.MedianPitchVelocity = medianOrNil(velocities)
	m.MedianExitVelocity = medianOrNil(exitVelocities)
	return m
}

func medianOrNil(values []float64) *float64 {
	med, err := outlier.Median(values)
	if err != nil {
		return nil
	}
	return &med
}
