package validate

import (
	"fmt"
	"strconv"

	"github.com/sells-group/sports-qc/internal/model"
)

// Range checks that value lies in [min, max]. Both bounds are inclusive.
func Range(value, min, max float64, field string) model.CheckResult {
	name := field + "_range"
	if value < min || value > max {
		return model.CheckResult{
			Check:   name,
			Status:  model.CheckFail,
			Message: fmt.Sprintf("%s %s outside [%s, %s]", field, fmtNum(value), fmtNum(min), fmtNum(max)),
			Details: map[string]any{"value": value, "min": min, "max": max},
		}
	}
	return model.CheckResult{
		Check:   name,
		Status:  model.CheckPass,
		Message: fmt.Sprintf("%s %s within range", field, fmtNum(value)),
	}
}

// BattingAverage checks a batting average. Values that look like a
// percentage (between 1 and 100) are a known scraper bug; they fail with a
// hint and are never corrected here.
func (t Thresholds) BattingAverage(v float64) model.CheckResult {
	r := Range(v, t.BattingAvg.Min, t.BattingAvg.Max, "batting_avg")
	if r.Status == model.CheckFail && v > 1 && v < 100 {
		r.Message += " (looks like a percentage, fix the upstream parser)"
		r.Details["suspected_percentage"] = true
	}
	return r
}

// CheckPitchVelocity checks a pitch speed in mph.
func (t Thresholds) CheckPitchVelocity(v float64) model.CheckResult {
	return Range(v, t.PitchVelocity.Min, t.PitchVelocity.Max, "pitch_velocity")
}

// CheckExitVelocity checks a batted-ball speed in mph.
func (t Thresholds) CheckExitVelocity(v float64) model.CheckResult {
	return Range(v, t.ExitVelocity.Min, t.ExitVelocity.Max, "exit_velocity")
}

// CheckSpinRate checks a spin rate in rpm.
func (t Thresholds) CheckSpinRate(v float64) model.CheckResult {
	return Range(v, t.SpinRate.Min, t.SpinRate.Max, "spin_rate")
}

// CheckERA checks an earned run average.
func (t Thresholds) CheckERA(v float64) model.CheckResult {
	return Range(v, t.ERA.Min, t.ERA.Max, "era")
}

// SeasonYear checks a season year against [MinSeasonYear, currentYear+ahead].
func (t Thresholds) SeasonYear(year, currentYear int) model.CheckResult {
	return Range(float64(year), float64(t.MinSeasonYear), float64(currentYear+t.MaxSeasonYearAhead), "season_year")
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
