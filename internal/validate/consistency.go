package validate

import (
	"fmt"
	"math"

	"github.com/sells-group/sports-qc/internal/model"
)

// BoxScore compares box-score totals with totals recomputed from the
// play-by-play feed, one result per metric.
func BoxScore(box, pbp model.LineTotals, tolerance int) []model.CheckResult {
	metrics := []struct {
		name     string
		box, pbp int
	}{
		{"runs", box.Runs, pbp.Runs},
		{"hits", box.Hits, pbp.Hits},
		{"errors", box.Errors, pbp.Errors},
	}

	out := make([]model.CheckResult, 0, len(metrics))
	for _, m := range metrics {
		check := "box_score_" + m.name
		diff := m.box - m.pbp
		if diff < 0 {
			diff = -diff
		}
		if diff > tolerance {
			out = append(out, model.CheckResult{
				Check:   check,
				Status:  model.CheckFail,
				Message: fmt.Sprintf("box score %s %d does not match play-by-play %d", m.name, m.box, m.pbp),
				Details: map[string]any{"box_score": m.box, "play_by_play": m.pbp},
			})
			continue
		}
		out = append(out, model.CheckResult{
			Check:   check,
			Status:  model.CheckPass,
			Message: fmt.Sprintf("box score %s matches play-by-play", m.name),
		})
	}
	return out
}

// WinProbability checks that each component lies in [0,1] and the triple
// sums to 1 within tolerance.
func WinProbability(wp model.WinProbability, tolerance float64) []model.CheckResult {
	var out []model.CheckResult

	components := map[string]float64{"home": wp.Home, "away": wp.Away}
	if wp.Tie != nil {
		components["tie"] = *wp.Tie
	}
	var bad []string
	for _, name := range []string{"home", "away", "tie"} {
		v, ok := components[name]
		if ok && (v < 0 || v > 1) {
			bad = append(bad, name)
		}
	}
	if len(bad) > 0 {
		out = append(out, model.CheckResult{
			Check:   "win_probability_range",
			Status:  model.CheckFail,
			Message: fmt.Sprintf("win probability components outside [0, 1]: %v", bad),
			Details: map[string]any{"components": bad},
		})
	} else {
		out = append(out, model.CheckResult{
			Check:   "win_probability_range",
			Status:  model.CheckPass,
			Message: "win probability components within [0, 1]",
		})
	}

	sum := wp.Sum()
	if math.Abs(sum-1.0) > tolerance {
		out = append(out, model.CheckResult{
			Check:   "win_probability_sum",
			Status:  model.CheckFail,
			Message: fmt.Sprintf("win probabilities sum to %.4f, expected 1.0 ± %g", sum, tolerance),
			Details: map[string]any{"sum": sum, "tolerance": tolerance},
		})
	} else {
		out = append(out, model.CheckResult{
			Check:   "win_probability_sum",
			Status:  model.CheckPass,
			Message: "win probabilities sum to 1.0",
		})
	}
	return out
}

// ScoreDistribution checks every entry lies in [0,1] and the distribution
// sums to about 1. A sum drift is a WARNING because providers legitimately
// truncate the long tail.
func ScoreDistribution(dist []model.ScoreProbability, tolerance float64) []model.CheckResult {
	var out []model.CheckResult
	var sum float64
	invalid := 0
	for _, sp := range dist {
		if sp.Probability < 0 || sp.Probability > 1 {
			invalid++
		}
		sum += sp.Probability
	}

	if invalid > 0 {
		out = append(out, model.CheckResult{
			Check:           "score_distribution_range",
			Status:          model.CheckFail,
			Message:         fmt.Sprintf("%d score distribution entries outside [0, 1]", invalid),
			AffectedRecords: &invalid,
		})
	} else {
		out = append(out, model.CheckResult{
			Check:   "score_distribution_range",
			Status:  model.CheckPass,
			Message: "score distribution entries within [0, 1]",
		})
	}

	if math.Abs(sum-1.0) > tolerance {
		out = append(out, model.CheckResult{
			Check:   "score_distribution_sum",
			Status:  model.CheckWarning,
			Message: fmt.Sprintf("score distribution sums to %.4f, possibly truncated", sum),
			Details: map[string]any{"sum": sum, "entries": len(dist)},
		})
	} else {
		out = append(out, model.CheckResult{
			Check:   "score_distribution_sum",
			Status:  model.CheckPass,
			Message: "score distribution sums to 1.0",
		})
	}
	return out
}
