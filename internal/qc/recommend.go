package qc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/sports-qc/internal/model"
	"github.com/sells-group/sports-qc/internal/validate"
)

// AllClear is the recommendation emitted when a run found nothing to review.
const AllClear = "All records passed quality control with no outliers detected."

type advisory struct {
	match []string
	text  string
}

// sourceAdvisories are matched case-insensitively against the data source
// label.
var sourceAdvisories = []advisory{
	{[]string{"ncaa", "college", "d1"}, "College sources have higher natural variance; score them with the college threshold profile."},
	{[]string{"scraper", "custom"}, "Custom scraper source: re-check selectors against the live page layout before the next scheduled run."},
	{[]string{"espn"}, "ESPN box scores can be provisional; re-validate FINAL games 24 hours after completion."},
	{[]string{"statcast", "trackman", "tracking"}, "Pitch-tracking source: velocity or spin outliers often come from unit mix-ups (km/h vs mph, rps vs rpm)."},
	{[]string{"simulation", "monte"}, "Simulation source: probability drift usually means the model output was truncated; confirm simulation counts."},
}

func recommend(r *model.Report, th validate.Thresholds) []string {
	var out []string

	failures := make(map[string]int)
	for _, c := range r.Checks {
		if c.Status == model.CheckFail {
			failures[c.Check]++
		}
	}
	names := make([]string, 0, len(failures))
	for name, n := range failures {
		if n > th.SystemicFailureCount {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		out = append(out, fmt.Sprintf("Check %q failed %d times; a repeated failure usually means a systemic scraper bug. Inspect the upstream parser.", name, failures[name]))
	}

	var extreme, moderate int
	for _, o := range r.Outliers {
		switch o.Recommendation {
		case model.RecommendReject:
			extreme++
		case model.RecommendFlag:
			moderate++
		}
	}
	if extreme > 0 {
		out = append(out, fmt.Sprintf("%d extreme outliers found; verify these values against the source before ingestion.", extreme))
	}
	if moderate > 0 {
		out = append(out, fmt.Sprintf("%d moderate outliers found; review the flagged records.", moderate))
	}

	drop := r.MetricsBefore.CompletenessPct - r.MetricsAfter.CompletenessPct
	if drop > th.CompletenessDropPct {
		out = append(out, fmt.Sprintf("Completeness dropped %.1f points after filtering; the rejected records carried most of the complete games.", drop))
	}

	label := strings.ToLower(r.DataSource)
	for _, a := range sourceAdvisories {
		for _, m := range a.match {
			if strings.Contains(label, m) {
				out = append(out, a.text)
				break
			}
		}
	}

	if allClear(r) {
		out = append(out, AllClear)
	}
	return dedupe(out)
}

// dedupe removes repeated lines, keeping first occurrences in order.
func dedupe(lines []string) []string {
	seen := make(map[string]bool, len(lines))
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
