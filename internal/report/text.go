package report

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/sells-group/sports-qc/internal/model"
)

// Text renders a plain-text report with aligned tables.
func Text(r *model.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "QC REPORT %s\n", r.ID)
	fmt.Fprintf(&b, "Generated:   %s\n", r.GeneratedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Data source: %s\n", r.DataSource)
	fmt.Fprintf(&b, "Records:     %s\n\n", count(r.TotalRecords))

	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DISPOSITION\tCOUNT\tSHARE")
	for _, row := range []struct {
		label string
		n     int
	}{
		{"Passed", r.RecordsPassed},
		{"Flagged", r.RecordsFlagged},
		{"Rejected", r.RecordsRejected},
	} {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", row.label, count(row.n), pct(row.n, r.TotalRecords))
	}
	_ = w.Flush()

	b.WriteString("\n")
	w = tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "METRIC\tBEFORE\tAFTER")
	for _, row := range metricRows(r.MetricsBefore, r.MetricsAfter) {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", row[0], row[1], row[2])
	}
	_ = w.Flush()

	if extreme, moderate := outlierTiers(r.Outliers); extreme+moderate > 0 {
		b.WriteString("\nOUTLIER TIERS\n")
		w = tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "TIER\tCOUNT")
		_, _ = fmt.Fprintf(w, "Extreme (REJECT)\t%s\n", count(extreme))
		_, _ = fmt.Fprintf(w, "Moderate (FLAG)\t%s\n", count(moderate))
		_ = w.Flush()
	}

	if top := TopOutliers(r.Outliers, MaxOutliers); len(top) > 0 {
		b.WriteString("\nTOP OUTLIERS\n")
		w = tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "METRIC\tRECORD\tVALUE\tMAD SCORE\tACTION")
		for _, o := range top {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%.3f\t%.2f\t%s\n", o.Metric, o.RecordID, o.Value, o.MADScore, o.Recommendation)
		}
		_ = w.Flush()
	}

	if groups := checkGroups(r.Checks); len(groups) > 0 {
		b.WriteString("\nFAILED CHECKS\n")
		w = tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "CHECK\tFAIL\tWARNING\tEXAMPLE")
		for _, g := range groups {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", g.Check, count(g.Fail), count(g.Warn), g.Example)
		}
		_ = w.Flush()
	}

	if len(r.Recommendations) > 0 {
		b.WriteString("\nRECOMMENDATIONS\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}
	return b.String()
}

func metricRows(before, after model.Metrics) [][3]string {
	return [][3]string{
		{"Games", count(before.TotalGames), count(after.TotalGames)},
		{"Complete games", count(before.CompleteGames), count(after.CompleteGames)},
		{"Completeness", fmt.Sprintf("%.1f%%", before.CompletenessPct), fmt.Sprintf("%.1f%%", after.CompletenessPct)},
		{"Player stat lines", count(before.TotalPlayerStats), count(after.TotalPlayerStats)},
		{"Avg batting avg", optional(before.AvgBattingAvg, "%.3f"), optional(after.AvgBattingAvg, "%.3f")},
		{"Median pitch velocity", optional(before.MedianPitchVelocity, "%.1f"), optional(after.MedianPitchVelocity, "%.1f")},
		{"Median exit velocity", optional(before.MedianExitVelocity, "%.1f"), optional(after.MedianExitVelocity, "%.1f")},
	}
}

type checkGroup struct {
	Check   string
	Fail    int
	Warn    int
	Example string
}

// checkGroups tallies non-passing checks by name, most failures first.
func checkGroups(checks []model.CheckResult) []checkGroup {
	byName := make(map[string]*checkGroup)
	var order []string
	for _, c := range failedChecks(checks) {
		g, ok := byName[c.Check]
		if !ok {
			g = &checkGroup{Check: c.Check, Example: c.Message}
			byName[c.Check] = g
			order = append(order, c.Check)
		}
		if c.Status == model.CheckFail {
			g.Fail++
		} else {
			g.Warn++
		}
	}

	out := make([]checkGroup, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Fail != out[j].Fail {
			return out[i].Fail > out[j].Fail
		}
		return out[i].Check < out[j].Check
	})
	return out
}

// Console renders a short summary for terminal output.
func Console(r *model.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s records, %s passed, %s flagged, %s rejected (%s rejected)\n",
		r.ID, r.DataSource, count(r.TotalRecords), count(r.RecordsPassed),
		count(r.RecordsFlagged), count(r.RecordsRejected), pct(r.RecordsRejected, r.TotalRecords))

	extreme, moderate := outlierTiers(r.Outliers)
	if top := TopOutliers(r.Outliers, 3); len(top) > 0 {
		parts := make([]string, len(top))
		for i, o := range top {
			parts[i] = fmt.Sprintf("%s %s=%.3f (%.1f)", o.RecordID, o.Metric, o.Value, o.MADScore)
		}
		fmt.Fprintf(&b, "  outliers: %d extreme, %d moderate; top %s\n", extreme, moderate, strings.Join(parts, ", "))
	}
	for _, rec := range r.Recommendations {
		fmt.Fprintf(&b, "  * %s\n", rec)
	}
	return b.String()
}
