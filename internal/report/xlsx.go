package report

import (
	"bytes"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/sports-qc/internal/model"
)

// Sheet names in the XLSX workbook.
const (
	SheetSummary         = "Summary"
	SheetOutliers        = "Outliers"
	SheetChecks          = "Checks"
	SheetRecommendations = "Recommendations"
)

// XLSX renders the report as a workbook with one sheet per section. Unlike
// the text formats it lists every outlier and every non-passing check.
func XLSX(r *model.Report) ([]byte, error) {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add summary sheet")
	}
	addStrings(summary, "Report ID", r.ID)
	addStrings(summary, "Generated", r.GeneratedAt.UTC().Format(time.RFC3339))
	addStrings(summary, "Data source", r.DataSource)
	addInts(summary, "Total records", r.TotalRecords)
	addInts(summary, "Passed", r.RecordsPassed)
	addInts(summary, "Flagged", r.RecordsFlagged)
	addInts(summary, "Rejected", r.RecordsRejected)
	addFloat(summary, "Rejection rate", r.RejectionRate())
	extreme, moderate := outlierTiers(r.Outliers)
	addInts(summary, "Extreme outliers", extreme)
	addInts(summary, "Moderate outliers", moderate)
	summary.AddRow()
	addStrings(summary, "Metric", "Before", "After")
	for _, row := range metricRows(r.MetricsBefore, r.MetricsAfter) {
		addStrings(summary, row[:]...)
	}

	outliers, err := f.AddSheet(SheetOutliers)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add outliers sheet")
	}
	addStrings(outliers, "Metric", "Record", "Value", "MAD score", "Threshold", "Outlier", "Recommendation")
	for _, o := range r.Outliers {
		row := outliers.AddRow()
		row.AddCell().SetString(o.Metric)
		row.AddCell().SetString(o.RecordID)
		row.AddCell().SetFloat(o.Value)
		row.AddCell().SetFloat(o.MADScore)
		row.AddCell().SetFloat(o.Threshold)
		row.AddCell().SetBool(o.IsOutlier)
		row.AddCell().SetString(string(o.Recommendation))
	}

	checks, err := f.AddSheet(SheetChecks)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add checks sheet")
	}
	addStrings(checks, "Record", "Check", "Status", "Message")
	for _, c := range failedChecks(r.Checks) {
		addStrings(checks, c.RecordID, c.Check, string(c.Status), c.Message)
	}

	recs, err := f.AddSheet(SheetRecommendations)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: add recommendations sheet")
	}
	for _, rec := range r.Recommendations {
		addStrings(recs, rec)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, eris.Wrap(err, "xlsx: write workbook")
	}
	return buf.Bytes(), nil
}

func addStrings(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func addInts(sheet *xlsx.Sheet, label string, n int) {
	row := sheet.AddRow()
	row.AddCell().SetString(label)
	row.AddCell().SetInt(n)
}

func addFloat(sheet *xlsx.Sheet, label string, v float64) {
	row := sheet.AddRow()
	row.AddCell().SetString(label)
	row.AddCell().SetFloat(v)
}
