package report

import (
	"bytes"
	"embed"
	"html/template"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sports-qc/internal/model"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

type htmlView struct {
	Report     *model.Report
	Generated  string
	Total      string
	Passed     string
	Flagged    string
	Rejected   string
	RejectRate string
	Metrics    [][3]string
	Extreme    string
	Moderate   string
	Outliers   []model.OutlierResult
	Checks     []checkGroup
}

// HTML renders a standalone styled HTML document.
func HTML(r *model.Report) (string, error) {
	extreme, moderate := outlierTiers(r.Outliers)

	view := htmlView{
		Report:     r,
		Generated:  r.GeneratedAt.UTC().Format(time.RFC1123),
		Total:      count(r.TotalRecords),
		Passed:     count(r.RecordsPassed),
		Flagged:    count(r.RecordsFlagged),
		Rejected:   count(r.RecordsRejected),
		RejectRate: pct(r.RecordsRejected, r.TotalRecords),
		Metrics:    metricRows(r.MetricsBefore, r.MetricsAfter),
		Extreme:    count(extreme),
		Moderate:   count(moderate),
		Outliers:   TopOutliers(r.Outliers, MaxOutliers),
		Checks:     checkGroups(r.Checks),
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "report.html", view); err != nil {
		return "", eris.Wrap(err, "report: render html")
	}
	return buf.String(), nil
}
