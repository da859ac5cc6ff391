// Package report renders QC reports as JSON, plain text, HTML, a terse
// console summary and an XLSX workbook. Every renderer is pure.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/sports-qc/internal/model"
)

// MaxOutliers caps the outlier rows shown by the human-readable formats.
const MaxOutliers = 10

// Format names an output format.
type Format string

// Supported formats.
const (
	FormatJSON    Format = "json"
	FormatText    Format = "text"
	FormatHTML    Format = "html"
	FormatConsole Format = "console"
	FormatXLSX    Format = "xlsx"
)

// ParseFormat maps a user-supplied name to a Format. Empty means JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatText, FormatHTML, FormatConsole, FormatXLSX:
		return f, nil
	default:
		return "", eris.Errorf("report: unknown format %q", s)
	}
}

// ContentType returns the HTTP content type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatHTML:
		return "text/html; charset=utf-8"
	case FormatText, FormatConsole:
		return "text/plain; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/json"
	}
}

// Render formats r in the requested format.
func Render(r *model.Report, f Format) ([]byte, error) {
	if r == nil {
		return nil, eris.New("report: nil report")
	}
	switch f {
	case FormatJSON, "":
		return JSON(r)
	case FormatText:
		return []byte(Text(r)), nil
	case FormatHTML:
		s, err := HTML(r)
		return []byte(s), err
	case FormatConsole:
		return []byte(Console(r)), nil
	case FormatXLSX:
		return XLSX(r)
	default:
		return nil, eris.Errorf("report: unknown format %q", f)
	}
}

// JSON returns the indented wire form of r.
func JSON(r *model.Report) ([]byte, error) {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "report: marshal json")
	}
	return b, nil
}

// TopOutliers returns up to n non-ACCEPT outliers, highest MAD score first.
// Ties keep input order.
func TopOutliers(outliers []model.OutlierResult, n int) []model.OutlierResult {
	var out []model.OutlierResult
	for _, o := range outliers {
		if o.Recommendation != model.RecommendAccept {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MADScore > out[j].MADScore })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// outlierTiers counts outliers per severity tier: extreme (REJECT) and
// moderate (FLAG).
func outlierTiers(outliers []model.OutlierResult) (extreme, moderate int) {
	for _, o := range outliers {
		switch o.Recommendation {
		case model.RecommendReject:
			extreme++
		case model.RecommendFlag:
			moderate++
		}
	}
	return extreme, moderate
}

// failedChecks returns FAIL and WARNING results only.
func failedChecks(checks []model.CheckResult) []model.CheckResult {
	var out []model.CheckResult
	for _, c := range checks {
		if c.Status != model.CheckPass {
			out = append(out, c)
		}
	}
	return out
}

var printer = message.NewPrinter(language.English)

func count(n int) string {
	return printer.Sprintf("%d", n)
}

func pct(part, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(part)/float64(total)*100)
}

func optional(v *float64, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v)
}
