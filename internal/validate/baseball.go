package validate

import (
	"math"

	"github.com/sells-group/sports-qc/internal/model"
)

// InningsToOuts converts baseball innings notation to outs recorded.
// 6.1 means six and one third innings, 6.2 six and two thirds. Values with
// any other fractional part are treated as true decimal innings.
func InningsToOuts(ip float64) int {
	if ip <= 0 {
		return 0
	}
	whole := math.Floor(ip)
	tenths := math.Round((ip - whole) * 10)
	if math.Abs((ip-whole)*10-tenths) < 1e-6 && tenths <= 2 {
		return int(whole)*3 + int(tenths)
	}
	return int(math.Round(ip * 3))
}

// EffectiveERA returns the ERA used for validation and outlier detection.
// With no outs recorded and earned runs allowed the ERA is infinite and is
// clamped to eraCap rather than computed. A provider-supplied ERA is
// preferred over the computed one; both are capped at eraCap.
func EffectiveERA(p *model.PitchingStats, eraCap float64) float64 {
	outs := InningsToOuts(p.InningsPitched)
	if outs == 0 {
		if p.EarnedRuns > 0 {
			return eraCap
		}
		if p.ERA != nil {
			return math.Min(*p.ERA, eraCap)
		}
		return 0
	}
	if p.ERA != nil {
		return math.Min(*p.ERA, eraCap)
	}
	return math.Min(float64(p.EarnedRuns)*27/float64(outs), eraCap)
}
