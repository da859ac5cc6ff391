// Package outlier flags statistical outliers in a numeric sample using the
// median absolute deviation, which stays robust on the small, dirty samples
// typical of amateur sports data.
package outlier

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sports-qc/internal/model"
)

// ErrEmptySample is returned when a median or MAD is requested over no values.
var ErrEmptySample = eris.New("outlier: empty sample")

// Tiers splits MAD scores into ACCEPT, FLAG and REJECT bands.
type Tiers struct {
	Flag   float64 `json:"flag"`
	Reject float64 `json:"reject"`
}

// DefaultTiers returns the permissive 5.0 / strict 7.0 bands.
func DefaultTiers() Tiers {
	return Tiers{Flag: 5.0, Reject: 7.0}
}

// Classify maps a MAD score to a recommendation.
func (t Tiers) Classify(score float64) model.Recommendation {
	switch {
	case score <= t.Flag:
		return model.RecommendAccept
	case score <= t.Reject:
		return model.RecommendFlag
	}
	return model.RecommendReject
}

// Sample is one value to score, tagged with the record it came from.
type Sample struct {
	RecordID string
	Value    float64
}

// Median returns the median of values without modifying the input.
func Median(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrEmptySample
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2, nil
	}
	return sorted[n/2], nil
}

// MAD returns the sample median and the median absolute deviation from it.
func MAD(values []float64) (median, mad float64, err error) {
	median, err = Median(values)
	if err != nil {
		return 0, 0, err
	}
	deviations := make([]float64, len(values))
	for i, v := range values {
		deviations[i] = math.Abs(v - median)
	}
	mad, err = Median(deviations)
	return median, mad, err
}

// DetectOutliersMAD scores every value with the default tiers. IsOutlier is
// set when a score exceeds threshold. Results preserve input order.
func DetectOutliersMAD(values []float64, metric string, threshold float64) ([]model.OutlierResult, error) {
	samples := make([]Sample, len(values))
	for i, v := range values {
		samples[i] = Sample{Value: v}
	}
	return Detect(samples, metric, threshold, DefaultTiers())
}

// Detect scores samples against tiers. A zero MAD means the sample has no
// spread to measure against, so every value is accepted with score 0.
func Detect(samples []Sample, metric string, threshold float64, tiers Tiers) ([]model.OutlierResult, error) {
	if len(samples) == 0 {
		return nil, eris.Wrapf(ErrEmptySample, "outlier: detect %s", metric)
	}
	if tiers.Reject < tiers.Flag {
		tiers.Reject = tiers.Flag
	}

	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}
	median, mad, err := MAD(values)
	if err != nil {
		return nil, eris.Wrapf(err, "outlier: detect %s", metric)
	}

	out := make([]model.OutlierResult, len(samples))
	for i, s := range samples {
		r := model.OutlierResult{
			Metric:         metric,
			RecordID:       s.RecordID,
			Value:          s.Value,
			Threshold:      threshold,
			Recommendation: model.RecommendAccept,
		}
		if mad > 0 {
			r.MADScore = math.Abs(s.Value-median) / mad
			r.IsOutlier = r.MADScore > threshold
			r.Recommendation = tiers.Classify(r.MADScore)
		}
		out[i] = r
	}
	return out, nil
}
