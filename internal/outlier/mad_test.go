package outlier

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sports-qc/internal/model"
)

func TestMedian(t *testing.T) {
	m, err := Median([]float64{3, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, 2.0, m)

	m, err = Median([]float64{4, 1, 3, 2})
	require.NoError(t, err)
	assert.Equal(t, 2.5, m)

	_, err = Median(nil)
	assert.True(t, eris.Is(err, ErrEmptySample))
}

func TestMedian_DoesNotMutateInput(t *testing.T) {
	in := []float64{5, 1, 3}
	_, err := Median(in)
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 1, 3}, in)
}

func TestMAD(t *testing.T) {
	median, mad, err := MAD([]float64{1, 1, 2, 2, 4, 6, 9})
	require.NoError(t, err)
	assert.Equal(t, 2.0, median)
	assert.Equal(t, 1.0, mad)
}

func TestDetectOutliersMAD_IdenticalValues(t *testing.T) {
	for _, n := range []int{1, 2, 7, 50} {
		values := make([]float64, n)
		for i := range values {
			values[i] = 0.275
		}
		results, err := DetectOutliersMAD(values, "batting_avg", 5.0)
		require.NoError(t, err)
		require.Len(t, results, n)
		for _, r := range results {
			assert.Equal(t, 0.0, r.MADScore)
			assert.False(t, r.IsOutlier)
			assert.Equal(t, model.RecommendAccept, r.Recommendation)
		}
	}
}

func TestDetectOutliersMAD_ZeroMADAcceptsEvenASpike(t *testing.T) {
	results, err := DetectOutliersMAD([]float64{1, 1, 1, 1, 50}, "m", 5.0)
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, model.RecommendAccept, r.Recommendation)
	}
}

func TestDetectOutliersMAD_Empty(t *testing.T) {
	_, err := DetectOutliersMAD(nil, "batting_avg", 5.0)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrEmptySample))
}

func TestDetectOutliersMAD_ExtremeBattingAverage(t *testing.T) {
	values := []float64{
		0.250, 0.255, 0.260, 0.262, 0.265, 0.268, 0.270, 0.272, 0.275, 0.278,
		0.280, 0.282, 0.285, 0.287, 0.290, 0.292, 0.295, 0.297, 0.299, 0.300,
		0.950,
	}
	results, err := DetectOutliersMAD(values, "batting_avg", 5.0)
	require.NoError(t, err)
	require.Len(t, results, len(values))

	extreme := results[len(results)-1]
	assert.Equal(t, 0.950, extreme.Value)
	assert.Greater(t, extreme.MADScore, 5.0)
	assert.True(t, extreme.IsOutlier)
	assert.NotEqual(t, model.RecommendAccept, extreme.Recommendation)

	for _, r := range results[:len(results)-1] {
		assert.Equal(t, model.RecommendAccept, r.Recommendation, "value %v", r.Value)
	}
}

func TestDetect_Tiers(t *testing.T) {
	// median 10, MAD 1: scores are distance from 10.
	samples := []Sample{
		{RecordID: "a", Value: 9}, {RecordID: "b", Value: 10}, {RecordID: "c", Value: 11},
		{RecordID: "d", Value: 10}, {RecordID: "e", Value: 9}, {RecordID: "f", Value: 11},
		{RecordID: "g", Value: 10}, {RecordID: "h", Value: 16}, {RecordID: "i", Value: 18},
	}
	results, err := Detect(samples, "velocity", 5.0, DefaultTiers())
	require.NoError(t, err)

	byID := map[string]model.OutlierResult{}
	for _, r := range results {
		byID[r.RecordID] = r
	}
	assert.Equal(t, model.RecommendAccept, byID["a"].Recommendation)
	assert.InDelta(t, 6.0, byID["h"].MADScore, 1e-9)
	assert.Equal(t, model.RecommendFlag, byID["h"].Recommendation)
	assert.True(t, byID["h"].IsOutlier)
	assert.InDelta(t, 8.0, byID["i"].MADScore, 1e-9)
	assert.Equal(t, model.RecommendReject, byID["i"].Recommendation)
}

func TestDetect_CallerThresholdOnlyDrivesIsOutlier(t *testing.T) {
	samples := []Sample{{Value: 9}, {Value: 10}, {Value: 11}, {Value: 10}, {Value: 14}}
	results, err := Detect(samples, "m", 3.0, DefaultTiers())
	require.NoError(t, err)

	last := results[len(results)-1]
	assert.InDelta(t, 4.0, last.MADScore, 1e-9)
	assert.True(t, last.IsOutlier)
	assert.Equal(t, model.RecommendAccept, last.Recommendation)
	assert.Equal(t, 3.0, last.Threshold)
}

func TestTiers_Classify(t *testing.T) {
	tiers := DefaultTiers()
	assert.Equal(t, model.RecommendAccept, tiers.Classify(5.0))
	assert.Equal(t, model.RecommendFlag, tiers.Classify(5.01))
	assert.Equal(t, model.RecommendFlag, tiers.Classify(7.0))
	assert.Equal(t, model.RecommendReject, tiers.Classify(7.01))
}
