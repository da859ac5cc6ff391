package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sports-qc/internal/model"
)

var fixedNow = time.Date(2025, time.June, 15, 17, 0, 0, 0, time.UTC)

func TestParseTimestamp_Layouts(t *testing.T) {
	for _, s := range []string{
		"2025-04-12T18:05:00-05:00",
		"2025-04-12T23:05:00Z",
		"2025-04-12T18:05:00",
		"2025-04-12 18:05:00",
		"2025-04-12",
	} {
		_, err := ParseTimestamp(s)
		assert.NoError(t, err, s)
	}

	_, err := ParseTimestamp("April 12th")
	require.Error(t, err)
}

func TestParseTimestamp_NaiveUsesReferenceZone(t *testing.T) {
	ts, err := ParseTimestamp("2025-04-12T18:05:00")
	require.NoError(t, err)
	assert.Equal(t, ReferenceZone, ts.Location().String())
}

func TestTimestamp(t *testing.T) {
	assert.Equal(t, model.CheckPass, Timestamp("2025-06-01T19:00:00Z", false, fixedNow, "ts").Status)
	assert.Equal(t, model.CheckFail, Timestamp("2025-07-01T19:00:00Z", false, fixedNow, "ts").Status)
	assert.Equal(t, model.CheckPass, Timestamp("2025-07-01T19:00:00Z", true, fixedNow, "ts").Status)
	assert.Equal(t, model.CheckFail, Timestamp("not-a-date", true, fixedNow, "ts").Status)
}

func TestSeasonAlignment(t *testing.T) {
	th := DefaultThresholds()

	r, ok := th.SeasonAlignment("2025-04-12T18:05:00-05:00", 2025, "mlb")
	require.True(t, ok)
	assert.Equal(t, model.CheckPass, r.Status)

	r, ok = th.SeasonAlignment("2025-01-12T18:05:00-06:00", 2025, "mlb")
	require.True(t, ok)
	assert.Equal(t, model.CheckWarning, r.Status)

	// Season crossing New Year: January games belong to the prior season.
	r, ok = th.SeasonAlignment("2026-01-05T12:00:00-06:00", 2025, "nfl")
	require.True(t, ok)
	assert.Equal(t, model.CheckPass, r.Status)

	r, ok = th.SeasonAlignment("2025-01-05T12:00:00-06:00", 2025, "nfl")
	require.True(t, ok)
	assert.Equal(t, model.CheckWarning, r.Status)

	_, ok = th.SeasonAlignment("2025-04-12", 2025, "cricket")
	assert.False(t, ok)
	_, ok = th.SeasonAlignment("garbage", 2025, "mlb")
	assert.False(t, ok)
}
