package validate

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfile(t *testing.T) {
	pro, err := Profile("professional")
	require.NoError(t, err)
	assert.Equal(t, 5.0, pro.MADFlag)
	assert.Equal(t, 7.0, pro.MADReject)

	college, err := Profile("NCAA")
	require.NoError(t, err)
	assert.Equal(t, "college", college.Name)
	assert.Greater(t, college.MADFlag, pro.MADFlag)

	_, err = Profile("cricket")
	require.Error(t, err)
}

func TestLoadProfiles_OverridesOnlySetKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	content := `
profiles:
  summer_league:
    mad_flag: 6
    mad_reject: 8.5
    pitch_velocity: {min: 30, max: 100}
    require_stat_group: false
    seasons:
      Summer_Wood_Bat: {start_month: 6, end_month: 8}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	profiles, err := LoadProfiles(path)
	require.NoError(t, err)
	require.Contains(t, profiles, "summer_league")

	p := profiles["summer_league"]
	assert.Equal(t, "summer_league", p.Name)
	assert.Equal(t, 6.0, p.MADFlag)
	assert.Equal(t, 8.5, p.MADReject)
	assert.Equal(t, Bounds{Min: 30, Max: 100}, p.PitchVelocity)
	assert.False(t, p.RequireStatGroup)
	// Untouched keys keep their defaults.
	assert.Equal(t, Bounds{Min: 0, Max: 1}, p.BattingAvg)
	assert.Equal(t, 99.99, p.ERACap)
	assert.Contains(t, p.Seasons, "summer_wood_bat")
	assert.Contains(t, p.Seasons, "mlb")
}

func TestLoadProfiles_RejectsInvertedTiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thresholds.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles:\n  bad:\n    mad_flag: 9\n    mad_reject: 4\n"), 0o644))

	_, err := LoadProfiles(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mad_reject")
}

func TestLoadProfiles_MissingFile(t *testing.T) {
	_, err := LoadProfiles(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
