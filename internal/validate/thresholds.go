package validate

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Bounds is an inclusive numeric range.
type Bounds struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Contains reports whether v lies in [Min, Max].
func (b Bounds) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// SeasonWindow is the calendar span of a sport's season. When StartMonth is
// greater than EndMonth the season crosses New Year and the declared season
// year is the year the season starts in.
type SeasonWindow struct {
	StartMonth int `yaml:"start_month"`
	EndMonth   int `yaml:"end_month"`
}

func (w SeasonWindow) crossesYear() bool {
	return w.StartMonth > w.EndMonth
}

// Thresholds holds every numeric bound and policy knob the validators and
// outlier detector use. Values are read-only once built; pass by value.
type Thresholds struct {
	Name string `yaml:"name"`

	BattingAvg    Bounds `yaml:"batting_avg"`
	PitchVelocity Bounds `yaml:"pitch_velocity"`
	ExitVelocity  Bounds `yaml:"exit_velocity"`
	SpinRate      Bounds `yaml:"spin_rate"`
	ERA           Bounds `yaml:"era"`
	Confidence    Bounds `yaml:"confidence"`

	MinSeasonYear      int `yaml:"min_season_year"`
	MaxSeasonYearAhead int `yaml:"max_season_year_ahead"`

	WinProbTolerance      float64 `yaml:"win_prob_tolerance"`
	DistributionTolerance float64 `yaml:"distribution_tolerance"`
	BoxScoreTolerance     int     `yaml:"box_score_tolerance"`

	// ERACap replaces an infinite ERA (earned runs with no outs recorded).
	ERACap float64 `yaml:"era_cap"`

	MADFlag   float64 `yaml:"mad_flag"`
	MADReject float64 `yaml:"mad_reject"`

	// SystemicFailureCount is how many failures of one check a batch may
	// contain before the report suggests a systemic scraper bug.
	SystemicFailureCount int `yaml:"systemic_failure_count"`
	// CompletenessDropPct is the drop in completeness percentage points after
	// filtering that triggers a recommendation.
	CompletenessDropPct float64 `yaml:"completeness_drop_pct"`

	// RequireStatGroup fails player lines that carry no batting, pitching or
	// tracking group.
	RequireStatGroup bool `yaml:"require_stat_group"`

	RequiredGameFields       []string `yaml:"required_game_fields"`
	RequiredPlayerFields     []string `yaml:"required_player_fields"`
	RequiredSimulationFields []string `yaml:"required_simulation_fields"`

	Seasons map[string]SeasonWindow `yaml:"seasons"`
}

// DefaultThresholds returns the professional-level profile.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Name:                     "professional",
		BattingAvg:               Bounds{Min: 0.0, Max: 1.0},
		PitchVelocity:            Bounds{Min: 40, Max: 110},
		ExitVelocity:             Bounds{Min: 0, Max: 120},
		SpinRate:                 Bounds{Min: 0, Max: 4000},
		ERA:                      Bounds{Min: 0, Max: 99.99},
		Confidence:               Bounds{Min: 0, Max: 1},
		MinSeasonYear:            1900,
		MaxSeasonYearAhead:       1,
		WinProbTolerance:         0.001,
		DistributionTolerance:    0.01,
		BoxScoreTolerance:        0,
		ERACap:                   99.99,
		MADFlag:                  5.0,
		MADReject:                7.0,
		SystemicFailureCount:     5,
		CompletenessDropPct:      10,
		RequireStatGroup:         true,
		RequiredGameFields:       []string{"id", "timestamp", "home_team", "away_team"},
		RequiredPlayerFields:     []string{"player_id", "team_id"},
		RequiredSimulationFields: []string{"id", "game_id"},
		Seasons: map[string]SeasonWindow{
			"mlb":             {StartMonth: 3, EndMonth: 11},
			"milb":            {StartMonth: 4, EndMonth: 9},
			"ncaa_baseball":   {StartMonth: 2, EndMonth: 6},
			"nfl":             {StartMonth: 9, EndMonth: 2},
			"ncaa_football":   {StartMonth: 8, EndMonth: 1},
			"nba":             {StartMonth: 10, EndMonth: 6},
			"ncaa_basketball": {StartMonth: 11, EndMonth: 4},
		},
	}
}

// CollegeThresholds returns the amateur profile. College samples are small
// and noisy, so MAD tiers and velocity bounds are wider.
func CollegeThresholds() Thresholds {
	t := DefaultThresholds()
	t.Name = "college"
	t.PitchVelocity = Bounds{Min: 35, Max: 105}
	t.MADFlag = 6.0
	t.MADReject = 9.0
	return t
}

// Profile returns a built-in profile by name.
func Profile(name string) (Thresholds, error) {
	switch strings.ToLower(name) {
	case "", "professional", "pro":
		return DefaultThresholds(), nil
	case "college", "ncaa":
		return CollegeThresholds(), nil
	}
	return Thresholds{}, eris.Errorf("validate: unknown threshold profile %q", name)
}

// LoadProfiles reads named threshold profiles from a YAML file. Each profile
// starts from DefaultThresholds and overrides only the keys it sets.
//
//	profiles:
//	  summer_league:
//	    mad_flag: 6
//	    seasons:
//	      summer_wood_bat: {start_month: 6, end_month: 8}
func LoadProfiles(path string) (map[string]Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "validate: read profiles %s", path)
	}

	var raw struct {
		Profiles map[string]yaml.Node `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "validate: parse profiles")
	}

	out := make(map[string]Thresholds, len(raw.Profiles))
	for name, node := range raw.Profiles {
		t := DefaultThresholds()
		defaultSeasons := t.Seasons
		t.Seasons = nil
		if err := node.Decode(&t); err != nil {
			return nil, eris.Wrapf(err, "validate: decode profile %s", name)
		}
		merged := make(map[string]SeasonWindow, len(defaultSeasons)+len(t.Seasons))
		for k, v := range defaultSeasons {
			merged[k] = v
		}
		for k, v := range t.Seasons {
			merged[strings.ToLower(k)] = v
		}
		t.Seasons = merged
		t.Name = name
		if t.MADReject < t.MADFlag {
			return nil, eris.Errorf("validate: profile %s: mad_reject %.2f below mad_flag %.2f", name, t.MADReject, t.MADFlag)
		}
		out[name] = t
	}
	return out, nil
}
