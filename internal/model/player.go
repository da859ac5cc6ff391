package model

import "strconv"

// BattingStats holds a player's batting line.
type BattingStats struct {
	AtBats     int      `json:"at_bats"`
	Hits       int      `json:"hits"`
	Runs       int      `json:"runs"`
	RBI        int      `json:"rbi"`
	Walks      int      `json:"walks"`
	HitByPitch int      `json:"hit_by_pitch"`
	Strikeouts int      `json:"strikeouts"`
	Avg        *float64 `json:"batting_avg,omitempty"`
}

// PitchingStats holds a pitcher's line. InningsPitched uses baseball
// notation: 6.1 is six and one third innings.
type PitchingStats struct {
	InningsPitched float64  `json:"innings_pitched"`
	EarnedRuns     int      `json:"earned_runs"`
	ERA            *float64 `json:"era,omitempty"`
	PitchCount     *int     `json:"pitch_count,omitempty"`
	Strikes        *int     `json:"strikes,omitempty"`
}

// PitchTracking holds optional ball-tracking measurements.
type PitchTracking struct {
	Velocity        *float64 `json:"velocity,omitempty"`
	SpinRate        *float64 `json:"spin_rate,omitempty"`
	ReleaseX        *float64 `json:"release_x,omitempty"`
	ReleaseZ        *float64 `json:"release_z,omitempty"`
	HorizontalBreak *float64 `json:"horizontal_break,omitempty"`
	VerticalBreak   *float64 `json:"vertical_break,omitempty"`
	ExitVelocity    *float64 `json:"exit_velocity,omitempty"`
}

// StatScope is the span a stat line covers.
type StatScope string

const (
	ScopeGame   StatScope = "game"
	ScopeSeason StatScope = "season"
)

// PlayerStatLine is one player's statistics for a game or a season. Any of the
// stat groups may be absent.
type PlayerStatLine struct {
	ID       string    `json:"id,omitempty"`
	PlayerID string    `json:"player_id"`
	TeamID   string    `json:"team_id"`
	GameID   string    `json:"game_id,omitempty"`
	Season   int       `json:"season,omitempty"`
	Scope    StatScope `json:"scope,omitempty"`

	Batting  *BattingStats  `json:"batting,omitempty"`
	Pitching *PitchingStats `json:"pitching,omitempty"`
	Tracking *PitchTracking `json:"tracking,omitempty"`

	Source SourceMetadata `json:"source"`
}

// Key returns a stable identifier for the line. Lines without an explicit ID
// are keyed by player, game and season.
func (p PlayerStatLine) Key() string {
	if p.ID != "" {
		return p.ID
	}
	key := p.PlayerID
	if p.GameID != "" {
		key += "@" + p.GameID
	}
	if p.Season != 0 {
		key += "#" + strconv.Itoa(p.Season)
	}
	return key
}

// HasStats reports whether at least one stat group is present.
func (p PlayerStatLine) HasStats() bool {
	return p.Batting != nil || p.Pitching != nil || p.Tracking != nil
}

// Fields returns the identifying fields as a flat map for completeness checks.
func (p PlayerStatLine) Fields() map[string]any {
	return map[string]any{
		"player_id": p.PlayerID,
		"team_id":   p.TeamID,
		"game_id":   p.GameID,
	}
}
