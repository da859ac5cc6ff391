package model

// GameStatus is the lifecycle state of a contest.
type GameStatus string

const (
	GameScheduled GameStatus = "SCHEDULED"
	GameLive      GameStatus = "LIVE"
	GameFinal     GameStatus = "FINAL"
	GamePostponed GameStatus = "POSTPONED"
	GameCancelled GameStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s GameStatus) Valid() bool {
	switch s {
	case GameScheduled, GameLive, GameFinal, GamePostponed, GameCancelled:
		return true
	}
	return false
}

// LineTotals holds aggregated runs, hits and errors for one game.
type LineTotals struct {
	Runs   int `json:"runs"`
	Hits   int `json:"hits"`
	Errors int `json:"errors"`
}

// GameRecord is a single contest as delivered by a provider.
type GameRecord struct {
	ID        string      `json:"id"`
	Timestamp string      `json:"timestamp"`
	Season    int         `json:"season"`
	Sport     string      `json:"sport,omitempty"`
	HomeTeam  string      `json:"home_team"`
	AwayTeam  string      `json:"away_team"`
	HomeScore *int        `json:"home_score,omitempty"`
	AwayScore *int        `json:"away_score,omitempty"`
	Status    GameStatus  `json:"status"`
	Venue     string      `json:"venue,omitempty"`
	BoxScore  *LineTotals `json:"box_score,omitempty"`

	// PlayByPlay holds the same totals recomputed from the play-by-play feed.
	PlayByPlay *LineTotals `json:"play_by_play,omitempty"`

	Source SourceMetadata `json:"source"`
}

// Fields returns the record as a flat map keyed by JSON field name, used by
// completeness checks.
func (g GameRecord) Fields() map[string]any {
	return map[string]any{
		"id":        g.ID,
		"timestamp": g.Timestamp,
		"home_team": g.HomeTeam,
		"away_team": g.AwayTeam,
		"status":    string(g.Status),
		"venue":     g.Venue,
		"sport":     g.Sport,
	}
}
