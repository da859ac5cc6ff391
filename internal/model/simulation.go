package model

// WinProbability is the home/away/tie probability triple. Tie is absent for
// sports without ties.
type WinProbability struct {
	Home float64  `json:"home"`
	Away float64  `json:"away"`
	Tie  *float64 `json:"tie,omitempty"`
}

// Sum returns the total of the triple.
func (w WinProbability) Sum() float64 {
	s := w.Home + w.Away
	if w.Tie != nil {
		s += *w.Tie
	}
	return s
}

// ScoreProbability is one cell of a simulated final-score distribution.
type ScoreProbability struct {
	HomeScore   int     `json:"home_score"`
	AwayScore   int     `json:"away_score"`
	Probability float64 `json:"probability"`
}

// SimulationResult is the output of a Monte Carlo game model.
type SimulationResult struct {
	ID                string             `json:"id"`
	GameID            string             `json:"game_id"`
	WinProbability    WinProbability     `json:"win_probability"`
	ScoreDistribution []ScoreProbability `json:"score_distribution,omitempty"`
	Simulations       int                `json:"simulations"`
	Seed              *int64             `json:"seed,omitempty"`
	Source            SourceMetadata     `json:"source"`
}

// Fields returns identifying fields for completeness checks.
func (s SimulationResult) Fields() map[string]any {
	return map[string]any{
		"id":      s.ID,
		"game_id": s.GameID,
	}
}
