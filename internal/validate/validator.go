package validate

import (
	"fmt"
	"time"

	"github.com/sells-group/sports-qc/internal/model"
)

// Validator runs the composite checks for each record type. It holds no
// mutable state and is safe for concurrent use.
type Validator struct {
	th  Thresholds
	now func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock overrides the time source used for future-date and season-year
// checks.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		if now != nil {
			v.now = now
		}
	}
}

// New creates a Validator over the given thresholds.
func New(th Thresholds, opts ...Option) *Validator {
	v := &Validator{th: th, now: time.Now}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Thresholds returns the thresholds the validator was built with.
func (v *Validator) Thresholds() Thresholds {
	return v.th
}

// GameData runs completeness, status, score, temporal and consistency
// checks on one game.
func (v *Validator) GameData(g model.GameRecord) []model.CheckResult {
	now := v.now()
	var out []model.CheckResult

	out = append(out, Completeness(g.Fields(), v.th.RequiredGameFields, "game_completeness"))

	if !g.Status.Valid() {
		out = append(out, model.CheckResult{
			Check:   "game_status",
			Status:  model.CheckFail,
			Message: fmt.Sprintf("unknown game status %q", g.Status),
		})
	}

	if g.Status == model.GameFinal {
		out = append(out, finalScore(g))
	}

	if g.HomeTeam != "" && g.HomeTeam == g.AwayTeam {
		out = append(out, model.CheckResult{
			Check:   "distinct_teams",
			Status:  model.CheckFail,
			Message: fmt.Sprintf("home and away team are both %q", g.HomeTeam),
		})
	}

	// Season is optional on games; without one there is nothing to align.
	if g.Season != 0 {
		out = append(out, v.th.SeasonYear(g.Season, now.In(referenceLocation).Year()))
	}

	if g.Timestamp != "" {
		allowFuture := g.Status == model.GameScheduled || g.Status == model.GamePostponed
		out = append(out, Timestamp(g.Timestamp, allowFuture, now, "game_timestamp"))
		if g.Season != 0 {
			if r, ok := v.th.SeasonAlignment(g.Timestamp, g.Season, g.Sport); ok {
				out = append(out, r)
			}
		}
	}

	if g.BoxScore != nil && g.PlayByPlay != nil {
		out = append(out, BoxScore(*g.BoxScore, *g.PlayByPlay, v.th.BoxScoreTolerance)...)
	}

	out = append(out, v.source(g.Source, now)...)
	return tag(out, g.ID)
}

func finalScore(g model.GameRecord) model.CheckResult {
	switch {
	case g.HomeScore == nil || g.AwayScore == nil:
		return model.CheckResult{
			Check:   "final_score",
			Status:  model.CheckFail,
			Message: "final game is missing a score",
		}
	case *g.HomeScore < 0 || *g.AwayScore < 0:
		return model.CheckResult{
			Check:   "final_score",
			Status:  model.CheckFail,
			Message: fmt.Sprintf("negative final score %d-%d", *g.HomeScore, *g.AwayScore),
			Details: map[string]any{"home_score": *g.HomeScore, "away_score": *g.AwayScore},
		}
	}
	return model.CheckResult{
		Check:   "final_score",
		Status:  model.CheckPass,
		Message: "final score present",
	}
}

// PlayerStats runs completeness, batting, pitching and tracking checks on
// one stat line.
func (v *Validator) PlayerStats(p model.PlayerStatLine) []model.CheckResult {
	now := v.now()
	var out []model.CheckResult

	out = append(out, Completeness(p.Fields(), v.th.RequiredPlayerFields, "player_completeness"))

	if v.th.RequireStatGroup && !p.HasStats() {
		out = append(out, model.CheckResult{
			Check:   "stat_group_presence",
			Status:  model.CheckFail,
			Message: "stat line has no batting, pitching or tracking fields",
		})
	}

	if p.Season != 0 {
		out = append(out, v.th.SeasonYear(p.Season, now.In(referenceLocation).Year()))
	}

	if b := p.Batting; b != nil {
		out = append(out, v.batting(b)...)
	}
	if pi := p.Pitching; pi != nil {
		out = append(out, v.pitching(pi)...)
	}
	if tr := p.Tracking; tr != nil {
		if tr.Velocity != nil {
			out = append(out, v.th.CheckPitchVelocity(*tr.Velocity))
		}
		if tr.ExitVelocity != nil {
			out = append(out, v.th.CheckExitVelocity(*tr.ExitVelocity))
		}
		if tr.SpinRate != nil {
			out = append(out, v.th.CheckSpinRate(*tr.SpinRate))
		}
	}

	out = append(out, v.source(p.Source, now)...)
	return tag(out, p.Key())
}

func (v *Validator) batting(b *model.BattingStats) []model.CheckResult {
	var out []model.CheckResult
	if b.AtBats < 0 || b.Hits < 0 || b.Walks < 0 || b.HitByPitch < 0 || b.Strikeouts < 0 || b.Runs < 0 || b.RBI < 0 {
		out = append(out, model.CheckResult{
			Check:   "batting_counts",
			Status:  model.CheckFail,
			Message: "batting line contains a negative count",
		})
	}
	// Zero at-bats is a legitimate line for a batter who only walked or was hit.
	if b.Hits > b.AtBats {
		out = append(out, model.CheckResult{
			Check:   "hits_vs_at_bats",
			Status:  model.CheckFail,
			Message: fmt.Sprintf("%d hits in %d at-bats", b.Hits, b.AtBats),
			Details: map[string]any{"hits": b.Hits, "at_bats": b.AtBats},
		})
	}
	if b.Avg != nil {
		out = append(out, v.th.BattingAverage(*b.Avg))
	}
	return out
}

func (v *Validator) pitching(p *model.PitchingStats) []model.CheckResult {
	var out []model.CheckResult
	if p.InningsPitched < 0 || InningsToOuts(p.InningsPitched) == 0 {
		out = append(out, model.CheckResult{
			Check:   "innings_pitched",
			Status:  model.CheckFail,
			Message: fmt.Sprintf("pitcher recorded %.1f innings pitched and didn't actually pitch", p.InningsPitched),
			Details: map[string]any{"innings_pitched": p.InningsPitched, "earned_runs": p.EarnedRuns},
		})
	}
	out = append(out, v.th.CheckERA(EffectiveERA(p, v.th.ERACap)))
	if p.PitchCount != nil && p.Strikes != nil && *p.Strikes > *p.PitchCount {
		out = append(out, model.CheckResult{
			Check:   "strikes_vs_pitches",
			Status:  model.CheckFail,
			Message: fmt.Sprintf("%d strikes out of %d pitches", *p.Strikes, *p.PitchCount),
		})
	}
	return out
}

// SimulationResults runs completeness and probability checks on one model
// output.
func (v *Validator) SimulationResults(s model.SimulationResult) []model.CheckResult {
	var out []model.CheckResult
	out = append(out, Completeness(s.Fields(), v.th.RequiredSimulationFields, "simulation_completeness"))
	out = append(out, WinProbability(s.WinProbability, v.th.WinProbTolerance)...)
	if len(s.ScoreDistribution) > 0 {
		out = append(out, ScoreDistribution(s.ScoreDistribution, v.th.DistributionTolerance)...)
	}
	if s.Simulations <= 0 {
		out = append(out, model.CheckResult{
			Check:   "simulation_count",
			Status:  model.CheckFail,
			Message: fmt.Sprintf("simulation count %d must be positive", s.Simulations),
		})
	}
	out = append(out, v.source(s.Source, v.now())...)
	return tag(out, s.ID)
}

// source checks provenance fields when they are present.
func (v *Validator) source(src model.SourceMetadata, now time.Time) []model.CheckResult {
	var out []model.CheckResult
	if src.Confidence != nil {
		out = append(out, Range(*src.Confidence, v.th.Confidence.Min, v.th.Confidence.Max, "source_confidence"))
	}
	if src.ScrapedAt != "" {
		out = append(out, Timestamp(src.ScrapedAt, false, now, "scraped_at"))
	}
	if src.Provider != "" && !src.Provider.Valid() {
		out = append(out, model.CheckResult{
			Check:   "source_provider",
			Status:  model.CheckWarning,
			Message: fmt.Sprintf("unknown provider %q", src.Provider),
		})
	}
	return out
}

func tag(results []model.CheckResult, id string) []model.CheckResult {
	for i := range results {
		results[i].RecordID = id
	}
	return results
}
