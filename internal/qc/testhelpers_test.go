package qc

import (
	"fmt"
	"time"

	"github.com/sells-group/sports-qc/internal/model"
)

var testNow = time.Date(2025, time.June, 15, 17, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{Clock: func() time.Time { return testNow }}
}

func ptr[T any](v T) *T { return &v }

func battingLine(id string, avg float64) model.PlayerStatLine {
	return model.PlayerStatLine{
		ID:       id,
		PlayerID: "p-" + id,
		TeamID:   "tex",
		Batting:  &model.BattingStats{AtBats: 4, Hits: 1, Avg: ptr(avg)},
		Source:   model.SourceMetadata{Provider: model.ProviderOfficialAPI},
	}
}

// clusteredLines returns n lines with batting averages spread evenly from
// .250 in .0025 steps.
func clusteredLines(n int) []model.PlayerStatLine {
	lines := make([]model.PlayerStatLine, n)
	for i := range lines {
		lines[i] = battingLine(fmt.Sprintf("l%02d", i), 0.250+float64(i)*0.0025)
	}
	return lines
}

func finalGame(id string) model.GameRecord {
	return model.GameRecord{
		ID:        id,
		Timestamp: "2025-04-12T18:05:00-05:00",
		Season:    2025,
		Sport:     "mlb",
		HomeTeam:  "Texas Rangers",
		AwayTeam:  "Houston Astros",
		HomeScore: ptr(5),
		AwayScore: ptr(3),
		Status:    model.GameFinal,
		Source:    model.SourceMetadata{Provider: model.ProviderOfficialAPI},
	}
}

func simulation(id string, home, away float64) model.SimulationResult {
	return model.SimulationResult{
		ID:             id,
		GameID:         "g-" + id,
		WinProbability: model.WinProbability{Home: home, Away: away},
		Simulations:    10000,
	}
}

func findOutlier(results []model.OutlierResult, metric, recordID string) (model.OutlierResult, bool) {
	for _, r := range results {
		if r.Metric == metric && r.RecordID == recordID {
			return r, true
		}
	}
	return model.OutlierResult{}, false
}
