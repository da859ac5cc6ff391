package ingest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sports-qc/internal/db"
	"github.com/sells-group/sports-qc/internal/model"
	"github.com/sells-group/sports-qc/internal/resilience"
)

// Warehouse tables.
const (
	TableGames         = "sports.games"
	TablePlayerStats   = "sports.player_stats"
	TableSimulations   = "sports.simulations"
	TableCheckFailures = "sports.qc_check_failures"
)

var (
	gameColumns = []string{
		"id", "sport", "season", "game_time", "home_team", "away_team",
		"home_score", "away_score", "status", "venue", "provider", "source_url", "report_id",
	}
	statColumns = []string{
		"id", "player_id", "team_id", "game_id", "season", "scope", "stats", "provider", "report_id",
	}
	simulationColumns = []string{
		"id", "game_id", "home_win", "away_win", "tie", "simulations", "distribution", "report_id",
	}
	failureColumns = []string{
		"report_id", "record_id", "check_name", "status", "message", "created_at",
	}
)

// PostgresSink upserts validated records into the warehouse schema created
// by db.Migrate.
type PostgresSink struct {
	pool    db.Pool
	policy  resilience.Policy
	breaker *resilience.Breaker
}

// NewPostgresSink creates a sink on pool. A nil breaker gets a default one.
func NewPostgresSink(pool db.Pool, policy resilience.Policy, breaker *resilience.Breaker) *PostgresSink {
	if breaker == nil {
		breaker = resilience.NewBreaker("warehouse", 0, 0)
	}
	return &PostgresSink{pool: pool, policy: policy, breaker: breaker}
}

// Forward upserts games, player stats and simulations concurrently, then
// appends the report's failed and warning checks.
func (s *PostgresSink) Forward(ctx context.Context, r *model.Report, batch model.Batch) (map[string]int64, error) {
	if r == nil {
		return nil, eris.New("ingest: forward: nil report")
	}

	statRows, err := playerStatRows(batch.PlayerStats, r.ID)
	if err != nil {
		return nil, err
	}
	simRows, err := simulationRows(batch.Simulations, r.ID)
	if err != nil {
		return nil, err
	}

	jobs := []struct {
		table string
		cols  []string
		rows  [][]any
	}{
		{TableGames, gameColumns, gameRows(batch.Games, r.ID)},
		{TablePlayerStats, statColumns, statRows},
		{TableSimulations, simulationColumns, simRows},
	}

	var mu sync.Mutex
	counts := make(map[string]int64, len(jobs)+1)

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		if len(job.rows) == 0 {
			continue
		}
		g.Go(func() error {
			n, err := s.upsert(gctx, db.UpsertConfig{
				Table:        job.table,
				Columns:      job.cols,
				ConflictKeys: []string{"id"},
			}, job.rows)
			if err != nil {
				return err
			}
			mu.Lock()
			counts[job.table] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return counts, err
	}

	failures := failureRows(r)
	if len(failures) > 0 {
		err := s.breaker.Do(ctx, func(ctx context.Context) error {
			return resilience.Retry(ctx, s.policy, "copy "+TableCheckFailures, func(ctx context.Context) error {
				n, err := db.CopyFrom(ctx, s.pool, TableCheckFailures, failureColumns, failures)
				if err == nil {
					counts[TableCheckFailures] = n
				}
				return err
			})
		})
		if err != nil {
			return counts, eris.Wrap(err, "ingest: record check failures")
		}
	}

	zap.L().Debug("ingest: forwarded to warehouse",
		zap.String("report_id", r.ID),
		zap.Any("rows", counts),
	)
	return counts, nil
}

func (s *PostgresSink) upsert(ctx context.Context, cfg db.UpsertConfig, rows [][]any) (int64, error) {
	var n int64
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		n, err = resilience.RetryValue(ctx, s.policy, "upsert "+cfg.Table, func(ctx context.Context) (int64, error) {
			return db.BulkUpsert(ctx, s.pool, cfg, rows)
		})
		return err
	})
	if err != nil {
		return 0, eris.Wrapf(err, "ingest: upsert %s", cfg.Table)
	}
	return n, nil
}

// lastByID keeps the last row for each id so a single INSERT never touches
// the same key twice. Order of first appearance is preserved.
func lastByID(ids []string, rows [][]any) [][]any {
	pos := make(map[string]int, len(ids))
	out := make([][]any, 0, len(rows))
	for i, id := range ids {
		if j, ok := pos[id]; ok {
			out[j] = rows[i]
			continue
		}
		pos[id] = len(out)
		out = append(out, rows[i])
	}
	return out
}

func gameRows(games []model.GameRecord, reportID string) [][]any {
	ids := make([]string, len(games))
	rows := make([][]any, len(games))
	for i, g := range games {
		ids[i] = g.ID
		rows[i] = []any{
			g.ID, g.Sport, g.Season, g.Timestamp, g.HomeTeam, g.AwayTeam,
			nullable(g.HomeScore), nullable(g.AwayScore), string(g.Status), g.Venue,
			string(g.Source.Provider), g.Source.URL, reportID,
		}
	}
	return lastByID(ids, rows)
}

type statGroups struct {
	Batting  *model.BattingStats  `json:"batting,omitempty"`
	Pitching *model.PitchingStats `json:"pitching,omitempty"`
	Tracking *model.PitchTracking `json:"tracking,omitempty"`
}

func playerStatRows(lines []model.PlayerStatLine, reportID string) ([][]any, error) {
	ids := make([]string, len(lines))
	rows := make([][]any, len(lines))
	for i, l := range lines {
		stats, err := json.Marshal(statGroups{Batting: l.Batting, Pitching: l.Pitching, Tracking: l.Tracking})
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: encode stats for %s", l.Key())
		}
		ids[i] = l.Key()
		rows[i] = []any{
			l.Key(), l.PlayerID, l.TeamID, l.GameID, l.Season, string(l.Scope),
			stats, string(l.Source.Provider), reportID,
		}
	}
	return lastByID(ids, rows), nil
}

func simulationRows(sims []model.SimulationResult, reportID string) ([][]any, error) {
	ids := make([]string, len(sims))
	rows := make([][]any, len(sims))
	for i, s := range sims {
		var dist any
		if len(s.ScoreDistribution) > 0 {
			b, err := json.Marshal(s.ScoreDistribution)
			if err != nil {
				return nil, eris.Wrapf(err, "ingest: encode distribution for %s", s.ID)
			}
			dist = b
		}
		ids[i] = s.ID
		rows[i] = []any{
			s.ID, s.GameID, s.WinProbability.Home, s.WinProbability.Away,
			nullable(s.WinProbability.Tie), s.Simulations, dist, reportID,
		}
	}
	return lastByID(ids, rows), nil
}

func failureRows(r *model.Report) [][]any {
	var rows [][]any
	for _, c := range r.Checks {
		if c.Status == model.CheckPass {
			continue
		}
		rows = append(rows, []any{r.ID, c.RecordID, c.Check, string(c.Status), c.Message, r.GeneratedAt})
	}
	return rows
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
