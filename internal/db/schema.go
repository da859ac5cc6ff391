package db

import (
	"context"

	"github.com/rotisserie/eris"
)

// Schema creates the tables validated data is forwarded into. Every table
// is keyed so re-forwarding the same batch is idempotent.
const Schema = `
CREATE SCHEMA IF NOT EXISTS sports;

CREATE TABLE IF NOT EXISTS sports.games (
	id          TEXT PRIMARY KEY,
	sport       TEXT NOT NULL DEFAULT '',
	season      INTEGER NOT NULL DEFAULT 0,
	game_time   TEXT NOT NULL,
	home_team   TEXT NOT NULL,
	away_team   TEXT NOT NULL,
	home_score  INTEGER,
	away_score  INTEGER,
	status      TEXT NOT NULL,
	venue       TEXT NOT NULL DEFAULT '',
	provider    TEXT NOT NULL DEFAULT '',
	source_url  TEXT NOT NULL DEFAULT '',
	report_id   TEXT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sports.player_stats (
	id          TEXT PRIMARY KEY,
	player_id   TEXT NOT NULL,
	team_id     TEXT NOT NULL,
	game_id     TEXT NOT NULL DEFAULT '',
	season      INTEGER NOT NULL DEFAULT 0,
	scope       TEXT NOT NULL DEFAULT '',
	stats       JSONB NOT NULL,
	provider    TEXT NOT NULL DEFAULT '',
	report_id   TEXT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sports.simulations (
	id           TEXT PRIMARY KEY,
	game_id      TEXT NOT NULL,
	home_win     DOUBLE PRECISION NOT NULL,
	away_win     DOUBLE PRECISION NOT NULL,
	tie          DOUBLE PRECISION,
	simulations  INTEGER NOT NULL,
	distribution JSONB,
	report_id    TEXT NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sports.qc_check_failures (
	report_id  TEXT NOT NULL,
	record_id  TEXT NOT NULL,
	check_name TEXT NOT NULL,
	status     TEXT NOT NULL,
	message    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sports.qc_reports (
	id         TEXT PRIMARY KEY,
	report     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_player_stats_player ON sports.player_stats(player_id);
CREATE INDEX IF NOT EXISTS idx_qc_check_failures_report ON sports.qc_check_failures(report_id);
CREATE INDEX IF NOT EXISTS idx_qc_reports_created_at ON sports.qc_reports(created_at);
`

// Migrate applies Schema.
func Migrate(ctx context.Context, pool Pool) error {
	_, err := pool.Exec(ctx, Schema)
	return eris.Wrap(err, "db: migrate")
}
