package reportstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/sports-qc/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Times are stored
// as unix milliseconds; an expires_at of zero never expires.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path, configures WAL mode
// and creates the reports table. A zero ttl uses DefaultTTL; a negative ttl
// keeps reports forever.
func NewSQLite(ctx context.Context, dsn string, ttl time.Duration) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	if ttl == 0 {
		ttl = DefaultTTL
	}
	s := &SQLiteStore{db: db, ttl: ttl, now: time.Now}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS qc_reports (
	id         TEXT PRIMARY KEY,
	report     TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_qc_reports_created_at ON qc_reports(created_at);
CREATE INDEX IF NOT EXISTS idx_qc_reports_expires_at ON qc_reports(expires_at);
`

// Migrate creates the reports table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save inserts or replaces the report.
func (s *SQLiteStore) Save(ctx context.Context, r *model.Report) error {
	b, err := encode(r)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	var expires int64
	if s.ttl > 0 {
		expires = now.Add(s.ttl).UnixMilli()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO qc_reports (id, report, created_at, expires_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET report = excluded.report, expires_at = excluded.expires_at`,
		r.ID, string(b), now.UnixMilli(), expires,
	)
	return eris.Wrapf(err, "sqlite: save report %s", r.ID)
}

// Get returns an unexpired report or nil.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Report, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT report FROM qc_reports WHERE id = ? AND (expires_at = 0 OR expires_at > ?)`,
		id, s.now().UTC().UnixMilli(),
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get report %s", id)
	}
	return decode(id, []byte(body))
}

// ListRecent returns unexpired ids by creation time, newest first.
func (s *SQLiteStore) ListRecent(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM qc_reports
		 WHERE substr(id, 1, length(?)) = ? AND (expires_at = 0 OR expires_at > ?)
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		prefix, prefix, s.now().UTC().UnixMilli(), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reports")
	}
	defer rows.Close() //nolint:errcheck

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan report id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: iterate reports")
}

// DeleteExpired removes expired reports and returns how many were deleted.
func (s *SQLiteStore) DeleteExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM qc_reports WHERE expires_at != 0 AND expires_at <= ?`,
		s.now().UTC().UnixMilli(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired reports")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}
