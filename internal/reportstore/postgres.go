package reportstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sports-qc/internal/db"
	"github.com/sells-group/sports-qc/internal/model"
)

// PostgresStore keeps reports in sports.qc_reports (see db.Schema).
type PostgresStore struct {
	pool    db.Pool
	ttl     time.Duration
	closeFn func()
}

// NewPostgres wraps a pool. closeFn, if non-nil, runs on Close. A zero ttl
// uses DefaultTTL; a negative ttl keeps reports forever.
func NewPostgres(pool db.Pool, ttl time.Duration, closeFn func()) *PostgresStore {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &PostgresStore{pool: pool, ttl: ttl, closeFn: closeFn}
}

// Save upserts the report.
func (s *PostgresStore) Save(ctx context.Context, r *model.Report) error {
	b, err := encode(r)
	if err != nil {
		return err
	}
	var expires *time.Time
	if s.ttl > 0 {
		t := time.Now().UTC().Add(s.ttl)
		expires = &t
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO sports.qc_reports (id, report, created_at, expires_at) VALUES ($1, $2, now(), $3)
		 ON CONFLICT (id) DO UPDATE SET report = EXCLUDED.report, expires_at = EXCLUDED.expires_at`,
		r.ID, b, expires,
	)
	return eris.Wrapf(err, "postgres: save report %s", r.ID)
}

// Get returns an unexpired report or nil.
func (s *PostgresStore) Get(ctx context.Context, id string) (*model.Report, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT report FROM sports.qc_reports WHERE id = $1 AND (expires_at IS NULL OR expires_at > now())`,
		id,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get report %s", id)
	}
	return decode(id, body)
}

// ListRecent returns unexpired ids by creation time, newest first.
func (s *PostgresStore) ListRecent(ctx context.Context, prefix string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM sports.qc_reports
		 WHERE starts_with(id, $1) AND (expires_at IS NULL OR expires_at > now())
		 ORDER BY created_at DESC, id DESC LIMIT $2`,
		prefix, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reports")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return ids, eris.Wrap(err, "postgres: scan report ids")
}

// Close releases the pool when the store owns it.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
