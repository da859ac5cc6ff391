package reportstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgres(mock, time.Hour, nil), mock
}

func TestPostgresStore_Save(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO sports.qc_reports .* ON CONFLICT \(id\) DO UPDATE`).
		WithArgs("qc_1_a", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Save(context.Background(), testReport("qc_1_a")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO sports.qc_reports`).
		WithArgs("qc_1_a", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("relation does not exist"))

	err := s.Save(context.Background(), testReport("qc_1_a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: save report qc_1_a")
}

func TestPostgresStore_Get(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	r := testReport("qc_1_a")
	b, err := json.Marshal(r)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT report FROM sports.qc_reports WHERE id = \$1`).
		WithArgs("qc_1_a").
		WillReturnRows(mock.NewRows([]string{"report"}).AddRow(b))

	got, err := s.Get(context.Background(), "qc_1_a")
	require.NoError(t, err)
	assert.Equal(t, r, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT report FROM sports.qc_reports`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRecent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id FROM sports.qc_reports`).
		WithArgs("qc_", 2).
		WillReturnRows(mock.NewRows([]string{"id"}).AddRow("qc_2_b").AddRow("qc_1_a"))

	ids, err := s.ListRecent(context.Background(), "qc_", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"qc_2_b", "qc_1_a"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Close(t *testing.T) {
	closed := false
	s := NewPostgres(nil, 0, func() { closed = true })
	require.NoError(t, s.Close())
	assert.True(t, closed)
	assert.Equal(t, DefaultTTL, s.ttl)
}
