package reportstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T, ttl time.Duration) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(context.Background(), filepath.Join(t.TempDir(), "reports.db"), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_SaveGet(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t, time.Hour)

	r := testReport("qc_1750006800000_aaaaaaaaaaaa")
	require.NoError(t, s.Save(ctx, r))

	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r, got)

	missing, err := s.Get(ctx, "qc_0_none")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSQLiteStore_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t, time.Hour)

	r := testReport("qc_1_a")
	require.NoError(t, s.Save(ctx, r))
	r.RecordsRejected = 7
	require.NoError(t, s.Save(ctx, r))

	got, err := s.Get(ctx, "qc_1_a")
	require.NoError(t, err)
	assert.Equal(t, 7, got.RecordsRejected)
}

func TestSQLiteStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t, time.Hour)
	base := time.Date(2025, time.June, 15, 17, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	require.NoError(t, s.Save(ctx, testReport("qc_1_a")))

	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	got, err := s.Get(ctx, "qc_1_a")
	require.NoError(t, err)
	assert.Nil(t, got)

	ids, err := s.ListRecent(ctx, "", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)

	n, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteStore_NoExpiry(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t, -1)
	base := time.Date(2025, time.June, 15, 17, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	require.NoError(t, s.Save(ctx, testReport("qc_1_a")))

	s.now = func() time.Time { return base.AddDate(5, 0, 0) }
	got, err := s.Get(ctx, "qc_1_a")
	require.NoError(t, err)
	require.NotNil(t, got)

	n, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLiteStore_ListRecent(t *testing.T) {
	ctx := context.Background()
	s := newTestSQLite(t, time.Hour)
	base := time.Date(2025, time.June, 15, 17, 0, 0, 0, time.UTC)

	for i, id := range []string{"qc_1_a", "qc_2_b", "other_3", "qc_4_d"} {
		at := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return at }
		require.NoError(t, s.Save(ctx, testReport(id)))
	}
	s.now = func() time.Time { return base.Add(10 * time.Minute) }

	ids, err := s.ListRecent(ctx, "qc_", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"qc_4_d", "qc_2_b"}, ids)

	ids, err = s.ListRecent(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, ids, 4)
}
