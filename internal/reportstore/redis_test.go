package reportstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRedisStore(t *testing.T) (*RedisStore, redismock.ClientMock) {
	t.Helper()
	client, mock := redismock.NewClientMock()
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisWithClient(client, time.Hour), mock
}

func TestRedisStore_Save(t *testing.T) {
	s, mock := newMockRedisStore(t)
	r := testReport("qc_1750006800000_aaaaaaaaaaaa")
	b, err := json.Marshal(r)
	require.NoError(t, err)

	mock.ExpectSet("qc:report:qc_1750006800000_aaaaaaaaaaaa", b, time.Hour).SetVal("OK")

	require.NoError(t, s.Save(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_SaveError(t *testing.T) {
	s, mock := newMockRedisStore(t)
	r := testReport("qc_1_a")
	b, err := json.Marshal(r)
	require.NoError(t, err)

	mock.ExpectSet("qc:report:qc_1_a", b, time.Hour).SetErr(errors.New("READONLY"))

	err = s.Save(context.Background(), r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: set report qc_1_a")
}

func TestRedisStore_Get(t *testing.T) {
	s, mock := newMockRedisStore(t)
	r := testReport("qc_1_a")
	b, err := json.Marshal(r)
	require.NoError(t, err)

	mock.ExpectGet("qc:report:qc_1_a").SetVal(string(b))

	got, err := s.Get(context.Background(), "qc_1_a")
	require.NoError(t, err)
	assert.Equal(t, r, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_GetMiss(t *testing.T) {
	s, mock := newMockRedisStore(t)
	mock.ExpectGet("qc:report:nope").RedisNil()

	got, err := s.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_GetError(t *testing.T) {
	s, mock := newMockRedisStore(t)
	mock.ExpectGet("qc:report:x").SetErr(errors.New("connection refused"))

	_, err := s.Get(context.Background(), "x")
	require.Error(t, err)
}

func TestRedisStore_ListRecent(t *testing.T) {
	s, mock := newMockRedisStore(t)

	mock.ExpectScan(0, "qc:report:qc_*", scanCount).
		SetVal([]string{"qc:report:qc_1750006800000_a", "qc:report:qc_1750006800002_c"}, 42)
	mock.ExpectScan(42, "qc:report:qc_*", scanCount).
		SetVal([]string{"qc:report:qc_1750006800001_b"}, 0)

	ids, err := s.ListRecent(context.Background(), "qc_", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"qc_1750006800002_c", "qc_1750006800001_b"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStore_DefaultTTL(t *testing.T) {
	client, _ := redismock.NewClientMock()
	s := NewRedisWithClient(client, 0)
	assert.Equal(t, DefaultTTL, s.ttl)
}

func TestRedisStore_NoExpiry(t *testing.T) {
	client, mock := redismock.NewClientMock()
	s := NewRedisWithClient(client, -1)

	r := testReport("qc_1_a")
	b, err := encode(r)
	require.NoError(t, err)
	mock.ExpectSet("qc:report:qc_1_a", b, 0).SetVal("OK")

	require.NoError(t, s.Save(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}
