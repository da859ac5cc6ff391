package reportstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sports-qc/internal/model"
)

const scanCount = 100

// RedisStore stores each report as a JSON string under Key(id) with an
// expiry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to addr. A zero ttl uses DefaultTTL; a negative ttl
// keeps reports forever.
func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrapf(err, "redis: ping %s", addr)
	}
	return NewRedisWithClient(client, ttl), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Save writes the report with SET EX.
func (s *RedisStore) Save(ctx context.Context, r *model.Report) error {
	b, err := encode(r)
	if err != nil {
		return err
	}
	exp := s.ttl
	if exp < 0 {
		exp = 0
	}
	return eris.Wrapf(s.client.Set(ctx, Key(r.ID), b, exp).Err(), "redis: set report %s", r.ID)
}

// Get reads a report, returning nil on a miss.
func (s *RedisStore) Get(ctx context.Context, id string) (*model.Report, error) {
	b, err := s.client.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "redis: get report %s", id)
	}
	return decode(id, b)
}

// ListRecent walks matching keys with SCAN.
func (s *RedisStore) ListRecent(ctx context.Context, prefix string, limit int) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)
	match := Key(prefix) + "*"
	for {
		keys, next, err := s.client.Scan(ctx, cursor, match, scanCount).Result()
		if err != nil {
			return nil, eris.Wrap(err, "redis: scan reports")
		}
		for _, k := range keys {
			ids = append(ids, strings.TrimPrefix(k, KeyPrefix))
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return newestFirst(ids, limit), nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
