package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{MaxAttempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), "upsert games", func(context.Context) error {
		calls++
		if calls < 3 {
			return Transient(errors.New("warehouse busy"), 0)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	perm := errors.New("column does not exist")
	err := Retry(context.Background(), fastPolicy(5), "upsert", func(context.Context) error {
		calls++
		return perm
	})
	assert.ErrorIs(t, err, perm)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(4), "upsert", func(context.Context) error {
		calls++
		return Transient(errors.New("still busy"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, Policy{MaxAttempts: 5, InitialBackoff: time.Hour}, "upsert", func(context.Context) error {
		calls++
		cancel()
		return Transient(errors.New("busy"), 0)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_CustomRetryable(t *testing.T) {
	calls := 0
	p := fastPolicy(3)
	p.Retryable = func(error) bool { return true }
	_ = Retry(context.Background(), p, "webhook", func(context.Context) error {
		calls++
		return errors.New("anything")
	})
	assert.Equal(t, 3, calls)
}

func TestRetryValue(t *testing.T) {
	calls := 0
	n, err := RetryValue(context.Background(), fastPolicy(3), "upsert", func(context.Context) (int64, error) {
		calls++
		if calls == 1 {
			return 0, Transient(errors.New("busy"), 0)
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2}.normalize()
	p.Jitter = 0
	assert.Equal(t, 100*time.Millisecond, p.backoff(0))
	assert.Equal(t, 400*time.Millisecond, p.backoff(2))
	assert.Equal(t, time.Second, p.backoff(10))

	p.Jitter = 0.5
	for i := 0; i < 50; i++ {
		d := p.backoff(0)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestNewPolicy(t *testing.T) {
	p := NewPolicy(5, 0, 2*time.Second)
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Equal(t, DefaultPolicy().InitialBackoff, p.InitialBackoff)
	assert.Equal(t, 2*time.Second, p.MaxBackoff)
}
