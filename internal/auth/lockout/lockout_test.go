package lockout_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/workbench/internal/auth/lockout"
	"github.com/aussiebroadwan/workbench/internal/auth/store"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

var testCfg = lockout.Config{MaxFailures: 3, Window: time.Minute}

// exerciseLimiter runs the shared contract. advance moves the limiter's
// notion of time forward; nil skips the expiry assertions.
func exerciseLimiter(t *testing.T, l lockout.Limiter, advance func(time.Duration)) {
	t.Helper()
	ctx := context.Background()
	const key = "01HUSER"

	require.NoError(t, l.Check(ctx, key))
	require.NoError(t, l.RecordFailure(ctx, key))
	require.NoError(t, l.RecordFailure(ctx, key))
	require.NoError(t, l.Check(ctx, key))

	require.ErrorIs(t, l.RecordFailure(ctx, key), lockout.ErrLocked)
	require.ErrorIs(t, l.Check(ctx, key), lockout.ErrLocked)
	require.NoError(t, l.Check(ctx, "other"), "keys are independent")

	require.NoError(t, l.Reset(ctx, key))
	require.NoError(t, l.Check(ctx, key))

	if advance == nil {
		return
	}
	for range testCfg.MaxFailures {
		_ = l.RecordFailure(ctx, key)
	}
	require.ErrorIs(t, l.Check(ctx, key), lockout.ErrLocked)
	advance(testCfg.Window + time.Second)
	require.NoError(t, l.Check(ctx, key), "lock lapses with the window")
	require.NoError(t, l.RecordFailure(ctx, key), "counter restarts")
}

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := lockout.NewRedisLimiter(client, testCfg)
	exerciseLimiter(t, l, mr.FastForward)
	require.NoError(t, l.Ping(context.Background()))
}

func TestRedisLimiter_CounterAlwaysExpires(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := lockout.NewRedisLimiter(client, testCfg)

	t.Run("window runs from the first failure", func(t *testing.T) {
		const key = "workbench:mfa:fail:01HFIRST"
		require.NoError(t, l.RecordFailure(ctx, "01HFIRST"))
		require.Equal(t, testCfg.Window, mr.TTL(key))

		mr.FastForward(20 * time.Second)
		require.NoError(t, l.RecordFailure(ctx, "01HFIRST"))
		require.Equal(t, testCfg.Window-20*time.Second, mr.TTL(key), "later failures keep the original expiry")
	})

	t.Run("counter without a TTL is healed", func(t *testing.T) {
		const key = "workbench:mfa:fail:01HSTUCK"
		require.NoError(t, mr.Set(key, "1"))
		require.Zero(t, mr.TTL(key))

		require.NoError(t, l.RecordFailure(ctx, "01HSTUCK"))
		require.Equal(t, testCfg.Window, mr.TTL(key))
		got, err := mr.Get(key)
		require.NoError(t, err)
		require.Equal(t, "2", got)
	})
}

func TestRedisLimiter_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	l := lockout.NewRedisLimiter(client, testCfg)

	mr.Close()
	ctx := context.Background()
	require.ErrorIs(t, l.Check(ctx, "k"), lockout.ErrUnavailable)
	require.ErrorIs(t, l.RecordFailure(ctx, "k"), lockout.ErrUnavailable)
}

func TestNewRedisClient(t *testing.T) {
	_, err := lockout.NewRedisClient("not a url")
	require.Error(t, err)

	c, err := lockout.NewRedisClient("redis://localhost:6379/2")
	require.NoError(t, err)
	require.Equal(t, 2, c.Options().DB)
	_ = c.Close()
}

func TestStoreLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := lockout.NewStoreLimiter(newFakeAttempts(), testCfg).WithClock(func() time.Time { return now })
	exerciseLimiter(t, l, func(d time.Duration) { now = now.Add(d) })
}

// fakeAttempts mirrors the upsert semantics of the sqlite mfa_attempts table.
type fakeAttempts struct {
	mu   sync.Mutex
	rows map[string]fakeRow
}

type fakeRow struct {
	failures int
	start    time.Time
}

func newFakeAttempts() *fakeAttempts { return &fakeAttempts{rows: map[string]fakeRow{}} }

func (f *fakeAttempts) GetMFAFailures(_ context.Context, userID string) (int, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[userID]
	if !ok {
		return 0, time.Time{}, store.ErrNotFound
	}
	return r.failures, r.start, nil
}

func (f *fakeAttempts) RecordMFAFailure(_ context.Context, userID string, now, windowStartBefore time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[userID]
	if !ok || !r.start.After(windowStartBefore) {
		r = fakeRow{start: now}
	}
	r.failures++
	f.rows[userID] = r
	return r.failures, nil
}

func (f *fakeAttempts) ResetMFAFailures(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, userID)
	return nil
}

func (f *fakeAttempts) DeleteMFAFailuresBefore(_ context.Context, t time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, r := range f.rows {
		if r.start.Before(t) {
			delete(f.rows, k)
			n++
		}
	}
	return n, nil
}
