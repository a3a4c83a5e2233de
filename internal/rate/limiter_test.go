package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cfg), mr
}

func loginConfig() Config {
	return Config{
		EnableIPThrottle:        true,
		EnableRefreshThrottle:   true,
		MaxLoginAttempts:        3,
		LoginCooldownDuration:   time.Minute,
		MaxRefreshAttempts:      2,
		RefreshCooldownDuration: time.Minute,
	}
}

func TestLimiterLoginBudget(t *testing.T) {
	l, mr := newRedisLimiter(t, loginConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, l.CheckLogin(ctx, "alice@example.com", "10.0.0.1"))
		require.NoError(t, l.IncrementLogin(ctx, "alice@example.com", "10.0.0.1"))
	}
	require.ErrorIs(t, l.CheckLogin(ctx, "alice@example.com", "10.0.0.1"), ErrRateLimited)

	attempts, err := l.LoginFailures(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
	require.True(t, mr.Exists("rl:ip:10.0.0.1"))

	mr.FastForward(time.Minute + time.Second)
	require.NoError(t, l.CheckLogin(ctx, "alice@example.com", "10.0.0.1"))
}

func TestLimiterIPThrottleSpansIdentifiers(t *testing.T) {
	l, _ := newRedisLimiter(t, loginConfig())
	ctx := context.Background()

	require.NoError(t, l.IncrementLogin(ctx, "a@example.com", "10.0.0.9"))
	require.NoError(t, l.IncrementLogin(ctx, "b@example.com", "10.0.0.9"))
	require.NoError(t, l.IncrementLogin(ctx, "c@example.com", "10.0.0.9"))

	require.ErrorIs(t, l.CheckLogin(ctx, "d@example.com", "10.0.0.9"), ErrRateLimited)
	require.NoError(t, l.CheckLogin(ctx, "d@example.com", "10.0.0.10"))
}

func TestLimiterResetLogin(t *testing.T) {
	l, mr := newRedisLimiter(t, loginConfig())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = l.IncrementLogin(ctx, "bob@example.com", "10.0.0.2")
	}
	require.NoError(t, l.ResetLogin(ctx, "bob@example.com", "10.0.0.2"))
	require.False(t, mr.Exists("rl:login:bob@example.com"))
	require.NoError(t, l.CheckLogin(ctx, "bob@example.com", "10.0.0.2"))
}

func TestLimiterRefreshPerSubject(t *testing.T) {
	l, _ := newRedisLimiter(t, loginConfig())
	ctx := context.Background()

	require.NoError(t, l.CheckRefresh(ctx, "42"))
	require.NoError(t, l.CheckRefresh(ctx, "42"))
	require.ErrorIs(t, l.CheckRefresh(ctx, "42"), ErrRateLimited)
	require.NoError(t, l.CheckRefresh(ctx, "43"))
}

func TestLimiterRefreshDisabled(t *testing.T) {
	cfg := loginConfig()
	cfg.EnableRefreshThrottle = false
	l, mr := newRedisLimiter(t, cfg)

	for i := 0; i < 10; i++ {
		require.NoError(t, l.CheckRefresh(context.Background(), "42"))
	}
	require.False(t, mr.Exists("rl:refresh:42"))
}

func TestLimiterRedisUnavailable(t *testing.T) {
	l, mr := newRedisLimiter(t, loginConfig())
	mr.Close()

	require.ErrorIs(t, l.CheckLogin(context.Background(), "x", ""), ErrRedisUnavailable)
	require.ErrorIs(t, l.IncrementLogin(context.Background(), "x", ""), ErrRedisUnavailable)
	require.ErrorIs(t, l.CheckRefresh(context.Background(), "42"), ErrRedisUnavailable)
}

func TestLimiterKeysUsePrefixAndCarryTTL(t *testing.T) {
	cfg := loginConfig()
	cfg.Prefix = "rvk"
	l, mr := newRedisLimiter(t, cfg)
	ctx := context.Background()

	require.NoError(t, l.IncrementLogin(ctx, "carol@example.com", "10.0.0.3"))
	require.NoError(t, l.CheckRefresh(ctx, "7"))

	for _, key := range []string{"rvk:rl:login:carol@example.com", "rvk:rl:ip:10.0.0.3", "rvk:rl:refresh:7"} {
		require.True(t, mr.Exists(key), key)
		require.Equal(t, time.Minute, mr.TTL(key), key)
	}
}

func TestLimiterRearmsCounterWithoutTTL(t *testing.T) {
	l, mr := newRedisLimiter(t, loginConfig())
	ctx := context.Background()

	require.NoError(t, mr.Set("rl:login:dave@example.com", "1"))
	require.NoError(t, l.IncrementLogin(ctx, "dave@example.com", ""))
	require.Equal(t, time.Minute, mr.TTL("rl:login:dave@example.com"))

	n, err := l.LoginFailures(ctx, "dave@example.com")
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
