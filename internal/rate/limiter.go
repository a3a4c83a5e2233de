package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	// Prefix namespaces the Redis keys, normally the revocation prefix.
	Prefix                  string
	EnableIPThrottle        bool
	EnableRefreshThrottle   bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

// hitScript increments a fixed-window counter and arms its expiry on the
// first hit, or on any hit that finds the key without a TTL.
var hitScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 or redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// Limiter keeps login and refresh counters in Redis so every engine sharing
// the client shares the budget.
type Limiter struct {
	redis redis.UniversalClient
	cfg   Config
	keys  keyspace
}

// New creates a [Limiter] backed by redisClient.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{redis: redisClient, cfg: cfg, keys: newKeyspace(cfg.Prefix)}
}

func (l *Limiter) loginKeys(identifier, ip string) []string {
	keys := []string{l.keys.login(identifier)}
	if l.cfg.EnableIPThrottle && ip != "" {
		keys = append(keys, l.keys.loginIP(ip))
	}
	return keys
}

// CheckLogin rejects the attempt when the identifier, or the IP when IP
// throttling is on, has used up its failure budget. It does not count.
func (l *Limiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	// Pipelined GETs rather than MGET: the keys may live in different
	// cluster slots.
	keys := l.loginKeys(identifier, ip)
	cmds := make([]*redis.StringCmd, len(keys))
	_, err := l.redis.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = p.Get(ctx, key)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return unavailable(err)
	}
	for _, cmd := range cmds {
		n, err := cmd.Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return unavailable(err)
		}
		if n >= int64(l.cfg.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// IncrementLogin counts one failed login.
func (l *Limiter) IncrementLogin(ctx context.Context, identifier, ip string) error {
	limited := false
	for _, key := range l.loginKeys(identifier, ip) {
		n, err := l.hit(ctx, key, l.cfg.LoginCooldownDuration)
		if err != nil {
			return err
		}
		if n > int64(l.cfg.MaxLoginAttempts) {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// ResetLogin forgets the failures of identifier (and ip) after a successful
// login.
func (l *Limiter) ResetLogin(ctx context.Context, identifier, ip string) error {
	if err := l.redis.Del(ctx, l.loginKeys(identifier, ip)...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// CheckRefresh counts a refresh for subjectID and rejects it once the window
// budget is spent.
func (l *Limiter) CheckRefresh(ctx context.Context, subjectID string) error {
	if !l.cfg.EnableRefreshThrottle {
		return nil
	}
	n, err := l.hit(ctx, l.keys.refresh(subjectID), l.cfg.RefreshCooldownDuration)
	if err != nil {
		return err
	}
	if n > int64(l.cfg.MaxRefreshAttempts) {
		return ErrRateLimited
	}
	return nil
}

// LoginFailures returns the failure count recorded for identifier. Unknown
// identifiers report zero.
func (l *Limiter) LoginFailures(ctx context.Context, identifier string) (int, error) {
	n, err := l.redis.Get(ctx, l.keys.login(identifier)).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, nil
	case err != nil:
		return 0, unavailable(err)
	case n < 0:
		return 0, nil
	}
	return int(n), nil
}

func (l *Limiter) hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := hitScript.Run(ctx, l.redis, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}
