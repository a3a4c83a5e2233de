package rate

import "errors"

// ErrRateLimited means the caller's budget for the current window is spent.
var ErrRateLimited = errors.New("rate limited")

// ErrRedisUnavailable wraps every Redis failure of [Limiter].
var ErrRedisUnavailable = errors.New("rate limiter: redis unavailable")
