package rate

import "errors"

var (
	// ErrRateLimited is returned when a key has used up its window.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps counter failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
