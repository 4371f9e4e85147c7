package rate

import "errors"

var (
	// ErrRateLimited reports a phone number or address over its budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps counter read and write failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
