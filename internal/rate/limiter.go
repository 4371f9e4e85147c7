package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds login throttle tuning.
type Config struct {
	Prefix      string
	MaxAttempts int
	Cooldown    time.Duration
	// ThrottleIP adds a per-address counter next to the per-phone one.
	ThrottleIP bool
}

// Limiter counts failed logins per phone number and optionally per client
// address.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckLogin returns ErrRateLimited when phone or ip has used up its
// budget. It does not count the attempt.
func (l *Limiter) CheckLogin(ctx context.Context, phone, ip string) error {
	for _, key := range l.keys(phone, ip) {
		if err := l.checkCounter(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// IncrementLogin records a failed attempt. It returns ErrRateLimited when
// this attempt exhausted the budget.
func (l *Limiter) IncrementLogin(ctx context.Context, phone, ip string) error {
	var limited bool
	for _, key := range l.keys(phone, ip) {
		count, err := l.incrementWithTTL(ctx, key)
		if err != nil {
			return err
		}
		if count >= int64(l.config.MaxAttempts) {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// ResetLogin clears the per-phone counter after a successful login. The
// address counter is left to expire so one good account cannot launder a
// guessing run from the same host.
func (l *Limiter) ResetLogin(ctx context.Context, phone string) error {
	if err := l.redis.Del(ctx, l.phoneKey(phone)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the failed-attempt count recorded for phone.
func (l *Limiter) Attempts(ctx context.Context, phone string) (int, error) {
	count, err := l.redis.Get(ctx, l.phoneKey(phone)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) keys(phone, ip string) []string {
	keys := []string{l.phoneKey(phone)}
	if l.config.ThrottleIP && ip != "" {
		keys = append(keys, l.config.Prefix+":rl:ip:"+ip)
	}
	return keys
}

func (l *Limiter) phoneKey(phone string) string {
	return l.config.Prefix + ":rl:phone:" + phone
}

func (l *Limiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	if count >= int64(l.config.MaxAttempts) {
		return ErrRateLimited
	}

	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed window: only the first hit sets the TTL.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Cooldown).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
