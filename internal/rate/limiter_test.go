package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(rdb, cfg), mr
}

func TestLoginBudget(t *testing.T) {
	l, mr := newTestLimiter(t, Config{Prefix: "shop", MaxAttempts: 3, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		if err := l.CheckLogin(ctx, "+1555", ""); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if err := l.IncrementLogin(ctx, "+1555", ""); err != nil {
			t.Fatalf("increment %d: %v", i, err)
		}
	}
	if err := l.IncrementLogin(ctx, "+1555", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("third failure should exhaust the budget, got %v", err)
	}
	if err := l.CheckLogin(ctx, "+1555", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.CheckLogin(ctx, "+1666", ""); err != nil {
		t.Fatalf("other numbers are unaffected: %v", err)
	}

	if ttl := mr.TTL("shop:rl:phone:+1555"); ttl != time.Minute {
		t.Fatalf("ttl = %v", ttl)
	}
	mr.FastForward(time.Minute + time.Second)
	if err := l.CheckLogin(ctx, "+1555", ""); err != nil {
		t.Fatalf("window should have reset: %v", err)
	}
}

func TestResetLoginKeepsAddressCounter(t *testing.T) {
	l, _ := newTestLimiter(t, Config{Prefix: "shop", MaxAttempts: 2, Cooldown: time.Minute, ThrottleIP: true})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "+1555", "10.0.0.1")
	if n, err := l.Attempts(ctx, "+1555"); err != nil || n != 1 {
		t.Fatalf("attempts = %d, %v", n, err)
	}
	if err := l.ResetLogin(ctx, "+1555"); err != nil {
		t.Fatalf("ResetLogin: %v", err)
	}
	if n, _ := l.Attempts(ctx, "+1555"); n != 0 {
		t.Fatalf("attempts after reset = %d", n)
	}

	_ = l.IncrementLogin(ctx, "+1777", "10.0.0.1")
	if err := l.CheckLogin(ctx, "+1888", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("address budget should be spent, got %v", err)
	}
	if err := l.CheckLogin(ctx, "+1888", "10.0.0.2"); err != nil {
		t.Fatalf("other address: %v", err)
	}
}

func TestLimiterReportsRedisFailure(t *testing.T) {
	l, mr := newTestLimiter(t, Config{Prefix: "shop", MaxAttempts: 2, Cooldown: time.Minute})
	mr.SetError("LOADING")

	if err := l.CheckLogin(context.Background(), "+1555", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if err := l.IncrementLogin(context.Background(), "+1555", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
