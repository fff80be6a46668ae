package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, cfg), mr
}

func TestLimiterLoginBudget(t *testing.T) {
	l, _ := newLimiter(t, Config{
		MaxLoginAttempts:      3,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.CheckLogin(ctx, "user-1", ""); err != nil {
			t.Fatalf("attempt %d should be allowed, got %v", i+1, err)
		}
		if err := l.IncrementLogin(ctx, "user-1", ""); err != nil {
			t.Fatalf("increment %d failed: %v", i+1, err)
		}
	}

	if err := l.IncrementLogin(ctx, "user-1", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited past the budget, got %v", err)
	}
	if err := l.CheckLogin(ctx, "user-1", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on check, got %v", err)
	}

	// A different user is unaffected.
	if err := l.CheckLogin(ctx, "user-2", ""); err != nil {
		t.Fatalf("unrelated user must not be limited, got %v", err)
	}
}

func TestLimiterWindowExpiry(t *testing.T) {
	l, mr := newLimiter(t, Config{
		MaxLoginAttempts:      1,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "user-1", "")
	if err := l.IncrementLogin(ctx, "user-1", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if err := l.CheckLogin(ctx, "user-1", ""); err != nil {
		t.Fatalf("window expiry must reset the budget, got %v", err)
	}
}

func TestLimiterIPThrottle(t *testing.T) {
	l, _ := newLimiter(t, Config{
		EnableIPThrottle:      true,
		MaxLoginAttempts:      2,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	// Different users, same IP: the IP counter trips.
	_ = l.IncrementLogin(ctx, "user-1", "10.0.0.9")
	_ = l.IncrementLogin(ctx, "user-2", "10.0.0.9")
	if err := l.IncrementLogin(ctx, "user-3", "10.0.0.9"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited for shared IP, got %v", err)
	}
}

func TestLimiterResetLogin(t *testing.T) {
	l, _ := newLimiter(t, Config{
		MaxLoginAttempts:      1,
		LoginCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	_ = l.IncrementLogin(ctx, "user-1", "")
	if err := l.ResetLogin(ctx, "user-1", ""); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	n, err := l.LoginAttempts(ctx, "user-1")
	if err != nil || n != 0 {
		t.Fatalf("expected zero attempts after reset, got n=%d err=%v", n, err)
	}
	if err := l.CheckLogin(ctx, "user-1", ""); err != nil {
		t.Fatalf("expected clean budget after reset, got %v", err)
	}
}

func TestLimiterRefreshBudget(t *testing.T) {
	l, _ := newLimiter(t, Config{
		EnableRefreshThrottle:   true,
		MaxRefreshAttempts:      2,
		RefreshCooldownDuration: time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.CheckRefresh(ctx, "sess-1"); err != nil {
			t.Fatalf("refresh %d should be allowed, got %v", i+1, err)
		}
	}
	if err := l.CheckRefresh(ctx, "sess-1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestLimiterRefreshDisabled(t *testing.T) {
	l, _ := newLimiter(t, Config{EnableRefreshThrottle: false})
	for i := 0; i < 10; i++ {
		if err := l.CheckRefresh(context.Background(), "sess-1"); err != nil {
			t.Fatalf("disabled throttle must never limit, got %v", err)
		}
	}
}

func TestLimiterRedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	l := New(client, Config{MaxLoginAttempts: 3, LoginCooldownDuration: time.Minute})

	mr.Close()

	if err := l.IncrementLogin(context.Background(), "user-1", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
