package refresh

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/stackshield/sessionguard/cache"
	"github.com/stackshield/sessionguard/token"
)

func newTestToken(t *testing.T, ttl time.Duration) *token.Token {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"sub": "alice",
		"exp": time.Now().Add(ttl).Unix(),
	})
	if err != nil {
		t.Fatal(err)
	}
	raw := "hdr." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
	tok, err := token.Parse(raw)
	if err != nil {
		t.Fatalf("parse test token: %v", err)
	}
	return tok
}

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	storage := cache.NewMemoryStorage()
	c, err := cache.New(storage, []byte("test-secret"), func() string { return "fp" }, 0, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestSchedulerRequiresRefreshFunc(t *testing.T) {
	if _, err := NewScheduler(nil, nil, nil, zerolog.Nop(), 0, 0); !errors.Is(err, ErrNoRefreshFunc) {
		t.Fatalf("expected ErrNoRefreshFunc, got %v", err)
	}
}

func TestSchedulerImmediateFireWhenInsideLeadTime(t *testing.T) {
	c := newTestCache(t)

	fired := make(chan struct{}, 1)
	renewed := newTestToken(t, time.Hour)
	s, err := NewScheduler(c, func(context.Context) (*token.Token, error) {
		select {
		case fired <- struct{}{}:
		default:
		}
		return renewed, nil
	}, nil, zerolog.Nop(), 5*time.Minute, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	// Expires within the lead window, so the first renewal is immediate.
	h := s.ScheduleFor(newTestToken(t, time.Minute))
	defer h.Cancel()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("expected immediate refresh")
	}

	if got := c.Load(); got == nil || got.Raw() != renewed.Raw() {
		t.Fatal("renewed credential not stored in cache")
	}
}

func TestSchedulerFiresAheadOfExpiry(t *testing.T) {
	c := newTestCache(t)

	var mu sync.Mutex
	var firedAt time.Time
	fired := make(chan struct{}, 1)

	s, err := NewScheduler(c, func(context.Context) (*token.Token, error) {
		mu.Lock()
		firedAt = time.Now()
		mu.Unlock()
		select {
		case fired <- struct{}{}:
		default:
		}
		return newTestToken(t, time.Hour), nil
	}, nil, zerolog.Nop(), 50*time.Millisecond, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	expiry := 250 * time.Millisecond
	start := time.Now()
	h := s.ScheduleFor(newTestToken(t, expiry))
	defer h.Cancel()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh never fired")
	}

	mu.Lock()
	elapsed := firedAt.Sub(start)
	mu.Unlock()
	if elapsed >= expiry {
		t.Fatalf("refresh fired after expiry: %v >= %v", elapsed, expiry)
	}
}

func TestSchedulerReschedulesAfterSuccess(t *testing.T) {
	c := newTestCache(t)

	var mu sync.Mutex
	count := 0
	twice := make(chan struct{})

	s, err := NewScheduler(c, func(context.Context) (*token.Token, error) {
		mu.Lock()
		count++
		if count == 2 {
			close(twice)
		}
		mu.Unlock()
		// Each renewed credential is itself inside the lead window, so the
		// chain keeps firing until cancelled.
		return newTestToken(t, 10*time.Millisecond), nil
	}, nil, zerolog.Nop(), 50*time.Millisecond, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	h := s.ScheduleFor(newTestToken(t, time.Millisecond))
	defer h.Cancel()

	select {
	case <-twice:
	case <-time.After(2 * time.Second):
		t.Fatal("expected the chain to re-schedule after success")
	}
}

func TestSchedulerForcedLogoutOnFailure(t *testing.T) {
	c := newTestCache(t)
	if err := c.Store(newTestToken(t, time.Hour)); err != nil {
		t.Fatal(err)
	}

	forced := make(chan struct{})
	s, err := NewScheduler(c, func(context.Context) (*token.Token, error) {
		return nil, errors.New("refresh endpoint down")
	}, func() { close(forced) }, zerolog.Nop(), 5*time.Minute, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	h := s.ScheduleFor(newTestToken(t, time.Minute))

	select {
	case <-forced:
	case <-time.After(2 * time.Second):
		t.Fatal("expected forced logout on refresh failure")
	}

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("chain must end after forced logout")
	}

	if got := c.Load(); got != nil {
		t.Fatalf("expected empty cache after forced logout, got %+v", got)
	}
}

func TestSchedulerCancelPreventsFiring(t *testing.T) {
	c := newTestCache(t)

	fired := make(chan struct{}, 1)
	s, err := NewScheduler(c, func(context.Context) (*token.Token, error) {
		select {
		case fired <- struct{}{}:
		default:
		}
		return newTestToken(t, time.Hour), nil
	}, nil, zerolog.Nop(), 50*time.Millisecond, time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	h := s.ScheduleFor(newTestToken(t, time.Hour))
	h.Cancel()
	h.Cancel() // idempotent

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled chain must end")
	}

	select {
	case <-fired:
		t.Fatal("cancelled chain must not refresh")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSchedulerWatchdogCatchesMissedFire(t *testing.T) {
	c := newTestCache(t)

	fired := make(chan struct{}, 1)
	s, err := NewScheduler(c, func(context.Context) (*token.Token, error) {
		select {
		case fired <- struct{}{}:
		default:
		}
		return newTestToken(t, time.Hour), nil
	}, nil, zerolog.Nop(), 50*time.Millisecond, 20*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}

	// The clock jumps past the due time right after scheduling, as after a
	// device sleep. The timer still has nearly an hour on it; the watchdog
	// tick must notice and fire anyway.
	var mu sync.Mutex
	offset := time.Duration(0)
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return time.Now().Add(offset)
	}

	h := s.ScheduleFor(newTestToken(t, time.Hour))
	defer h.Cancel()

	time.Sleep(30 * time.Millisecond)
	mu.Lock()
	offset = 2 * time.Hour
	mu.Unlock()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("watchdog never caught the missed fire")
	}
}
