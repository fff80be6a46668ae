package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stackshield/sessionguard/monitor"
)

func newRedisStore(t *testing.T, mon *monitor.Monitor) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "sgtest", time.Hour, mon), mr
}

func TestRedisStoreCreateGetRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t, nil)

	cred := newTestToken(t, "alice", time.Hour)
	rec, err := store.Create(context.Background(), cred, "user-1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	loaded, err := store.Get(context.Background(), rec.SessionID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if loaded.OwnerUserID != "user-1" || loaded.Credential.Subject() != "alice" {
		t.Fatalf("unexpected record: %+v", loaded)
	}
	if loaded.AntiForgeryToken != rec.AntiForgeryToken {
		t.Fatal("anti-forgery token lost in round trip")
	}
}

func TestRedisStoreGetUnknownID(t *testing.T) {
	store, _ := newRedisStore(t, nil)

	if _, err := store.Get(context.Background(), "no-such-session"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStoreRecordCarriesTTL(t *testing.T) {
	store, mr := newRedisStore(t, nil)

	rec, err := store.Create(context.Background(), newTestToken(t, "a", time.Hour), "u")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	ttl := mr.TTL(store.key(rec.SessionID))
	if ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected TTL within the session lifetime, got %v", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := store.Get(context.Background(), rec.SessionID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after TTL expiry, got %v", err)
	}
}

func TestRedisStoreExpiredRecordDeletedOnGet(t *testing.T) {
	store, mr := newRedisStore(t, nil)

	rec, err := store.Create(context.Background(), newTestToken(t, "a", time.Hour), "u")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Simulate clock drift: the recorded expiry passes while the TTL lives on.
	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, err := store.Get(context.Background(), rec.SessionID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired record, got %v", err)
	}
	if mr.Exists(store.key(rec.SessionID)) {
		t.Fatal("expired record must be deleted from the backend")
	}
}

func TestRedisStoreCorruptBlobTreatedAsMissing(t *testing.T) {
	store, mr := newRedisStore(t, nil)

	rec, err := store.Create(context.Background(), newTestToken(t, "a", time.Hour), "u")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := mr.Set(store.key(rec.SessionID), "not-a-record"); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Get(context.Background(), rec.SessionID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for corrupt blob, got %v", err)
	}
	if mr.Exists(store.key(rec.SessionID)) {
		t.Fatal("corrupt blob must be deleted")
	}
}

func TestRedisStoreDeleteIdempotent(t *testing.T) {
	store, _ := newRedisStore(t, nil)

	rec, err := store.Create(context.Background(), newTestToken(t, "a", time.Hour), "u")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := store.Delete(context.Background(), rec.SessionID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := store.Delete(context.Background(), rec.SessionID); err != nil {
		t.Fatalf("second delete must be a no-op, got %v", err)
	}
	if _, err := store.Get(context.Background(), rec.SessionID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRedisStoreAntiForgeryValidation(t *testing.T) {
	mon := monitor.New(monitor.Config{}, zerolog.Nop(), nil)
	defer mon.Close()

	store, _ := newRedisStore(t, mon)

	rec, err := store.Create(context.Background(), newTestToken(t, "a", time.Hour), "u")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	ok, err := store.ValidateAntiForgery(context.Background(), rec.SessionID, rec.AntiForgeryToken)
	if err != nil || !ok {
		t.Fatalf("expected valid anti-forgery token, got ok=%v err=%v", ok, err)
	}

	ok, err = store.ValidateAntiForgery(context.Background(), rec.SessionID, "forged")
	if err != nil {
		t.Fatalf("mismatch must not error, got %v", err)
	}
	if ok {
		t.Fatal("expected anti-forgery rejection")
	}

	events := mon.Events()
	if len(events) != 1 || events[0].Type != monitor.SuspiciousRequest {
		t.Fatalf("expected one suspicious-request event, got %+v", events)
	}
}

func TestRedisStoreBackendDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store := NewRedisStore(client, "sgtest", time.Hour, nil)

	mr.Close()

	if _, err := store.Create(context.Background(), newTestToken(t, "a", time.Hour), "u"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
	if _, err := store.Get(context.Background(), "any"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
