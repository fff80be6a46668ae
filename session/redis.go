package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stackshield/sessionguard/internal"
	"github.com/stackshield/sessionguard/monitor"
	"github.com/stackshield/sessionguard/token"
)

// ErrRedisUnavailable wraps backend failures from the Redis-backed store.
var ErrRedisUnavailable = errors.New("redis unavailable")

// RedisStore persists session records in Redis using the compact binary
// record encoding. Record TTLs carry the expiry, so the periodic sweep is a
// no-op here; the lazy expiry check on Get remains as a guard against clock
// drift between store and backend.
type RedisStore struct {
	redis    redis.UniversalClient
	prefix   string
	lifetime time.Duration
	mon      *monitor.Monitor

	now func() time.Time
}

// NewRedisStore creates a Redis-backed store. prefix defaults to "sg";
// lifetime <= 0 falls back to [DefaultLifetime]; mon may be nil.
func NewRedisStore(client redis.UniversalClient, prefix string, lifetime time.Duration, mon *monitor.Monitor) *RedisStore {
	if prefix == "" {
		prefix = "sg"
	}
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &RedisStore{
		redis:    client,
		prefix:   prefix,
		lifetime: lifetime,
		mon:      mon,
		now:      time.Now,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + ":sess:" + sessionID
}

// Create generates a random session id and anti-forgery token and persists a
// new record with the session lifetime as its TTL.
func (s *RedisStore) Create(ctx context.Context, cred *token.Token, ownerUserID string) (*Record, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, err
	}
	antiForgery, err := internal.NewAntiForgeryToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec := &Record{
		SessionID:        sid.String(),
		Credential:       cred,
		OwnerUserID:      ownerUserID,
		AntiForgeryToken: antiForgery,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.lifetime),
	}

	encoded, err := Encode(rec)
	if err != nil {
		return nil, err
	}
	if err := s.redis.Set(ctx, s.key(rec.SessionID), encoded, s.lifetime).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return rec, nil
}

// Get returns the live record for sessionID, eagerly deleting a record whose
// recorded expiry has passed even if its TTL has not fired yet.
func (s *RedisStore) Get(ctx context.Context, sessionID string) (*Record, error) {
	data, err := s.redis.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	rec, err := Decode(data)
	if err != nil {
		// A blob that no longer decodes is treated like tampering: drop it.
		_, _ = s.redis.Del(ctx, s.key(sessionID)).Result()
		return nil, ErrNotFound
	}
	if rec.Expired(s.now()) {
		_, _ = s.redis.Del(ctx, s.key(sessionID)).Result()
		return nil, ErrNotFound
	}
	return rec, nil
}

// Delete removes the record. Deleting an absent id is a no-op.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ValidateAntiForgery compares supplied against the stored anti-forgery token
// in constant time, reporting mismatches to the security monitor.
func (s *RedisStore) ValidateAntiForgery(ctx context.Context, sessionID, supplied string) (bool, error) {
	rec, err := s.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}

	if subtle.ConstantTimeCompare([]byte(rec.AntiForgeryToken), []byte(supplied)) != 1 {
		if s.mon != nil {
			s.mon.Log(monitor.Event{
				Type:     monitor.SuspiciousRequest,
				Severity: monitor.SeverityMedium,
				Details: map[string]any{
					"reason":     "anti-forgery token mismatch",
					"session_id": sessionID,
				},
			})
		}
		return false, nil
	}
	return true, nil
}

// Sweep is a no-op: Redis TTLs already reap expired records.
func (s *RedisStore) Sweep(context.Context) (int, error) {
	return 0, nil
}

// Close releases nothing; the Redis client is owned by the caller.
func (s *RedisStore) Close() {}
