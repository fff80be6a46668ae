package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"github.com/stackshield/sessionguard/internal"
	"github.com/stackshield/sessionguard/monitor"
	"github.com/stackshield/sessionguard/token"
)

// ErrNotFound is returned by Get when no live record exists for the id.
// Absence and expiry are deliberately indistinguishable to callers.
var ErrNotFound = errors.New("session not found")

// DefaultLifetime bounds a session independent of the credential's expiry.
const DefaultLifetime = 24 * time.Hour

// DefaultSweepInterval is how often idle expired sessions are reaped.
const DefaultSweepInterval = time.Hour

// Store is the server-side session store contract shared by the memory and
// Redis implementations.
type Store interface {
	Create(ctx context.Context, cred *token.Token, ownerUserID string) (*Record, error)
	Get(ctx context.Context, sessionID string) (*Record, error)
	Delete(ctx context.Context, sessionID string) error
	ValidateAntiForgery(ctx context.Context, sessionID, supplied string) (bool, error)
	Sweep(ctx context.Context) (int, error)
	Close()
}

// MemoryStore keeps all records behind one coarse mutex. Request handlers and
// the sweep goroutine contend on the same lock; nothing blocking is ever done
// while holding it.
type MemoryStore struct {
	mu       sync.Mutex
	records  map[string]*Record
	lifetime time.Duration
	mon      *monitor.Monitor

	startOnce sync.Once
	closeOnce sync.Once
	sweepStop chan struct{}

	now func() time.Time
}

// NewMemoryStore creates an in-memory store. lifetime <= 0 falls back to
// [DefaultLifetime]; mon may be nil.
func NewMemoryStore(lifetime time.Duration, mon *monitor.Monitor) *MemoryStore {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &MemoryStore{
		records:   make(map[string]*Record),
		lifetime:  lifetime,
		mon:       mon,
		sweepStop: make(chan struct{}),
		now:       time.Now,
	}
}

// Create generates a random session id and anti-forgery token and stores a
// new record. ExpiresAt comes from the configured session lifetime, not from
// the credential's own expiry.
func (s *MemoryStore) Create(_ context.Context, cred *token.Token, ownerUserID string) (*Record, error) {
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

	s.mu.Lock()
	s.records[rec.SessionID] = rec
	s.mu.Unlock()

	return rec, nil
}

// Get returns the live record for sessionID. An expired record is eagerly
// deleted before ErrNotFound is returned, so lazy lookup and the periodic
// sweep never double-count.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Expired(s.now()) {
		delete(s.records, sessionID)
		return nil, ErrNotFound
	}
	return rec, nil
}

// Delete removes the record. Deleting an absent id is a no-op.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.records, sessionID)
	s.mu.Unlock()
	return nil
}

// ValidateAntiForgery compares supplied against the stored anti-forgery token
// in constant time. A mismatch is reported to the security monitor as a
// suspicious request but does not tear the session down; only a mismatched
// credential fingerprint does that.
func (s *MemoryStore) ValidateAntiForgery(ctx context.Context, sessionID, supplied string) (bool, error) {
	rec, err := s.Get(ctx, sessionID)
	if err != nil {
		return false, err
	}

	if subtle.ConstantTimeCompare([]byte(rec.AntiForgeryToken), []byte(supplied)) != 1 {
		s.reportMismatch(sessionID)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) reportMismatch(sessionID string) {
	if s.mon == nil {
		return
	}
	s.mon.Log(monitor.Event{
		Type:     monitor.SuspiciousRequest,
		Severity: monitor.SeverityMedium,
		Details: map[string]any{
			"reason":     "anti-forgery token mismatch",
			"session_id": sessionID,
		},
	})
}

// Sweep deletes every expired record, bounding growth from idle sessions
// that are never looked up again. Returns the number of records removed.
func (s *MemoryStore) Sweep(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the current number of records, live or not-yet-swept.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// StartSweep launches the periodic sweep goroutine. Only the first call
// starts it; interval <= 0 falls back to [DefaultSweepInterval].
func (s *MemoryStore) StartSweep(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	s.startOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					_, _ = s.Sweep(context.Background())
				case <-s.sweepStop:
					return
				}
			}
		}()
	})
}

// Close stops the sweep goroutine. Idempotent.
func (s *MemoryStore) Close() {
	s.closeOnce.Do(func() {
		close(s.sweepStop)
	})
}
