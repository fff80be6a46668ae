package stores

import (
	"context"
	"sync"
	"time"
)

// MemoryChallengeStore is the in-process fallback used when the engine runs
// without Redis. Single-node only; challenges do not survive a restart,
// which is acceptable because they are minutes-lived.
type MemoryChallengeStore struct {
	mu      sync.Mutex
	records map[string][]byte
}

func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{records: make(map[string][]byte)}
}

func (s *MemoryChallengeStore) Save(_ context.Context, challengeID string, record *Challenge, _ time.Duration) error {
	encoded, err := encodeChallenge(record)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.records[challengeID] = encoded
	s.mu.Unlock()
	return nil
}

func (s *MemoryChallengeStore) Get(_ context.Context, challengeID string) (*Challenge, error) {
	s.mu.Lock()
	data, ok := s.records[challengeID]
	s.mu.Unlock()
	if !ok {
		return nil, ErrChallengeNotFound
	}

	record, err := decodeChallenge(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		s.mu.Lock()
		delete(s.records, challengeID)
		s.mu.Unlock()
		return nil, ErrChallengeExpired
	}
	return record, nil
}

func (s *MemoryChallengeStore) Delete(_ context.Context, challengeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.records[challengeID]
	delete(s.records, challengeID)
	return ok, nil
}

func (s *MemoryChallengeStore) RecordFailure(_ context.Context, challengeID string, maxAttempts int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.records[challengeID]
	if !ok {
		return false, ErrChallengeNotFound
	}

	record, err := decodeChallenge(data)
	if err != nil {
		return false, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		delete(s.records, challengeID)
		return false, ErrChallengeExpired
	}

	record.Attempts++
	if int(record.Attempts) >= maxAttempts {
		delete(s.records, challengeID)
		return true, nil
	}

	encoded, err := encodeChallenge(record)
	if err != nil {
		return false, err
	}
	s.records[challengeID] = encoded
	return false, nil
}
