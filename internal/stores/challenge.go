// Package stores holds the short-lived MFA challenge records that bridge the
// gap between a correct password and a completed second factor.
//
// Challenges are kept out of the session store on purpose: until the second
// factor succeeds there is no session, only a pending proof with a small
// attempt budget and a hard TTL.
package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"time"
)

const challengeRecordVersion1 = 1

// ChallengeKind distinguishes a verification challenge (user already has a
// second factor enrolled) from a setup challenge (first factor passed but
// enrollment is still required).
type ChallengeKind uint8

const (
	KindMFAVerify ChallengeKind = iota + 1
	KindMFASetup
)

var (
	ErrChallengeNotFound = errors.New("mfa challenge not found")
	ErrChallengeExpired  = errors.New("mfa challenge expired")
	ErrChallengeBackend  = errors.New("mfa challenge backend unavailable")
	errChallengeCorrupt  = errors.New("mfa challenge record corrupt")
)

// Challenge is one pending MFA proof. Fingerprint binds the challenge to the
// device that passed the first factor; Attempts counts failed codes.
type Challenge struct {
	UserID      string
	Kind        ChallengeKind
	Fingerprint string
	ExpiresAt   int64
	Attempts    uint16
}

// ChallengeStore is implemented by the Redis-backed store and the in-process
// fallback.
type ChallengeStore interface {
	Save(ctx context.Context, challengeID string, record *Challenge, ttl time.Duration) error
	Get(ctx context.Context, challengeID string) (*Challenge, error)
	Delete(ctx context.Context, challengeID string) (bool, error)
	// RecordFailure increments the attempt counter atomically and reports
	// whether the budget is now exhausted; an exhausted challenge is deleted.
	RecordFailure(ctx context.Context, challengeID string, maxAttempts int) (bool, error)
}

func encodeChallenge(record *Challenge) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersion1)
	buf.WriteByte(byte(record.Kind))

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.UserID) > 65535 || len(record.Fingerprint) > 65535 {
		return nil, errors.New("mfa challenge field length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Fingerprint))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Fingerprint)

	return buf.Bytes(), nil
}

func decodeChallenge(data []byte) (*Challenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil || version != challengeRecordVersion1 {
		return nil, errChallengeCorrupt
	}

	kind, err := reader.ReadByte()
	if err != nil {
		return nil, errChallengeCorrupt
	}

	record := &Challenge{Kind: ChallengeKind(kind)}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, errChallengeCorrupt
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, errChallengeCorrupt
	}

	userID, err := readLengthPrefixed(reader)
	if err != nil {
		return nil, errChallengeCorrupt
	}
	record.UserID = userID

	fingerprint, err := readLengthPrefixed(reader)
	if err != nil {
		return nil, errChallengeCorrupt
	}
	record.Fingerprint = fingerprint

	return record, nil
}

func readLengthPrefixed(reader *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return "", err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(reader, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
