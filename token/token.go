package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedStructure is returned when the raw token does not have exactly
// three dot-separated segments or its payload segment cannot be decoded.
var ErrMalformedStructure = errors.New("token malformed structure")

// ErrMissingExpiry is returned when the payload lacks a numeric exp claim.
// The token accompanying the error carries a zero expiry, so callers that
// ignore the error still observe IsExpired() == true (fail secure).
var ErrMissingExpiry = errors.New("token missing expiry claim")

const (
	claimSubject       = "sub"
	claimIssuedAt      = "iat"
	claimExpiry        = "exp"
	claimHashedUserID  = "huid"
	claimHashedGroupID = "hgid"
)

// Token is an immutable credential decoded from a signed claims token.
// A refreshed credential is a new Token replacing the old one; a Token is
// never mutated after Parse.
type Token struct {
	raw           string
	subject       string
	issuedAt      time.Time
	expiresAt     time.Time
	hashedUserID  string
	hashedGroupID string
}

// Parse decodes the raw token without verifying its signature. Signature
// trust is established server-side by [Manager.VerifyCredential]; unverified
// claims must only drive UI decisions and refresh timing, never access.
//
// The payload segment is base64url-decoded with padding restoration. A token
// whose exp claim is absent or non-numeric is returned together with
// [ErrMissingExpiry] and reports IsExpired() == true unconditionally.
func Parse(raw string) (*Token, error) {
	segments := strings.Split(raw, ".")
	if len(segments) != 3 {
		return nil, ErrMalformedStructure
	}

	payload, err := decodeSegment(segments[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStructure, err)
	}

	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStructure, err)
	}

	t := &Token{raw: raw}
	t.subject, _ = claims[claimSubject].(string)
	t.hashedUserID, _ = claims[claimHashedUserID].(string)
	t.hashedGroupID, _ = claims[claimHashedGroupID].(string)
	if iat, ok := numericClaim(claims, claimIssuedAt); ok {
		t.issuedAt = time.Unix(iat, 0)
	}

	exp, ok := numericClaim(claims, claimExpiry)
	if !ok {
		return t, ErrMissingExpiry
	}
	t.expiresAt = time.Unix(exp, 0)

	return t, nil
}

// FromClaims builds a Token from already-verified claim values.
func FromClaims(raw, subject string, issuedAt, expiresAt time.Time, hashedUserID, hashedGroupID string) *Token {
	return &Token{
		raw:           raw,
		subject:       subject,
		issuedAt:      issuedAt,
		expiresAt:     expiresAt,
		hashedUserID:  hashedUserID,
		hashedGroupID: hashedGroupID,
	}
}

// Raw returns the original encoded token.
func (t *Token) Raw() string {
	if t == nil {
		return ""
	}
	return t.raw
}

// Subject returns the sub claim, or "" when absent.
func (t *Token) Subject() string {
	if t == nil {
		return ""
	}
	return t.subject
}

// IssuedAt returns the iat claim, zero when absent.
func (t *Token) IssuedAt() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.issuedAt
}

// ExpiresAt returns the exp claim, zero when absent or unparsable.
func (t *Token) ExpiresAt() time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.expiresAt
}

// HashedUserID returns the huid claim, or "" when absent.
func (t *Token) HashedUserID() string {
	if t == nil {
		return ""
	}
	return t.hashedUserID
}

// HashedGroupID returns the hgid claim, or "" when absent.
func (t *Token) HashedGroupID() string {
	if t == nil {
		return ""
	}
	return t.hashedGroupID
}

// IsExpired reports whether the token has expired at now. A nil token or a
// token without a usable expiry claim is always expired.
func (t *Token) IsExpired(now time.Time) bool {
	if t == nil || t.expiresAt.IsZero() {
		return true
	}
	return !now.Before(t.expiresAt)
}

// TimeUntilExpiry returns the remaining lifetime at now, never negative.
func (t *Token) TimeUntilExpiry(now time.Time) time.Duration {
	if t.IsExpired(now) {
		return 0
	}
	return t.expiresAt.Sub(now)
}

// String redacts the signature segment so tokens can appear in logs without
// becoming replayable.
func (t *Token) String() string {
	if t == nil {
		return "<nil token>"
	}
	if i := strings.LastIndexByte(t.raw, '.'); i >= 0 {
		return t.raw[:i+1] + "[redacted]"
	}
	return "[redacted]"
}

func decodeSegment(seg string) ([]byte, error) {
	if m := len(seg) % 4; m != 0 {
		seg += strings.Repeat("=", 4-m)
	}
	return base64.URLEncoding.DecodeString(seg)
}

func numericClaim(claims map[string]any, key string) (int64, bool) {
	v, ok := claims[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}
