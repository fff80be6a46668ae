package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stackshield/sessionguard/token"
)

func encodeJSONSegment(t *testing.T, claims map[string]any) string {
	t.Helper()
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatal(err)
	}
	return base64.RawURLEncoding.EncodeToString(payload)
}

func mustJSONSegment(raw string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// parseTolerant parses a raw credential the way Decode does, keeping tokens
// that lack an expiry claim instead of rejecting them.
func parseTolerant(raw string) (*token.Token, error) {
	tok, err := token.Parse(raw)
	if err != nil && !errors.Is(err, token.ErrMissingExpiry) {
		return nil, err
	}
	return tok, nil
}
