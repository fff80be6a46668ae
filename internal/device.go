package internal

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// HashBindingValue hashes a single device binding component.
func HashBindingValue(v string) [32]byte {
	return sha256.Sum256([]byte(v))
}

// DeriveFingerprint summarizes stable device characteristics into an opaque
// value used to bind a cached credential to its original context. Component
// order matters; callers must pass components in a fixed order.
func DeriveFingerprint(components ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(components, "\x1f")))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
