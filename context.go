package sessionguard

import (
	"context"

	"github.com/stackshield/sessionguard/internal"
)

type clientIPContextKey struct{}
type userAgentContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it
// for per-IP rate limiting, audit logging, and fingerprint derivation.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. Used together
// with the client IP to bind MFA challenges to the device that passed the
// first factor.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

// fingerprintFromContext derives the device fingerprint from whatever
// binding components the caller attached. Empty components still produce a
// stable value, so two requests from the same anonymous context compare
// equal.
func fingerprintFromContext(ctx context.Context) string {
	return internal.DeriveFingerprint(clientIPFromContext(ctx), userAgentFromContext(ctx))
}
