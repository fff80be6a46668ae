// Package sessionguard implements the secure credential-session subsystem for
// dashboard-style applications: server-side session records addressed by an
// opaque id, a signed session cookie gateway, an encrypted fingerprint-bound
// client credential cache, proactive refresh scheduling, and a security event
// monitor that escalates suspicious patterns to forced logout.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// sessionguard is the public surface. It exposes [Engine], [Builder],
// [Config], the [AuthState] machine, and value types. Domain leaves live in
// the token, session, cookie, cache, monitor, and refresh packages; audit
// dispatch, rate limiting, and challenge storage live under internal/ and are
// never exported.
//
// # What this package must NOT do
//
//   - Hand the raw credential token to the browser cookie layer; cookies
//     carry only the opaque session id.
//   - Grant access from unverified client-side claims; the unverified parse
//     in the token package drives UI and refresh timing only.
//   - Fall back to plaintext storage when credential obfuscation fails.
//
// # Trust boundary
//
// Signature trust is established by the issuing service. [token.Manager]
// verifies signatures server-side before a session is created; the
// client-side [token.Parse] is deliberately unverified and documented as
// such.
package sessionguard
