// Package middleware exposes HTTP middleware adapters for the two transport
// modes the engine validates: session-cookie requests and direct bearer
// API calls.
//
// # Guards
//
//   - [SessionGuard] — signed cookie + anti-forgery header validation.
//   - [BearerGuard] — Authorization header credential verification, no
//     session store call.
//
// Each guard attaches the caller's IP and User-Agent to the request
// context, calls the engine, and injects the validated identity into the
// context for downstream handlers.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// the engine.
//
// # What this package must NOT do
//
//   - Parse or verify credentials directly (delegates to the engine).
//   - Touch the session store or Redis (engine handles I/O).
//   - Leak why a request was rejected; every failure is a uniform 401.
package middleware
