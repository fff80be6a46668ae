// Package internal contains helper utilities that are intentionally private
// to sessionguard, including secure random identifier generation and device
// fingerprint hashing.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - rate — Redis-backed login/refresh rate limit primitives
//   - stores — MFA login challenge persistence (Redis + in-memory)
//
// # What this package must NOT do
//
//   - Export types that appear in the public sessionguard API.
//   - Be imported by any package outside the sessionguard module.
package internal
