// Package session owns the server-side session store: the map from opaque
// session id to [Record], the anti-forgery token check, and the expiry sweep.
//
// Two implementations are provided. [MemoryStore] guards a plain map with a
// single coarse mutex — session volume is modest and one lock keeps the race
// surface small. [RedisStore] persists records in a compact binary encoding
// with TTL-based expiry for multi-instance deployments.
//
// # Architecture boundaries
//
// This package owns the credential's server-side lifetime. It does NOT
// verify token signatures or drive login flow — those responsibilities
// belong to the token package and the Engine.
//
// # What this package must NOT do
//
//   - Hand the credential to anything addressed by the browser; only the
//     opaque session id leaves this store.
//   - Import sessionguard or token siblings beyond the Token value type.
package session
