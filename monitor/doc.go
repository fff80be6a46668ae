// Package monitor implements the security event monitor: an append-only
// bounded buffer of severity-tagged events with threshold rules that escalate
// suspicious patterns, up to a synchronous forced-logout action.
//
// # Architecture boundaries
//
// The monitor observes; it never tears sessions down itself. Escalations are
// delivered through a caller-supplied callback, and a failure anywhere in the
// logging path is swallowed so that recording a security event can never
// crash the request that triggered it.
package monitor
