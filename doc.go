// Package goSessions provides device-bound session management with JWT access
// tokens, rotating opaque refresh tokens, and automatic token-theft detection
// through refresh token families.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goSessions is the public surface. It exposes [Engine], [Builder], [Config],
// the sentinel error taxonomy with its AUTH_* wire codes, and value types
// (LoginResult, DeviceSession, MetricsSnapshot, etc.). Token persistence lives
// behind the token.Store contract with Redis and PostgreSQL backends; refresh
// secret generation and hashing live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Persist or log raw refresh secrets; only SHA-256 digests are stored.
//   - Expose store clients or record hashes in its public API.
//   - Soften a rotation verdict: reuse and device mismatch always revoke the
//     whole token family before the call returns.
//
// # Performance contract
//
// VerifyAccess is the hot path. It is purely stateless signature validation
// and must complete without any store round-trip. Login, Refresh, Logout, and
// ListDevices are allowed one store round-trip per call.
package goSessions
