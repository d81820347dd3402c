// Package middleware exposes an HTTP adapter for access-token enforcement
// built on top of goSessions.Engine verification.
//
// # Guards
//
//   - [Guard] — stateless access-token verification, no store call.
//
// The guard reads the Authorization header, calls Engine.VerifyAccess, and
// injects the validated identity into the request context where handlers can
// read it back with [AuthResultFromContext]. Failures answer 401 with a
// machine-readable AUTH_* code in the JSON body; [Unauthorized] exposes the
// same payload shape to handlers rejecting refresh or login calls.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself — all decisions are delegated to
// Engine.VerifyAccess.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Access the token store (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from VerifyAccess.
package middleware
