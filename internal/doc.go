// Package internal holds shared helpers that are not part of the public
// goSessions API surface: opaque refresh secret generation, hashing, and
// wire encoding.
package internal
