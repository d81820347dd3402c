// Package token defines the persisted refresh-token record model and the
// store contract that backs rotation.
//
// Every login with device information creates a family root record; every
// successful rotation retires the presented record (active -> used) and
// appends an active successor to the same family. A family is the full
// lineage descended from one login on one device. Reuse of a rotated-out
// record or presentation from a foreign device is treated as compromise and
// revokes the entire family before the triggering call returns.
//
// Store implementations must make the rotate verdict atomic: exactly one
// concurrent caller presenting the same secret may win the active -> used
// transition; every loser must observe status=used and fail as reuse.
package token
