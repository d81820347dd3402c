package token

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no record matches the presented token hash.
	ErrNotFound = errors.New("refresh token record not found")
	// ErrDeviceMismatch is returned when the presented device does not match the
	// record's bound device. The record's whole family has been revoked with
	// reason device_mismatch before this error is returned.
	ErrDeviceMismatch = errors.New("refresh token device mismatch")
	// ErrReuseDetected is returned when an already-rotated record is presented
	// again. The record's whole family has been revoked with reason
	// reuse_detected before this error is returned.
	ErrReuseDetected = errors.New("refresh token reuse detected")
	// ErrRevoked is returned when the presented record was already revoked.
	ErrRevoked = errors.New("refresh token revoked")
	// ErrExpired is returned when the presented record is past its expiry.
	ErrExpired = errors.New("refresh token expired")
	// ErrStoreUnavailable wraps backend infrastructure failures.
	ErrStoreUnavailable = errors.New("token store unavailable")
)

// Successor carries the identity of the record appended to a family by a
// winning rotation. All other fields are inherited from the rotated record.
type Successor struct {
	ID        string
	TokenHash [32]byte
	ExpiresAt time.Time
}

// Store is the persistence contract for refresh-token records.
//
// Rotate is the correctness-critical operation: the active -> used transition
// of the matched record and the insertion of its successor must be atomic
// with respect to concurrent rotations presenting the same secret, and the
// family cascades triggered by reuse or device-mismatch verdicts must be
// complete before Rotate returns its error.
type Store interface {
	// Create inserts a new record. The record must be a family root
	// (Status active, fresh FamilyID) or a rotation successor.
	Create(ctx context.Context, rec *Record) error

	// Rotate looks up the record by token hash and runs the rotation verdict
	// in order: not found, device mismatch (family revoked), reuse (family
	// revoked), revoked, expired, and finally the atomic active -> used
	// transition plus insertion of the same-family successor. On success it
	// returns the new active record with identity fields inherited from the
	// rotated one.
	Rotate(ctx context.Context, tokenHash [32]byte, deviceID string, successor Successor, now time.Time) (*Record, error)

	// ListActive returns the user's active, unexpired records.
	ListActive(ctx context.Context, userID string, now time.Time) ([]*Record, error)

	// RevokeDevice revokes the user's active records bound to deviceID and
	// returns how many rows transitioned.
	RevokeDevice(ctx context.Context, userID, deviceID, reason string, now time.Time) (int64, error)

	// RevokeAllExcept revokes every active record of the user except those
	// bound to exceptDeviceID. An empty exceptDeviceID revokes everything.
	RevokeAllExcept(ctx context.Context, userID, exceptDeviceID, reason string, now time.Time) (int64, error)

	// PurgeExpired removes non-active records whose expiry lies before the
	// cutoff. Optional housekeeping; correctness never depends on it.
	PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
