package token

import "time"

// Status is the lifecycle state of a refresh-token record.
//
// Transitions are monotone: active -> used (rotation), active -> revoked
// (logout), and used -> revoked (family cascade). revoked is terminal and
// used never returns to active.
type Status string

const (
	// StatusActive is an exported constant or variable used by the session engine.
	StatusActive Status = "active"
	// StatusUsed is an exported constant or variable used by the session engine.
	StatusUsed Status = "used"
	// StatusRevoked is an exported constant or variable used by the session engine.
	StatusRevoked Status = "revoked"
)

// Revocation reasons recorded on revoked rows.
const (
	ReasonLogout         = "logout"
	ReasonLogoutAll      = "logout_all"
	ReasonReuseDetected  = "reuse_detected"
	ReasonDeviceMismatch = "device_mismatch"
)

// Record is one persisted refresh-token row. The opaque secret handed to the
// client is never stored; TokenHash is its SHA-256 digest and doubles as the
// lookup key. Records are append-mostly: after insertion only Status and the
// status timestamps change.
//
// Record instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Record struct {
	ID            string
	UserID        string
	DeviceID      string
	DeviceName    string
	Platform      string
	TokenHash     [32]byte
	FamilyID      string
	Status        Status
	CreatedAt     time.Time
	ExpiresAt     time.Time
	UsedAt        time.Time
	RevokedAt     time.Time
	RevokedReason string
	LastUsedAt    time.Time
}

// Expired reports whether the record's refresh window has lapsed at now.
// Expiry is checked lazily at read time; there is no explicit transition.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
