package goSessions

import (
	"context"
	"time"
)

// CredentialVerifier is the interface callers implement to plug their user
// database into the engine. VerifyCredentials returns the stable user ID on
// success and [ErrInvalidCredentials] (possibly wrapped) when the identifier
// or password is wrong. The engine never sees password hashes.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, identifier, password string) (string, error)
}

// DeviceInfo describes the device a login originates from. DeviceID is the
// caller-chosen stable identifier the refresh family is bound to; DeviceName
// and Platform are display metadata only.
type DeviceInfo struct {
	DeviceID   string
	DeviceName string
	Platform   string
}

// LoginResult is returned by [Engine.Login]. RefreshToken is empty when the
// login carried no device info: without a device to bind to, no refresh
// family is created.
type LoginResult struct {
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // access token lifetime in seconds
}

// RefreshResult is returned by [Engine.Refresh]. RefreshToken is the
// rotation successor; the presented token is retired and must be discarded.
type RefreshResult struct {
	UserID       string
	DeviceID     string
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// AuthResult is returned by [Engine.VerifyAccess]. It carries the identity
// claims extracted from a valid access token.
type AuthResult struct {
	UserID   string
	DeviceID string
}

// DeviceSession is one entry of [Engine.ListDevices]: the most recently used
// active session on a device. It never exposes token secrets or hashes.
type DeviceSession struct {
	DeviceID   string
	DeviceName string
	Platform   string
	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time
}
