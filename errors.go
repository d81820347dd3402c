package goSessions

import "errors"

var (
	// ErrUnauthorized is an exported constant or variable used by the session engine.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is an exported constant or variable used by the session engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRefreshInvalid is an exported constant or variable used by the session engine.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse is an exported constant or variable used by the session engine.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrTokenTheft is an exported constant or variable used by the session engine.
	ErrTokenTheft = errors.New("refresh token presented from a different device")
	// ErrTokenRevoked is an exported constant or variable used by the session engine.
	ErrTokenRevoked = errors.New("refresh token revoked")
	// ErrRefreshExpired is an exported constant or variable used by the session engine.
	ErrRefreshExpired = errors.New("refresh token expired")
	// ErrStoreUnavailable is an exported constant or variable used by the session engine.
	ErrStoreUnavailable = errors.New("token store unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the session engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Wire codes for the terminal authentication failures. HTTP layers send them
// in 401 bodies so clients can distinguish "log in again" from "we detected
// token theft" without parsing error strings.
const (
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidAccess      = "AUTH_INVALID_ACCESS"
	CodeInvalidRefresh     = "AUTH_INVALID_REFRESH"
	CodeTokenTheft         = "AUTH_TOKEN_THEFT"
	CodeTokenReuse         = "AUTH_TOKEN_REUSE"
	CodeTokenRevoked       = "AUTH_TOKEN_REVOKED"
	CodeRefreshExpired     = "AUTH_REFRESH_EXPIRED"
)

// ErrorCode describes the errorcode operation and its observable behavior.
//
// ErrorCode may return an error when input validation, dependency calls, or security checks fail.
// ErrorCode does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials):
		return CodeInvalidCredentials
	case errors.Is(err, ErrUnauthorized):
		return CodeInvalidAccess
	case errors.Is(err, ErrTokenTheft):
		return CodeTokenTheft
	case errors.Is(err, ErrRefreshReuse):
		return CodeTokenReuse
	case errors.Is(err, ErrTokenRevoked):
		return CodeTokenRevoked
	case errors.Is(err, ErrRefreshExpired):
		return CodeRefreshExpired
	case errors.Is(err, ErrRefreshInvalid):
		return CodeInvalidRefresh
	default:
		return ""
	}
}
