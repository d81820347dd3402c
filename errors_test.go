package goSessions

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorCodeMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrInvalidCredentials, CodeInvalidCredentials},
		{ErrUnauthorized, CodeInvalidAccess},
		{ErrRefreshInvalid, CodeInvalidRefresh},
		{ErrTokenTheft, CodeTokenTheft},
		{ErrRefreshReuse, CodeTokenReuse},
		{ErrTokenRevoked, CodeTokenRevoked},
		{ErrRefreshExpired, CodeRefreshExpired},
		{ErrStoreUnavailable, ""},
		{errors.New("unrelated"), ""},
	}

	for _, tc := range tests {
		if got := ErrorCode(tc.err); got != tc.want {
			t.Fatalf("ErrorCode(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestErrorCodeUnwrapsWrappedSentinels(t *testing.T) {
	wrapped := fmt.Errorf("refresh handler: %w", ErrTokenTheft)
	if got := ErrorCode(wrapped); got != CodeTokenTheft {
		t.Fatalf("expected %q for wrapped theft error, got %q", CodeTokenTheft, got)
	}
}
