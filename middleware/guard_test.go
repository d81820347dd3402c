package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goSessions "github.com/hexveil/goSessions"
)

type staticVerifier struct{}

func (staticVerifier) VerifyCredentials(_ context.Context, identifier, password string) (string, error) {
	if identifier == "alice" && password == "correct-password-123" {
		return "u1", nil
	}
	return "", goSessions.ErrInvalidCredentials
}

func newGuardTestEngine(t *testing.T) (*goSessions.Engine, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := goSessions.Config{
		JWT: goSessions.JWTConfig{
			AccessTTL:     15 * time.Minute,
			SigningMethod: "hs256",
			PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
			Issuer:        "guard-test",
		},
		Refresh: goSessions.RefreshConfig{
			TTL: 30 * 24 * time.Hour,
		},
	}

	engine, err := goSessions.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialVerifier(staticVerifier{}).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, func() {
		engine.Close()
		mr.Close()
	}
}

func guardedEcho(engine *goSessions.Engine) http.Handler {
	return Guard(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := AuthResultFromContext(r.Context())
		if !ok {
			http.Error(w, "missing auth result", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(res.UserID))
	}))
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode 401 body: %v", err)
	}
	return body.Code
}

func TestGuardAllowsValidToken(t *testing.T) {
	engine, done := newGuardTestEngine(t)
	defer done()

	login, err := engine.Login(context.Background(), "alice", "correct-password-123", nil)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	rec := httptest.NewRecorder()
	guardedEcho(engine).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "u1" {
		t.Fatalf("expected injected user id u1, got %q", rec.Body.String())
	}
}

func TestGuardRejectsMissingHeader(t *testing.T) {
	engine, done := newGuardTestEngine(t)
	defer done()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	guardedEcho(engine).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != goSessions.CodeInvalidAccess {
		t.Fatalf("expected %s, got %s", goSessions.CodeInvalidAccess, code)
	}
}

func TestGuardRejectsMalformedToken(t *testing.T) {
	engine, done := newGuardTestEngine(t)
	defer done()

	for _, header := range []string{"Bearer garbage", "Bearer ", "Basic abc", "garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		guardedEcho(engine).ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for header %q, got %d", header, rec.Code)
		}
		if code := errorCode(t, rec); code != goSessions.CodeInvalidAccess {
			t.Fatalf("expected %s for header %q, got %s", goSessions.CodeInvalidAccess, header, code)
		}
	}
}

func TestGuardNilEngineRejects(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rec := httptest.NewRecorder()
	guardedEcho(nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for nil engine, got %d", rec.Code)
	}
}

func TestUnauthorizedWritesVerdictCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{goSessions.ErrTokenTheft, goSessions.CodeTokenTheft},
		{goSessions.ErrRefreshReuse, goSessions.CodeTokenReuse},
		{goSessions.ErrRefreshExpired, goSessions.CodeRefreshExpired},
		{goSessions.ErrStoreUnavailable, goSessions.CodeInvalidAccess},
	}

	for _, tc := range tests {
		rec := httptest.NewRecorder()
		Unauthorized(rec, tc.err)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %v, got %d", tc.err, rec.Code)
		}
		if code := errorCode(t, rec); code != tc.want {
			t.Fatalf("expected %s for %v, got %s", tc.want, tc.err, code)
		}
	}
}
