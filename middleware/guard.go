package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	goSessions "github.com/hexveil/goSessions"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the identity injected by [Guard] for the
// current request.
func AuthResultFromContext(ctx context.Context) (*goSessions.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*goSessions.AuthResult)
	return res, ok
}

// Guard wraps a handler with bearer-token access verification. Requests
// without a valid access token receive 401 with a machine-readable code.
func Guard(engine *goSessions.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				unauthorized(w, goSessions.CodeInvalidAccess)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w, goSessions.CodeInvalidAccess)
				return
			}

			res, err := engine.VerifyAccess(r.Context(), token)
			if err != nil {
				unauthorized(w, codeOrDefault(err))
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Unauthorized writes the standard 401 payload for err. HTTP handlers built
// on the engine use it so every terminal auth failure carries its AUTH_* code.
func Unauthorized(w http.ResponseWriter, err error) {
	unauthorized(w, codeOrDefault(err))
}

func codeOrDefault(err error) string {
	if code := goSessions.ErrorCode(err); code != "" {
		return code
	}
	return goSessions.CodeInvalidAccess
}

func unauthorized(w http.ResponseWriter, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": "unauthorized",
		"code":  code,
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
