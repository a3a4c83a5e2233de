package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	goToken "github.com/MrEthical07/goToken"
)

// Verifier is the subset of *goToken.Engine the guards need.
type Verifier interface {
	Verify(ctx context.Context, raw string, expected goToken.TokenType) (*goToken.VerifiedClaims, error)
}

// Guard rejects requests whose bearer token does not verify as expected and
// stores the verified claims in the request context otherwise.
func Guard(v Verifier, expected goToken.TokenType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v == nil {
				WriteError(w, goToken.ErrEngineNotReady)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, goToken.ErrTokenMissing)
				return
			}

			claims, err := v.Verify(r.Context(), token, expected)
			if err != nil {
				WriteError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(goToken.WithClaims(r.Context(), claims)))
		})
	}
}

// RequireAccess guards a handler with an access token.
func RequireAccess(v Verifier) func(http.Handler) http.Handler {
	return Guard(v, goToken.TokenAccess)
}

// RequireRefresh guards a handler with a refresh token.
func RequireRefresh(v Verifier) func(http.Handler) http.Handler {
	return Guard(v, goToken.TokenRefresh)
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}
	return token, true
}

// StatusFor maps an engine error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case goToken.IsServerError(err):
		return http.StatusServiceUnavailable
	case goToken.PublicCode(err) == "fresh_token_required", goToken.PublicCode(err) == "admin_required":
		return http.StatusForbidden
	case goToken.PublicCode(err) == "rate_limited":
		return http.StatusTooManyRequests
	case goToken.PublicCode(err) == "validation_failed":
		return http.StatusBadRequest
	case goToken.PublicCode(err) == "principal_exists":
		return http.StatusConflict
	default:
		return http.StatusUnauthorized
	}
}

type errorBody struct {
	Error string `json:"error"`
}

// WriteError writes {"error": PublicCode(err)} with the status from StatusFor.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: goToken.PublicCode(err)})
}
