package middleware

import (
	"net"
	"net/http"

	goToken "github.com/MrEthical07/goToken"
)

// FreshnessChecker is satisfied by *goToken.Engine.
type FreshnessChecker interface {
	CheckFresh(claims *goToken.VerifiedClaims) error
}

// RequireFresh rejects requests whose access token was not issued by a
// password check. Mount it behind [RequireAccess].
func RequireFresh(fc FreshnessChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := goToken.ClaimsFromContext(r.Context())
			if err := fc.CheckFresh(claims); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin rejects requests whose claims lack the admin flag. Mount it
// behind a guard.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, _ := goToken.ClaimsFromContext(r.Context())
			if err := goToken.RequireAdmin(claims); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP stores the remote host of the request for per-IP throttling and
// audit events. Forwarding headers are ignored; put a trusted proxy rewrite
// in front when needed.
func ClientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		next.ServeHTTP(w, r.WithContext(goToken.WithClientIP(r.Context(), host)))
	})
}
