package goToken

import (
	"errors"

	"github.com/MrEthical07/goToken/revocation"
)

var (
	// ErrTokenMissing is returned when no credential was presented.
	ErrTokenMissing = errors.New("token missing")
	// ErrTokenMalformed is returned when a credential cannot be decoded.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenSignatureInvalid is returned when a credential fails signature verification.
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	// ErrTokenExpired is returned when a credential is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked is returned when a credential has been revoked.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenWrongType is returned when an access token is presented where a
	// refresh token is expected, or the reverse.
	ErrTokenWrongType = errors.New("token type mismatch")
	// ErrSubjectInactive is returned by refresh when the principal is gone or disabled.
	ErrSubjectInactive = errors.New("subject inactive")
	// ErrAlreadyRevoked is returned when a token is revoked twice. Callers may
	// treat it as success.
	ErrAlreadyRevoked = revocation.ErrAlreadyRevoked
	// ErrStorageUnavailable is returned when the revocation store cannot be reached.
	ErrStorageUnavailable = revocation.ErrStorageUnavailable
	// ErrFreshnessRequired is returned when an operation needs a fresh access token.
	ErrFreshnessRequired = errors.New("fresh token required")
	// ErrInvalidCredentials is returned for any failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMissingJTI is returned when the token to revoke carries no id.
	ErrMissingJTI = errors.New("token has no jti")
	// ErrAdminRequired is returned when a non-admin token reaches an admin operation.
	ErrAdminRequired = errors.New("admin privileges required")
	// ErrEngineNotReady is returned by methods on a zero or closed Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrLoginRateLimited is returned when login attempts exceed the configured budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is returned when refresh attempts exceed the configured budget.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrPrincipalExists is returned by Register for a taken email.
	ErrPrincipalExists = errors.New("principal already exists")
	// ErrValidation wraps input validation failures.
	ErrValidation = errors.New("validation failed")
	// ErrPrincipalStoreUnavailable wraps PrincipalRepository failures.
	ErrPrincipalStoreUnavailable = errors.New("principal store unavailable")
)

// IsServerError reports whether err represents a backend or wiring failure
// rather than a problem with the caller's input.
func IsServerError(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrEngineNotReady) ||
		errors.Is(err, ErrPrincipalStoreUnavailable)
}

// PublicCode maps err to a short client-facing code. Signature, type and
// decoding failures all collapse to invalid_token.
func PublicCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTokenMissing):
		return "missing_token"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrTokenRevoked):
		return "token_revoked"
	case errors.Is(err, ErrFreshnessRequired):
		return "fresh_token_required"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAdminRequired):
		return "admin_required"
	case errors.Is(err, ErrLoginRateLimited), errors.Is(err, ErrRefreshRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrPrincipalExists):
		return "principal_exists"
	case errors.Is(err, ErrValidation):
		return "validation_failed"
	case IsServerError(err):
		return "unavailable"
	default:
		return "invalid_token"
	}
}
