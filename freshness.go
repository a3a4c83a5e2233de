package goToken

import "time"

// RequireFresh fails with [ErrFreshnessRequired] unless claims belong to a
// fresh access token. A positive window additionally rejects fresh tokens
// issued more than window before now.
func RequireFresh(claims *VerifiedClaims, window time.Duration, now time.Time) error {
	if claims == nil {
		return ErrTokenMissing
	}
	if claims.Type != TokenAccess {
		return ErrTokenWrongType
	}
	if !claims.Fresh {
		return ErrFreshnessRequired
	}
	if window > 0 && now.Sub(claims.IssuedAt) > window {
		return ErrFreshnessRequired
	}
	return nil
}

// RequireAdmin fails with [ErrAdminRequired] unless claims carry the admin flag.
func RequireAdmin(claims *VerifiedClaims) error {
	if claims == nil {
		return ErrTokenMissing
	}
	if !claims.IsAdmin {
		return ErrAdminRequired
	}
	return nil
}

// CheckFresh applies [RequireFresh] with the configured Freshness.Window and
// the engine clock.
func (e *Engine) CheckFresh(claims *VerifiedClaims) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	return RequireFresh(claims, e.config.Freshness.Window, e.now())
}
