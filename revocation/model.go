package revocation

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrAlreadyRevoked is returned by Revoke when a record for the token ID already exists.
	ErrAlreadyRevoked = errors.New("token already revoked")
	// ErrStorageUnavailable wraps backend failures (connection, timeout, driver errors).
	ErrStorageUnavailable = errors.New("revocation storage unavailable")
	// ErrInvalidRecord is returned when a record or watermark lacks required fields.
	ErrInvalidRecord = errors.New("invalid revocation record")
)

// Reasons recorded with revocations. Free-form reasons are accepted as well.
const (
	ReasonLogout         = "logout"
	ReasonLogoutAll      = "logout_all"
	ReasonTokenRotation  = "token_rotation"
	ReasonPasswordChange = "password_change"
	ReasonManualRevoke   = "manual_revoke"
	ReasonAdminRevoke    = "admin_revoke"
)

// Record marks one token identifier as revoked.
type Record struct {
	TokenID   string
	SubjectID string
	TokenType string
	RevokedAt time.Time
	ExpiresAt time.Time
	Reason    string
}

// Validate checks the fields every backend requires.
func (r Record) Validate() error {
	switch {
	case strings.TrimSpace(r.TokenID) == "":
		return errors.New("revocation: token id is required")
	case strings.TrimSpace(r.SubjectID) == "":
		return errors.New("revocation: subject id is required")
	case r.ExpiresAt.IsZero():
		return errors.New("revocation: expiresAt is required")
	}
	return nil
}

// Watermark revokes every token of SubjectID issued strictly before
// ValidSince.
//
// ValidSince has millisecond precision, matching the iat_ms claim. A token
// issued in the same millisecond as the revoke-all call stays valid.
type Watermark struct {
	SubjectID  string
	ValidSince time.Time
	ExpiresAt  time.Time
	Reason     string
}

// Validate checks the fields every backend requires.
func (w Watermark) Validate() error {
	switch {
	case strings.TrimSpace(w.SubjectID) == "":
		return errors.New("revocation: subject id is required")
	case w.ValidSince.IsZero():
		return errors.New("revocation: validSince is required")
	case w.ExpiresAt.IsZero():
		return errors.New("revocation: expiresAt is required")
	}
	return nil
}

// Covers reports whether a token issued at issuedAt falls under the watermark.
func (w Watermark) Covers(issuedAt time.Time) bool {
	return issuedAt.UnixMilli() < w.ValidSince.UnixMilli()
}

// Normalize truncates ValidSince to whole milliseconds and converts times to
// UTC.
func (w Watermark) Normalize() Watermark {
	w.ValidSince = w.ValidSince.UTC().Truncate(time.Millisecond)
	w.ExpiresAt = w.ExpiresAt.UTC()
	return w
}
