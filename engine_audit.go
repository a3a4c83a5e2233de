package goToken

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLoginRateLimited      = "login_rate_limited"
	auditEventRegisterSuccess       = "register_success"
	auditEventRegisterDuplicate     = "register_duplicate"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshFailure        = "refresh_failure"
	auditEventRefreshRateLimited    = "refresh_rate_limited"
	auditEventRevokedTokenPresented = "revoked_token_presented"
	auditEventTokenRevoked          = "token_revoked"
	auditEventRevokeAll             = "revoke_all"
	auditEventPasswordChange        = "password_change_success"
	auditEventPasswordChangeBadOld  = "password_change_invalid_old"
	auditEventPurge                 = "revocations_purged"
)

// AuditErrorCode is the stable error label recorded on failed audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrRateLimited        AuditErrorCode = "rate_limited"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrExpired            AuditErrorCode = "token_expired"
	auditErrRevoked            AuditErrorCode = "token_revoked"
	auditErrSubjectInactive    AuditErrorCode = "subject_inactive"
	auditErrFreshnessRequired  AuditErrorCode = "fresh_token_required"
	auditErrDuplicate          AuditErrorCode = "duplicate"
	auditErrValidation         AuditErrorCode = "validation"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subjectID string,
	tokenID string,
	tokenType TokenType,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		SubjectID: subjectID,
		TokenID:   tokenID,
		TokenType: string(tokenType),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrLoginRateLimited),
		errors.Is(err, ErrRefreshRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrTokenExpired):
		return auditErrExpired
	case errors.Is(err, ErrTokenRevoked):
		return auditErrRevoked
	case errors.Is(err, ErrTokenMissing),
		errors.Is(err, ErrTokenMalformed),
		errors.Is(err, ErrTokenSignatureInvalid),
		errors.Is(err, ErrTokenWrongType),
		errors.Is(err, ErrMissingJTI):
		return auditErrInvalidToken
	case errors.Is(err, ErrSubjectInactive):
		return auditErrSubjectInactive
	case errors.Is(err, ErrFreshnessRequired):
		return auditErrFreshnessRequired
	case errors.Is(err, ErrAlreadyRevoked),
		errors.Is(err, ErrPrincipalExists):
		return auditErrDuplicate
	case errors.Is(err, ErrValidation):
		return auditErrValidation
	case errors.Is(err, ErrStorageUnavailable),
		errors.Is(err, ErrPrincipalStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
