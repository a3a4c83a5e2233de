package goToken

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goToken/internal/flows"
)

// RevokeCurrent revokes the token described by claims, normally the claims
// returned by [Engine.Verify] for the current request. An empty reason
// records logout.
func (e *Engine) RevokeCurrent(ctx context.Context, claims *VerifiedClaims, reason string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if claims == nil || claims.TokenID == "" {
		return ErrMissingJTI
	}
	if reason == "" {
		reason = ReasonLogout
	}
	return e.revoke(ctx, flows.RevokeRequest{
		TokenID:   claims.TokenID,
		SubjectID: claims.SubjectID,
		TokenType: claims.Type,
		ExpiresAt: claims.ExpiresAt,
	}, reason)
}

// RevokeToken revokes a token known only by id, for example from an admin
// console. The record expires one full lifetime of typ from now, which is
// never earlier than the token's real expiry. An empty typ uses the refresh
// lifetime. An empty reason records manual_revoke.
func (e *Engine) RevokeToken(ctx context.Context, tokenID, subjectID string, typ TokenType, reason string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	tokenID = strings.TrimSpace(tokenID)
	subjectID = strings.TrimSpace(subjectID)
	if tokenID == "" {
		return ErrMissingJTI
	}
	if subjectID == "" {
		return fmt.Errorf("%w: subject id is required", ErrValidation)
	}
	switch typ {
	case TokenAccess, TokenRefresh, TokenAny:
	default:
		return fmt.Errorf("%w: unknown token type %q", ErrValidation, typ)
	}
	if reason == "" {
		reason = ReasonManualRevoke
	}
	return e.revoke(ctx, flows.RevokeRequest{
		TokenID:   tokenID,
		SubjectID: subjectID,
		TokenType: typ,
	}, reason)
}

func (e *Engine) revoke(ctx context.Context, req flows.RevokeRequest, reason string) error {
	res := e.flows.RevokeTokenID(ctx, req, reason)
	switch res.Failure {
	case flows.RevokeFailureNone:
		e.metricInc(MetricRevokeSuccess)
		e.emitAudit(ctx, auditEventTokenRevoked, true, req.SubjectID, req.TokenID, req.TokenType, nil, func() map[string]string {
			return map[string]string{"reason": reason}
		})
		return nil
	case flows.RevokeFailureDuplicate:
		e.metricInc(MetricRevokeDuplicate)
		return ErrAlreadyRevoked
	case flows.RevokeFailureInvalid:
		e.metricInc(MetricRevokeFailure)
		return fmt.Errorf("%w: %v", ErrValidation, res.Err)
	default:
		e.metricInc(MetricRevokeFailure)
		err := storageError(res.Err)
		e.logger.Error().Err(res.Err).Str("jti", req.TokenID).Str("reason", reason).Msg("revoke failed")
		e.emitAudit(ctx, auditEventTokenRevoked, false, req.SubjectID, req.TokenID, req.TokenType, err, nil)
		return err
	}
}

// RevokeAllForSubject invalidates every token issued to subjectID before the
// current second. Tokens issued later in the same second, or afterwards, stay
// valid. It returns the effective cut-off, which never moves backwards. An
// empty reason records logout_all.
func (e *Engine) RevokeAllForSubject(ctx context.Context, subjectID, reason string) (time.Time, error) {
	if !e.ready() {
		return time.Time{}, ErrEngineNotReady
	}
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return time.Time{}, fmt.Errorf("%w: subject id is required", ErrValidation)
	}
	if reason == "" {
		reason = ReasonLogoutAll
	}

	wm, err := e.flows.RevokeAll(ctx, subjectID, reason)
	if err != nil {
		e.metricInc(MetricRevokeFailure)
		err = storageError(err)
		e.emitAudit(ctx, auditEventRevokeAll, false, subjectID, "", "", err, nil)
		return time.Time{}, err
	}

	e.metricInc(MetricRevokeAll)
	e.emitAudit(ctx, auditEventRevokeAll, true, subjectID, "", "", nil, func() map[string]string {
		return map[string]string{
			"reason":      reason,
			"valid_since": wm.ValidSince.UTC().Format(time.RFC3339),
		}
	})
	return wm.ValidSince, nil
}

// ListRevokedForSubject returns the subject's individual revocation records,
// newest first. Subject-wide cut-offs are not listed.
func (e *Engine) ListRevokedForSubject(ctx context.Context, subjectID string) ([]RevocationRecord, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	records, err := flows.RunListRevoked(ctx, subjectID, e.store)
	if err != nil {
		return nil, storageError(err)
	}
	return records, nil
}

// IsTokenRevoked reports whether tokenID has an individual revocation record.
func (e *Engine) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	if tokenID == "" {
		return false, ErrMissingJTI
	}
	revoked, err := e.store.IsRevoked(ctx, tokenID)
	if err != nil {
		return false, storageError(err)
	}
	return revoked, nil
}

// PurgeExpired deletes revocation records whose token expired more than the
// verification leeway ago. Records inside the leeway are kept so a token
// still accepted by the decoder cannot slip past its revocation.
func (e *Engine) PurgeExpired(ctx context.Context) (int64, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	cutoff := e.now().Add(-e.config.JWT.Leeway)
	n, err := e.store.PurgeExpired(ctx, cutoff)
	if n > 0 {
		e.metrics.Add(MetricPurgedRecords, n)
	}
	if err != nil {
		e.logger.Error().Err(err).Int64("purged", n).Msg("purge of expired revocations failed")
		return n, storageError(err)
	}

	e.logger.Info().Int64("purged", n).Time("cutoff", cutoff).Msg("purged expired revocations")
	e.emitAudit(ctx, auditEventPurge, true, "", "", "", nil, func() map[string]string {
		return map[string]string{"purged": fmt.Sprintf("%d", n)}
	})
	return n, nil
}
