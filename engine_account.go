package goToken

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/goToken/internal"
)

// Register validates draft, stores a new active principal and issues a fresh
// pair for it. Validation failures wrap both [ErrValidation] and a
// *validation.Error carrying per-field messages. A taken email returns
// [ErrPrincipalExists].
func (e *Engine) Register(ctx context.Context, draft PrincipalDraft) (Principal, TokenPair, error) {
	if !e.ready() || e.principals == nil {
		return Principal{}, TokenPair{}, ErrEngineNotReady
	}

	result := e.registerRules.Validate(map[string]string{
		"name":     draft.Name,
		"email":    draft.Email,
		"password": draft.Password,
	})
	if !result.Valid() {
		return Principal{}, TokenPair{}, fmt.Errorf("%w: %w", ErrValidation, result.Err())
	}

	email := normalizeEmail(draft.Email)
	existing, err := e.principals.FindByEmail(ctx, email)
	if err != nil {
		return Principal{}, TokenPair{}, fmt.Errorf("%w: %v", ErrPrincipalStoreUnavailable, err)
	}
	if existing != nil {
		e.registerDuplicate(ctx, email)
		return Principal{}, TokenPair{}, ErrPrincipalExists
	}

	hash, err := e.hasher.Hash(draft.Password)
	if err != nil {
		return Principal{}, TokenPair{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	created, err := e.principals.Create(ctx, Principal{
		ID:           internal.NewPrincipalID(),
		Name:         strings.TrimSpace(draft.Name),
		Email:        email,
		PasswordHash: hash,
		IsAdmin:      draft.IsAdmin,
		IsActive:     true,
		CreatedAt:    e.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, ErrPrincipalExists) {
			e.registerDuplicate(ctx, email)
			return Principal{}, TokenPair{}, ErrPrincipalExists
		}
		return Principal{}, TokenPair{}, fmt.Errorf("%w: %v", ErrPrincipalStoreUnavailable, err)
	}

	issued := e.flows.Issue(subjectFromPrincipal(created), true)
	if issued.Err != nil {
		return created, TokenPair{}, issued.Err
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, created.ID, issued.AccessTokenID, TokenAccess, nil, nil)
	return created, pairFromIssue(issued), nil
}

func (e *Engine) registerDuplicate(ctx context.Context, email string) {
	e.metricInc(MetricRegisterDuplicate)
	e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", "", "", ErrPrincipalExists, func() map[string]string {
		return map[string]string{"identifier": email}
	})
}

// ChangePassword replaces the password of the principal behind claims.
//
// claims must come from a fresh access token. On success every token issued
// to the principal before this second is revoked and a new fresh pair is
// returned so the caller stays signed in.
func (e *Engine) ChangePassword(ctx context.Context, claims *VerifiedClaims, oldPassword, newPassword string) (TokenPair, error) {
	if !e.ready() || e.principals == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	if claims == nil {
		return TokenPair{}, ErrTokenMissing
	}
	if err := e.CheckFresh(claims); err != nil {
		return TokenPair{}, err
	}

	result := e.changeRules.Validate(map[string]string{
		"old_password": oldPassword,
		"new_password": newPassword,
	})
	if !result.Valid() {
		return TokenPair{}, fmt.Errorf("%w: %w", ErrValidation, result.Err())
	}

	p, err := e.principals.FindByID(ctx, claims.SubjectID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrPrincipalStoreUnavailable, err)
	}
	if p == nil || !p.IsActive {
		return TokenPair{}, ErrSubjectInactive
	}

	ok, err := e.hasher.Verify(oldPassword, p.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChangeBadOld, false, p.ID, claims.TokenID, claims.Type, ErrInvalidCredentials, nil)
		return TokenPair{}, ErrInvalidCredentials
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := e.principals.UpdatePasswordHash(ctx, p.ID, hash); err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrPrincipalStoreUnavailable, err)
	}

	if _, err := e.RevokeAllForSubject(ctx, p.ID, ReasonPasswordChange); err != nil {
		e.logger.Error().Err(err).Str("subject_id", p.ID).Msg("password changed but old tokens were not revoked")
		return TokenPair{}, err
	}

	p.PasswordHash = hash
	issued := e.flows.Issue(subjectFromPrincipal(*p), true)
	if issued.Err != nil {
		return TokenPair{}, issued.Err
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChange, true, p.ID, issued.AccessTokenID, TokenAccess, nil, nil)
	return pairFromIssue(issued), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
