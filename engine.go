package goToken

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	internalaudit "github.com/MrEthical07/goToken/internal/audit"
	"github.com/MrEthical07/goToken/internal/flows"
	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/revocation"
	"github.com/MrEthical07/goToken/validation"
)

// loginLimiter is satisfied by both rate.Limiter (Redis) and rate.Local.
type loginLimiter interface {
	CheckLogin(ctx context.Context, identifier, ip string) error
	IncrementLogin(ctx context.Context, identifier, ip string) error
	ResetLogin(ctx context.Context, identifier, ip string) error
	CheckRefresh(ctx context.Context, subjectID string) error
}

// Engine issues, verifies, rotates and revokes tokens.
//
// An Engine is built once by [Builder.Build] and is safe for concurrent use.
// The revocation store is the only shared mutable state it touches.
type Engine struct {
	config        Config
	flows         flows.Service
	store         revocation.Store
	jwtManager    *jwt.Manager
	principals    PrincipalRepository
	hasher        PasswordHasher
	limiter       loginLimiter
	limiterKind   string
	audit         *internalaudit.Dispatcher
	metrics       *Metrics
	logger        zerolog.Logger
	now           func() time.Time
	registerRules validation.RuleSet
	changeRules   validation.RuleSet
	loginRules    validation.RuleSet
	closed        atomic.Bool
}

// Close flushes pending audit events. Calls after the first are no-ops and
// every other method returns [ErrEngineNotReady] afterwards.
func (e *Engine) Close() {
	if e == nil || e.closed.Swap(true) {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() bool {
	return e != nil && !e.closed.Load() && e.flows.Initialized()
}

// IssuePair mints a new access and refresh token for p without touching the
// revocation store. The access token is not fresh.
func (e *Engine) IssuePair(p Principal) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}
	res := e.flows.Issue(subjectFromPrincipal(p), false)
	if res.Err != nil {
		return TokenPair{}, res.Err
	}
	return pairFromIssue(res), nil
}

// Verify checks raw and returns its claims.
//
// Checks run in order: presence, signature and expiry, type (skipped for
// [TokenAny]), revoked jti, subject watermark. An expired token is reported
// as [ErrTokenExpired] without consulting the store. Store failures yield
// [ErrStorageUnavailable] unless Revocation.FailOpen is set.
func (e *Engine) Verify(ctx context.Context, raw string, expected TokenType) (*VerifiedClaims, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricVerifyLatency, time.Since(start)) }()
	}

	res := e.flows.Verify(ctx, raw, expected)
	if res.FailedOpen {
		e.metricInc(MetricVerifyFailOpen)
	}
	if err := e.verifyError(res); err != nil {
		e.recordVerifyFailure(ctx, res, err)
		return nil, err
	}
	e.metricInc(MetricVerifySuccess)
	return claimsFromJWT(res.Claims), nil
}

func (e *Engine) verifyError(res flows.VerifyResult) error {
	switch res.Failure {
	case flows.VerifyFailureNone:
		return nil
	case flows.VerifyFailureMissing:
		return ErrTokenMissing
	case flows.VerifyFailureMalformed:
		return ErrTokenMalformed
	case flows.VerifyFailureSignature:
		return ErrTokenSignatureInvalid
	case flows.VerifyFailureExpired:
		return ErrTokenExpired
	case flows.VerifyFailureWrongType:
		return ErrTokenWrongType
	case flows.VerifyFailureRevoked:
		return ErrTokenRevoked
	case flows.VerifyFailureStorage:
		return storageError(res.Err)
	default:
		return ErrTokenMalformed
	}
}

func (e *Engine) recordVerifyFailure(ctx context.Context, res flows.VerifyResult, err error) {
	e.metricInc(MetricVerifyFailure)
	switch res.Failure {
	case flows.VerifyFailureExpired:
		e.metricInc(MetricVerifyExpired)
	case flows.VerifyFailureRevoked:
		e.metricInc(MetricVerifyRevoked)
		if res.Claims == nil {
			return
		}
		e.emitAudit(ctx, auditEventRevokedTokenPresented, false, res.Claims.UID, res.Claims.TokenID(), res.Claims.Type, err, func() map[string]string {
			if res.RevokedByWatermark {
				return map[string]string{"scope": "subject"}
			}
			return map[string]string{"scope": "token"}
		})
	case flows.VerifyFailureStorage:
		e.logger.Error().Err(res.Err).Msg("revocation lookup failed")
	}
}

// Login checks email and password and issues a fresh pair.
//
// Unknown email, wrong password and inactive principal all return
// [ErrInvalidCredentials]. When login throttling is enabled, failures count
// against both the email and (with IP throttling) the client IP from
// [WithClientIP]. A missing or malformed email or an empty password returns
// [ErrValidation] before any throttle or principal lookup.
func (e *Engine) Login(ctx context.Context, email, password string) (TokenPair, error) {
	if !e.ready() || e.principals == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	if result := e.loginRules.Validate(map[string]string{
		"email":    email,
		"password": password,
	}); !result.Valid() {
		return TokenPair{}, fmt.Errorf("%w: %w", ErrValidation, result.Err())
	}

	res := e.flows.Login(ctx, email, password)
	identifier := func() map[string]string {
		return map[string]string{"identifier": normalizeEmail(email)}
	}
	switch res.Failure {
	case flows.LoginFailureNone:
		e.metricInc(MetricLoginSuccess)
		e.emitAudit(ctx, auditEventLoginSuccess, true, res.Subject.ID, res.Issued.AccessTokenID, TokenAccess, nil, nil)
		e.upgradePasswordHash(ctx, res.Subject.ID, password, res.PasswordHash)
		return pairFromIssue(res.Issued), nil
	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", "", ErrLoginRateLimited, identifier)
		return TokenPair{}, ErrLoginRateLimited
	case flows.LoginFailureLookup:
		e.metricInc(MetricLoginFailure)
		err := fmt.Errorf("%w: %v", ErrPrincipalStoreUnavailable, res.Err)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", "", err, identifier)
		return TokenPair{}, err
	case flows.LoginFailureInvalidCredentials, flows.LoginFailureInactive:
		e.metricInc(MetricLoginFailure)
		reason := "bad_credentials"
		if res.Failure == flows.LoginFailureInactive {
			reason = "inactive"
		}
		e.emitAudit(ctx, auditEventLoginFailure, false, res.Subject.ID, "", "", ErrInvalidCredentials, func() map[string]string {
			m := identifier()
			m["reason"] = reason
			return m
		})
		return TokenPair{}, ErrInvalidCredentials
	default:
		e.metricInc(MetricLoginFailure)
		e.logger.Error().Err(res.Err).Str("subject_id", res.Subject.ID).Msg("token issuance failed")
		return TokenPair{}, res.Err
	}
}

// hashUpgrader is implemented by hashers that can tell when a stored hash
// used weaker parameters, such as [password.Argon2].
type hashUpgrader interface {
	NeedsUpgrade(encoded string) (bool, error)
}

// upgradePasswordHash re-hashes password with the current parameters after
// a successful login. Failures are logged and never fail the login.
func (e *Engine) upgradePasswordHash(ctx context.Context, subjectID, password, stored string) {
	up, ok := e.hasher.(hashUpgrader)
	if !ok || stored == "" {
		return
	}
	if needs, err := up.NeedsUpgrade(stored); err != nil || !needs {
		return
	}
	hash, err := e.hasher.Hash(password)
	if err == nil {
		err = e.principals.UpdatePasswordHash(ctx, subjectID, hash)
	}
	if err != nil {
		e.logger.Warn().Err(err).Str("subject_id", subjectID).Msg("password hash upgrade failed")
		return
	}
	e.logger.Info().Str("subject_id", subjectID).Msg("password hash upgraded")
}

// Refresh exchanges a refresh token for a new pair.
//
// The presented token is revoked with reason token_rotation before the new
// pair is issued, so it cannot be used again. If a concurrent Refresh already
// revoked it, this call still succeeds unless Rotation.SingleWinner is set,
// in which case it fails with [ErrTokenRevoked]. Storage failures abort
// without issuing.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if !e.ready() || e.principals == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	if e.limiter != nil && e.config.Security.EnableRefreshThrottle {
		if claims, err := e.jwtManager.Decode(refreshToken); err == nil {
			if err := e.limiter.CheckRefresh(ctx, claims.UID); err != nil {
				e.metricInc(MetricRefreshRateLimited)
				e.emitAudit(ctx, auditEventRefreshRateLimited, false, claims.UID, claims.TokenID(), claims.Type, ErrRefreshRateLimited, nil)
				return TokenPair{}, ErrRefreshRateLimited
			}
		}
	}

	res := e.flows.Rotate(ctx, refreshToken)
	if res.RaceDetected {
		e.metricInc(MetricRefreshRaceDetected)
		e.logger.Warn().
			Str("jti", res.Claims.TokenID()).
			Str("subject_id", res.Claims.UID).
			Bool("single_winner", e.config.Rotation.SingleWinner).
			Msg("concurrent refresh with the same token")
	}

	var err error
	switch res.Failure {
	case flows.RotateFailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, res.Subject.ID, res.Claims.TokenID(), TokenRefresh, nil, func() map[string]string {
			return map[string]string{"new_refresh_jti": res.Issued.RefreshTokenID}
		})
		return pairFromIssue(res.Issued), nil
	case flows.RotateFailureVerify:
		err = e.verifyError(res.Verify)
		if res.Verify.Failure == flows.VerifyFailureRevoked {
			e.metricInc(MetricVerifyRevoked)
		}
	case flows.RotateFailureSubjectLookup:
		err = fmt.Errorf("%w: %v", ErrPrincipalStoreUnavailable, res.Err)
	case flows.RotateFailureSubjectInactive:
		err = ErrSubjectInactive
	case flows.RotateFailureRaceLost:
		err = ErrTokenRevoked
	case flows.RotateFailureRevoke:
		err = storageError(res.Err)
	default:
		e.logger.Error().Err(res.Err).Msg("token issuance failed during refresh")
		err = res.Err
	}

	e.metricInc(MetricRefreshFailure)
	subjectID, tokenID := "", ""
	if res.Claims != nil {
		subjectID, tokenID = res.Claims.UID, res.Claims.TokenID()
	}
	e.emitAudit(ctx, auditEventRefreshFailure, false, subjectID, tokenID, TokenRefresh, err, nil)
	return TokenPair{}, err
}

// Logout verifies raw (either type) and revokes it with reason logout.
func (e *Engine) Logout(ctx context.Context, raw string) error {
	claims, err := e.Verify(ctx, raw, TokenAny)
	if err != nil {
		return err
	}
	if err := e.RevokeCurrent(ctx, claims, ReasonLogout); err != nil {
		return err
	}
	e.metricInc(MetricLogout)
	return nil
}

func storageError(err error) error {
	if err == nil || errors.Is(err, ErrStorageUnavailable) {
		if err == nil {
			return ErrStorageUnavailable
		}
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func subjectFromPrincipal(p Principal) flows.Subject {
	return flows.Subject{
		ID:       p.ID,
		Email:    p.Email,
		IsAdmin:  p.IsAdmin,
		IsActive: p.IsActive,
	}
}

func pairFromIssue(r flows.IssueResult) TokenPair {
	return TokenPair{
		AccessToken:      r.AccessToken,
		RefreshToken:     r.RefreshToken,
		TokenType:        "Bearer",
		AccessExpiresIn:  int64(r.AccessExpiresAt.Sub(r.IssuedAt) / time.Second),
		AccessJTI:        r.AccessTokenID,
		RefreshJTI:       r.RefreshTokenID,
		AccessExpiresAt:  r.AccessExpiresAt,
		RefreshExpiresAt: r.RefreshExpiresAt,
	}
}

func claimsFromJWT(c *jwt.Claims) *VerifiedClaims {
	if c == nil {
		return nil
	}
	return &VerifiedClaims{
		SubjectID: c.UID,
		TokenID:   c.TokenID(),
		Type:      c.Type,
		IssuedAt:  c.IssuedAtTime(),
		ExpiresAt: c.ExpiresAtTime(),
		IsAdmin:   c.Admin(),
		IsActive:  c.Active(),
		Email:     c.Email,
		Fresh:     c.Fresh,
	}
}
