package goToken

import (
	"context"

	"github.com/MrEthical07/goToken/internal/flows"
)

// Introspect decodes raw (either type) and reports its claims together with
// its revocation status. A revoked token is not an error here. Store
// failures are always reported, even with Revocation.FailOpen set.
func (e *Engine) Introspect(ctx context.Context, raw string) (*TokenInfo, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	res := e.flows.Introspect(ctx, raw)
	if err := e.verifyError(res.VerifyResult); err != nil {
		return nil, err
	}

	c := claimsFromJWT(res.Claims)
	return &TokenInfo{
		SubjectID:          c.SubjectID,
		TokenID:            c.TokenID,
		Type:               c.Type,
		IssuedAt:           c.IssuedAt,
		ExpiresAt:          c.ExpiresAt,
		IsAdmin:            c.IsAdmin,
		IsActive:           c.IsActive,
		Email:              c.Email,
		Fresh:              c.Fresh,
		Revoked:            res.Revoked,
		RevokedByWatermark: res.RevokedByWatermark,
	}, nil
}

// Health pings the revocation store when it supports it. Stores without a
// Ping method, such as the in-memory store, always report available.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if !e.ready() {
		return HealthStatus{}
	}

	latency, err := flows.RunPing(ctx, e.store)
	if err != nil {
		e.logger.Warn().Err(err).Msg("revocation store health check failed")
	}
	return HealthStatus{
		StoreAvailable: err == nil,
		StoreLatency:   latency,
		AuditDropped:   e.AuditDropped(),
	}
}
