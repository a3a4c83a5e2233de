package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/revocation"
)

// RevokeFailureKind classifies revocation failures for root-level mapping.
type RevokeFailureKind int

const (
	RevokeFailureNone RevokeFailureKind = iota
	RevokeFailureInvalid
	RevokeFailureDuplicate
	RevokeFailureStorage
)

// RevokeResult carries the stored record or failure metadata.
type RevokeResult struct {
	Failure RevokeFailureKind
	Err     error
	Record  revocation.Record
}

// RevokeStore is the write side of the revocation store.
type RevokeStore interface {
	Revoke(ctx context.Context, rec revocation.Record) (revocation.Record, error)
	AdvanceWatermark(ctx context.Context, wm revocation.Watermark) (revocation.Watermark, error)
}

// RevokeDeps captures revocation dependencies.
type RevokeDeps struct {
	Store      RevokeStore
	Now        func() time.Time
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// RevokeRequest identifies a token by id when the token itself is not at hand.
// A zero ExpiresAt is replaced by now plus the lifetime of TokenType.
type RevokeRequest struct {
	TokenID   string
	SubjectID string
	TokenType jwt.TokenType
	ExpiresAt time.Time
}

// RunRevokeClaims revokes the token described by verified claims.
func RunRevokeClaims(ctx context.Context, claims *jwt.Claims, reason string, deps RevokeDeps) RevokeResult {
	if claims == nil || claims.TokenID() == "" {
		return RevokeResult{Failure: RevokeFailureInvalid, Err: errors.New("revoke: token id is required")}
	}
	return RunRevokeTokenID(ctx, RevokeRequest{
		TokenID:   claims.TokenID(),
		SubjectID: claims.UID,
		TokenType: claims.Type,
		ExpiresAt: claims.ExpiresAtTime(),
	}, reason, deps)
}

// RunRevokeTokenID inserts a revocation record for req.
func RunRevokeTokenID(ctx context.Context, req RevokeRequest, reason string, deps RevokeDeps) RevokeResult {
	now := deps.Now()
	expiresAt := req.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(deps.lifetime(req.TokenType))
	}

	rec := revocation.Record{
		TokenID:   req.TokenID,
		SubjectID: req.SubjectID,
		TokenType: string(req.TokenType),
		RevokedAt: now,
		ExpiresAt: expiresAt,
		Reason:    reason,
	}
	if err := rec.Validate(); err != nil {
		return RevokeResult{Failure: RevokeFailureInvalid, Err: err}
	}

	stored, err := deps.Store.Revoke(ctx, rec)
	if err != nil {
		if errors.Is(err, revocation.ErrAlreadyRevoked) {
			return RevokeResult{Failure: RevokeFailureDuplicate, Err: err}
		}
		if errors.Is(err, revocation.ErrInvalidRecord) {
			return RevokeResult{Failure: RevokeFailureInvalid, Err: err}
		}
		return RevokeResult{Failure: RevokeFailureStorage, Err: err}
	}
	return RevokeResult{Failure: RevokeFailureNone, Record: stored}
}

// RunRevokeAll advances the subject watermark to now. The watermark outlives
// the longest token lifetime so it can be purged once every covered token has
// expired on its own.
func RunRevokeAll(ctx context.Context, subjectID, reason string, deps RevokeDeps) (revocation.Watermark, error) {
	now := deps.Now()
	return deps.Store.AdvanceWatermark(ctx, revocation.Watermark{
		SubjectID:  subjectID,
		ValidSince: now,
		ExpiresAt:  now.Add(deps.longestLifetime()),
		Reason:     reason,
	})
}

func (d RevokeDeps) lifetime(typ jwt.TokenType) time.Duration {
	if typ == jwt.TypeAccess {
		return d.AccessTTL
	}
	return d.RefreshTTL
}

func (d RevokeDeps) longestLifetime() time.Duration {
	if d.AccessTTL > d.RefreshTTL {
		return d.AccessTTL
	}
	return d.RefreshTTL
}
