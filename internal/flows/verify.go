package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/revocation"
)

// VerifyFailureKind classifies verification failures for root-level mapping.
type VerifyFailureKind int

const (
	VerifyFailureNone VerifyFailureKind = iota
	VerifyFailureMissing
	VerifyFailureMalformed
	VerifyFailureSignature
	VerifyFailureExpired
	VerifyFailureWrongType
	VerifyFailureRevoked
	VerifyFailureStorage
)

// VerifyResult carries decoded claims or failure metadata.
type VerifyResult struct {
	Failure VerifyFailureKind
	Err     error
	Claims  *jwt.Claims
	// FailedOpen is set when a store error was ignored under fail-open policy.
	FailedOpen bool
	// RevokedByWatermark is set when a subject-wide revocation matched.
	RevokedByWatermark bool
}

// VerifyStore is the read side of the revocation store used during verification.
type VerifyStore interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Watermark(ctx context.Context, subjectID string) (revocation.Watermark, bool, error)
}

// VerifyDeps captures verification dependencies.
type VerifyDeps struct {
	Decode        func(string) (*jwt.Claims, error)
	Store         VerifyStore
	LookupTimeout time.Duration
	FailOpen      bool
	Warn          func(err error, claims *jwt.Claims)
}

// RunVerify decodes raw, checks its type against expected (empty accepts
// either) and consults the revocation store.
//
// Checks run in a fixed order: presence, decode, type, jti record, subject
// watermark. Store errors fail closed unless deps.FailOpen is set.
func RunVerify(ctx context.Context, raw string, expected jwt.TokenType, deps VerifyDeps) VerifyResult {
	if raw == "" {
		return VerifyResult{Failure: VerifyFailureMissing}
	}

	claims, err := deps.Decode(raw)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrExpired):
			return VerifyResult{Failure: VerifyFailureExpired, Err: err}
		case errors.Is(err, jwt.ErrSignatureInvalid):
			return VerifyResult{Failure: VerifyFailureSignature, Err: err}
		default:
			return VerifyResult{Failure: VerifyFailureMalformed, Err: err}
		}
	}
	if claims.TokenID() == "" || claims.UID == "" {
		return VerifyResult{Failure: VerifyFailureMalformed, Err: jwt.ErrMalformed, Claims: claims}
	}
	if expected != "" && claims.Type != expected {
		return VerifyResult{Failure: VerifyFailureWrongType, Claims: claims}
	}

	lookupCtx := ctx
	if deps.LookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, deps.LookupTimeout)
		defer cancel()
	}

	revoked, err := deps.Store.IsRevoked(lookupCtx, claims.TokenID())
	if err != nil {
		return storeFailure(err, claims, deps)
	}
	if revoked {
		return VerifyResult{Failure: VerifyFailureRevoked, Claims: claims}
	}

	wm, ok, err := deps.Store.Watermark(lookupCtx, claims.UID)
	if err != nil {
		return storeFailure(err, claims, deps)
	}
	if ok && wm.Covers(claims.IssuedAtTime()) {
		return VerifyResult{Failure: VerifyFailureRevoked, Claims: claims, RevokedByWatermark: true}
	}

	return VerifyResult{Failure: VerifyFailureNone, Claims: claims}
}

func storeFailure(err error, claims *jwt.Claims, deps VerifyDeps) VerifyResult {
	if deps.FailOpen {
		if deps.Warn != nil {
			deps.Warn(err, claims)
		}
		return VerifyResult{Failure: VerifyFailureNone, Claims: claims, FailedOpen: true}
	}
	return VerifyResult{Failure: VerifyFailureStorage, Err: err, Claims: claims}
}
