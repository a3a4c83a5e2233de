package flows

import (
	"context"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/revocation"
)

// RotateFailureKind classifies refresh-rotation failures for root-level mapping.
type RotateFailureKind int

const (
	RotateFailureNone RotateFailureKind = iota
	RotateFailureVerify
	RotateFailureSubjectLookup
	RotateFailureSubjectInactive
	RotateFailureRevoke
	RotateFailureRaceLost
	RotateFailureIssue
)

// RotateResult carries the new pair or failure metadata.
type RotateResult struct {
	Failure RotateFailureKind
	Err     error
	Verify  VerifyResult
	Claims  *jwt.Claims
	Subject Subject
	Issued  IssueResult
	// RaceDetected is set when a concurrent rotation revoked the same refresh
	// token first.
	RaceDetected bool
}

// RotateDeps captures refresh-rotation dependencies.
type RotateDeps struct {
	Verify       VerifyDeps
	Revoke       RevokeDeps
	Issue        IssueDeps
	LoadSubject  func(ctx context.Context, subjectID string) (Subject, bool, error)
	SingleWinner bool
}

// RunRotate exchanges a refresh token for a new pair.
//
// The presented refresh token is revoked with reason token_rotation before the
// new pair is minted. If a concurrent rotation already revoked it, issuance
// proceeds unless SingleWinner is set, in which case the later caller fails.
func RunRotate(ctx context.Context, refreshToken string, deps RotateDeps) RotateResult {
	v := RunVerify(ctx, refreshToken, jwt.TypeRefresh, deps.Verify)
	if v.Failure != VerifyFailureNone {
		return RotateResult{Failure: RotateFailureVerify, Err: v.Err, Verify: v, Claims: v.Claims}
	}
	claims := v.Claims

	subject, found, err := deps.LoadSubject(ctx, claims.UID)
	if err != nil {
		return RotateResult{Failure: RotateFailureSubjectLookup, Err: err, Verify: v, Claims: claims}
	}
	if !found || !subject.IsActive {
		return RotateResult{Failure: RotateFailureSubjectInactive, Verify: v, Claims: claims, Subject: subject}
	}

	race := false
	rr := RunRevokeClaims(ctx, claims, revocation.ReasonTokenRotation, deps.Revoke)
	switch rr.Failure {
	case RevokeFailureNone:
	case RevokeFailureDuplicate:
		race = true
		if deps.SingleWinner {
			return RotateResult{Failure: RotateFailureRaceLost, Err: rr.Err, Verify: v, Claims: claims, Subject: subject, RaceDetected: true}
		}
	default:
		return RotateResult{Failure: RotateFailureRevoke, Err: rr.Err, Verify: v, Claims: claims, Subject: subject}
	}

	issued := RunIssue(subject, false, deps.Issue)
	if issued.Err != nil {
		return RotateResult{Failure: RotateFailureIssue, Err: issued.Err, Verify: v, Claims: claims, Subject: subject, RaceDetected: race}
	}

	return RotateResult{
		Failure:      RotateFailureNone,
		Verify:       v,
		Claims:       claims,
		Subject:      subject,
		Issued:       issued,
		RaceDetected: race,
	}
}
