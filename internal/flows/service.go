package flows

import (
	"context"

	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/revocation"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Verify.Decode != nil && s.deps.Verify.Store != nil
}

func (s Service) Issue(subject Subject, fresh bool) IssueResult {
	return RunIssue(subject, fresh, s.deps.Issue)
}

func (s Service) Login(ctx context.Context, email, password string) LoginResult {
	return RunLogin(ctx, email, password, s.deps.Login)
}

func (s Service) Introspect(ctx context.Context, raw string) IntrospectResult {
	return RunIntrospect(ctx, raw, s.deps.Verify)
}

func (s Service) Verify(ctx context.Context, raw string, expected jwt.TokenType) VerifyResult {
	return RunVerify(ctx, raw, expected, s.deps.Verify)
}

func (s Service) Rotate(ctx context.Context, refreshToken string) RotateResult {
	return RunRotate(ctx, refreshToken, s.deps.Rotate)
}

func (s Service) RevokeClaims(ctx context.Context, claims *jwt.Claims, reason string) RevokeResult {
	return RunRevokeClaims(ctx, claims, reason, s.deps.Revoke)
}

func (s Service) RevokeTokenID(ctx context.Context, req RevokeRequest, reason string) RevokeResult {
	return RunRevokeTokenID(ctx, req, reason, s.deps.Revoke)
}

func (s Service) RevokeAll(ctx context.Context, subjectID, reason string) (revocation.Watermark, error) {
	return RunRevokeAll(ctx, subjectID, reason, s.deps.Revoke)
}
