package flows

import (
	"context"
	"strings"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureLookup
	LoginFailureInvalidCredentials
	LoginFailureInactive
	LoginFailureIssue
)

// LoginPrincipal is a flow-local principal model.
type LoginPrincipal struct {
	Subject
	PasswordHash string
}

// LoginResult carries the issued pair or failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	Subject Subject
	Issued  IssueResult
	// PasswordHash is the stored hash that matched, for rehash checks.
	PasswordHash string
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	ClientIPFromContext func(context.Context) string

	CheckLoginRate     func(ctx context.Context, identifier, ip string) error
	IncrementLoginRate func(ctx context.Context, identifier, ip string) error
	ResetLoginRate     func(ctx context.Context, identifier, ip string) error

	FindByEmail    func(ctx context.Context, email string) (LoginPrincipal, bool, error)
	VerifyPassword func(plaintext, encoded string) (bool, error)

	Issue IssueDeps
	Warn  func(string, ...any)
}

// RunLogin checks credentials and issues a fresh pair.
//
// Unknown emails, wrong passwords and inactive principals each count against
// the login rate limit. The inactive case is reported separately so the caller
// can audit it, but callers should present all three identically.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) LoginResult {
	email = strings.ToLower(strings.TrimSpace(email))
	ip := ""
	if deps.ClientIPFromContext != nil {
		ip = deps.ClientIPFromContext(ctx)
	}
	warn := deps.Warn
	if warn == nil {
		warn = func(string, ...any) {}
	}

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, email, ip); err != nil {
			return LoginResult{Failure: LoginFailureRateLimited, Err: err}
		}
	}

	fail := func(kind LoginFailureKind, subject Subject) LoginResult {
		if deps.IncrementLoginRate != nil {
			if err := deps.IncrementLoginRate(ctx, email, ip); err != nil {
				warn("login rate increment failed: %v", err)
			}
		}
		return LoginResult{Failure: kind, Subject: subject}
	}

	principal, found, err := deps.FindByEmail(ctx, email)
	if err != nil {
		return LoginResult{Failure: LoginFailureLookup, Err: err}
	}
	if !found {
		return fail(LoginFailureInvalidCredentials, Subject{})
	}

	ok, err := deps.VerifyPassword(password, principal.PasswordHash)
	if err != nil || !ok {
		return fail(LoginFailureInvalidCredentials, principal.Subject)
	}
	if !principal.IsActive {
		return fail(LoginFailureInactive, principal.Subject)
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, email, ip); err != nil {
			warn("login rate reset failed: %v", err)
		}
	}

	issued := RunIssue(principal.Subject, true, deps.Issue)
	if issued.Err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: issued.Err, Subject: principal.Subject}
	}
	return LoginResult{Failure: LoginFailureNone, Subject: principal.Subject, Issued: issued, PasswordHash: principal.PasswordHash}
}
