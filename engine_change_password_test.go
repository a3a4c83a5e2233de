package goToken

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goToken/validation"
)

func TestRegisterIssuesFreshPair(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	p, pair, err := env.engine.Register(ctx, PrincipalDraft{
		Name:     "  Bob  ",
		Email:    " Bob@Example.com ",
		Password: "another-password-1",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if p.ID == "" || p.Email != "bob@example.com" || p.Name != "Bob" || !p.IsActive {
		t.Fatalf("unexpected principal %+v", p)
	}
	if p.PasswordHash == "another-password-1" {
		t.Fatal("password stored in plaintext")
	}

	claims, err := env.engine.Verify(ctx, pair.AccessToken, TokenAccess)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !claims.Fresh || claims.SubjectID != p.ID {
		t.Fatalf("expected fresh access token for %s, got %+v", p.ID, claims)
	}

	if _, err := env.engine.Login(ctx, "bob@example.com", "another-password-1"); err != nil {
		t.Fatalf("login with registered credentials failed: %v", err)
	}
}

func TestRegisterRejectsDuplicateAndInvalid(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	_, _, err := env.engine.Register(ctx, PrincipalDraft{Name: "Alice", Email: "ALICE@example.com", Password: "whatever-password"})
	if !errors.Is(err, ErrPrincipalExists) {
		t.Fatalf("expected ErrPrincipalExists, got %v", err)
	}

	_, _, err = env.engine.Register(ctx, PrincipalDraft{Name: "B", Email: "not-an-email", Password: "short"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *validation.Error in chain, got %T", err)
	}
	fields := verr.Fields
	for _, f := range []string{"name", "email", "password"} {
		if len(fields[f]) == 0 {
			t.Fatalf("expected field error for %s, got %+v", f, fields)
		}
	}

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricRegisterDuplicate] != 1 || snap.Counters[MetricRegisterSuccess] != 0 {
		t.Fatalf("unexpected register counters %+v", snap.Counters)
	}
}

func TestChangePasswordRequiresFreshToken(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	pair := env.login(t)

	rotated, err := env.engine.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	claims, err := env.engine.Verify(ctx, rotated.AccessToken, TokenAccess)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if _, err := env.engine.ChangePassword(ctx, claims, testPassword, "brand-new-password-1"); !errors.Is(err, ErrFreshnessRequired) {
		t.Fatalf("expected ErrFreshnessRequired, got %v", err)
	}
	if _, err := env.engine.ChangePassword(ctx, nil, testPassword, "brand-new-password-1"); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing, got %v", err)
	}
}

func TestChangePasswordWrongOldPassword(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	pair := env.login(t)

	claims, err := env.engine.Verify(ctx, pair.AccessToken, TokenAccess)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	_, err = env.engine.ChangePassword(ctx, claims, "wrong-password-123", "brand-new-password-1")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[MetricPasswordChangeInvalidOld]; got != 1 {
		t.Fatalf("expected invalid-old metric 1, got %d", got)
	}
	if _, err := env.engine.Verify(ctx, pair.AccessToken, TokenAccess); err != nil {
		t.Fatalf("failed change must not revoke tokens: %v", err)
	}
}

func TestChangePasswordValidatesNewPassword(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	pair := env.login(t)

	claims, err := env.engine.Verify(ctx, pair.AccessToken, TokenAccess)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if _, err := env.engine.ChangePassword(ctx, claims, testPassword, "short"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestChangePasswordRevokesOldTokens(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	pair := env.login(t)

	claims, err := env.engine.Verify(ctx, pair.AccessToken, TokenAccess)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	env.clock.Advance(2 * time.Second)
	next, err := env.engine.ChangePassword(ctx, claims, testPassword, "brand-new-password-1")
	if err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	for _, raw := range []string{pair.AccessToken, pair.RefreshToken} {
		if _, err := env.engine.Verify(ctx, raw, TokenAny); !errors.Is(err, ErrTokenRevoked) {
			t.Fatalf("expected old token revoked, got %v", err)
		}
	}

	fresh, err := env.engine.Verify(ctx, next.AccessToken, TokenAccess)
	if err != nil {
		t.Fatalf("new access token rejected: %v", err)
	}
	if !fresh.Fresh {
		t.Fatal("expected the new access token to be fresh")
	}
	if _, err := env.engine.Refresh(ctx, next.RefreshToken); err != nil {
		t.Fatalf("new refresh token rejected: %v", err)
	}

	if _, err := env.engine.Login(ctx, testEmail, testPassword); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, err := env.engine.Login(ctx, testEmail, "brand-new-password-1"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
}

func TestChangePasswordInactivePrincipal(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	pair := env.login(t)

	claims, err := env.engine.Verify(ctx, pair.AccessToken, TokenAccess)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if err := env.principals.SetActive(ctx, testSubject, false); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	if _, err := env.engine.ChangePassword(ctx, claims, testPassword, "brand-new-password-1"); !errors.Is(err, ErrSubjectInactive) {
		t.Fatalf("expected ErrSubjectInactive, got %v", err)
	}
}

func TestLoginUpgradesWeakPasswordHash(t *testing.T) {
	env := newTestEnv(t, func(c *Config) { c.Password.Time = 2 })
	ctx := context.Background()

	before, _ := env.principals.FindByID(ctx, testSubject)
	if !strings.Contains(before.PasswordHash, ",t=1,") {
		t.Fatalf("seeded hash should use t=1: %s", before.PasswordHash)
	}

	env.login(t)

	after, _ := env.principals.FindByID(ctx, testSubject)
	if !strings.Contains(after.PasswordHash, ",t=2,") {
		t.Fatalf("expected upgraded hash, got %s", after.PasswordHash)
	}
	if _, err := env.engine.Login(ctx, testEmail, testPassword); err != nil {
		t.Fatalf("login with upgraded hash failed: %v", err)
	}
}
