package goToken

import (
	"testing"
	"time"
)

func TestLint_DefaultConfigKeepsThrottling(t *testing.T) {
	cfg := defaultConfig()
	codes := cfg.Lint().Codes()

	if containsCode(codes, "rate_limits_disabled") {
		t.Error("default config should not have rate_limits_disabled")
	}
	if containsCode(codes, "fail_open") {
		t.Error("default config must fail closed")
	}
	if !containsCode(codes, "ip_throttle_disabled") {
		t.Error("default config throttles per identifier only")
	}
}

func TestLint_HighSecurityConfigMinimalWarnings(t *testing.T) {
	cfg := HighSecurityConfig()
	codes := cfg.Lint().Codes()

	unwanted := []string{
		"leeway_large",
		"access_ttl_long",
		"refresh_ttl_long",
		"rate_limits_disabled",
		"ip_throttle_disabled",
		"fail_open",
		"lookup_unbounded",
		"rotation_multi_winner",
	}
	for _, code := range unwanted {
		if containsCode(codes, code) {
			t.Errorf("HighSecurityConfig should not produce warning %q", code)
		}
	}
}

func TestLint_LargeLeeway(t *testing.T) {
	cfg := defaultConfig()
	cfg.JWT.Leeway = 90 * time.Second
	if !containsCode(cfg.Lint().Codes(), "leeway_large") {
		t.Error("expected leeway_large warning")
	}
}

func TestLint_LongAccessTTL(t *testing.T) {
	cfg := defaultConfig()
	cfg.JWT.AccessTTL = 20 * time.Minute
	if !containsCode(cfg.Lint().Codes(), "access_ttl_long") {
		t.Error("expected access_ttl_long warning")
	}
}

func TestLint_LongRefreshTTL(t *testing.T) {
	cfg := defaultConfig()
	cfg.JWT.RefreshTTL = 30 * 24 * time.Hour
	if !containsCode(cfg.Lint().Codes(), "refresh_ttl_long") {
		t.Error("expected refresh_ttl_long warning")
	}
}

func TestLint_AllRateLimitsDisabled(t *testing.T) {
	cfg := defaultConfig()
	cfg.Security.EnableLoginThrottle = false
	cfg.Security.EnableRefreshThrottle = false
	if !containsCode(cfg.Lint().Codes(), "rate_limits_disabled") {
		t.Error("expected rate_limits_disabled warning")
	}
}

func TestLint_FailOpenAndUnboundedLookup(t *testing.T) {
	cfg := defaultConfig()
	cfg.Revocation.FailOpen = true
	cfg.Revocation.LookupTimeout = 0
	codes := cfg.Lint().Codes()
	if !containsCode(codes, "fail_open") {
		t.Error("expected fail_open warning")
	}
	if !containsCode(codes, "lookup_unbounded") {
		t.Error("expected lookup_unbounded warning")
	}
}

func TestLint_AuditDropIfFull(t *testing.T) {
	cfg := defaultConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = true
	if !containsCode(cfg.Lint().Codes(), "audit_drop_if_full") {
		t.Error("expected audit_drop_if_full warning")
	}

	cfg.Audit.DropIfFull = false
	if containsCode(cfg.Lint().Codes(), "audit_drop_if_full") {
		t.Error("blocking audit should not warn")
	}
}

// helpers

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
