package goToken

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	const key = "0123456789abcdef0123456789abcdef"

	// wantErr is a substring of the expected error; empty means valid.
	cases := map[string]struct {
		mutate  func(*Config)
		wantErr string
	}{
		"leeway at 45s":        {func(c *Config) { c.JWT.Leeway = 45 * time.Second }, ""},
		"leeway above 2m":      {func(c *Config) { c.JWT.Leeway = 3 * time.Minute }, "Leeway"},
		"blank audience":       {func(c *Config) { c.JWT.Audience = "   " }, "Audience must not be blank"},
		"negative future iat":  {func(c *Config) { c.JWT.MaxFutureIAT = -time.Second }, "MaxFutureIAT"},
		"rs256":                {func(c *Config) { c.JWT.SigningMethod = "rs256" }, "unsupported JWT signing method"},
		"ed25519 without keys": {func(c *Config) { c.JWT.SigningMethod = "ed25519"; c.JWT.PrivateKey = nil }, "ed25519 requires PrivateKey"},
		"ed25519 without public key": {
			func(c *Config) { c.JWT.SigningMethod = "ed25519" },
			"ed25519 requires PublicKey",
		},
		"access not shorter than refresh": {func(c *Config) { c.JWT.AccessTTL = c.JWT.RefreshTTL }, "shorter than RefreshTTL"},
		"verify keys without kid": {
			func(c *Config) { c.JWT.VerifyKeys = map[string][]byte{"old": []byte(key)} },
			"requires KeyID",
		},
		"verify keys with kid": {
			func(c *Config) {
				c.JWT.KeyID = "new"
				c.JWT.VerifyKeys = map[string][]byte{"old": []byte(key)}
			},
			"",
		},
		"retention under leeway":    {func(c *Config) { c.Revocation.Retention = 10 * time.Second }, "cover JWT Leeway"},
		"negative lookup timeout":   {func(c *Config) { c.Revocation.LookupTimeout = -time.Millisecond }, "LookupTimeout"},
		"negative freshness window": {func(c *Config) { c.Freshness.Window = -time.Minute }, "Freshness Window"},
		"inverted password bounds": {
			func(c *Config) { c.Password.MinLength, c.Password.MaxLength = 20, 10 },
			"MaxLength must be >= MinLength",
		},
		"refresh throttle without budget": {func(c *Config) { c.Security.MaxRefreshAttempts = 0 }, "MaxRefreshAttempts"},
		"audit without buffer": {
			func(c *Config) { c.Audit.Enabled, c.Audit.BufferSize = true, 0 },
			"Audit BufferSize",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			switch {
			case tc.wantErr == "" && err != nil:
				t.Fatalf("Validate: %v", err)
			case tc.wantErr != "" && err == nil:
				t.Fatalf("Validate accepted config, want %q", tc.wantErr)
			case tc.wantErr != "" && !strings.Contains(err.Error(), tc.wantErr):
				t.Fatalf("Validate = %v, want %q", err, tc.wantErr)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Revocation.FailOpen {
		t.Fatal("default must fail closed")
	}
	if cfg.JWT.SigningMethod != "hs256" {
		t.Fatalf("unexpected default signing method %q", cfg.JWT.SigningMethod)
	}
	if cfg.Revocation.Retention < cfg.JWT.Leeway {
		t.Fatal("default retention must cover leeway")
	}
	if cfg.Password.MinLength != 8 || cfg.Password.MaxLength != 1024 {
		t.Fatalf("unexpected password bounds %d..%d", cfg.Password.MinLength, cfg.Password.MaxLength)
	}
}

func TestWithConfigCopiesKeys(t *testing.T) {
	cfg := testConfig()
	cfg.JWT.KeyID = "k1"
	cfg.JWT.VerifyKeys = map[string][]byte{"k0": []byte("0123456789abcdef0123456789abcdef")}

	b := New().WithConfig(cfg)
	cfg.JWT.PrivateKey[0] = 'X'
	cfg.JWT.VerifyKeys["k0"][0] = 'X'
	cfg.JWT.VerifyKeys["k9"] = []byte("late")

	if b.config.JWT.PrivateKey[0] == 'X' {
		t.Fatal("private key shared with caller")
	}
	if b.config.JWT.VerifyKeys["k0"][0] == 'X' {
		t.Fatal("verify key shared with caller")
	}
	if _, ok := b.config.JWT.VerifyKeys["k9"]; ok {
		t.Fatal("verify key map shared with caller")
	}
}
