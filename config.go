package goToken

import (
	"errors"
	"strings"
	"time"
)

// Config holds every tunable of an [Engine]. Build copies it, so later
// changes to the caller's value have no effect.
type Config struct {
	JWT        JWTConfig
	Revocation RevocationConfig
	Rotation   RotationConfig
	Freshness  FreshnessConfig
	Password   PasswordConfig
	Security   SecurityConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls token signing, lifetimes and claim validation.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	// VerifyKeys maps kid to verification key during key rotation.
	VerifyKeys map[string][]byte
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// RevocationConfig controls how the revocation store is consulted.
type RevocationConfig struct {
	// RedisPrefix namespaces keys when the engine builds a Redis store.
	RedisPrefix string
	// Retention keeps Redis records alive past token expiry.
	Retention time.Duration
	// LookupTimeout bounds each store call made by Verify. Zero disables.
	LookupTimeout time.Duration
	// FailOpen accepts tokens when the store is unreachable.
	FailOpen bool
}

// RotationConfig controls refresh rotation.
type RotationConfig struct {
	// SingleWinner rejects every concurrent refresh with the same token
	// except the first.
	SingleWinner bool
}

// FreshnessConfig controls fresh-token checks.
type FreshnessConfig struct {
	// Window additionally bounds token age for CheckFresh. Zero accepts any
	// token carrying the fresh flag.
	Window time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id parameters for the default hasher.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
	MaxLength   int

	// RequireLetterAndDigit makes Register and ChangePassword reject new
	// passwords without at least one letter and one digit.
	RequireLetterAndDigit bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds throttling and hardening switches.
type SecurityConfig struct {
	ProductionMode          bool
	EnableLoginThrottle     bool
	EnableIPThrottle        bool
	EnableRefreshThrottle   bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
	// LocalLimiterMaxEntries bounds the in-process limiter used without Redis.
	LocalLimiterMaxEntries int
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     time.Hour,
			RefreshTTL:    30 * 24 * time.Hour,
			SigningMethod: "hs256",
			Leeway:        30 * time.Second,
			MaxFutureIAT:  10 * time.Minute,
		},
		Revocation: RevocationConfig{
			RedisPrefix:   "rvk",
			Retention:     time.Minute,
			LookupTimeout: 500 * time.Millisecond,
			FailOpen:      false,
		},
		Rotation: RotationConfig{
			SingleWinner: false,
		},
		Freshness: FreshnessConfig{
			Window: 0,
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   8,
			MaxLength:   1024,
		},
		Security: SecurityConfig{
			ProductionMode:          false,
			EnableLoginThrottle:     true,
			EnableIPThrottle:        false,
			EnableRefreshThrottle:   true,
			MaxLoginAttempts:        5,
			LoginCooldownDuration:   15 * time.Minute,
			MaxRefreshAttempts:      20,
			RefreshCooldownDuration: time.Minute,
			LocalLimiterMaxEntries:  10000,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the defaults used by [New]. Signing keys are empty.
func DefaultConfig() Config {
	return defaultConfig()
}

// HighSecurityConfig returns a preset with short access tokens, fail-closed
// verification, single-winner rotation and IP throttling.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.AccessTTL = 5 * time.Minute
	cfg.JWT.RefreshTTL = 7 * 24 * time.Hour
	cfg.JWT.SigningMethod = "ed25519"
	cfg.JWT.Leeway = 10 * time.Second
	cfg.JWT.MaxFutureIAT = time.Minute
	cfg.Rotation.SingleWinner = true
	cfg.Freshness.Window = 5 * time.Minute
	cfg.Security.ProductionMode = true
	cfg.Security.EnableIPThrottle = true
	cfg.Audit.Enabled = true
	cfg.Password.RequireLetterAndDigit = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting in c.
func (c *Config) Validate() error {
	for _, section := range []func() error{
		c.validateJWT,
		c.validateRevocation,
		c.validatePassword,
		c.validateSecurity,
		c.validateProduction,
	} {
		if err := section(); err != nil {
			return err
		}
	}
	return nil
}

// rule fails with msg when broken is true.
type rule struct {
	broken bool
	msg    string
}

func firstBroken(rules ...rule) error {
	for _, r := range rules {
		if r.broken {
			return errors.New(r.msg)
		}
	}
	return nil
}

func blank(s string) bool { return s != "" && strings.TrimSpace(s) == "" }

func (c *Config) validateJWT() error {
	j := c.JWT
	if err := firstBroken(
		rule{j.AccessTTL <= 0, "JWT AccessTTL must be > 0"},
		rule{j.RefreshTTL <= 0, "JWT RefreshTTL must be > 0"},
		rule{j.AccessTTL >= j.RefreshTTL, "JWT AccessTTL must be shorter than RefreshTTL"},
	); err != nil {
		return err
	}

	var keys []rule
	switch j.SigningMethod {
	case "hs256":
		keys = []rule{{len(j.PrivateKey) == 0, "hs256 requires PrivateKey"}}
	case "ed25519":
		keys = []rule{
			{len(j.PrivateKey) == 0, "ed25519 requires PrivateKey"},
			{len(j.PublicKey) == 0, "ed25519 requires PublicKey"},
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if err := firstBroken(keys...); err != nil {
		return err
	}

	return firstBroken(
		rule{j.Leeway < 0 || j.Leeway > 2*time.Minute, "JWT Leeway must be between 0 and 2m"},
		rule{j.MaxFutureIAT < 0, "JWT MaxFutureIAT must be >= 0"},
		rule{blank(j.Issuer), "JWT Issuer must not be blank"},
		rule{blank(j.Audience), "JWT Audience must not be blank"},
		rule{len(j.VerifyKeys) > 0 && j.KeyID == "", "JWT VerifyKeys requires KeyID"},
	)
}

func (c *Config) validateRevocation() error {
	return firstBroken(
		rule{c.Revocation.Retention < 0, "Revocation Retention must be >= 0"},
		rule{c.Revocation.Retention < c.JWT.Leeway, "Revocation Retention must cover JWT Leeway"},
		rule{c.Revocation.LookupTimeout < 0, "Revocation LookupTimeout must be >= 0"},
		rule{c.Freshness.Window < 0, "Freshness Window must be >= 0"},
	)
}

func (c *Config) validatePassword() error {
	p := c.Password
	return firstBroken(
		rule{p.Memory < 8*1024, "Password Memory must be >= 8192 KB"},
		rule{p.Time < 1, "Password Time must be >= 1"},
		rule{p.Parallelism < 1, "Password Parallelism must be >= 1"},
		rule{p.SaltLength < 16, "Password SaltLength must be >= 16"},
		rule{p.KeyLength < 16, "Password KeyLength must be >= 16"},
		rule{p.MinLength < 1, "Password MinLength must be >= 1"},
		rule{p.MaxLength < p.MinLength, "Password MaxLength must be >= MinLength"},
	)
}

func (c *Config) validateSecurity() error {
	s := c.Security
	return firstBroken(
		rule{c.Audit.Enabled && c.Audit.BufferSize <= 0, "Audit BufferSize must be > 0 when audit is enabled"},
		rule{s.EnableLoginThrottle && s.MaxLoginAttempts <= 0, "MaxLoginAttempts must be > 0"},
		rule{s.EnableLoginThrottle && s.LoginCooldownDuration <= 0, "LoginCooldownDuration must be > 0"},
		rule{s.EnableRefreshThrottle && s.MaxRefreshAttempts <= 0, "MaxRefreshAttempts must be > 0 when refresh throttle is enabled"},
		rule{s.EnableRefreshThrottle && s.RefreshCooldownDuration <= 0, "RefreshCooldownDuration must be > 0 when refresh throttle is enabled"},
		rule{s.LocalLimiterMaxEntries < 0, "LocalLimiterMaxEntries must be >= 0"},
	)
}

// validateProduction applies the stricter floor enabled by ProductionMode.
func (c *Config) validateProduction() error {
	if !c.Security.ProductionMode {
		return nil
	}
	return firstBroken(
		rule{c.JWT.AccessTTL > time.Hour, "ProductionMode requires JWT AccessTTL <= 1h"},
		rule{c.JWT.RefreshTTL > 30*24*time.Hour, "ProductionMode requires JWT RefreshTTL <= 30d"},
		rule{c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) < 32, "ProductionMode requires hs256 key length >= 256 bits"},
		rule{c.Revocation.FailOpen, "ProductionMode forbids Revocation FailOpen"},
		rule{c.Password.Memory < 64*1024, "ProductionMode requires Password Memory >= 65536 KB"},
		rule{c.Password.Time < 2, "ProductionMode requires Password Time >= 2"},
		rule{!c.Security.EnableLoginThrottle, "ProductionMode requires login throttling"},
	)
}

/*
====================================
LINT
====================================
*/

// LintWarning is a non-fatal configuration finding.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the result of [Config.Lint].
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Code
	}
	return out
}

// Lint reports settings that are valid but risky. It never fails; call
// Validate for hard errors.
func (c *Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code, msg string) {
		ws = append(ws, LintWarning{Code: code, Message: msg})
	}

	if c.JWT.Leeway > 30*time.Second {
		add("leeway_large", "JWT Leeway above 30s widens the replay window of expired tokens")
	}
	if c.JWT.AccessTTL > 15*time.Minute {
		add("access_ttl_long", "access tokens live longer than 15m")
	}
	if c.JWT.RefreshTTL > 14*24*time.Hour {
		add("refresh_ttl_long", "refresh tokens live longer than 14d")
	}
	if !c.Security.EnableLoginThrottle && !c.Security.EnableRefreshThrottle {
		add("rate_limits_disabled", "login and refresh throttling are both disabled")
	}
	if c.Security.EnableLoginThrottle && !c.Security.EnableIPThrottle {
		add("ip_throttle_disabled", "login throttling is per identifier only")
	}
	if c.Revocation.FailOpen {
		add("fail_open", "revoked tokens are accepted while the store is unreachable")
	}
	if c.Revocation.LookupTimeout == 0 {
		add("lookup_unbounded", "store lookups during verification have no timeout")
	}
	if !c.Rotation.SingleWinner {
		add("rotation_multi_winner", "concurrent refreshes with one token may each receive a pair")
	}
	if c.Audit.Enabled && c.Audit.DropIfFull {
		add("audit_drop_if_full", "audit events are dropped when the buffer is full")
	}
	return ws
}
