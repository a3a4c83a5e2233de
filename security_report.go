package goToken

import "time"

// SecurityReport summarizes the security-relevant settings an engine runs
// with. Operators log it at startup.
type SecurityReport struct {
	ProductionMode     bool
	SigningAlgorithm   string
	KeyRotationActive  bool
	AccessTTL          time.Duration
	RefreshTTL         time.Duration
	Leeway             time.Duration
	Argon2             PasswordConfigReport
	FailOpen           bool
	LookupTimeout      time.Duration
	SingleWinner       bool
	FreshnessWindow    time.Duration
	RateLimitingActive bool
	LimiterBackend     string
	AuditEnabled       bool
	LintWarnings       []string
}

type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	MinLength   int
	MaxLength   int
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	backend := e.limiterKind
	if backend == "" {
		backend = "none"
	}

	return SecurityReport{
		ProductionMode:    e.config.Security.ProductionMode,
		SigningAlgorithm:  e.config.JWT.SigningMethod,
		KeyRotationActive: len(e.config.JWT.VerifyKeys) > 0,
		AccessTTL:         e.config.JWT.AccessTTL,
		RefreshTTL:        e.config.JWT.RefreshTTL,
		Leeway:            e.config.JWT.Leeway,
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
			MinLength:   e.config.Password.MinLength,
			MaxLength:   e.config.Password.MaxLength,
		},
		FailOpen:           e.config.Revocation.FailOpen,
		LookupTimeout:      e.config.Revocation.LookupTimeout,
		SingleWinner:       e.config.Rotation.SingleWinner,
		FreshnessWindow:    e.config.Freshness.Window,
		RateLimitingActive: e.limiter != nil,
		LimiterBackend:     backend,
		AuditEnabled:       e.audit != nil,
		LintWarnings:       e.config.Lint().Codes(),
	}
}
