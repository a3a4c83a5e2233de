package goToken

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/goToken/internal"
	internalaudit "github.com/MrEthical07/goToken/internal/audit"
	"github.com/MrEthical07/goToken/internal/flows"
	"github.com/MrEthical07/goToken/internal/rate"
	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/password"
	"github.com/MrEthical07/goToken/revocation"
	"github.com/MrEthical07/goToken/validation"
)

// Builder assembles an [Engine]. A Builder can be used for one Build only.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  revocation.Store

	principals PrincipalRepository
	hasher     PasswordHasher
	auditSink  AuditSink
	logger     *zerolog.Logger
	now        func() time.Time

	built bool
}

// New starts a Builder with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The value is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client used for the revocation store (unless
// [Builder.WithRevocationStore] is also given) and for rate limiting.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRevocationStore supplies an explicit revocation store, for example a
// SQL store from the sqlstore package or [revocation.NewMemoryStore] in tests.
func (b *Builder) WithRevocationStore(store RevocationStore) *Builder {
	b.store = store
	return b
}

// WithPrincipalRepository enables Login, Register, Refresh and ChangePassword.
// Without it the engine can still verify and revoke tokens.
func (b *Builder) WithPrincipalRepository(repo PrincipalRepository) *Builder {
	b.principals = repo
	return b
}

// WithPasswordHasher replaces the default Argon2id hasher.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

// WithAuditSink sets the destination of audit events. Audit.Enabled must also
// be set for events to be dispatched.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the operational logger. The default discards everything.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = &logger
	return b
}

// WithClock overrides the time source used for issuing, expiry checks,
// revocation timestamps and purging.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := zerolog.Nop()
	if b.logger != nil {
		logger = *b.logger
	}

	// -------- REVOCATION STORE --------
	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("revocation store or redis client required")
		}
		store = revocation.NewRedisStore(b.redis, cfg.Revocation.RedisPrefix, cfg.Revocation.Retention)
	}

	// -------- SIGNING --------
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		MaxFutureIAT:  cfg.JWT.MaxFutureIAT,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	// -------- PASSWORDS --------
	hasher := b.hasher
	if hasher == nil {
		ph, err := password.NewArgon2(password.Config{
			Memory:           cfg.Password.Memory,
			Time:             cfg.Password.Time,
			Parallelism:      cfg.Password.Parallelism,
			SaltLength:       cfg.Password.SaltLength,
			KeyLength:        cfg.Password.KeyLength,
			MinPasswordBytes: cfg.Password.MinLength,
			MaxPasswordBytes: cfg.Password.MaxLength,
		})
		if err != nil {
			return nil, err
		}
		hasher = ph
	}

	engine := &Engine{
		config:        cfg,
		store:         store,
		jwtManager:    jm,
		principals:    b.principals,
		hasher:        hasher,
		audit:         internalaudit.NewDispatcher(internalaudit.Config(cfg.Audit), b.auditSink),
		metrics:       NewMetrics(cfg.Metrics),
		logger:        logger,
		now:           now,
		registerRules: validation.Registration(cfg.Password.MinLength, cfg.Password.MaxLength, cfg.Password.RequireLetterAndDigit),
		changeRules:   validation.PasswordChange(cfg.Password.MinLength, cfg.Password.MaxLength, cfg.Password.RequireLetterAndDigit),
		loginRules:    validation.Login(),
	}

	// -------- RATE LIMITING --------
	if cfg.Security.EnableLoginThrottle || cfg.Security.EnableRefreshThrottle {
		rateCfg := rate.Config{
			Prefix:                  cfg.Revocation.RedisPrefix,
			EnableIPThrottle:        cfg.Security.EnableIPThrottle,
			EnableRefreshThrottle:   cfg.Security.EnableRefreshThrottle,
			MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration:   cfg.Security.LoginCooldownDuration,
			MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
			RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
		}
		if b.redis != nil {
			engine.limiter = rate.New(b.redis, rateCfg)
			engine.limiterKind = "redis"
		} else {
			engine.limiter = rate.NewLocal(rateCfg, cfg.Security.LocalLimiterMaxEntries, now)
			engine.limiterKind = "local"
		}
	}

	engine.flows = flows.New(engine.flowDeps())

	b.built = true
	return engine, nil
}

func (e *Engine) flowDeps() flows.Deps {
	cfg := e.config

	issue := flows.IssueDeps{
		Now:        e.now,
		NewTokenID: internal.NewTokenID,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
		Encode:     e.jwtManager.Encode,
	}
	verify := flows.VerifyDeps{
		Decode:        e.jwtManager.Decode,
		Store:         e.store,
		LookupTimeout: cfg.Revocation.LookupTimeout,
		FailOpen:      cfg.Revocation.FailOpen,
		Warn: func(err error, claims *jwt.Claims) {
			e.logger.Warn().
				Err(err).
				Str("jti", claims.TokenID()).
				Str("subject_id", claims.UID).
				Msg("revocation store unavailable, accepting token under fail-open policy")
		},
	}
	revoke := flows.RevokeDeps{
		Store:      e.store,
		Now:        e.now,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
	}

	login := flows.LoginDeps{
		ClientIPFromContext: clientIPFromContext,
		FindByEmail:         e.findLoginPrincipal,
		VerifyPassword:      e.hasher.Verify,
		Issue:               issue,
		Warn: func(format string, args ...any) {
			e.logger.Warn().Msgf(format, args...)
		},
	}
	if e.limiter != nil && cfg.Security.EnableLoginThrottle {
		login.CheckLoginRate = e.limiter.CheckLogin
		login.IncrementLoginRate = e.limiter.IncrementLogin
		login.ResetLoginRate = e.limiter.ResetLogin
	}

	return flows.Deps{
		Issue:  issue,
		Verify: verify,
		Revoke: revoke,
		Rotate: flows.RotateDeps{
			Verify:       verify,
			Revoke:       revoke,
			Issue:        issue,
			LoadSubject:  e.loadSubject,
			SingleWinner: cfg.Rotation.SingleWinner,
		},
		Login: login,
	}
}

func (e *Engine) findLoginPrincipal(ctx context.Context, email string) (flows.LoginPrincipal, bool, error) {
	if e.principals == nil {
		return flows.LoginPrincipal{}, false, ErrEngineNotReady
	}
	p, err := e.principals.FindByEmail(ctx, email)
	if err != nil || p == nil {
		return flows.LoginPrincipal{}, false, err
	}
	return flows.LoginPrincipal{
		Subject:      subjectFromPrincipal(*p),
		PasswordHash: p.PasswordHash,
	}, true, nil
}

func (e *Engine) loadSubject(ctx context.Context, subjectID string) (flows.Subject, bool, error) {
	if e.principals == nil {
		return flows.Subject{}, false, ErrEngineNotReady
	}
	p, err := e.principals.FindByID(ctx, subjectID)
	if err != nil || p == nil {
		return flows.Subject{}, false, err
	}
	return subjectFromPrincipal(*p), true, nil
}
