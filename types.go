package goToken

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"

	internalaudit "github.com/MrEthical07/goToken/internal/audit"
	internalmetrics "github.com/MrEthical07/goToken/internal/metrics"
	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/revocation"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType = jwt.TokenType

const (
	// TokenAccess is a short-lived token presented to protected resources.
	TokenAccess TokenType = jwt.TypeAccess
	// TokenRefresh is exchanged for a new pair via [Engine.Refresh].
	TokenRefresh TokenType = jwt.TypeRefresh
	// TokenAny disables the type check in [Engine.Verify].
	TokenAny TokenType = ""
)

// Principal is the account a token is issued to. Persistence belongs to the
// caller through [PrincipalRepository].
type Principal struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	IsAdmin      bool
	IsActive     bool
	CreatedAt    time.Time
}

// PrincipalDraft is the input to [Engine.Register].
type PrincipalDraft struct {
	Name     string
	Email    string
	Password string
	IsAdmin  bool
}

// PrincipalRepository loads and stores principals.
//
// FindByID and FindByEmail return (nil, nil) when nothing matches. Create
// returns [ErrPrincipalExists] for a taken email.
type PrincipalRepository interface {
	FindByID(ctx context.Context, id string) (*Principal, error)
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	Create(ctx context.Context, p Principal) (Principal, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// PasswordHasher hashes and checks passwords. [password.Argon2] is the default.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, encoded string) (bool, error)
}

// TokenPair is returned by every operation that issues tokens.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresIn  int64     `json:"expires_in"`
	AccessJTI        string    `json:"-"`
	RefreshJTI       string    `json:"-"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// VerifiedClaims is the decoded content of a token that passed verification.
type VerifiedClaims struct {
	SubjectID string
	TokenID   string
	Type      TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
	IsAdmin   bool
	IsActive  bool
	Email     string
	Fresh     bool
}

// TokenInfo is returned by [Engine.Introspect].
type TokenInfo struct {
	SubjectID          string    `json:"subject_id"`
	TokenID            string    `json:"jti"`
	Type               TokenType `json:"type"`
	IssuedAt           time.Time `json:"iat"`
	ExpiresAt          time.Time `json:"exp"`
	IsAdmin            bool      `json:"is_admin"`
	IsActive           bool      `json:"is_active"`
	Email              string    `json:"email,omitempty"`
	Fresh              bool      `json:"fresh"`
	Revoked            bool      `json:"revoked"`
	RevokedByWatermark bool      `json:"revoked_by_watermark,omitempty"`
}

// HealthStatus is returned by [Engine.Health].
type HealthStatus struct {
	StoreAvailable bool
	StoreLatency   time.Duration
	AuditDropped   uint64
}

// RevocationRecord is one revoked token.
type RevocationRecord = revocation.Record

// RevocationStore is the persistence contract for revocation state.
type RevocationStore = revocation.Store

// Reasons recorded with each revocation.
const (
	ReasonLogout         = revocation.ReasonLogout
	ReasonLogoutAll      = revocation.ReasonLogoutAll
	ReasonTokenRotation  = revocation.ReasonTokenRotation
	ReasonPasswordChange = revocation.ReasonPasswordChange
	ReasonManualRevoke   = revocation.ReasonManualRevoke
	ReasonAdminRevoke    = revocation.ReasonAdminRevoke
)

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes JSON-encoded events to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// LoggerSink writes events through a zerolog logger.
type LoggerSink = internalaudit.LoggerSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewLoggerSink creates a [LoggerSink] on top of logger.
func NewLoggerSink(logger zerolog.Logger) *LoggerSink {
	return internalaudit.NewLoggerSink(logger)
}

// MetricID identifies a counter in the in-process metrics system.
type MetricID = internalmetrics.MetricID

const (
	MetricLoginSuccess             = internalmetrics.MetricLoginSuccess
	MetricLoginFailure             = internalmetrics.MetricLoginFailure
	MetricLoginRateLimited         = internalmetrics.MetricLoginRateLimited
	MetricRegisterSuccess          = internalmetrics.MetricRegisterSuccess
	MetricRegisterDuplicate        = internalmetrics.MetricRegisterDuplicate
	MetricRefreshSuccess           = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure           = internalmetrics.MetricRefreshFailure
	MetricRefreshRaceDetected      = internalmetrics.MetricRefreshRaceDetected
	MetricRefreshRateLimited       = internalmetrics.MetricRefreshRateLimited
	MetricVerifySuccess            = internalmetrics.MetricVerifySuccess
	MetricVerifyFailure            = internalmetrics.MetricVerifyFailure
	MetricVerifyExpired            = internalmetrics.MetricVerifyExpired
	MetricVerifyRevoked            = internalmetrics.MetricVerifyRevoked
	MetricVerifyFailOpen           = internalmetrics.MetricVerifyFailOpen
	MetricRevokeSuccess            = internalmetrics.MetricRevokeSuccess
	MetricRevokeDuplicate          = internalmetrics.MetricRevokeDuplicate
	MetricRevokeFailure            = internalmetrics.MetricRevokeFailure
	MetricLogout                   = internalmetrics.MetricLogout
	MetricRevokeAll                = internalmetrics.MetricRevokeAll
	MetricPasswordChangeSuccess    = internalmetrics.MetricPasswordChangeSuccess
	MetricPasswordChangeInvalidOld = internalmetrics.MetricPasswordChangeInvalidOld
	MetricPurgedRecords            = internalmetrics.MetricPurgedRecords
	MetricVerifyLatency            = internalmetrics.MetricVerifyLatency

	metricIDCount = internalmetrics.MetricIDCount
)

// Metrics holds atomic counters and the optional verify latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance. When cfg.Enabled is false every
// operation is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
