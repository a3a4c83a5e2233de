package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the algorithm used to sign and verify tokens.
type SigningMethod string

const (
	// MethodEd25519 signs tokens with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs tokens with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
)

// TokenType distinguishes access credentials from refresh credentials.
type TokenType string

const (
	// TypeAccess marks a short-lived credential presented to resources.
	TypeAccess TokenType = "access"
	// TypeRefresh marks a long-lived credential exchanged for new pairs.
	TypeRefresh TokenType = "refresh"
)

var (
	// ErrMalformed reports a token that cannot be parsed or carries invalid claims.
	ErrMalformed = errors.New("token malformed")
	// ErrSignatureInvalid reports a token whose signature does not verify.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrExpired reports a correctly signed token past its expiry.
	ErrExpired = errors.New("token expired")
)

// Config describes signing keys and validation policy for a [Manager].
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte

	// Now overrides the clock used for expiry checks. Nil means time.Now.
	Now func() time.Time
}

// Manager encodes and decodes signed token claims.
//
// Keys are parsed once by [NewManager]; a Manager is immutable and safe for
// concurrent use.
type Manager struct {
	config Config
	now    func() time.Time
	keys   keyring
	parser *jwt.Parser
}

// Claims is the payload carried by every token.
//
// Access tokens carry the subject attributes (IsAdmin, IsActive, Email). Refresh
// tokens carry only identity and lifetime fields.
type Claims struct {
	UID      string    `json:"uid"`
	Type     TokenType `json:"type"`
	IsAdmin  *bool     `json:"is_admin,omitempty"`
	IsActive *bool     `json:"is_active,omitempty"`
	Email    string    `json:"email,omitempty"`
	Fresh    bool      `json:"fresh,omitempty"`

	// IssuedAtMS is iat in Unix milliseconds. Subject watermarks compare
	// against it so a revoke-all also covers tokens from the same second.
	IssuedAtMS int64 `json:"iat_ms,omitempty"`
	jwt.RegisteredClaims
}

// TokenID returns the jti claim.
func (c *Claims) TokenID() string {
	if c == nil {
		return ""
	}
	return c.ID
}

// IssuedAtTime returns the issue time at millisecond precision when the token
// carries iat_ms, otherwise the iat claim, or the zero time.
func (c *Claims) IssuedAtTime() time.Time {
	switch {
	case c == nil:
		return time.Time{}
	case c.IssuedAtMS > 0:
		return time.UnixMilli(c.IssuedAtMS).UTC()
	case c.IssuedAt != nil:
		return c.IssuedAt.Time
	}
	return time.Time{}
}

// ExpiresAtTime returns the exp claim or the zero time.
func (c *Claims) ExpiresAtTime() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Admin reports the is_admin claim, false when absent.
func (c *Claims) Admin() bool {
	return c != nil && c.IsAdmin != nil && *c.IsAdmin
}

// Active reports the is_active claim, false when absent.
func (c *Claims) Active() bool {
	return c != nil && c.IsActive != nil && *c.IsActive
}

// NewManager validates cfg and returns a ready codec.
func NewManager(cfg Config) (*Manager, error) {
	switch {
	case cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0:
		return nil, errors.New("invalid TTL configuration")
	case cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute:
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	keys, err := newKeyring(cfg)
	if err != nil {
		return nil, err
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{keys.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}

	return &Manager{config: cfg, now: now, keys: keys, parser: jwt.NewParser(options...)}, nil
}

// TTL returns the configured lifetime for typ.
func (j *Manager) TTL(typ TokenType) time.Duration {
	if typ == TypeRefresh {
		return j.config.RefreshTTL
	}
	return j.config.AccessTTL
}

// Leeway returns the clock-skew tolerance applied to exp checks.
func (j *Manager) Leeway() time.Duration {
	return j.config.Leeway
}

// Encode signs claims. Issuer and audience are filled from the manager config
// when the caller left them empty.
func (j *Manager) Encode(claims Claims) (string, error) {
	if claims.Type != TypeAccess && claims.Type != TypeRefresh {
		return "", fmt.Errorf("encode: unknown token type %q", claims.Type)
	}
	if claims.ID == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return "", errors.New("encode: jti, iat and exp are required")
	}
	if claims.Subject == "" {
		claims.Subject = claims.UID
	}
	if claims.Issuer == "" {
		claims.Issuer = j.config.Issuer
	}
	if len(claims.Audience) == 0 && j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}

	if j.keys.sign == nil {
		return "", errors.New("encode: no signing key configured")
	}
	token := jwt.NewWithClaims(j.keys.method, claims)
	if j.keys.kid != "" {
		token.Header["kid"] = j.keys.kid
	}
	return token.SignedString(j.keys.sign)
}

// Decode verifies the signature and lifetime of tokenStr.
//
// Errors wrap exactly one of [ErrMalformed], [ErrSignatureInvalid] or [ErrExpired].
// Signature verification happens before the expiry check, so a forged token
// past its exp reports ErrSignatureInvalid.
func (j *Manager) Decode(tokenStr string) (*Claims, error) {
	token, err := j.parser.ParseWithClaims(tokenStr, &Claims{}, j.keys.lookup)
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if claims.IssuedAt == nil {
		return nil, fmt.Errorf("%w: missing iat", ErrMalformed)
	}
	if claims.IssuedAt.Time.After(j.now().Add(j.config.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: iat too far in the future", ErrMalformed)
	}
	if claims.IssuedAtMS < 0 || (claims.IssuedAtMS > 0 && time.UnixMilli(claims.IssuedAtMS).Unix() != claims.IssuedAt.Unix()) {
		return nil, fmt.Errorf("%w: iat_ms disagrees with iat", ErrMalformed)
	}
	if claims.Type != TypeAccess && claims.Type != TypeRefresh {
		return nil, fmt.Errorf("%w: unknown token type", ErrMalformed)
	}
	if claims.UID == "" {
		claims.UID = claims.Subject
	}

	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

// keyring holds the parsed signing key and the verification keys by kid.
type keyring struct {
	method jwt.SigningMethod
	kid    string
	sign   any // nil for verify-only Ed25519 managers
	// byKID is set when tokens must carry a known kid.
	byKID map[string]any
	// fallback verifies tokens when byKID is empty.
	fallback any
}

func newKeyring(cfg Config) (keyring, error) {
	k := keyring{kid: cfg.KeyID}

	var parseVerify func([]byte) (any, error)
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return keyring{}, errors.New("hs256 requires private key")
		}
		k.method = jwt.SigningMethodHS256
		k.sign = cfg.PrivateKey
		k.fallback = cfg.PrivateKey
		parseVerify = func(b []byte) (any, error) { return b, nil }
	case MethodEd25519:
		k.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return keyring{}, err
			}
			k.sign = priv
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return keyring{}, err
			}
			k.fallback = pub
		}
		if len(cfg.VerifyKeys) == 0 && k.fallback == nil {
			return keyring{}, errors.New("ed25519 requires public key or verify key set")
		}
		parseVerify = func(b []byte) (any, error) { return parseEdPublicKey(b) }
	default:
		return keyring{}, errors.New("unsupported signing method")
	}

	if len(cfg.VerifyKeys) > 0 {
		k.byKID = make(map[string]any, len(cfg.VerifyKeys))
		for kid, raw := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return keyring{}, errors.New("verify key map contains empty kid")
			}
			key, err := parseVerify(raw)
			if err != nil {
				return keyring{}, fmt.Errorf("invalid verify key for kid %q: %w", kid, err)
			}
			k.byKID[kid] = key
		}
		if k.kid != "" {
			if _, ok := k.byKID[k.kid]; !ok {
				return keyring{}, errors.New("KeyID is not present in VerifyKeys")
			}
		}
	}
	return k, nil
}

// lookup is the jwt.Keyfunc. With a kid set or verify keys configured, the
// token header must name a known kid.
func (k keyring) lookup(t *jwt.Token) (any, error) {
	if t.Method.Alg() != k.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}
	if k.byKID == nil && k.kid == "" {
		return k.fallback, nil
	}

	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, errors.New("missing kid")
	}
	if k.byKID != nil {
		if key, ok := k.byKID[kid]; ok {
			return key, nil
		}
	} else if kid == k.kid {
		return k.fallback, nil
	}
	return nil, errors.New("unknown kid")
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
