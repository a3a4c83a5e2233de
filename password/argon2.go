package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	// DefaultMinPasswordBytes is used when Config.MinPasswordBytes is zero.
	DefaultMinPasswordBytes = 8
	// DefaultMaxPasswordBytes is used when Config.MaxPasswordBytes is zero.
	DefaultMaxPasswordBytes = 1024

	phcID = "argon2id"
)

var (
	// ErrPasswordLength is returned for plaintexts outside the configured byte bounds.
	ErrPasswordLength = errors.New("password length out of range")
	// ErrInvalidHash is returned when a stored hash cannot be parsed.
	ErrInvalidHash = errors.New("invalid password hash")
)

// Config holds Argon2id cost parameters and plaintext bounds.
type Config struct {
	Memory      uint32 // KiB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinPasswordBytes int
	MaxPasswordBytes int

	// MaxConcurrent caps simultaneous derivations, each of which allocates
	// Memory KiB. Zero means GOMAXPROCS.
	MaxConcurrent int
}

func (c Config) validate() error {
	switch {
	case c.Memory < 8*1024:
		return errors.New("password memory must be >= 8192 KB")
	case c.Time < 1:
		return errors.New("password time must be >= 1")
	case c.Parallelism < 1:
		return errors.New("password parallelism must be >= 1")
	case c.SaltLength < 16:
		return errors.New("password salt length must be >= 16")
	case c.KeyLength < 16:
		return errors.New("password key length must be >= 16")
	case c.MaxPasswordBytes < c.MinPasswordBytes:
		return errors.New("password max length must be >= min length")
	}
	return nil
}

// Argon2 hashes and verifies passwords in PHC format. It is safe for
// concurrent use.
type Argon2 struct {
	cfg   Config
	slots chan struct{}
}

// NewArgon2 validates cfg and fills zero bounds with defaults.
func NewArgon2(cfg Config) (*Argon2, error) {
	if cfg.MinPasswordBytes <= 0 {
		cfg.MinPasswordBytes = DefaultMinPasswordBytes
	}
	if cfg.MaxPasswordBytes <= 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = runtime.GOMAXPROCS(0)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{cfg: cfg, slots: make(chan struct{}, cfg.MaxConcurrent)}, nil
}

func (a *Argon2) derive(password string, p params, salt []byte) []byte {
	a.slots <- struct{}{}
	defer func() { <-a.slots }()
	return argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, p.keyLen)
}

func (a *Argon2) current() params {
	return params{memory: a.cfg.Memory, time: a.cfg.Time, threads: a.cfg.Parallelism, keyLen: a.cfg.KeyLength}
}

// Hash returns a PHC-encoded Argon2id hash of password with a random salt.
// Length bounds apply to raw bytes; no Unicode normalization is done.
func (a *Argon2) Hash(password string) (string, error) {
	if n := len(password); n < a.cfg.MinPasswordBytes || n > a.cfg.MaxPasswordBytes {
		return "", fmt.Errorf("%w: must be %d to %d bytes", ErrPasswordLength, a.cfg.MinPasswordBytes, a.cfg.MaxPasswordBytes)
	}

	salt := make([]byte, a.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	p := a.current()
	return encoded{params: p, salt: salt, key: a.derive(password, p, salt)}.String(), nil
}

// Verify reports whether password matches hash in constant time. Oversized
// plaintexts are rejected before any derivation.
func (a *Argon2) Verify(password, hash string) (bool, error) {
	if len(password) > a.cfg.MaxPasswordBytes {
		return false, ErrPasswordLength
	}
	e, err := decode(hash)
	if err != nil {
		return false, err
	}
	got := a.derive(password, e.params, e.salt)
	return subtle.ConstantTimeCompare(got, e.key) == 1, nil
}

// NeedsUpgrade reports whether hash was produced with weaker parameters than
// the current config, so the caller can re-hash after a successful login.
func (a *Argon2) NeedsUpgrade(hash string) (bool, error) {
	e, err := decode(hash)
	if err != nil {
		return false, err
	}
	cur := a.current()
	return e.memory < cur.memory || e.time < cur.time || e.threads < cur.threads || e.keyLen != cur.keyLen, nil
}

type params struct {
	memory  uint32
	time    uint32
	threads uint8
	keyLen  uint32
}

// encoded is one PHC string:
// $argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
type encoded struct {
	params
	salt []byte
	key  []byte
}

func (e encoded) String() string {
	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		phcID, argon2.Version, e.memory, e.time, e.threads,
		base64.RawStdEncoding.EncodeToString(e.salt),
		base64.RawStdEncoding.EncodeToString(e.key))
}

func decode(s string) (encoded, error) {
	invalid := func(reason string) (encoded, error) {
		return encoded{}, fmt.Errorf("%w: %s", ErrInvalidHash, reason)
	}

	fields := strings.Split(s, "$")
	if len(fields) != 6 || fields[0] != "" {
		return invalid("not a PHC string")
	}
	if fields[1] != phcID {
		return invalid("unsupported algorithm " + fields[1])
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil || version != argon2.Version {
		return invalid("unsupported version")
	}

	var (
		e       encoded
		threads uint32
	)
	n, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &e.memory, &e.time, &threads)
	if err != nil || n != 3 || fmt.Sprintf("m=%d,t=%d,p=%d", e.memory, e.time, threads) != fields[3] {
		return invalid("malformed parameters")
	}
	if e.memory < 8*1024 || e.time < 1 || threads < 1 || threads > 255 {
		return invalid("parameters out of range")
	}
	e.threads = uint8(threads)

	if e.salt, err = decodeB64(fields[4]); err != nil || len(e.salt) < 16 {
		return invalid("bad salt")
	}
	if e.key, err = decodeB64(fields[5]); err != nil || len(e.key) == 0 {
		return invalid("bad key")
	}
	e.keyLen = uint32(len(e.key))
	return e, nil
}

// decodeB64 accepts the unpadded PHC alphabet and padded legacy values.
func decodeB64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
