package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/cleanup"
	"github.com/MrEthical07/goToken/sqlstore"
)

// Config is the tokenctl configuration file.
type Config struct {
	Log      LogConfig       `yaml:"log"`
	JWT      JWTConfig       `yaml:"jwt"`
	Store    StoreConfig     `yaml:"store"`
	Redis    RedisConfig     `yaml:"redis"`
	Database sqlstore.Config `yaml:"database"`
	Cleanup  cleanup.Config  `yaml:"cleanup"`
	Metrics  MetricsConfig   `yaml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

type JWTConfig struct {
	Secret         string        `yaml:"secret"`
	SigningMethod  string        `yaml:"signing_method"`
	PrivateKeyFile string        `yaml:"private_key_file"`
	PublicKeyFile  string        `yaml:"public_key_file"`
	KeyID          string        `yaml:"key_id"`
	Issuer         string        `yaml:"issuer"`
	Audience       string        `yaml:"audience"`
	AccessTTL      time.Duration `yaml:"access_ttl"`
	RefreshTTL     time.Duration `yaml:"refresh_ttl"`
	Leeway         time.Duration `yaml:"leeway"`
}

type StoreConfig struct {
	Backend       string        `yaml:"backend"` // redis or sql
	RedisPrefix   string        `yaml:"redis_prefix"`
	LookupTimeout time.Duration `yaml:"lookup_timeout"`
	FailOpen      bool          `yaml:"fail_open"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type MetricsConfig struct {
	// Listen serves /metrics and /healthz during serve-cleanup when set.
	Listen string `yaml:"listen"`
}

func DefaultConfig() *Config {
	engine := goToken.DefaultConfig()
	return &Config{
		Log: LogConfig{Level: "info", Format: "console"},
		JWT: JWTConfig{
			SigningMethod: engine.JWT.SigningMethod,
			AccessTTL:     engine.JWT.AccessTTL,
			RefreshTTL:    engine.JWT.RefreshTTL,
			Leeway:        engine.JWT.Leeway,
		},
		Store: StoreConfig{
			Backend:       "redis",
			RedisPrefix:   engine.Revocation.RedisPrefix,
			LookupTimeout: engine.Revocation.LookupTimeout,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Database: sqlstore.Config{
			Driver: "sqlite",
			DSN:    "gotoken.db",
		},
	}
}

// Load reads path, falling back to defaults when the file does not exist,
// then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.overrideFromEnv()
	return cfg, nil
}

func (c *Config) overrideFromEnv() {
	if secret := os.Getenv("GOTOKEN_JWT_SECRET"); secret != "" {
		c.JWT.Secret = secret
	}
	if dsn := os.Getenv("GOTOKEN_DATABASE_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if driver := os.Getenv("GOTOKEN_DATABASE_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if addr := os.Getenv("GOTOKEN_REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
	if db := os.Getenv("GOTOKEN_REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			c.Redis.DB = n
		}
	}
	if level := os.Getenv("GOTOKEN_LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
}

// EngineConfig maps the file settings onto a validated engine config.
func (c *Config) EngineConfig() (goToken.Config, error) {
	out := goToken.DefaultConfig()
	out.JWT.SigningMethod = strings.ToLower(strings.TrimSpace(c.JWT.SigningMethod))
	out.JWT.KeyID = c.JWT.KeyID
	out.JWT.Issuer = c.JWT.Issuer
	out.JWT.Audience = c.JWT.Audience
	if c.JWT.AccessTTL > 0 {
		out.JWT.AccessTTL = c.JWT.AccessTTL
	}
	if c.JWT.RefreshTTL > 0 {
		out.JWT.RefreshTTL = c.JWT.RefreshTTL
	}
	if c.JWT.Leeway > 0 {
		out.JWT.Leeway = c.JWT.Leeway
	}

	switch out.JWT.SigningMethod {
	case "ed25519":
		if c.JWT.PrivateKeyFile == "" || c.JWT.PublicKeyFile == "" {
			return goToken.Config{}, errors.New("ed25519 requires jwt.private_key_file and jwt.public_key_file")
		}
		priv, err := os.ReadFile(c.JWT.PrivateKeyFile)
		if err != nil {
			return goToken.Config{}, fmt.Errorf("read private key: %w", err)
		}
		pub, err := os.ReadFile(c.JWT.PublicKeyFile)
		if err != nil {
			return goToken.Config{}, fmt.Errorf("read public key: %w", err)
		}
		out.JWT.PrivateKey = priv
		out.JWT.PublicKey = pub
	default:
		if c.JWT.Secret == "" {
			return goToken.Config{}, errors.New("jwt.secret or GOTOKEN_JWT_SECRET is required")
		}
		out.JWT.PrivateKey = []byte(c.JWT.Secret)
	}

	if c.Store.RedisPrefix != "" {
		out.Revocation.RedisPrefix = c.Store.RedisPrefix
	}
	out.Revocation.LookupTimeout = c.Store.LookupTimeout
	out.Revocation.FailOpen = c.Store.FailOpen
	// The CLI never logs principals in; no throttle state is needed.
	out.Security.EnableLoginThrottle = false
	out.Security.EnableRefreshThrottle = false
	out.Metrics.Enabled = true

	if err := out.Validate(); err != nil {
		return goToken.Config{}, err
	}
	return out, nil
}
