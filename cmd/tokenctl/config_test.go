package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tokenctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, time.Hour, cfg.JWT.AccessTTL)
}

func TestLoadParsesDurations(t *testing.T) {
	path := writeConfig(t, `
jwt:
  secret: file-secret-0123456789abcdef0123
  access_ttl: 10m
  leeway: 5s
store:
  backend: sql
cleanup:
  schedules: ["@every 1h"]
  timeout: 30s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Minute, cfg.JWT.AccessTTL)
	assert.Equal(t, 5*time.Second, cfg.JWT.Leeway)
	assert.Equal(t, "sql", cfg.Store.Backend)
	assert.Equal(t, []string{"@every 1h"}, cfg.Cleanup.Schedules)
	assert.Equal(t, 30*time.Second, cfg.Cleanup.Timeout)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "jwt: [unterminated"))
	require.Error(t, err)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: from-file\nredis:\n  addr: file:6379\n")
	t.Setenv("GOTOKEN_JWT_SECRET", "from-env")
	t.Setenv("GOTOKEN_REDIS_ADDR", "env:6379")
	t.Setenv("GOTOKEN_REDIS_DB", "3")
	t.Setenv("GOTOKEN_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "env:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEngineConfigRequiresSecret(t *testing.T) {
	cfg := DefaultConfig()
	_, err := cfg.EngineConfig()
	require.Error(t, err)

	cfg.JWT.Secret = "0123456789abcdef0123456789abcdef"
	out, err := cfg.EngineConfig()
	require.NoError(t, err)
	assert.Equal(t, []byte(cfg.JWT.Secret), out.JWT.PrivateKey)
	assert.False(t, out.Security.EnableLoginThrottle)
	assert.True(t, out.Metrics.Enabled)
}

func TestEngineConfigEd25519NeedsKeyFiles(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = "ed25519"
	_, err := cfg.EngineConfig()
	require.Error(t, err)
}
