package main

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goToken "github.com/MrEthical07/goToken"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// sqlConfig returns a config file backed by a sqlite database so state
// survives between invocations.
func sqlConfig(t *testing.T) (string, *Config) {
	t.Helper()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "tokens.db")
	path := writeConfig(t, fmt.Sprintf(`
log:
  level: error
jwt:
  secret: %s
store:
  backend: sql
database:
  driver: sqlite
  dsn: %s
`, testSecret, dsn))
	cfg, err := Load(path)
	require.NoError(t, err)
	return path, cfg
}

func issue(t *testing.T, cfg *Config, subject string) goToken.TokenPair {
	t.Helper()
	a, err := newApp(cfg, false, &bytes.Buffer{})
	require.NoError(t, err)
	defer a.Close()

	pair, err := a.engine.IssuePair(goToken.Principal{ID: subject, IsActive: true})
	require.NoError(t, err)
	return pair
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunUsageErrors(t *testing.T) {
	code, _, stderr := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "commands:")

	code, _, stderr = runCLI(t, "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "frobnicate"`)

	code, _, stderr = runCLI(t, "revoke", "only-jti")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "usage: tokenctl revoke")
}

func TestRunRejectsUnknownTokenType(t *testing.T) {
	path, _ := sqlConfig(t)
	code, _, _ := runCLI(t, "-config", path, "revoke", "jti", "user-1", "session")
	assert.Equal(t, 2, code)
}

func TestRunFailsWithoutSecret(t *testing.T) {
	path := writeConfig(t, "log:\n  level: error\n")
	code, _, stderr := runCLI(t, "-config", path, "-memory-redis", "purge")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "jwt.secret")
}

func TestRevokeListAndCheck(t *testing.T) {
	path, cfg := sqlConfig(t)
	pair := issue(t, cfg, "user-1")

	code, out, _ := runCLI(t, "-config", path, "check", pair.RefreshJTI)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "not revoked")

	code, out, _ = runCLI(t, "-config", path, "revoke", pair.RefreshJTI, "user-1", "refresh", "compromised")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "revoked "+pair.RefreshJTI+" (compromised)")

	code, out, _ = runCLI(t, "-config", path, "revoke", pair.RefreshJTI, "user-1", "refresh")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "already revoked")

	code, out, _ = runCLI(t, "-config", path, "check", pair.RefreshJTI)
	require.Equal(t, 0, code)
	assert.Contains(t, out, pair.RefreshJTI+" revoked")

	code, out, _ = runCLI(t, "-config", path, "list", "user-1")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "JTI")
	assert.Contains(t, out, pair.RefreshJTI)
	assert.Contains(t, out, "compromised")

	code, out, _ = runCLI(t, "-config", path, "list", "user-2")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "no revoked tokens")
}

func TestCheckIntrospectsRawToken(t *testing.T) {
	path, cfg := sqlConfig(t)
	pair := issue(t, cfg, "user-1")

	code, out, _ := runCLI(t, "-config", path, "check", pair.AccessToken)
	require.Equal(t, 0, code)
	assert.Contains(t, out, `"revoked": false`)
	assert.Contains(t, out, pair.AccessJTI)
}

func TestRevokeAllAndPurge(t *testing.T) {
	path, _ := sqlConfig(t)

	code, out, _ := runCLI(t, "-config", path, "revoke-all", "user-1")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "tokens of user-1 issued before")

	code, out, _ = runCLI(t, "-config", path, "purge")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "purged 0 records")
}

func TestLoadtestAgainstMemoryRedis(t *testing.T) {
	path := writeConfig(t, "log:\n  level: error\njwt:\n  secret: "+testSecret+"\n")

	code, out, stderr := runCLI(t, "-config", path, "-memory-redis", "loadtest", "-subjects", "5", "-concurrency", "2", "-ops", "20")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "issued 5 pairs")
	assert.Contains(t, out, "verify: ops=20 failures=0")
	assert.Contains(t, out, "revoke: ops=5 failures=0")
}

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(1), percentile(samples, 0))
	assert.Equal(t, time.Duration(5), percentile(samples, 50))
	assert.Equal(t, time.Duration(10), percentile(samples, 100))
	assert.Zero(t, percentile(nil, 50))
}
