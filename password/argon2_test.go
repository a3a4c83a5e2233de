package password

import (
	"encoding/base64"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastConfig keeps derivations cheap; the parameters are still valid.
func fastConfig() Config {
	return Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func newHasher(t *testing.T, mutate func(*Config)) *Argon2 {
	t.Helper()
	cfg := fastConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	h, err := NewArgon2(cfg)
	require.NoError(t, err)
	return h
}

func TestHashVerifyRoundTrip(t *testing.T) {
	h := newHasher(t, nil)

	hash, err := h.Hash("P@ssw0rd-Ascii")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"), hash)
	assert.NotContains(t, hash, "=$", "PHC strings are unpadded")

	ok, err := h.Verify("P@ssw0rd-Ascii", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaltIsRandom(t *testing.T) {
	h := newHasher(t, nil)
	a, err := h.Hash("same-password")
	require.NoError(t, err)
	b, err := h.Hash("same-password")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyAcceptsPaddedLegacyHash(t *testing.T) {
	h := newHasher(t, nil)
	hash, err := h.Hash("legacy-password")
	require.NoError(t, err)

	e, err := decode(hash)
	require.NoError(t, err)
	padded := strings.Join([]string{"", phcID, "v=19", "m=8192,t=1,p=1",
		base64.StdEncoding.EncodeToString(e.salt),
		base64.StdEncoding.EncodeToString(e.key)}, "$")

	ok, err := h.Verify("legacy-password", padded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNeedsUpgrade(t *testing.T) {
	weak := newHasher(t, nil)
	hash, err := weak.Hash("upgrade-me")
	require.NoError(t, err)

	same, err := weak.NeedsUpgrade(hash)
	require.NoError(t, err)
	assert.False(t, same)

	stronger := newHasher(t, func(c *Config) { c.Time = 2 })
	up, err := stronger.NeedsUpgrade(hash)
	require.NoError(t, err)
	assert.True(t, up)

	longerKey := newHasher(t, func(c *Config) { c.KeyLength = 64 })
	up, err = longerKey.NeedsUpgrade(hash)
	require.NoError(t, err)
	assert.True(t, up)
}

func TestDecodeRejectsMalformedHashes(t *testing.T) {
	h := newHasher(t, nil)
	good, err := h.Hash("valid-password")
	require.NoError(t, err)

	cases := map[string]string{
		"not phc":         "not-a-phc-hash",
		"wrong algorithm": strings.Replace(good, "$argon2id$", "$argon2i$", 1),
		"wrong version":   strings.Replace(good, "$v=19$", "$v=18$", 1),
		"trailing params": strings.Replace(good, "p=1$", "p=1,x=2$", 1),
		"weak memory":     strings.Replace(good, "m=8192", "m=1024", 1),
		"zero threads":    strings.Replace(good, "p=1$", "p=0$", 1),
		"bad salt":        strings.Join(append(strings.Split(good, "$")[:4], "!!", "AAAA"), "$"),
	}
	for name, hash := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.Verify("valid-password", hash)
			assert.ErrorIs(t, err, ErrInvalidHash)
		})
	}
}

func TestLengthBounds(t *testing.T) {
	h := newHasher(t, func(c *Config) { c.MinPasswordBytes = 12; c.MaxPasswordBytes = 64 })

	_, err := h.Hash("")
	assert.ErrorIs(t, err, ErrPasswordLength)
	_, err = h.Hash("elevenbytes")
	assert.ErrorIs(t, err, ErrPasswordLength)
	_, err = h.Hash(strings.Repeat("a", 65))
	assert.ErrorIs(t, err, ErrPasswordLength)

	hash, err := h.Hash(strings.Repeat("b", 64))
	require.NoError(t, err)
	_, err = h.Verify(strings.Repeat("c", 65), hash)
	assert.ErrorIs(t, err, ErrPasswordLength)
}

func TestDefaultBoundsApplied(t *testing.T) {
	h := newHasher(t, nil)
	_, err := h.Hash(strings.Repeat("d", DefaultMaxPasswordBytes+1))
	assert.ErrorIs(t, err, ErrPasswordLength)
	_, err = h.Hash(strings.Repeat("e", DefaultMaxPasswordBytes))
	assert.NoError(t, err)
	_, err = h.Hash("seven77")
	assert.ErrorIs(t, err, ErrPasswordLength)
}

func TestNewArgon2RejectsWeakConfig(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"memory":   func(c *Config) { c.Memory = 1024 },
		"time":     func(c *Config) { c.Time = 0 },
		"threads":  func(c *Config) { c.Parallelism = 0 },
		"salt":     func(c *Config) { c.SaltLength = 8 },
		"key":      func(c *Config) { c.KeyLength = 8 },
		"inverted": func(c *Config) { c.MinPasswordBytes = 64; c.MaxPasswordBytes = 32 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := fastConfig()
			mutate(&cfg)
			_, err := NewArgon2(cfg)
			assert.Error(t, err)
		})
	}
}

func TestConcurrentDerivationsBounded(t *testing.T) {
	h := newHasher(t, func(c *Config) { c.MaxConcurrent = 2 })
	hash, err := h.Hash("concurrent-password")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := h.Verify("concurrent-password", hash)
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()
	assert.Len(t, h.slots, 0)
	assert.Equal(t, 2, cap(h.slots))
}
