package internal

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/google/uuid"
)

// NewTokenID returns a random RFC 4122 v4 identifier used as a token jti.
func NewTokenID() string {
	return uuid.NewString()
}

// NewPrincipalID returns a random identifier for newly registered principals.
func NewPrincipalID() string {
	return uuid.NewString()
}

// NewSecret returns n random bytes encoded as unpadded base64url.
func NewSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
