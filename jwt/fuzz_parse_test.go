package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func fuzzManagers(f *testing.F) []*Manager {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		f.Fatal(err)
	}
	base := Config{
		AccessTTL:    5 * time.Minute,
		RefreshTTL:   time.Hour,
		Issuer:       "fuzz",
		Leeway:       30 * time.Second,
		MaxFutureIAT: 10 * time.Minute,
	}

	ed := base
	ed.SigningMethod = MethodEd25519
	ed.PrivateKey = priv
	ed.PublicKey = pub
	ed.KeyID = "k1"
	ed.VerifyKeys = map[string][]byte{"k1": pub}

	hs := base
	hs.SigningMethod = MethodHS256
	hs.PrivateKey = []byte("fuzz-secret-0123456789abcdef0123")

	var out []*Manager
	for _, cfg := range []Config{ed, hs} {
		m, err := NewManager(cfg)
		if err != nil {
			f.Fatal(err)
		}
		out = append(out, m)
	}
	return out
}

// FuzzDecode feeds arbitrary strings to both signing modes. Decode must
// never panic, and anything it accepts must be a well-formed token.
func FuzzDecode(f *testing.F) {
	managers := fuzzManagers(f)

	now := time.Now()
	for _, m := range managers {
		for _, typ := range []TokenType{TypeAccess, TypeRefresh} {
			tok, err := m.Encode(Claims{
				UID:  "42",
				Type: typ,
				RegisteredClaims: gjwt.RegisteredClaims{
					ID:        "jti-" + string(typ),
					IssuedAt:  gjwt.NewNumericDate(now),
					ExpiresAt: gjwt.NewNumericDate(now.Add(m.TTL(typ))),
				},
			})
			if err != nil {
				f.Fatal(err)
			}
			f.Add(tok)
		}
	}
	f.Add("")
	f.Add("..")
	f.Add("a.b")
	f.Add("eyJhbGciOiJub25lIn0.eyJ1aWQiOiI0MiJ9.")
	f.Add("eyJhbGciOiJIUzI1NiJ9.eyJ0eXAiOiJhY2Nlc3MiLCJqdGkiOiJ4In0.AAAA")

	f.Fuzz(func(t *testing.T, input string) {
		for _, m := range managers {
			claims, err := m.Decode(input)
			if err != nil {
				continue
			}
			if claims == nil {
				t.Fatal("nil claims without error")
			}
			if claims.TokenID() == "" || claims.UID == "" {
				t.Fatalf("accepted token without identity: %+v", claims)
			}
			if claims.Type != TypeAccess && claims.Type != TypeRefresh {
				t.Fatalf("accepted unknown type %q", claims.Type)
			}
		}
	})
}
