package flows

import (
	"errors"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/goToken/jwt"
)

// Subject is the identity snapshot embedded into issued tokens.
type Subject struct {
	ID       string
	Email    string
	IsAdmin  bool
	IsActive bool
}

// IssueDeps captures token issuance dependencies.
type IssueDeps struct {
	Now        func() time.Time
	NewTokenID func() string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Encode     func(jwt.Claims) (string, error)
}

// IssueResult carries a freshly minted access/refresh pair.
type IssueResult struct {
	Err              error
	AccessToken      string
	RefreshToken     string
	AccessTokenID    string
	RefreshTokenID   string
	IssuedAt         time.Time
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// RunIssue mints an access and refresh token for subject. Both share one iat
// and carry distinct jtis.
func RunIssue(subject Subject, fresh bool, deps IssueDeps) IssueResult {
	if subject.ID == "" {
		return IssueResult{Err: errors.New("issue: subject id is required")}
	}

	// iat and exp are whole seconds on the wire; iat_ms keeps the
	// millisecond the pair was minted for watermark comparisons.
	issued := deps.Now().UTC().Truncate(time.Millisecond)
	now := issued.Truncate(time.Second)
	accessID := deps.NewTokenID()
	refreshID := deps.NewTokenID()
	for refreshID == accessID {
		refreshID = deps.NewTokenID()
	}

	admin, active := subject.IsAdmin, subject.IsActive
	accessExp := now.Add(deps.AccessTTL)
	access, err := deps.Encode(jwt.Claims{
		UID:        subject.ID,
		Type:       jwt.TypeAccess,
		IsAdmin:    &admin,
		IsActive:   &active,
		Email:      subject.Email,
		Fresh:      fresh,
		IssuedAtMS: issued.UnixMilli(),
		RegisteredClaims: gjwt.RegisteredClaims{
			ID:        accessID,
			IssuedAt:  gjwt.NewNumericDate(now),
			ExpiresAt: gjwt.NewNumericDate(accessExp),
		},
	})
	if err != nil {
		return IssueResult{Err: err}
	}

	refreshExp := now.Add(deps.RefreshTTL)
	refresh, err := deps.Encode(jwt.Claims{
		UID:        subject.ID,
		Type:       jwt.TypeRefresh,
		IssuedAtMS: issued.UnixMilli(),
		RegisteredClaims: gjwt.RegisteredClaims{
			ID:        refreshID,
			IssuedAt:  gjwt.NewNumericDate(now),
			ExpiresAt: gjwt.NewNumericDate(refreshExp),
		},
	})
	if err != nil {
		return IssueResult{Err: err}
	}

	return IssueResult{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessTokenID:    accessID,
		RefreshTokenID:   refreshID,
		IssuedAt:         now,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}
}
