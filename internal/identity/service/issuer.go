package service

import (
	"time"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
	"github.com/aussiebroadwan/identity/pkg/jwtx"
)

// TokenIssuer mints signed access tokens. It holds no state of its own.
type TokenIssuer struct {
	KeyManager *jwtx.KeyManager
	Issuer     string
	Audience   []string
	AccessTTL  time.Duration
	Clock      Clock
}

func (i *TokenIssuer) ttl() time.Duration {
	if i.AccessTTL <= 0 {
		return jwtx.DefaultAccessTokenTTL
	}
	return i.AccessTTL
}

// Issue signs an access token for u bound to sessionID.
func (i *TokenIssuer) Issue(u domain.User, sessionID string) (string, jwtx.Claims, error) {
	claims := jwtx.NewAccessClaims(jwtx.AccessClaimsParams{
		Subject:   u.ID,
		Username:  u.Username,
		Roles:     u.Roles.Strings(),
		SessionID: sessionID,
		Issuer:    i.Issuer,
		Audience:  i.Audience,
		TTL:       i.ttl(),
		Now:       i.Clock.now(),
	})

	token, err := i.KeyManager.Sign(claims)
	if err != nil {
		return "", jwtx.Claims{}, err
	}
	return token, claims, nil
}
