package jwtx

import (
	"slices"
	"time"

	"github.com/aussiebroadwan/identity/pkg/idx"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTokenTTL is the lifetime of an access token when the service
// is not configured otherwise. Access tokens are not individually revocable
// without a side-table lookup, so keep this short.
const DefaultAccessTokenTTL = 15 * time.Minute

// Claims are the access-token claims issued by the identity service.
type Claims struct {
	jwt.RegisteredClaims

	// Username of the authenticated user at issuance.
	Username string `json:"username,omitempty"`

	// Roles held by the user at issuance, e.g. ["ROLE_USER","ROLE_ADMIN"].
	Roles []string `json:"roles,omitempty"`

	// SID is the session the token was minted for.
	SID string `json:"sid,omitempty"`
}

// AccessClaimsParams groups the inputs for NewAccessClaims.
type AccessClaimsParams struct {
	Subject   string
	Username  string
	Roles     []string
	SessionID string
	Issuer    string
	Audience  []string
	TTL       time.Duration
	Now       time.Time
}

// NewAccessClaims builds claims with a fresh jti and exp = now + ttl.
func NewAccessClaims(p AccessClaimsParams) Claims {
	now := p.Now.UTC()
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.Issuer,
			Subject:   p.Subject,
			Audience:  jwt.ClaimStrings(p.Audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.TTL)),
			ID:        NewJTI(),
		},
		Username: p.Username,
		Roles:    p.Roles,
		SID:      p.SessionID,
	}
}

// NewJTI returns a unique token identifier. ULIDs keep the access-token
// table roughly insertion ordered.
func NewJTI() string {
	return idx.New().String()
}

// HasRole reports whether the claims carry role.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before nbf.
func (c *Claims) ValidateExpiry() error {
	return c.ValidateExpiryWithLeeway(0)
}

// ValidateExpiryWithLeeway adds a grace period for clock skew.
func (c *Claims) ValidateExpiryWithLeeway(leeway time.Duration) error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}
