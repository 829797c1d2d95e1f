package domain

import "time"

// TokenPair is what login and refresh hand back to the caller.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

// RefreshToken is the stored refresh token record. Only the fingerprint of
// the opaque token is persisted.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string // base64url SHA-256 of the opaque token
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// Active reports whether the token is usable at now.
func (t RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}

// AccessTokenRecord tracks an issued access token by jti so it can be revoked
// before it expires.
type AccessTokenRecord struct {
	Identifier     string // JWT jti
	UserIdentifier string // user ID; usernames can change
	ClientID       string // empty for first-party logins
	Scopes         string
	ExpiresAt      time.Time
	Revoked        bool
}

// OAuth2RefreshTokenRecord is a refresh token bound to an access token record.
type OAuth2RefreshTokenRecord struct {
	Identifier  string
	AccessToken string // AccessTokenRecord.Identifier
	ExpiresAt   time.Time
	Revoked     bool
}
