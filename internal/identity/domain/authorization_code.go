package domain

import "time"

// AuthorizationCode is issued when the user approves a consent request.
type AuthorizationCode struct {
	ID          string
	UserID      string
	ClientID    string
	CodeHash    string
	RedirectURI string
	Scopes      []string
	State       string
	ExpiresAt   time.Time
	UsedAt      *time.Time
	CreatedAt   time.Time
}
