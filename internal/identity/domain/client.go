package domain

import (
	"slices"
	"time"
)

// Client is a registered OAuth2 client.
type Client struct {
	ID           string
	Name         string
	RedirectURIs []string
	Scopes       []string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// AllowsRedirect reports whether uri exactly matches a registered redirect URI.
func (c Client) AllowsRedirect(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}
