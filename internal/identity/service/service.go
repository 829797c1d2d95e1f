// Package service holds the identity core: credential checks, token
// issuance, refresh-token and session lifecycles, revocation and the OAuth2
// consent handshake, plus the admin and reporting operations built on them.
package service

import "time"

// Clock returns the current time. Services read it once per operation.
type Clock func() time.Time

func (c Clock) now() time.Time {
	if c == nil {
		return time.Now().UTC()
	}
	return c().UTC()
}
