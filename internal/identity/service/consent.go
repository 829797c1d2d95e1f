package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
	"github.com/aussiebroadwan/identity/internal/identity/store"
	"github.com/aussiebroadwan/identity/pkg/slogx"
)

var ErrInvalidConsentRequest = errors.New("invalid_consent_request")

// Paths of the authorization and consent endpoints, relative to PublicURL.
const (
	AuthorizePath = "/oauth2/authorize"
	ConsentPath   = "/oauth2/consent"
)

// ConsentService validates authorization requests and builds the approve
// and deny links that send the user back to the authorization endpoint.
// Nothing is stored between the two legs; the request rides in the URL.
type ConsentService struct {
	Store     store.Store
	PublicURL string
}

// Validate accepts req only for a registered, active client. The caller
// sees the same error either way.
func (s *ConsentService) Validate(ctx context.Context, req domain.ConsentRequest) error {
	_, err := s.client(ctx, req)
	return err
}

func (s *ConsentService) client(ctx context.Context, req domain.ConsentRequest) (domain.Client, error) {
	l := slogx.FromContext(ctx).With(slog.String("client_id", req.ClientID))

	if strings.TrimSpace(req.ClientID) == "" {
		l.Info("consent rejected: missing client_id")
		return domain.Client{}, ErrInvalidConsentRequest
	}

	c, err := s.Store.Clients().GetClientByID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Info("consent rejected: client not found")
			return domain.Client{}, ErrInvalidConsentRequest
		}
		return domain.Client{}, err
	}
	if !c.Active {
		l.Info("consent rejected: client inactive")
		return domain.Client{}, ErrInvalidConsentRequest
	}
	return c, nil
}

// BuildRedirectURL points back at the authorization endpoint with the
// original parameters and approve=1 or deny=1.
func (s *ConsentService) BuildRedirectURL(req domain.ConsentRequest, approved bool) string {
	flag := "deny"
	if approved {
		flag = "approve"
	}
	return s.endpoint(AuthorizePath) + "?" + encodeConsent(req, flag, "1")
}

func (s *ConsentService) endpoint(path string) string {
	return strings.TrimRight(s.PublicURL, "/") + path
}

// encodeConsent renders the non-empty request parameters in a fixed order,
// followed by any extra key/value pairs.
func encodeConsent(req domain.ConsentRequest, extra ...string) string {
	pairs := []string{
		"client_id", req.ClientID,
		"redirect_uri", req.RedirectURI,
		"scope", req.Scope,
		"state", req.State,
		"response_type", req.ResponseType,
		"grant_type", req.GrantType,
	}
	pairs = append(pairs, extra...)

	var b strings.Builder
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(pairs[i]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(pairs[i+1]))
	}
	return b.String()
}
