package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
	"github.com/aussiebroadwan/identity/internal/identity/store"
	"github.com/aussiebroadwan/identity/pkg/cryptox"
	"github.com/aussiebroadwan/identity/pkg/idx"
	"github.com/aussiebroadwan/identity/pkg/slogx"
)

// DefaultCodeTTL bounds how long an authorization code may sit unused.
const DefaultCodeTTL = 5 * time.Minute

// Decision is what the user chose on the consent screen, carried back to
// the authorization endpoint as approve=1 or deny=1.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionApprove
	DecisionDeny
)

// AuthorizeService ends the consent handshake. An approved request gets a
// single-use code redirected to the client; a denied one gets
// error=access_denied; an undecided one is sent to the consent screen.
type AuthorizeService struct {
	Store   store.Store
	Consent *ConsentService
	CodeTTL time.Duration
	Clock   Clock
}

func (s *AuthorizeService) codeTTL() time.Duration {
	if s.CodeTTL <= 0 {
		return DefaultCodeTTL
	}
	return s.CodeTTL
}

// Authorize returns the URL the user agent should be redirected to.
func (s *AuthorizeService) Authorize(ctx context.Context, userID string, req domain.ConsentRequest, d Decision) (string, error) {
	l := slogx.FromContext(ctx).With(slog.String("client_id", req.ClientID), slog.String("user_id", userID))

	client, err := s.Consent.client(ctx, req)
	if err != nil {
		return "", err
	}
	if !client.AllowsRedirect(req.RedirectURI) {
		l.Info("authorization rejected: redirect_uri not registered", slog.String("redirect_uri", req.RedirectURI))
		return "", ErrInvalidConsentRequest
	}
	if rt := strings.TrimSpace(req.ResponseType); rt != "" && !strings.EqualFold(rt, "code") {
		l.Info("authorization rejected: unsupported response_type", slog.String("response_type", rt))
		return "", ErrInvalidConsentRequest
	}

	switch d {
	case DecisionApprove:
		code, err := s.issueCode(ctx, userID, client, req)
		if err != nil {
			return "", err
		}
		l.Info("authorization approved")
		return clientRedirect(req.RedirectURI, "code", code, req.State), nil

	case DecisionDeny:
		l.Info("authorization denied")
		return clientRedirect(req.RedirectURI, "error", "access_denied", req.State), nil

	default:
		return s.Consent.endpoint(ConsentPath) + "?" + encodeConsent(req), nil
	}
}

func (s *AuthorizeService) issueCode(ctx context.Context, userID string, client domain.Client, req domain.ConsentRequest) (string, error) {
	now := s.Clock.now()

	code, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", err
	}

	record := domain.AuthorizationCode{
		ID:          idx.NewAt(now).String(),
		UserID:      userID,
		ClientID:    client.ID,
		CodeHash:    cryptox.FingerprintToken(code),
		RedirectURI: req.RedirectURI,
		Scopes:      strings.Fields(req.Scope),
		State:       req.State,
		ExpiresAt:   now.Add(s.codeTTL()),
		CreatedAt:   now,
	}
	if err := s.Store.AuthorizationCodes().CreateAuthorizationCode(ctx, record); err != nil {
		return "", fmt.Errorf("store authorization code: %w", err)
	}
	return code, nil
}

// clientRedirect appends key=value and state to the client's redirect URI,
// keeping any query it already carries.
func clientRedirect(redirectURI, key, value, state string) string {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return redirectURI
	}
	q := u.Query()
	q.Set(key, value)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
