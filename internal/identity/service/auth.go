package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
	"github.com/aussiebroadwan/identity/internal/identity/store"
	"github.com/aussiebroadwan/identity/pkg/slogx"
)

var ErrUserNotFound = errors.New("user_not_found")

// AuthResult is returned by Login and Refresh.
type AuthResult struct {
	Tokens domain.TokenPair
	User   domain.User
}

// AuthService strings the core components together for the login, refresh
// and logout endpoints.
type AuthService struct {
	Store         store.Store
	Credentials   *CredentialService
	Issuer        *TokenIssuer
	RefreshTokens *RefreshTokenService
	Sessions      *SessionService
	Revocation    *RevocationService
}

// Login authenticates, opens a session, and issues an access and refresh
// token pair.
func (s *AuthService) Login(ctx context.Context, username, password string) (AuthResult, error) {
	u, err := s.Credentials.Authenticate(ctx, username, password)
	if err != nil {
		return AuthResult{}, err
	}
	ctx = slogx.With(ctx, slog.String("user_id", u.ID))

	sid, err := s.Sessions.StartSession(ctx, u.ID)
	if err != nil {
		return AuthResult{}, fmt.Errorf("start session: %w", err)
	}

	refresh, err := s.RefreshTokens.Create(ctx, u.ID)
	if err != nil {
		s.abandonSession(ctx, sid)
		return AuthResult{}, fmt.Errorf("create refresh token: %w", err)
	}

	pair, err := s.issue(ctx, u, sid, refresh)
	if err != nil {
		s.abandonSession(ctx, sid)
		return AuthResult{}, err
	}

	slogx.FromContext(ctx).Info("user logged in", slog.String("session_id", sid))
	return AuthResult{Tokens: pair, User: u}, nil
}

// abandonSession closes the session a failed login opened. The next login
// closes it anyway, so a failure here is only logged.
func (s *AuthService) abandonSession(ctx context.Context, sid string) {
	if err := s.Sessions.FinishSession(ctx, sid); err != nil {
		slogx.FromContext(ctx).Warn("failed to close session after login error",
			slog.String("session_id", sid), slog.Any("error", err))
	}
}

// Refresh rotates refreshToken and issues a new access token for the
// session that is currently open.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	next, u, err := s.RefreshTokens.Rotate(ctx, refreshToken)
	if err != nil {
		return AuthResult{}, err
	}
	ctx = slogx.With(ctx, slog.String("user_id", u.ID))

	if u.IsBlocked {
		slogx.FromContext(ctx).Warn("refresh refused: account blocked")
		if err := s.RefreshTokens.InvalidateUserTokens(ctx, u.ID); err != nil {
			return AuthResult{}, err
		}
		return AuthResult{}, ErrInvalidRefresh
	}

	var sid string
	if open, err := s.Store.Sessions().GetOpenSession(ctx, u.ID); err == nil {
		sid = open.ID
	} else if !errors.Is(err, store.ErrNotFound) {
		return AuthResult{}, err
	}

	pair, err := s.issue(ctx, u, sid, next)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Tokens: pair, User: u}, nil
}

func (s *AuthService) issue(ctx context.Context, u domain.User, sid, refresh string) (domain.TokenPair, error) {
	access, claims, err := s.Issuer.Issue(u, sid)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	// Authenticated requests are checked against this record, and logout
	// revokes it.
	err = s.Store.OAuth2Tokens().CreateAccessToken(ctx, domain.AccessTokenRecord{
		Identifier:     claims.ID,
		UserIdentifier: u.ID,
		ExpiresAt:      claims.ExpiresAt.Time,
	})
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("record access token: %w", err)
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.Issuer.ttl().Seconds()),
	}, nil
}

// Logout revokes every token of userID and closes the open session. When
// revocation fails nothing changes and ErrRevocationFailed is returned.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	u, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.Revocation.RevokeAll(ctx, u); err != nil {
		return err
	}
	if err := s.Sessions.FinishCurrentSession(ctx, u.ID); err != nil {
		return fmt.Errorf("finish session: %w", err)
	}

	slogx.FromContext(ctx).Info("user logged out", slog.String("user_id", u.ID))
	return nil
}

// Me returns the user behind an authenticated request.
func (s *AuthService) Me(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return u, err
}

// IsAccessTokenActive reports whether the access token with jti is still
// recorded and not revoked. Unknown tokens count as revoked.
func (s *AuthService) IsAccessTokenActive(ctx context.Context, jti string) (bool, error) {
	rec, err := s.Store.OAuth2Tokens().GetAccessToken(ctx, jti)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return !rec.Revoked, nil
}
