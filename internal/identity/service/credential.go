package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
	"github.com/aussiebroadwan/identity/internal/identity/store"
	"github.com/aussiebroadwan/identity/pkg/cryptox"
	"github.com/aussiebroadwan/identity/pkg/slogx"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrAccountBlocked     = errors.New("account_blocked")
)

// CredentialService checks a username and password against the user store.
type CredentialService struct {
	Store store.Store
}

// Authenticate returns the user when the password matches. An unknown user
// and a wrong password both yield ErrInvalidCredentials; the blocked flag is
// only reported once the password has been proven.
func (s *CredentialService) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	l := slogx.FromContext(ctx).With(slog.String("username", username))

	u, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = cryptox.VerifyDummy(password)
			l.Info("authentication failed: unknown user")
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	if err := cryptox.VerifyPassword(password, u.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			l.Info("authentication failed: wrong password", slog.String("user_id", u.ID))
		} else {
			l.Warn("authentication failed: unusable password hash", slog.String("user_id", u.ID), slog.Any("error", err))
		}
		return domain.User{}, ErrInvalidCredentials
	}

	if u.IsBlocked {
		l.Warn("authentication refused: account blocked", slog.String("user_id", u.ID))
		return domain.User{}, ErrAccountBlocked
	}

	return u, nil
}
