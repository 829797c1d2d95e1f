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

var ErrRevocationFailed = errors.New("revocation_failed")

// RevocationService revokes every token a user holds, across the access
// token, OAuth2 refresh token and refresh token tables, in one transaction.
type RevocationService struct {
	Store store.Store
}

// RevokeAll either revokes everything or leaves token state untouched and
// returns ErrRevocationFailed.
func (s *RevocationService) RevokeAll(ctx context.Context, u domain.User) error {
	l := slogx.FromContext(ctx).With(slog.String("user_id", u.ID))

	var access, oauthRefresh, refresh int64
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.LockUser(ctx, u.ID); err != nil {
			return err
		}

		var err error
		if access, err = tx.OAuth2Tokens().RevokeUserAccessTokens(ctx, u.ID); err != nil {
			return fmt.Errorf("revoke access tokens: %w", err)
		}
		if oauthRefresh, err = tx.OAuth2Tokens().RevokeUserRefreshTokens(ctx, u.ID); err != nil {
			return fmt.Errorf("revoke oauth2 refresh tokens: %w", err)
		}
		if refresh, err = tx.RefreshTokens().RevokeUserRefreshTokens(ctx, u.ID); err != nil {
			return fmt.Errorf("revoke refresh tokens: %w", err)
		}
		return nil
	})
	if err != nil {
		l.Error("token revocation rolled back", slog.Any("error", err))
		return fmt.Errorf("%w: %w", ErrRevocationFailed, err)
	}

	l.Info("tokens revoked",
		slog.Int64("access_tokens", access),
		slog.Int64("oauth2_refresh_tokens", oauthRefresh),
		slog.Int64("refresh_tokens", refresh),
	)
	return nil
}
