package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
	"github.com/aussiebroadwan/identity/internal/identity/store"
	"github.com/aussiebroadwan/identity/pkg/cryptox"
	"github.com/aussiebroadwan/identity/pkg/idx"
	"github.com/aussiebroadwan/identity/pkg/slogx"
)

// DefaultRefreshTTL is how long a refresh token stays valid.
const DefaultRefreshTTL = 30 * 24 * time.Hour

var (
	ErrInvalidRefresh = errors.New("invalid_refresh_token")
	ErrTokenCollision = errors.New("refresh_token_collision")
)

// RefreshTokenService manages opaque refresh tokens. A user has at most one
// active token: creating a new one revokes every earlier one.
type RefreshTokenService struct {
	Store store.Store
	TTL   time.Duration
	Clock Clock
}

func (s *RefreshTokenService) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultRefreshTTL
	}
	return s.TTL
}

// Create revokes the user's active tokens and issues a new one. The opaque
// token is returned; only its fingerprint is stored.
func (s *RefreshTokenService) Create(ctx context.Context, userID string) (string, error) {
	now := s.Clock.now()

	var token string
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.LockUser(ctx, userID); err != nil {
			return err
		}
		var err error
		token, err = s.create(ctx, tx, userID, now)
		return err
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *RefreshTokenService) create(ctx context.Context, tx store.Tx, userID string, now time.Time) (string, error) {
	revoked, err := tx.RefreshTokens().RevokeUserRefreshTokens(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("revoke previous refresh tokens: %w", err)
	}

	opaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}

	rt := domain.RefreshToken{
		ID:        idx.NewAt(now).String(),
		UserID:    userID,
		TokenHash: cryptox.FingerprintToken(opaque),
		ExpiresAt: now.Add(s.ttl()),
		CreatedAt: now,
	}
	if err := tx.RefreshTokens().CreateRefreshToken(ctx, rt); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			slogx.FromContext(ctx).Error("refresh token fingerprint collision", slog.String("user_id", userID))
			return "", ErrTokenCollision
		}
		return "", fmt.Errorf("insert refresh token: %w", err)
	}

	slogx.FromContext(ctx).Debug("refresh token issued",
		slog.String("user_id", userID),
		slog.Int64("revoked", revoked),
	)
	return opaque, nil
}

// Validate resolves token to its owner. Unknown, revoked and expired tokens
// yield (nil, nil); errors are reserved for store failures.
func (s *RefreshTokenService) Validate(ctx context.Context, token string) (*domain.User, error) {
	now := s.Clock.now()
	l := slogx.FromContext(ctx)

	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, cryptox.FingerprintToken(token))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Debug("refresh token unknown")
			return nil, nil
		}
		return nil, err
	}

	switch {
	case rt.Revoked:
		l.Info("refresh token revoked", slog.String("user_id", rt.UserID))
		return nil, nil
	case !rt.ExpiresAt.After(now):
		l.Info("refresh token expired", slog.String("user_id", rt.UserID))
		return nil, nil
	}

	u, err := s.Store.Users().GetUserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// Rotate revokes old and issues a replacement for the same user in one
// transaction. A token that does not resolve to an active record fails with
// ErrInvalidRefresh. The owner is returned with the new token.
func (s *RefreshTokenService) Rotate(ctx context.Context, old string) (string, domain.User, error) {
	now := s.Clock.now()
	hash := cryptox.FingerprintToken(old)
	l := slogx.FromContext(ctx)

	var (
		token string
		owner domain.User
	)
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		rt, err := tx.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				l.Info("refresh rotation failed: unknown token")
				return ErrInvalidRefresh
			}
			return err
		}

		if err := tx.LockUser(ctx, rt.UserID); err != nil {
			return err
		}

		// Re-read under the lock; a concurrent rotation may have won.
		rt, err = tx.RefreshTokens().GetRefreshTokenByHash(ctx, hash)
		if err != nil {
			return err
		}
		if !rt.Active(now) {
			l.Info("refresh rotation failed: token inactive",
				slog.String("user_id", rt.UserID),
				slog.Bool("revoked", rt.Revoked),
			)
			return ErrInvalidRefresh
		}

		owner, err = tx.Users().GetUserByID(ctx, rt.UserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidRefresh
			}
			return err
		}

		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, hash); err != nil {
			return err
		}

		token, err = s.create(ctx, tx, rt.UserID, now)
		return err
	})
	if err != nil {
		return "", domain.User{}, err
	}
	return token, owner, nil
}

// Invalidate revokes token. Unknown or already revoked tokens are not an
// error.
func (s *RefreshTokenService) Invalidate(ctx context.Context, token string) error {
	return s.Store.RefreshTokens().RevokeRefreshToken(ctx, cryptox.FingerprintToken(token))
}

// InvalidateUserTokens revokes every active token of userID.
func (s *RefreshTokenService) InvalidateUserTokens(ctx context.Context, userID string) error {
	n, err := s.Store.RefreshTokens().RevokeUserRefreshTokens(ctx, userID)
	if err != nil {
		return err
	}
	slogx.FromContext(ctx).Debug("refresh tokens invalidated", slog.String("user_id", userID), slog.Int64("count", n))
	return nil
}
