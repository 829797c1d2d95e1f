package sqlstore

import (
	"context"
	"time"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
)

type refreshTokensRepo struct{ conn }

const refreshTokenColumns = `id, token, user_id, expires_at, created_at, is_revoked`

func scanRefreshToken(row scanner) (domain.RefreshToken, error) {
	var (
		t                domain.RefreshToken
		expires, created nullTime
	)
	if err := row.Scan(&t.ID, &t.TokenHash, &t.UserID, &expires, &created, &t.Revoked); err != nil {
		return domain.RefreshToken{}, err
	}
	t.ExpiresAt = expires.Time
	t.CreatedAt = created.Time
	return t, nil
}

func (r refreshTokensRepo) CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error {
	return r.insert(ctx, `
		INSERT INTO refresh_tokens (`+refreshTokenColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.TokenHash, t.UserID, ts(t.ExpiresAt), ts(t.CreatedAt), t.Revoked,
	)
}

func (r refreshTokensRepo) GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error) {
	t, err := scanRefreshToken(r.queryRow(ctx, `SELECT `+refreshTokenColumns+` FROM refresh_tokens WHERE token = ?`, hash))
	if err != nil {
		return domain.RefreshToken{}, mapNotFound(err)
	}
	return t, nil
}

func (r refreshTokensRepo) RevokeRefreshToken(ctx context.Context, hash string) error {
	_, err := r.exec(ctx, `UPDATE refresh_tokens SET is_revoked = TRUE WHERE token = ? AND is_revoked = FALSE`, hash)
	return err
}

func (r refreshTokensRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) (int64, error) {
	return r.execCount(ctx, `UPDATE refresh_tokens SET is_revoked = TRUE WHERE user_id = ? AND is_revoked = FALSE`, userID)
}

func (r refreshTokensRepo) ListUserRefreshTokens(ctx context.Context, userID string) ([]domain.RefreshToken, error) {
	rows, err := r.query(ctx, `
		SELECT `+refreshTokenColumns+` FROM refresh_tokens
		WHERE user_id = ?
		ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RefreshToken
	for rows.Next() {
		t, err := scanRefreshToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r refreshTokensRepo) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	return r.execCount(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= ?`, ts(now))
}
