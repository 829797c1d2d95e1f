package sqlstore

import (
	"context"
	"time"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
)

type authorizationCodesRepo struct{ conn }

func (r authorizationCodesRepo) CreateAuthorizationCode(ctx context.Context, c domain.AuthorizationCode) error {
	return r.insert(ctx, `
		INSERT INTO authorization_codes
			(id, user_id, client_id, code_hash, redirect_uri, scopes, state, expires_at, used_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.ClientID, c.CodeHash, c.RedirectURI, joinFields(c.Scopes), c.State,
		ts(c.ExpiresAt), tsPtr(c.UsedAt), ts(c.CreatedAt),
	)
}

func (r authorizationCodesRepo) GetAuthorizationCodeByHash(ctx context.Context, hash string) (domain.AuthorizationCode, error) {
	var (
		c                      domain.AuthorizationCode
		scopes                 string
		expires, used, created nullTime
	)
	err := r.queryRow(ctx, `
		SELECT id, user_id, client_id, code_hash, redirect_uri, scopes, state, expires_at, used_at, created_at
		FROM authorization_codes WHERE code_hash = ?`, hash,
	).Scan(&c.ID, &c.UserID, &c.ClientID, &c.CodeHash, &c.RedirectURI, &scopes, &c.State, &expires, &used, &created)
	if err != nil {
		return domain.AuthorizationCode{}, mapNotFound(err)
	}
	c.Scopes = splitFields(scopes)
	c.ExpiresAt = expires.Time
	c.UsedAt = used.ptr()
	c.CreatedAt = created.Time
	return c, nil
}

func (r authorizationCodesRepo) MarkAuthorizationCodeUsed(ctx context.Context, id string, at time.Time) error {
	return r.execOne(ctx, `UPDATE authorization_codes SET used_at = ? WHERE id = ? AND used_at IS NULL`, ts(at), id)
}

func (r authorizationCodesRepo) DeleteExpiredAuthorizationCodes(ctx context.Context, now time.Time) (int64, error) {
	return r.execCount(ctx, `DELETE FROM authorization_codes WHERE expires_at <= ?`, ts(now))
}
