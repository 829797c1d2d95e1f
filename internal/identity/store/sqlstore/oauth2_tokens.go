package sqlstore

import (
	"context"
	"time"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
)

type oauth2TokensRepo struct{ conn }

func (r oauth2TokensRepo) CreateAccessToken(ctx context.Context, t domain.AccessTokenRecord) error {
	return r.insert(ctx, `
		INSERT INTO oauth2_access_token (identifier, client_id, user_identifier, scopes, expires_at, revoked)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.Identifier, t.ClientID, t.UserIdentifier, t.Scopes, ts(t.ExpiresAt), t.Revoked,
	)
}

func (r oauth2TokensRepo) GetAccessToken(ctx context.Context, identifier string) (domain.AccessTokenRecord, error) {
	var (
		t       domain.AccessTokenRecord
		expires nullTime
	)
	err := r.queryRow(ctx, `
		SELECT identifier, client_id, user_identifier, scopes, expires_at, revoked
		FROM oauth2_access_token WHERE identifier = ?`, identifier,
	).Scan(&t.Identifier, &t.ClientID, &t.UserIdentifier, &t.Scopes, &expires, &t.Revoked)
	if err != nil {
		return domain.AccessTokenRecord{}, mapNotFound(err)
	}
	t.ExpiresAt = expires.Time
	return t, nil
}

func (r oauth2TokensRepo) RevokeUserAccessTokens(ctx context.Context, userIdentifier string) (int64, error) {
	return r.execCount(ctx, `
		UPDATE oauth2_access_token SET revoked = TRUE
		WHERE user_identifier = ? AND revoked = FALSE`, userIdentifier)
}

func (r oauth2TokensRepo) CreateRefreshToken(ctx context.Context, t domain.OAuth2RefreshTokenRecord) error {
	var accessToken any
	if t.AccessToken != "" {
		accessToken = t.AccessToken
	}
	return r.insert(ctx, `
		INSERT INTO oauth2_refresh_token (identifier, access_token, expires_at, revoked)
		VALUES (?, ?, ?, ?)`,
		t.Identifier, accessToken, ts(t.ExpiresAt), t.Revoked,
	)
}

func (r oauth2TokensRepo) GetRefreshToken(ctx context.Context, identifier string) (domain.OAuth2RefreshTokenRecord, error) {
	var (
		t           domain.OAuth2RefreshTokenRecord
		accessToken *string
		expires     nullTime
	)
	err := r.queryRow(ctx, `
		SELECT identifier, access_token, expires_at, revoked
		FROM oauth2_refresh_token WHERE identifier = ?`, identifier,
	).Scan(&t.Identifier, &accessToken, &expires, &t.Revoked)
	if err != nil {
		return domain.OAuth2RefreshTokenRecord{}, mapNotFound(err)
	}
	if accessToken != nil {
		t.AccessToken = *accessToken
	}
	t.ExpiresAt = expires.Time
	return t, nil
}

// Refresh tokens carry no user column; they are matched through the owner of
// their access token.
func (r oauth2TokensRepo) RevokeUserRefreshTokens(ctx context.Context, userIdentifier string) (int64, error) {
	return r.execCount(ctx, `
		UPDATE oauth2_refresh_token SET revoked = TRUE
		WHERE revoked = FALSE
		  AND access_token IN (
		    SELECT identifier FROM oauth2_access_token WHERE user_identifier = ?
		  )`, userIdentifier)
}

func (r oauth2TokensRepo) DeleteUserTokens(ctx context.Context, userIdentifier string) error {
	_, err := r.exec(ctx, `DELETE FROM oauth2_access_token WHERE user_identifier = ?`, userIdentifier)
	return err
}

// Expired access tokens stay while a refresh token that references them is
// still live; deleting them would cascade to that refresh token.
func (r oauth2TokensRepo) DeleteExpiredAccessTokens(ctx context.Context, now time.Time) (int64, error) {
	return r.execCount(ctx, `
		DELETE FROM oauth2_access_token
		WHERE expires_at <= ?
		  AND NOT EXISTS (
		    SELECT 1 FROM oauth2_refresh_token r
		    WHERE r.access_token = oauth2_access_token.identifier AND r.expires_at > ?
		  )`, ts(now), ts(now))
}
