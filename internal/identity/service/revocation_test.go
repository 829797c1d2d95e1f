package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
	"github.com/aussiebroadwan/identity/internal/identity/store"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected failure")

// failingStore hands out transactions whose OAuth2 refresh-token revocation
// fails, after the access-token revocation has already run.
type failingStore struct{ store.Store }

func (s failingStore) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.Store.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return failingTx{tx}, nil
}

func (s failingStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// innerTx gives the embedded transaction a field name other than Tx, which
// would hide store.Tx's own Tx method.
type innerTx = store.Tx

type failingTx struct{ innerTx }

func (t failingTx) OAuth2Tokens() store.OAuth2Tokens {
	return failingOAuth2Tokens{t.innerTx.OAuth2Tokens()}
}

type failingOAuth2Tokens struct{ store.OAuth2Tokens }

func (failingOAuth2Tokens) RevokeUserRefreshTokens(context.Context, string) (int64, error) {
	return 0, errInjected
}

// seedTokens gives u a recorded access token with a linked OAuth2 refresh
// token and an active refresh token.
func seedTokens(t *testing.T, f *fixture, u domain.User) {
	t.Helper()
	ctx := context.Background()
	exp := f.clock.Now().Add(time.Hour)

	require.NoError(t, f.store.OAuth2Tokens().CreateAccessToken(ctx, domain.AccessTokenRecord{
		Identifier: "jti-" + u.Username, UserIdentifier: u.ID, ExpiresAt: exp,
	}))
	require.NoError(t, f.store.OAuth2Tokens().CreateRefreshToken(ctx, domain.OAuth2RefreshTokenRecord{
		Identifier: "ort-" + u.Username, AccessToken: "jti-" + u.Username, ExpiresAt: exp,
	}))
	_, err := f.refresh.Create(ctx, u.ID)
	require.NoError(t, err)
}

func TestRevokeAll(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")
	seedTokens(t, f, alice)
	seedTokens(t, f, bob)

	require.NoError(t, f.revocation.RevokeAll(ctx, alice))

	at, err := f.store.OAuth2Tokens().GetAccessToken(ctx, "jti-alice")
	require.NoError(t, err)
	require.True(t, at.Revoked)

	ort, err := f.store.OAuth2Tokens().GetRefreshToken(ctx, "ort-alice")
	require.NoError(t, err)
	require.True(t, ort.Revoked)

	require.Empty(t, f.activeRefreshTokens(t, alice.ID))

	at, err = f.store.OAuth2Tokens().GetAccessToken(ctx, "jti-bob")
	require.NoError(t, err)
	require.False(t, at.Revoked, "other users keep their tokens")
	require.Len(t, f.activeRefreshTokens(t, bob.ID), 1)
}

func TestRevokeAllIsAtomic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")
	seedTokens(t, f, alice)

	svc := &RevocationService{Store: failingStore{f.store}}
	err := svc.RevokeAll(ctx, alice)
	require.ErrorIs(t, err, ErrRevocationFailed)
	require.ErrorIs(t, err, errInjected)

	at, err := f.store.OAuth2Tokens().GetAccessToken(ctx, "jti-alice")
	require.NoError(t, err)
	require.False(t, at.Revoked, "the access-token revocation was rolled back")

	ort, err := f.store.OAuth2Tokens().GetRefreshToken(ctx, "ort-alice")
	require.NoError(t, err)
	require.False(t, ort.Revoked)

	require.Len(t, f.activeRefreshTokens(t, alice.ID), 1)
}

func TestRevokeAllHonoursCancelledContext(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice := f.createUser(t, "alice")
	seedTokens(t, f, alice)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, f.revocation.RevokeAll(ctx, alice), ErrRevocationFailed)

	at, err := f.store.OAuth2Tokens().GetAccessToken(context.Background(), "jti-alice")
	require.NoError(t, err)
	require.False(t, at.Revoked)
}
