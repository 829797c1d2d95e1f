package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
	"github.com/aussiebroadwan/identity/internal/identity/store"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")

	u, err := f.creds.Authenticate(ctx, "alice", "alice-password")
	require.NoError(t, err)
	require.Equal(t, alice.ID, u.ID)

	_, err = f.creds.Authenticate(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.creds.Authenticate(ctx, "nobody", "alice-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	alice.IsBlocked = true
	require.NoError(t, f.store.Users().UpdateUser(ctx, alice))

	_, err = f.creds.Authenticate(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials, "blocked state is not revealed without the password")

	_, err = f.creds.Authenticate(ctx, "alice", "alice-password")
	require.ErrorIs(t, err, ErrAccountBlocked)
}

func TestTokenIssuer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	u := f.createUser(t, "alice", domain.RoleAdmin)

	token, claims, err := f.issuer.Issue(u, "session-1")
	require.NoError(t, err)

	verified, err := f.keys.Verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, u.ID, verified.Subject)
	require.Equal(t, "alice", verified.Username)
	require.Equal(t, "session-1", verified.SID)
	require.Equal(t, []string{"ROLE_ADMIN", "ROLE_USER"}, verified.Roles)
	require.Equal(t, claims.ID, verified.ID)
	require.Equal(t, testIssuer, verified.Issuer)
	require.WithinDuration(t, time.Now().Add(time.Minute), verified.ExpiresAt.Time, 2*time.Second)
}

// The two-device scenario: a second login supersedes the first, and logout
// leaves nothing usable behind.
func TestAliceLoginLoginLogout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")

	first, err := f.auth.Login(ctx, "alice", "alice-password")
	require.NoError(t, err)
	require.NotEmpty(t, first.Tokens.AccessToken)
	require.NotEmpty(t, first.Tokens.RefreshToken)
	require.Equal(t, "Bearer", first.Tokens.TokenType)
	require.EqualValues(t, 60, first.Tokens.ExpiresIn)
	require.Equal(t, alice.ID, first.User.ID)

	open := f.openSessions(t, alice.ID)
	require.Len(t, open, 1)
	firstSession := open[0].ID

	claims, err := f.keys.Verifier.Verify(first.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, firstSession, claims.SID)

	active, err := f.auth.IsAccessTokenActive(ctx, claims.ID)
	require.NoError(t, err)
	require.True(t, active)

	f.clock.Advance(time.Minute)
	second, err := f.auth.Login(ctx, "alice", "alice-password")
	require.NoError(t, err)

	got, err := f.refresh.Validate(ctx, first.Tokens.RefreshToken)
	require.NoError(t, err)
	require.Nil(t, got, "first device's refresh token is gone")

	open = f.openSessions(t, alice.ID)
	require.Len(t, open, 1)
	require.NotEqual(t, firstSession, open[0].ID)

	closed, err := f.sessions.GetSession(ctx, firstSession)
	require.NoError(t, err)
	require.False(t, closed.Open())

	require.Len(t, f.activeRefreshTokens(t, alice.ID), 1)

	require.NoError(t, f.auth.Logout(ctx, alice.ID))

	got, err = f.refresh.Validate(ctx, second.Tokens.RefreshToken)
	require.NoError(t, err)
	require.Nil(t, got)
	require.Empty(t, f.activeRefreshTokens(t, alice.ID))
	require.Empty(t, f.openSessions(t, alice.ID))

	for _, access := range []string{first.Tokens.AccessToken, second.Tokens.AccessToken} {
		claims, err := f.keys.Verifier.Verify(access)
		require.NoError(t, err, "the JWT itself is still well formed")

		active, err := f.auth.IsAccessTokenActive(ctx, claims.ID)
		require.NoError(t, err)
		require.False(t, active)
	}
}

func TestLoginFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")

	_, err := f.auth.Login(ctx, "alice", "nope")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.Empty(t, f.openSessions(t, alice.ID), "failed logins leave no session")

	alice.IsBlocked = true
	require.NoError(t, f.store.Users().UpdateUser(ctx, alice))
	_, err = f.auth.Login(ctx, "alice", "alice-password")
	require.ErrorIs(t, err, ErrAccountBlocked)
}

func TestRefresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")

	login, err := f.auth.Login(ctx, "alice", "alice-password")
	require.NoError(t, err)

	refreshed, err := f.auth.Refresh(ctx, login.Tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, login.Tokens.RefreshToken, refreshed.Tokens.RefreshToken)
	require.NotEqual(t, login.Tokens.AccessToken, refreshed.Tokens.AccessToken)
	require.Equal(t, alice.ID, refreshed.User.ID)

	before, err := f.keys.Verifier.Verify(login.Tokens.AccessToken)
	require.NoError(t, err)
	after, err := f.keys.Verifier.Verify(refreshed.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, before.SID, after.SID, "refresh stays in the same session")

	_, err = f.auth.Refresh(ctx, login.Tokens.RefreshToken)
	require.ErrorIs(t, err, ErrInvalidRefresh)

	t.Run("blocked user", func(t *testing.T) {
		alice.IsBlocked = true
		require.NoError(t, f.store.Users().UpdateUser(ctx, alice))

		_, err := f.auth.Refresh(ctx, refreshed.Tokens.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)
		require.Empty(t, f.activeRefreshTokens(t, alice.ID))
	})
}

func TestLogoutAndMe(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")

	me, err := f.auth.Me(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", me.Username)

	_, err = f.auth.Me(ctx, "missing")
	require.ErrorIs(t, err, ErrUserNotFound)

	require.ErrorIs(t, f.auth.Logout(ctx, "missing"), ErrUserNotFound)
	require.NoError(t, f.auth.Logout(ctx, alice.ID), "logout without a login is tolerated")

	active, err := f.auth.IsAccessTokenActive(ctx, "unknown-jti")
	require.NoError(t, err)
	require.False(t, active)
}

func TestLogoutKeepsSessionWhenRevocationFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")

	_, err := f.auth.Login(ctx, "alice", "alice-password")
	require.NoError(t, err)

	f.auth.Revocation = &RevocationService{Store: failingStore{f.store}}
	require.ErrorIs(t, f.auth.Logout(ctx, alice.ID), ErrRevocationFailed)

	require.Len(t, f.openSessions(t, alice.ID), 1)
	require.Len(t, f.activeRefreshTokens(t, alice.ID), 1)
}

func TestLogoutRevokesTokensIssuedBeforeRename(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")

	login, err := f.auth.Login(ctx, "alice", "alice-password")
	require.NoError(t, err)
	claims, err := f.keys.Verifier.Verify(login.Tokens.AccessToken)
	require.NoError(t, err)

	_, err = f.admin.UpdateUser(ctx, alice.ID, UserInput{Username: "alice2", Email: alice.Email})
	require.NoError(t, err)

	active, err := f.auth.IsAccessTokenActive(ctx, claims.ID)
	require.NoError(t, err)
	require.True(t, active, "a rename alone does not revoke")

	require.NoError(t, f.auth.Logout(ctx, alice.ID))

	active, err = f.auth.IsAccessTokenActive(ctx, claims.ID)
	require.NoError(t, err)
	require.False(t, active)
}

// rejectingAccessStore fails every access-token insert made outside a
// transaction.
type rejectingAccessStore struct{ store.Store }

func (s rejectingAccessStore) OAuth2Tokens() store.OAuth2Tokens {
	return rejectingAccessTokens{s.Store.OAuth2Tokens()}
}

type rejectingAccessTokens struct{ store.OAuth2Tokens }

func (rejectingAccessTokens) CreateAccessToken(context.Context, domain.AccessTokenRecord) error {
	return errInjected
}

func TestLoginClosesSessionWhenIssuingFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")

	f.auth.Store = rejectingAccessStore{f.store}
	_, err := f.auth.Login(ctx, "alice", "alice-password")
	require.ErrorIs(t, err, errInjected)
	require.Empty(t, f.openSessions(t, alice.ID))

	f.auth.Store = f.store
	_, err = f.auth.Login(ctx, "alice", "alice-password")
	require.NoError(t, err)
	require.Len(t, f.openSessions(t, alice.ID), 1)
	require.Len(t, f.activeRefreshTokens(t, alice.ID), 1)
}

func TestConcurrentLoginsLeaveOneSessionAndToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	bob := f.createUser(t, "bob")

	const logins = 8
	var wg sync.WaitGroup
	errs := make(chan error, logins)
	for range logins {
		wg.Go(func() {
			_, err := f.auth.Login(ctx, "bob", "bob-password")
			errs <- err
		})
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Len(t, f.activeRefreshTokens(t, bob.ID), 1)
	require.Len(t, f.openSessions(t, bob.ID), 1)
}
