// Package storetest is a behavioural test suite shared by every store driver.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
	"github.com/aussiebroadwan/identity/internal/identity/store"
	"github.com/aussiebroadwan/identity/pkg/idx"
	"github.com/stretchr/testify/require"
)

// Factory returns a freshly migrated, empty store.
type Factory func(t *testing.T) store.Store

// Base is the reference time the suite writes records at.
var Base = time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)

// Run executes the suite, one subtest per repository.
func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Sessions", func(t *testing.T) { testSessions(t, newStore(t)) })
	t.Run("RefreshTokens", func(t *testing.T) { testRefreshTokens(t, newStore(t)) })
	t.Run("Clients", func(t *testing.T) { testClients(t, newStore(t)) })
	t.Run("OAuth2Tokens", func(t *testing.T) { testOAuth2Tokens(t, newStore(t)) })
	t.Run("AuthorizationCodes", func(t *testing.T) { testAuthorizationCodes(t, newStore(t)) })
	t.Run("Reports", func(t *testing.T) { testReports(t, newStore(t)) })
	t.Run("Tx", func(t *testing.T) { testTx(t, newStore(t)) })
}

// NewUser builds a user with a unique id and email derived from username.
func NewUser(username string, at time.Time, roles ...domain.Role) domain.User {
	if len(roles) == 0 {
		roles = []domain.Role{domain.RoleUser}
	}
	return domain.User{
		ID:           idx.New().String(),
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		Roles:        roles,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}

// MustCreateUser inserts NewUser(username, at) and returns it.
func MustCreateUser(t *testing.T, s store.Store, username string, at time.Time) domain.User {
	t.Helper()
	u := NewUser(username, at)
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func requireTime(t *testing.T, want, got time.Time) {
	t.Helper()
	require.True(t, want.Truncate(time.Microsecond).Equal(got), "want %s, got %s", want, got)
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	users := s.Users()

	alice := NewUser("alice", Base, domain.RoleAdmin)
	require.NoError(t, users.CreateUser(ctx, alice))

	got, err := users.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	require.Equal(t, alice.Username, got.Username)
	require.Equal(t, alice.Email, got.Email)
	require.Equal(t, alice.PasswordHash, got.PasswordHash)
	require.Equal(t, domain.Roles{domain.RoleAdmin}, got.Roles)
	require.False(t, got.IsBlocked)
	requireTime(t, Base, got.CreatedAt)

	got, err = users.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, alice.ID, got.ID)

	got, err = users.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, alice.ID, got.ID)

	_, err = users.GetUserByUsername(ctx, "nobody")
	require.ErrorIs(t, err, store.ErrNotFound)

	t.Run("duplicates", func(t *testing.T) {
		var conflict *store.ConflictError

		dup := NewUser("alice", Base)
		dup.Email = "other@example.com"
		err := users.CreateUser(ctx, dup)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
		require.ErrorAs(t, err, &conflict)
		require.Equal(t, "username", conflict.Column)

		dup = NewUser("alice2", Base)
		dup.Email = alice.Email
		err = users.CreateUser(ctx, dup)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
		require.ErrorAs(t, err, &conflict)
		require.Equal(t, "email", conflict.Column)
	})

	bob := MustCreateUser(t, s, "bob", Base.Add(time.Hour))

	t.Run("update", func(t *testing.T) {
		bob.IsBlocked = true
		bob.Roles = domain.Roles{domain.RoleUser, domain.RoleAdmin}
		bob.UpdatedAt = Base.Add(2 * time.Hour)
		require.NoError(t, users.UpdateUser(ctx, bob))

		got, err := users.GetUserByID(ctx, bob.ID)
		require.NoError(t, err)
		require.True(t, got.IsBlocked)
		require.Equal(t, bob.Roles, got.Roles)
		requireTime(t, bob.UpdatedAt, got.UpdatedAt)

		clash := bob
		clash.Username = "alice"
		require.ErrorIs(t, users.UpdateUser(ctx, clash), store.ErrAlreadyExists)

		clash = bob
		clash.Email = "alice@example.com"
		var conflict *store.ConflictError
		require.ErrorAs(t, users.UpdateUser(ctx, clash), &conflict)
		require.Equal(t, "email", conflict.Column)

		ghost := NewUser("ghost", Base)
		require.ErrorIs(t, users.UpdateUser(ctx, ghost), store.ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		MustCreateUser(t, s, "carol", Base.Add(3*time.Hour))

		n, err := users.CountUsers(ctx)
		require.NoError(t, err)
		require.EqualValues(t, 3, n)

		page, err := users.ListUsers(ctx, 0, 2)
		require.NoError(t, err)
		require.Len(t, page, 2)
		require.Equal(t, "alice", page[0].Username)
		require.Equal(t, "bob", page[1].Username)

		page, err = users.ListUsers(ctx, 2, 2)
		require.NoError(t, err)
		require.Len(t, page, 1)
		require.Equal(t, "carol", page[0].Username)
	})

	t.Run("delete cascades", func(t *testing.T) {
		require.NoError(t, s.Sessions().CreateSession(ctx, domain.Session{
			ID: idx.New().String(), UserID: bob.ID, StartedAt: Base,
		}))
		require.NoError(t, s.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
			ID: idx.New().String(), UserID: bob.ID, TokenHash: "bob-token", ExpiresAt: Base.Add(time.Hour), CreatedAt: Base,
		}))

		require.NoError(t, users.DeleteUser(ctx, bob.ID))
		require.ErrorIs(t, users.DeleteUser(ctx, bob.ID), store.ErrNotFound)

		n, err := s.Sessions().CountUserSessions(ctx, bob.ID)
		require.NoError(t, err)
		require.Zero(t, n)

		_, err = s.RefreshTokens().GetRefreshTokenByHash(ctx, "bob-token")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func testSessions(t *testing.T, s store.Store) {
	ctx := context.Background()
	sessions := s.Sessions()
	u := MustCreateUser(t, s, "alice", Base)

	last, err := sessions.LastActivity(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, last)

	_, err = sessions.GetOpenSession(ctx, u.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	first := domain.Session{ID: idx.New().String(), UserID: u.ID, StartedAt: Base}
	require.NoError(t, sessions.CreateSession(ctx, first))

	t.Run("one open session per user", func(t *testing.T) {
		second := domain.Session{ID: idx.New().String(), UserID: u.ID, StartedAt: Base.Add(time.Minute)}
		require.ErrorIs(t, sessions.CreateSession(ctx, second), store.ErrAlreadyExists)
	})

	open, err := sessions.GetOpenSession(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, open.ID)
	require.True(t, open.Open())

	n, err := sessions.FinishOpenSessions(ctx, u.ID, Base.Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	require.ErrorIs(t, sessions.FinishSession(ctx, first.ID, Base.Add(2*time.Hour)), store.ErrNotFound)

	got, err := sessions.GetSessionByID(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got.FinishedAt)
	requireTime(t, Base.Add(time.Hour), *got.FinishedAt)

	second := domain.Session{ID: idx.New().String(), UserID: u.ID, StartedAt: Base.Add(24 * time.Hour)}
	require.NoError(t, sessions.CreateSession(ctx, second))
	require.NoError(t, sessions.FinishSession(ctx, second.ID, Base.Add(25*time.Hour)))

	_, err = sessions.GetSessionByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	list, err := sessions.ListUserSessions(ctx, u.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second.ID, list[0].ID, "newest first")

	list, err = sessions.ListUserSessions(ctx, u.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, first.ID, list[0].ID)

	count, err := sessions.CountUserSessions(ctx, u.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	from, to := Base.Add(12*time.Hour), Base.Add(48*time.Hour)
	count, err = sessions.CountSessionsInRange(ctx, u.ID, domain.DateRange{From: &from, To: &to})
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	count, err = sessions.CountSessionsInRange(ctx, u.ID, domain.DateRange{})
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	last, err = sessions.LastActivity(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, last)
	requireTime(t, second.StartedAt, *last)
}

func testRefreshTokens(t *testing.T, s store.Store) {
	ctx := context.Background()
	tokens := s.RefreshTokens()
	u := MustCreateUser(t, s, "alice", Base)

	mk := func(hash string, expires time.Time) domain.RefreshToken {
		return domain.RefreshToken{ID: idx.New().String(), UserID: u.ID, TokenHash: hash, ExpiresAt: expires, CreatedAt: Base}
	}

	live := mk("live", Base.Add(30*24*time.Hour))
	require.NoError(t, tokens.CreateRefreshToken(ctx, live))
	require.ErrorIs(t, tokens.CreateRefreshToken(ctx, mk("live", Base)), store.ErrAlreadyExists)

	got, err := tokens.GetRefreshTokenByHash(ctx, "live")
	require.NoError(t, err)
	require.Equal(t, live.ID, got.ID)
	require.Equal(t, u.ID, got.UserID)
	require.False(t, got.Revoked)
	requireTime(t, live.ExpiresAt, got.ExpiresAt)
	require.True(t, got.Active(Base))

	require.NoError(t, tokens.RevokeRefreshToken(ctx, "live"))
	require.NoError(t, tokens.RevokeRefreshToken(ctx, "live"))
	require.NoError(t, tokens.RevokeRefreshToken(ctx, "missing"))

	got, err = tokens.GetRefreshTokenByHash(ctx, "live")
	require.NoError(t, err)
	require.True(t, got.Revoked)

	require.NoError(t, tokens.CreateRefreshToken(ctx, mk("a", Base.Add(time.Hour))))
	require.NoError(t, tokens.CreateRefreshToken(ctx, mk("b", Base.Add(time.Hour))))
	require.NoError(t, tokens.CreateRefreshToken(ctx, mk("old", Base.Add(-time.Hour))))

	n, err := tokens.RevokeUserRefreshTokens(ctx, u.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, n, "already revoked tokens are not counted")

	all, err := tokens.ListUserRefreshTokens(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for _, tok := range all {
		require.True(t, tok.Revoked)
	}

	n, err = tokens.DeleteExpiredRefreshTokens(ctx, Base)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func testClients(t *testing.T, s store.Store) {
	ctx := context.Background()
	clients := s.Clients()

	c := domain.Client{
		ID:           "test_client",
		Name:         "Test Client",
		RedirectURIs: []string{"https://app.example.com/callback", "http://localhost:3000/callback"},
		Scopes:       []string{"openid", "profile"},
		Active:       true,
		CreatedAt:    Base,
		UpdatedAt:    Base,
	}
	require.NoError(t, clients.CreateClient(ctx, c))
	require.ErrorIs(t, clients.CreateClient(ctx, c), store.ErrAlreadyExists)

	got, err := clients.GetClientByID(ctx, "test_client")
	require.NoError(t, err)
	require.Equal(t, c.Name, got.Name)
	require.Equal(t, c.RedirectURIs, got.RedirectURIs)
	require.Equal(t, c.Scopes, got.Scopes)
	require.True(t, got.Active)
	require.True(t, got.AllowsRedirect("http://localhost:3000/callback"))

	_, err = clients.GetClientByID(ctx, "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)

	inactive := c
	inactive.ID = "retired"
	inactive.Active = false
	inactive.CreatedAt = Base.Add(time.Hour)
	require.NoError(t, clients.CreateClient(ctx, inactive))

	list, err := clients.ListClients(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "retired", list[0].ID)
	require.False(t, list[0].Active)
}

func testOAuth2Tokens(t *testing.T, s store.Store) {
	ctx := context.Background()
	tokens := s.OAuth2Tokens()

	access := func(id, user string, expires time.Time) domain.AccessTokenRecord {
		return domain.AccessTokenRecord{Identifier: id, UserIdentifier: user, Scopes: "openid", ExpiresAt: expires}
	}

	require.NoError(t, tokens.CreateAccessToken(ctx, access("at-1", "alice", Base.Add(time.Hour))))
	require.NoError(t, tokens.CreateAccessToken(ctx, access("at-2", "alice", Base.Add(-time.Hour))))
	require.NoError(t, tokens.CreateAccessToken(ctx, access("at-3", "bob", Base.Add(time.Hour))))
	require.ErrorIs(t, tokens.CreateAccessToken(ctx, access("at-1", "alice", Base)), store.ErrAlreadyExists)

	require.NoError(t, tokens.CreateRefreshToken(ctx, domain.OAuth2RefreshTokenRecord{
		Identifier: "rt-1", AccessToken: "at-1", ExpiresAt: Base.Add(time.Hour),
	}))
	require.NoError(t, tokens.CreateRefreshToken(ctx, domain.OAuth2RefreshTokenRecord{
		Identifier: "rt-3", AccessToken: "at-3", ExpiresAt: Base.Add(time.Hour),
	}))

	got, err := tokens.GetAccessToken(ctx, "at-1")
	require.NoError(t, err)
	require.Equal(t, "alice", got.UserIdentifier)
	require.Equal(t, "openid", got.Scopes)
	require.False(t, got.Revoked)

	_, err = tokens.GetAccessToken(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	n, err := tokens.RevokeUserAccessTokens(ctx, "alice")
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	n, err = tokens.RevokeUserRefreshTokens(ctx, "alice")
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	rt, err := tokens.GetRefreshToken(ctx, "rt-1")
	require.NoError(t, err)
	require.True(t, rt.Revoked)
	require.Equal(t, "at-1", rt.AccessToken)

	rt, err = tokens.GetRefreshToken(ctx, "rt-3")
	require.NoError(t, err)
	require.False(t, rt.Revoked, "other users are untouched")

	got, err = tokens.GetAccessToken(ctx, "at-3")
	require.NoError(t, err)
	require.False(t, got.Revoked)

	// at-4 has expired but its refresh token has not; at-5 and its refresh
	// token have both expired.
	require.NoError(t, tokens.CreateAccessToken(ctx, access("at-4", "carol", Base.Add(-time.Hour))))
	require.NoError(t, tokens.CreateRefreshToken(ctx, domain.OAuth2RefreshTokenRecord{
		Identifier: "rt-4", AccessToken: "at-4", ExpiresAt: Base.Add(24 * time.Hour),
	}))
	require.NoError(t, tokens.CreateAccessToken(ctx, access("at-5", "carol", Base.Add(-time.Hour))))
	require.NoError(t, tokens.CreateRefreshToken(ctx, domain.OAuth2RefreshTokenRecord{
		Identifier: "rt-5", AccessToken: "at-5", ExpiresAt: Base.Add(-time.Minute),
	}))

	n, err = tokens.DeleteExpiredAccessTokens(ctx, Base)
	require.NoError(t, err)
	require.EqualValues(t, 2, n, "at-2 and at-5")

	_, err = tokens.GetAccessToken(ctx, "at-4")
	require.NoError(t, err)
	rt, err = tokens.GetRefreshToken(ctx, "rt-4")
	require.NoError(t, err, "a live refresh token survives its access token's expiry")
	require.False(t, rt.Revoked)
	_, err = tokens.GetRefreshToken(ctx, "rt-5")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, tokens.DeleteUserTokens(ctx, "alice"))
	_, err = tokens.GetAccessToken(ctx, "at-1")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = tokens.GetRefreshToken(ctx, "rt-1")
	require.ErrorIs(t, err, store.ErrNotFound, "refresh tokens go with their access token")
}

func testAuthorizationCodes(t *testing.T, s store.Store) {
	ctx := context.Background()
	codes := s.AuthorizationCodes()
	u := MustCreateUser(t, s, "alice", Base)
	require.NoError(t, s.Clients().CreateClient(ctx, domain.Client{
		ID: "test_client", Name: "Test", RedirectURIs: []string{"https://app/cb"}, Active: true, CreatedAt: Base, UpdatedAt: Base,
	}))

	code := domain.AuthorizationCode{
		ID:          idx.New().String(),
		UserID:      u.ID,
		ClientID:    "test_client",
		CodeHash:    "code-hash",
		RedirectURI: "https://app/cb",
		Scopes:      []string{"openid"},
		State:       "xyz",
		ExpiresAt:   Base.Add(10 * time.Minute),
		CreatedAt:   Base,
	}
	require.NoError(t, codes.CreateAuthorizationCode(ctx, code))
	require.ErrorIs(t, codes.CreateAuthorizationCode(ctx, code), store.ErrAlreadyExists)

	got, err := codes.GetAuthorizationCodeByHash(ctx, "code-hash")
	require.NoError(t, err)
	require.Equal(t, code.ID, got.ID)
	require.Equal(t, []string{"openid"}, got.Scopes)
	require.Equal(t, "xyz", got.State)
	require.Nil(t, got.UsedAt)

	require.NoError(t, codes.MarkAuthorizationCodeUsed(ctx, code.ID, Base.Add(time.Minute)))
	require.ErrorIs(t, codes.MarkAuthorizationCodeUsed(ctx, code.ID, Base.Add(2*time.Minute)), store.ErrNotFound)

	got, err = codes.GetAuthorizationCodeByHash(ctx, "code-hash")
	require.NoError(t, err)
	require.NotNil(t, got.UsedAt)

	n, err := codes.DeleteExpiredAuthorizationCodes(ctx, Base.Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func testReports(t *testing.T, s store.Store) {
	ctx := context.Background()
	day := 24 * time.Hour

	alice := MustCreateUser(t, s, "alice", Base)
	bob := MustCreateUser(t, s, "bob", Base.Add(day))
	MustCreateUser(t, s, "carol", Base.Add(day+time.Hour))

	for i, start := range []time.Time{Base, Base.Add(2 * day), Base.Add(5 * day)} {
		sess := domain.Session{ID: idx.New().String(), UserID: alice.ID, StartedAt: start}
		require.NoError(t, s.Sessions().CreateSession(ctx, sess), "session %d", i)
		require.NoError(t, s.Sessions().FinishSession(ctx, sess.ID, start.Add(time.Hour)))
	}
	require.NoError(t, s.Sessions().CreateSession(ctx, domain.Session{ID: idx.New().String(), UserID: bob.ID, StartedAt: Base.Add(9 * day)}))

	t.Run("activity, unbounded", func(t *testing.T) {
		rows, err := s.Reports().UserActivity(ctx, domain.DateRange{})
		require.NoError(t, err)
		require.Len(t, rows, 3)

		require.Equal(t, "alice", rows[0].Username)
		require.EqualValues(t, 3, rows[0].SessionCount)
		require.NotNil(t, rows[0].LastActivity)
		requireTime(t, Base.Add(5*day), *rows[0].LastActivity)

		require.Equal(t, "carol", rows[2].Username)
		require.Zero(t, rows[2].SessionCount)
		require.Nil(t, rows[2].LastActivity)
	})

	t.Run("activity, bounded", func(t *testing.T) {
		from, to := Base.Add(day), Base.Add(6*day)
		rows, err := s.Reports().UserActivity(ctx, domain.DateRange{From: &from, To: &to})
		require.NoError(t, err)
		require.Len(t, rows, 3, "users without sessions in range are still listed")

		require.EqualValues(t, 2, rows[0].SessionCount)
		require.Zero(t, rows[1].SessionCount, "bob's session is outside the range")
		require.Nil(t, rows[1].LastActivity)
	})

	t.Run("registrations", func(t *testing.T) {
		times, err := s.Reports().RegistrationTimes(ctx, domain.DateRange{})
		require.NoError(t, err)
		require.Len(t, times, 3)
		requireTime(t, Base.Add(day+time.Hour), times[0])
		requireTime(t, Base, times[2])

		from := Base.Add(time.Hour)
		times, err = s.Reports().RegistrationTimes(ctx, domain.DateRange{From: &from})
		require.NoError(t, err)
		require.Len(t, times, 2)
	})
}

func testTx(t *testing.T, s store.Store) {
	ctx := context.Background()
	errBoom := errors.New("boom")

	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.LockUser(ctx, "u"))
		require.NoError(t, tx.Users().CreateUser(ctx, NewUser("rolled", Base)))
		return errBoom
	})
	require.ErrorIs(t, err, errBoom)

	_, err = s.Users().GetUserByUsername(ctx, "rolled")
	require.ErrorIs(t, err, store.ErrNotFound)

	err = s.WithTx(ctx, func(tx store.Tx) error {
		_, nestedErr := tx.Tx(ctx)
		require.Error(t, nestedErr)
		return tx.Users().CreateUser(ctx, NewUser("kept", Base))
	})
	require.NoError(t, err)

	_, err = s.Users().GetUserByUsername(ctx, "kept")
	require.NoError(t, err)

	tx, err := s.Tx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Users().CreateUser(ctx, NewUser("manual", Base)))
	require.NoError(t, tx.Rollback())

	_, err = s.Users().GetUserByUsername(ctx, "manual")
	require.ErrorIs(t, err, store.ErrNotFound)
}
