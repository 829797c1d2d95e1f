package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
	"github.com/aussiebroadwan/identity/internal/identity/store"
	"github.com/aussiebroadwan/identity/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func validInput(username string) UserInput {
	return UserInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "secret123",
	}
}

func TestAdminCreateUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	u, err := f.admin.CreateUser(ctx, validInput("carol"))
	require.NoError(t, err)
	require.Equal(t, domain.Roles{domain.RoleUser}, u.Roles, "roles default to ROLE_USER")
	require.False(t, u.IsBlocked)
	require.NoError(t, cryptox.VerifyPassword("secret123", u.PasswordHash))

	got, err := f.admin.GetUser(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "carol@example.com", got.Email)

	_, err = f.admin.CreateUser(ctx, validInput("carol"))
	require.ErrorIs(t, err, ErrUsernameTaken)

	dup := validInput("carol2")
	dup.Email = "carol@example.com"
	_, err = f.admin.CreateUser(ctx, dup)
	require.ErrorIs(t, err, ErrEmailTaken)

	admin := validInput("dave")
	admin.Roles = []string{"ROLE_ADMIN", "ROLE_ADMIN"}
	u, err = f.admin.CreateUser(ctx, admin)
	require.NoError(t, err)
	require.Equal(t, domain.Roles{domain.RoleAdmin}, u.Roles)
}

func TestAdminValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name   string
		mutate func(*UserInput)
		field  string
	}{
		{"blank username", func(in *UserInput) { in.Username = " " }, "username"},
		{"short username", func(in *UserInput) { in.Username = "ab" }, "username"},
		{"bad email", func(in *UserInput) { in.Email = "not-an-email" }, "email"},
		{"display-name email", func(in *UserInput) { in.Email = "Carol <carol@example.com>" }, "email"},
		{"short password", func(in *UserInput) { in.Password = "12345" }, "password"},
		{"missing password", func(in *UserInput) { in.Password = "" }, "password"},
		{"unknown role", func(in *UserInput) { in.Roles = []string{"ROLE_ROOT"} }, "roles"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput("erin")
			tt.mutate(&in)

			_, err := f.admin.CreateUser(ctx, in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Len(t, verr.Fields, 1)
			require.Equal(t, tt.field, verr.Fields[0].Field)
		})
	}
}

func TestAdminUpdateUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")
	f.createUser(t, "bob")

	f.clock.Advance(time.Hour)
	in := UserInput{Username: "alice", Email: "alice@new.example.com", Roles: []string{"ROLE_ADMIN"}, IsBlocked: true}
	u, err := f.admin.UpdateUser(ctx, alice.ID, in)
	require.NoError(t, err)
	require.Equal(t, "alice@new.example.com", u.Email)
	require.True(t, u.IsBlocked)
	require.WithinDuration(t, f.clock.Now(), u.UpdatedAt, 0)
	require.NoError(t, cryptox.VerifyPassword("alice-password", u.PasswordHash), "an empty password keeps the old one")

	in.Password = "brand-new"
	u, err = f.admin.UpdateUser(ctx, alice.ID, in)
	require.NoError(t, err)
	require.NoError(t, cryptox.VerifyPassword("brand-new", u.PasswordHash))

	in.Username = "bob"
	_, err = f.admin.UpdateUser(ctx, alice.ID, in)
	require.ErrorIs(t, err, ErrUsernameTaken)

	in.Username = "alice"
	in.Email = "bob@example.com"
	_, err = f.admin.UpdateUser(ctx, alice.ID, in)
	require.ErrorIs(t, err, ErrEmailTaken)

	_, err = f.admin.UpdateUser(ctx, "missing", validInput("zed"))
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestAdminDeleteUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")

	login, err := f.auth.Login(ctx, "alice", "alice-password")
	require.NoError(t, err)
	claims, err := f.keys.Verifier.Verify(login.Tokens.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.admin.DeleteUser(ctx, alice.ID))

	_, err = f.admin.GetUser(ctx, alice.ID)
	require.ErrorIs(t, err, ErrUserNotFound)

	active, err := f.auth.IsAccessTokenActive(ctx, claims.ID)
	require.NoError(t, err)
	require.False(t, active)

	got, err := f.refresh.Validate(ctx, login.Tokens.RefreshToken)
	require.NoError(t, err)
	require.Nil(t, got)

	require.ErrorIs(t, f.admin.DeleteUser(ctx, alice.ID), ErrUserNotFound)
}

func TestAdminListUsers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	for i := range 25 {
		f.createUser(t, fmt.Sprintf("user%02d", i))
		f.clock.Advance(time.Second)
	}

	page, err := f.admin.ListUsers(ctx, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, page.Page)
	require.Equal(t, DefaultPageLimit, page.Limit)
	require.EqualValues(t, 25, page.Total)
	require.EqualValues(t, 2, page.TotalPages)
	require.Len(t, page.Items, 20)
	require.Equal(t, "user00", page.Items[0].Username)

	page, err = f.admin.ListUsers(ctx, 2, 20)
	require.NoError(t, err)
	require.Len(t, page.Items, 5)
	require.Equal(t, "user20", page.Items[0].Username)

	page, err = f.admin.ListUsers(ctx, 1, 1000)
	require.NoError(t, err)
	require.Equal(t, MaxPageLimit, page.Limit)
	require.EqualValues(t, 1, page.TotalPages)

	page, err = f.admin.ListUsers(ctx, 9, 20)
	require.NoError(t, err)
	require.Empty(t, page.Items)
	require.NotNil(t, page.Items)
}

func TestAdminSessions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")

	id, err := f.sessions.StartSession(ctx, alice.ID)
	require.NoError(t, err)

	page, err := f.admin.ListUserSessions(ctx, alice.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)

	_, err = f.admin.ListUserSessions(ctx, "missing", 1, 10)
	require.ErrorIs(t, err, ErrUserNotFound)

	s, err := f.admin.GetSession(ctx, id)
	require.NoError(t, err)
	require.True(t, s.Open())

	_, err = f.admin.GetSession(ctx, "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestConflictErrorNamesTheCollidingField(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"email column", &store.ConflictError{Column: "email"}, ErrEmailTaken},
		{"username column", &store.ConflictError{Column: "username"}, ErrUsernameTaken},
		{"wrapped", fmt.Errorf("insert: %w", &store.ConflictError{Column: "email"}), ErrEmailTaken},
		{"unknown column", store.ErrAlreadyExists, ErrUsernameTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, conflictError(tt.err), tt.want)
		})
	}
}
