package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRefreshCreateKeepsOneActiveToken(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	u := f.createUser(t, "alice")

	first, err := f.refresh.Create(ctx, u.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	second, err := f.refresh.Create(ctx, u.ID)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	active := f.activeRefreshTokens(t, u.ID)
	require.Len(t, active, 1)

	got, err := f.refresh.Validate(ctx, first)
	require.NoError(t, err)
	require.Nil(t, got, "the earlier token was revoked by the second create")

	got, err = f.refresh.Validate(ctx, second)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, u.ID, got.ID)
}

func TestRefreshTokensAreStoredAsFingerprints(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	u := f.createUser(t, "alice")

	token, err := f.refresh.Create(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, token, 43)

	all, err := f.store.RefreshTokens().ListUserRefreshTokens(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotEqual(t, token, all[0].TokenHash)
	require.WithinDuration(t, f.clock.Now().Add(DefaultRefreshTTL), all[0].ExpiresAt, 0)
}

func TestRefreshValidateRejects(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("unknown", func(t *testing.T) {
		f := newFixture(t)
		got, err := f.refresh.Validate(ctx, "never-issued")
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("revoked", func(t *testing.T) {
		f := newFixture(t)
		u := f.createUser(t, "alice")
		token, err := f.refresh.Create(ctx, u.ID)
		require.NoError(t, err)

		require.NoError(t, f.refresh.Invalidate(ctx, token))

		got, err := f.refresh.Validate(ctx, token)
		require.NoError(t, err)
		require.Nil(t, got)
	})

	t.Run("expired", func(t *testing.T) {
		f := newFixture(t)
		u := f.createUser(t, "alice")
		token, err := f.refresh.Create(ctx, u.ID)
		require.NoError(t, err)

		f.clock.Advance(DefaultRefreshTTL - time.Second)
		got, err := f.refresh.Validate(ctx, token)
		require.NoError(t, err)
		require.NotNil(t, got, "still valid just before expiry")

		f.clock.Advance(time.Second)
		got, err = f.refresh.Validate(ctx, token)
		require.NoError(t, err)
		require.Nil(t, got, "expires_at must be strictly after now")
	})
}

func TestRefreshRotate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	u := f.createUser(t, "alice")

	old, err := f.refresh.Create(ctx, u.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	next, owner, err := f.refresh.Rotate(ctx, old)
	require.NoError(t, err)
	require.NotEqual(t, old, next)
	require.Equal(t, u.ID, owner.ID)

	got, err := f.refresh.Validate(ctx, old)
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = f.refresh.Validate(ctx, next)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, u.ID, got.ID)

	require.Len(t, f.activeRefreshTokens(t, u.ID), 1)

	t.Run("replayed token", func(t *testing.T) {
		_, _, err := f.refresh.Rotate(ctx, old)
		require.ErrorIs(t, err, ErrInvalidRefresh)

		got, err := f.refresh.Validate(ctx, next)
		require.NoError(t, err)
		require.NotNil(t, got, "a failed rotation leaves the current token alone")
	})

	t.Run("unknown token", func(t *testing.T) {
		_, _, err := f.refresh.Rotate(ctx, "never-issued")
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})

	t.Run("expired token", func(t *testing.T) {
		f.clock.Advance(DefaultRefreshTTL)
		_, _, err := f.refresh.Rotate(ctx, next)
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})
}

func TestRefreshInvalidateIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	u := f.createUser(t, "alice")

	token, err := f.refresh.Create(ctx, u.ID)
	require.NoError(t, err)

	require.NoError(t, f.refresh.Invalidate(ctx, token))
	require.NoError(t, f.refresh.Invalidate(ctx, token))
	require.NoError(t, f.refresh.Invalidate(ctx, "never-issued"))

	all, err := f.store.RefreshTokens().ListUserRefreshTokens(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.True(t, all[0].Revoked)
}

func TestRefreshInvalidateUserTokens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")
	bob := f.createUser(t, "bob")

	_, err := f.refresh.Create(ctx, alice.ID)
	require.NoError(t, err)
	bobToken, err := f.refresh.Create(ctx, bob.ID)
	require.NoError(t, err)

	require.NoError(t, f.refresh.InvalidateUserTokens(ctx, alice.ID))
	require.Empty(t, f.activeRefreshTokens(t, alice.ID))

	got, err := f.refresh.Validate(ctx, bobToken)
	require.NoError(t, err)
	require.NotNil(t, got)
}
