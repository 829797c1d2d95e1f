package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
	"github.com/aussiebroadwan/identity/internal/identity/store"
	"github.com/stretchr/testify/require"
)

func TestHousekeepingCleanup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	alice := f.createUser(t, "alice")
	f.createClient(t, "test_client", true)

	_, err := f.refresh.Create(ctx, alice.ID)
	require.NoError(t, err)

	to, err := f.authorize.Authorize(ctx, alice.ID, consentRequest("test_client"), DecisionApprove)
	require.NoError(t, err)
	require.Contains(t, to, "code=")

	require.NoError(t, f.store.OAuth2Tokens().CreateAccessToken(ctx, domain.AccessTokenRecord{
		Identifier: "jti-1", UserIdentifier: "alice", ExpiresAt: f.clock.Now().Add(time.Hour),
	}))

	hk := NewHousekeepingService(f.store, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour)
	hk.Clock = f.clock.Now

	hk.Cleanup(ctx)
	require.Len(t, f.activeRefreshTokens(t, alice.ID), 1, "nothing has expired yet")

	f.clock.Advance(DefaultRefreshTTL + time.Second)
	hk.Cleanup(ctx)

	all, err := f.store.RefreshTokens().ListUserRefreshTokens(ctx, alice.ID)
	require.NoError(t, err)
	require.Empty(t, all)

	_, err = f.store.OAuth2Tokens().GetAccessToken(ctx, "jti-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	n, err := f.store.AuthorizationCodes().DeleteExpiredAuthorizationCodes(ctx, f.clock.Now())
	require.NoError(t, err)
	require.Zero(t, n, "codes were already removed")
}

func TestHousekeepingStartStop(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	hk := NewHousekeepingService(f.store, slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	require.Equal(t, time.Hour, hk.Interval)

	hk.Start()
	hk.Stop()
}
