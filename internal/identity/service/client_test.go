package service

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
	"github.com/stretchr/testify/require"
)

func TestClientRegisterAndFind(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	clients := &ClientService{Store: f.store, Clock: f.clock.Now}

	_, err := clients.Find(ctx, "app")
	require.ErrorIs(t, err, ErrClientNotFound)

	c := domain.Client{
		ID:           "app",
		Name:         "App",
		RedirectURIs: []string{"https://app.example.com/callback"},
		Active:       true,
	}
	registered, err := clients.Register(ctx, c)
	require.NoError(t, err)
	require.Equal(t, f.clock.Now(), registered.CreatedAt)

	found, err := clients.Find(ctx, "app")
	require.NoError(t, err)
	require.Equal(t, "App", found.Name)
	require.Equal(t, c.RedirectURIs, found.RedirectURIs)

	_, err = clients.Register(ctx, c)
	require.ErrorIs(t, err, ErrClientExists)
}
