package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/identity/internal/identity/service"
	"github.com/aussiebroadwan/identity/pkg/identitysdk"
	"github.com/stretchr/testify/require"
)

func TestApplicationServesAuthFlow(t *testing.T) {
	ctx := context.Background()

	application, err := New(ctx, testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		application.housekeepingService.Stop()
		_ = application.db.Close()
	})
	application.housekeepingService.Start()

	_, err = application.adminService.CreateUser(ctx, service.UserInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "alice-password",
	})
	require.NoError(t, err)

	srv := httptest.NewServer(application.Handler())
	defer srv.Close()

	client := identitysdk.NewClient(srv.URL)

	ready, err := client.Ready(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.Equal(t, BuildVersion, ready.Version)

	res, err := client.Login(ctx, "alice", "alice-password")
	require.NoError(t, err)

	me, err := client.Me(ctx, res.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "alice", me.Username)

	require.NoError(t, client.Logout(ctx, res.AccessToken))

	resp, err := http.Get(srv.URL + "/swagger/doc.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNewRejectsUnreachableDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.DatabaseURL = "file:/nonexistent-dir/identity.db"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
}
