package identitysdk_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/identity/pkg/identitysdk"
	"github.com/stretchr/testify/require"
)

func TestClientLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/login", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req identitysdk.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		w.Header().Set("Content-Type", "application/json")
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid_credentials","error_description":"Invalid credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"a","refresh_token":"r","token_type":"Bearer","expires_in":900,"user":{"id":"u1","username":"alice"}}`))
	}))
	defer srv.Close()

	c := identitysdk.NewClient(srv.URL + "/")
	ctx := context.Background()

	res, err := c.Login(ctx, "alice", "secret")
	require.NoError(t, err)
	require.Equal(t, "a", res.AccessToken)
	require.Equal(t, int64(900), res.ExpiresIn)
	require.Equal(t, "alice", res.User.Username)

	_, err = c.Login(ctx, "alice", "wrong")
	require.Error(t, err)
	require.True(t, identitysdk.IsCode(err, identitysdk.ErrorCodeInvalidCredentials))

	var apiErr *identitysdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	require.Equal(t, "Invalid credentials", apiErr.Description)
}

func TestClientBearerAndEnvelopeErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/logout":
			require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusNoContent)
		case "/api/auth/me":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":"error","code":404,"message":"User not found","timestamp":"2025-01-01T00:00:00Z"}`))
		}
	}))
	defer srv.Close()

	c := identitysdk.NewClient(srv.URL)
	ctx := context.Background()

	require.NoError(t, c.Logout(ctx, "tok"))

	_, err := c.Me(ctx, "tok")
	var apiErr *identitysdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	require.Empty(t, apiErr.Code)
	require.Equal(t, "User not found", apiErr.Description)
}
