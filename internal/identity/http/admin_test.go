package http_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/aussiebroadwan/identity/pkg/identitysdk"
	"github.com/stretchr/testify/require"
)

func TestAdminRequiresRole(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	s.createUser(t, "alice")
	token := s.login(t, "alice").AccessToken

	resp := s.do(t, http.MethodGet, "/api/admin/users", token, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAdminUsers(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	s.createUser(t, "root", "ROLE_ADMIN")
	token := s.login(t, "root").AccessToken

	var bob identitysdk.User

	t.Run("create", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/api/admin/users", token,
			strings.NewReader(`{"username":"bob","email":"bob@example.com","password":"bob-password"}`))
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		env := decode[identitysdk.Envelope[identitysdk.User]](t, resp)
		require.Equal(t, "success", env.Status)
		require.Equal(t, http.StatusCreated, env.Code)
		require.NotEmpty(t, env.Timestamp)
		bob = env.Data
		require.Equal(t, "bob", bob.Username)
		require.Equal(t, []string{"ROLE_USER"}, bob.Roles)
		require.False(t, bob.IsBlocked)
	})

	t.Run("duplicate username", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/api/admin/users", token,
			strings.NewReader(`{"username":"bob","email":"other@example.com","password":"bob-password"}`))
		require.Equal(t, http.StatusConflict, resp.StatusCode)

		env := decode[identitysdk.Envelope[any]](t, resp)
		require.Equal(t, "error", env.Status)
		require.Equal(t, "Username already exists", env.Message)
	})

	t.Run("duplicate email", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/api/admin/users", token,
			strings.NewReader(`{"username":"bobby","email":"bob@example.com","password":"bob-password"}`))
		require.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("validation", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/api/admin/users", token,
			strings.NewReader(`{"username":"ab","email":"not-an-email","password":"123","roles":["ROLE_ROOT"]}`))
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		env := decode[identitysdk.Envelope[any]](t, resp)
		fields := make([]string, len(env.Errors))
		for i, e := range env.Errors {
			fields[i] = e.Field
		}
		require.ElementsMatch(t, []string{"username", "email", "password", "roles"}, fields)
	})

	t.Run("malformed body", func(t *testing.T) {
		resp := s.do(t, http.MethodPost, "/api/admin/users", token, strings.NewReader(`{`))
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("list", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/admin/users?page=1&limit=1", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		env := decode[identitysdk.Envelope[identitysdk.Page[identitysdk.User]]](t, resp)
		require.Len(t, env.Data.Items, 1)
		require.Equal(t, int64(2), env.Data.Total)
		require.Equal(t, int64(2), env.Data.TotalPages)
		require.Equal(t, 1, env.Data.Limit)
	})

	t.Run("update keeps password when omitted", func(t *testing.T) {
		resp := s.do(t, http.MethodPut, "/api/admin/users/"+bob.ID, token,
			strings.NewReader(`{"username":"bob","email":"bob@example.org","roles":["ROLE_ADMIN"]}`))
		require.Equal(t, http.StatusOK, resp.StatusCode)

		env := decode[identitysdk.Envelope[identitysdk.User]](t, resp)
		require.Equal(t, "bob@example.org", env.Data.Email)
		require.Equal(t, []string{"ROLE_ADMIN", "ROLE_USER"}, env.Data.Roles)

		s.login(t, "bob")
	})

	t.Run("sessions", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/admin/users/"+bob.ID+"/sessions", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		env := decode[identitysdk.Envelope[identitysdk.Page[identitysdk.Session]]](t, resp)
		require.Len(t, env.Data.Items, 1)
		sess := env.Data.Items[0]
		require.Equal(t, bob.ID, sess.UserID)
		require.Nil(t, sess.FinishedAt)

		resp = s.do(t, http.MethodGet, "/api/admin/sessions/"+sess.ID, token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, sess.ID, decode[identitysdk.Envelope[identitysdk.Session]](t, resp).Data.ID)

		resp = s.do(t, http.MethodGet, "/api/admin/sessions/missing", token, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.Equal(t, "Session not found", decode[identitysdk.Envelope[any]](t, resp).Message)
	})

	t.Run("delete", func(t *testing.T) {
		resp := s.do(t, http.MethodDelete, "/api/admin/users/"+bob.ID, token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp = s.do(t, http.MethodGet, "/api/admin/users/"+bob.ID, token, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
		require.Equal(t, "User not found", decode[identitysdk.Envelope[any]](t, resp).Message)

		resp = s.do(t, http.MethodGet, "/api/admin/users/"+bob.ID+"/sessions", token, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp = s.do(t, http.MethodDelete, "/api/admin/users/"+bob.ID, token, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestAdminReports(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	s.createUser(t, "root", "ROLE_ADMIN")
	token := s.login(t, "root").AccessToken

	t.Run("user activity", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/admin/reports?type=user_activity", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		env := decode[identitysdk.Envelope[[]map[string]any]](t, resp)
		require.Len(t, env.Data, 1)
		require.Equal(t, "root", env.Data[0]["username"])
		require.EqualValues(t, 1, env.Data[0]["sessionCount"])
	})

	t.Run("user registrations", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/admin/reports?type=user_registrations&date_from=2000-01-01", token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		env := decode[identitysdk.Envelope[[]map[string]any]](t, resp)
		require.Len(t, env.Data, 1)
		require.EqualValues(t, 1, env.Data[0]["registrations"])
	})

	t.Run("unknown type", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/admin/reports?type=revenue", token, nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("inverted range", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/admin/reports?type=user_activity&date_from=2025-02-01&date_to=2025-01-01", token, nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad date", func(t *testing.T) {
		resp := s.do(t, http.MethodGet, "/api/admin/reports?type=user_activity&date_to=yesterday", token, nil)
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

		env := decode[identitysdk.Envelope[any]](t, resp)
		require.Len(t, env.Errors, 1)
		require.Equal(t, "date_to", env.Errors[0].Field)
	})
}
