package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/identity/internal/identity/service"
	"github.com/aussiebroadwan/identity/pkg/httpx"
	"github.com/aussiebroadwan/identity/pkg/identitysdk"
	"github.com/aussiebroadwan/identity/pkg/slogx"
)

// AuthHandler serves the first-party login, refresh, logout and me endpoints.
type AuthHandler struct {
	AuthService *service.AuthService
}

// HandleLogin handles POST /api/auth/login
//
//	@Summary		Log in
//	@Description	Verifies the username and password, starts a new session and issues an access and refresh token.
//	@Description	Any previously open session and outstanding refresh token of the user is closed.
//	@Tags			Auth
//	@Accept			json,x-www-form-urlencoded
//	@Produce		json
//	@Param			request	body		identitysdk.LoginRequest	true	"Credentials"
//	@Success		200		{object}	identitysdk.LoginResponse
//	@Failure		400		{object}	identitysdk.ErrorResponse	"error, error_description"
//	@Failure		401		{object}	identitysdk.ErrorResponse	"error, error_description"
//	@Failure		429		{object}	identitysdk.ErrorResponse	"rate limited"
//	@Failure		500		{object}	identitysdk.ErrorResponse	"error, error_description"
//	@Router			/api/auth/login [post].
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req identitysdk.LoginRequest
	if httpx.IsJSON(r) {
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.ErrInvalidRequest(err.Error()).WriteError(w)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httpx.ErrInvalidRequest("malformed form body").WriteError(w)
			return
		}
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		httpx.ErrInvalidRequest("username and password are required").WriteError(w)
		return
	}

	res, err := h.AuthService.Login(ctx, req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrAccountBlocked):
		httpx.ErrInvalidCredentials("Invalid credentials").WriteError(w)
		return
	default:
		log.Error("login failed", slog.Any("err", err))
		httpx.ErrServerError("Failed to log in").WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toLoginResponse(res.Tokens, res.User))
}

// HandleRefresh handles POST /api/auth/refresh
//
//	@Summary		Refresh tokens
//	@Description	Rotates the refresh token and issues a new access token for the open session.
//	@Description	The presented refresh token can not be used again.
//	@Tags			Auth
//	@Accept			json,x-www-form-urlencoded
//	@Produce		json
//	@Param			request	body		identitysdk.RefreshRequest	true	"Refresh token"
//	@Success		200		{object}	identitysdk.LoginResponse
//	@Failure		400		{object}	identitysdk.ErrorResponse	"error, error_description"
//	@Failure		401		{object}	identitysdk.ErrorResponse	"error, error_description"
//	@Failure		500		{object}	identitysdk.ErrorResponse	"error, error_description"
//	@Router			/api/auth/refresh [post].
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req identitysdk.RefreshRequest
	if httpx.IsJSON(r) {
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.ErrInvalidRequest(err.Error()).WriteError(w)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			httpx.ErrInvalidRequest("malformed form body").WriteError(w)
			return
		}
		req.RefreshToken = r.PostFormValue("refresh_token")
	}

	if req.RefreshToken == "" {
		httpx.ErrInvalidRequest("refresh_token is required").WriteError(w)
		return
	}

	res, err := h.AuthService.Refresh(ctx, req.RefreshToken)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidRefresh):
		httpx.ErrInvalidGrant("invalid refresh token").WriteError(w)
		return
	default:
		log.Error("refresh failed", slog.Any("err", err))
		httpx.ErrServerError("Failed to refresh token").WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toLoginResponse(res.Tokens, res.User))
}

// HandleLogout handles POST /api/auth/logout
//
//	@Summary		Log out
//	@Description	Revokes every access and refresh token of the caller and finishes the open session.
//	@Tags			Auth
//	@Security		BearerAuth
//	@Success		204	"Logged out"
//	@Failure		401	{object}	identitysdk.ErrorResponse	"error, error_description"
//	@Failure		500	{object}	identitysdk.ErrorResponse	"error, error_description"
//	@Router			/api/auth/logout [post].
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	err := h.AuthService.Logout(ctx, httpx.UserIDFromContext(ctx))
	switch {
	case err == nil:
	case errors.Is(err, service.ErrUserNotFound):
		httpx.ErrInvalidCredentials("user no longer exists").WriteError(w)
		return
	default:
		log.Error("logout failed", slog.Any("err", err))
		httpx.ErrServerError("Failed to logout").WriteError(w)
		return
	}

	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

// HandleMe handles GET /api/auth/me
//
//	@Summary		Current user
//	@Tags			Auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	identitysdk.User
//	@Failure		401	{object}	identitysdk.ErrorResponse	"error, error_description"
//	@Failure		404	{object}	identitysdk.Envelope[any]
//	@Router			/api/auth/me [get].
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	u, err := h.AuthService.Me(ctx, httpx.UserIDFromContext(ctx))
	if err != nil {
		writeAdminError(w, r, err, "load current user")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, toUser(u))
}
