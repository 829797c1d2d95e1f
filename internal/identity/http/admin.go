package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
	"github.com/aussiebroadwan/identity/internal/identity/service"
	"github.com/aussiebroadwan/identity/pkg/httpx"
	"github.com/aussiebroadwan/identity/pkg/identitysdk"
	"github.com/aussiebroadwan/identity/pkg/slogx"
)

// AdminHandler serves the user administration and reporting API. Every route
// requires ROLE_ADMIN.
type AdminHandler struct {
	AdminService  *service.AdminService
	ReportService *service.ReportService
}

// writeAdminError renders err as an envelope. Unknown errors are logged and
// reported as a generic 500.
func writeAdminError(w http.ResponseWriter, r *http.Request, err error, action string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make([]httpx.FieldError, len(verr.Fields))
		for i, f := range verr.Fields {
			fields[i] = httpx.FieldError{Field: f.Field, Message: f.Message}
		}
		httpx.WriteFailure(w, http.StatusUnprocessableEntity, "Validation failed", fields)
	case errors.Is(err, service.ErrUserNotFound):
		httpx.WriteFailure(w, http.StatusNotFound, "User not found", nil)
	case errors.Is(err, service.ErrSessionNotFound):
		httpx.WriteFailure(w, http.StatusNotFound, "Session not found", nil)
	case errors.Is(err, service.ErrUsernameTaken):
		httpx.WriteFailure(w, http.StatusConflict, "Username already exists", nil)
	case errors.Is(err, service.ErrEmailTaken):
		httpx.WriteFailure(w, http.StatusConflict, "Email already exists", nil)
	case errors.Is(err, service.ErrInvalidDateRange):
		httpx.WriteFailure(w, http.StatusBadRequest, "date_from must not be after date_to", nil)
	case errors.Is(err, service.ErrUnknownReportType):
		httpx.WriteFailure(w, http.StatusBadRequest, "Unknown report type", nil)
	default:
		slogx.FromContext(r.Context()).Error("admin request failed", slog.String("action", action), slog.Any("err", err))
		httpx.WriteFailure(w, http.StatusInternalServerError, "Internal server error", nil)
	}
}

func (h *AdminHandler) decodeUser(w http.ResponseWriter, r *http.Request) (service.UserInput, bool) {
	var req identitysdk.UserRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.WriteFailure(w, http.StatusBadRequest, err.Error(), nil)
		return service.UserInput{}, false
	}
	return service.UserInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		Roles:     req.Roles,
		IsBlocked: req.IsBlocked,
	}, true
}

// HandleListUsers handles GET /api/admin/users
//
//	@Summary	List users
//	@Tags		Admin
//	@Produce	json
//	@Security	BearerAuth
//	@Param		page	query		int	false	"Page number, from 1"
//	@Param		limit	query		int	false	"Page size, at most 100"
//	@Success	200		{object}	identitysdk.Envelope[identitysdk.Page[identitysdk.User]]
//	@Failure	401		{object}	identitysdk.ErrorResponse
//	@Failure	403		{object}	identitysdk.ErrorResponse
//	@Router		/api/admin/users [get].
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.AdminService.ListUsers(r.Context(), queryInt(q.Get("page")), queryInt(q.Get("limit")))
	if err != nil {
		writeAdminError(w, r, err, "list users")
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", mapPage(page, toUser))
}

// HandleCreateUser handles POST /api/admin/users
//
//	@Summary	Create user
//	@Tags		Admin
//	@Accept		json
//	@Produce	json
//	@Security	BearerAuth
//	@Param		request	body		identitysdk.UserRequest	true	"User"
//	@Success	201		{object}	identitysdk.Envelope[identitysdk.User]
//	@Failure	409		{object}	identitysdk.Envelope[any]	"username or email taken"
//	@Failure	422		{object}	identitysdk.Envelope[any]	"validation errors"
//	@Router		/api/admin/users [post].
func (h *AdminHandler) HandleCreateUser(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeUser(w, r)
	if !ok {
		return
	}
	u, err := h.AdminService.CreateUser(r.Context(), in)
	if err != nil {
		writeAdminError(w, r, err, "create user")
		return
	}
	httpx.WriteSuccess(w, http.StatusCreated, "User created", toUser(u))
}

// HandleGetUser handles GET /api/admin/users/{id}
//
//	@Summary	Get user
//	@Tags		Admin
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"User ID"
//	@Success	200	{object}	identitysdk.Envelope[identitysdk.User]
//	@Failure	404	{object}	identitysdk.Envelope[any]
//	@Router		/api/admin/users/{id} [get].
func (h *AdminHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.AdminService.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAdminError(w, r, err, "get user")
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", toUser(u))
}

// HandleUpdateUser handles PUT /api/admin/users/{id}
//
//	@Summary		Update user
//	@Description	An empty password keeps the current one.
//	@Tags			Admin
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string					true	"User ID"
//	@Param			request	body		identitysdk.UserRequest	true	"User"
//	@Success		200		{object}	identitysdk.Envelope[identitysdk.User]
//	@Failure		404		{object}	identitysdk.Envelope[any]
//	@Failure		409		{object}	identitysdk.Envelope[any]
//	@Failure		422		{object}	identitysdk.Envelope[any]
//	@Router			/api/admin/users/{id} [put].
func (h *AdminHandler) HandleUpdateUser(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeUser(w, r)
	if !ok {
		return
	}
	u, err := h.AdminService.UpdateUser(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeAdminError(w, r, err, "update user")
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "User updated", toUser(u))
}

// HandleDeleteUser handles DELETE /api/admin/users/{id}
//
//	@Summary	Delete user
//	@Tags		Admin
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"User ID"
//	@Success	200	{object}	identitysdk.Envelope[any]
//	@Failure	404	{object}	identitysdk.Envelope[any]
//	@Router		/api/admin/users/{id} [delete].
func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.AdminService.DeleteUser(r.Context(), r.PathValue("id")); err != nil {
		writeAdminError(w, r, err, "delete user")
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "User deleted", nil)
}

// HandleListUserSessions handles GET /api/admin/users/{id}/sessions
//
//	@Summary	List a user's sessions
//	@Tags		Admin
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id		path		string	true	"User ID"
//	@Param		page	query		int		false	"Page number, from 1"
//	@Param		limit	query		int		false	"Page size, at most 100"
//	@Success	200		{object}	identitysdk.Envelope[identitysdk.Page[identitysdk.Session]]
//	@Failure	404		{object}	identitysdk.Envelope[any]
//	@Router		/api/admin/users/{id}/sessions [get].
func (h *AdminHandler) HandleListUserSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.AdminService.ListUserSessions(r.Context(), r.PathValue("id"), queryInt(q.Get("page")), queryInt(q.Get("limit")))
	if err != nil {
		writeAdminError(w, r, err, "list sessions")
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", mapPage(page, toSession))
}

// HandleGetSession handles GET /api/admin/sessions/{id}
//
//	@Summary	Get session
//	@Tags		Admin
//	@Produce	json
//	@Security	BearerAuth
//	@Param		id	path		string	true	"Session ID"
//	@Success	200	{object}	identitysdk.Envelope[identitysdk.Session]
//	@Failure	404	{object}	identitysdk.Envelope[any]
//	@Router		/api/admin/sessions/{id} [get].
func (h *AdminHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.AdminService.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAdminError(w, r, err, "get session")
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", toSession(s))
}

// HandleReport handles GET /api/admin/reports
//
//	@Summary		Generate report
//	@Description	user_activity lists session counts and last activity per user.
//	@Description	user_registrations counts sign-ups per day, newest first.
//	@Tags			Admin
//	@Produce		json
//	@Security		BearerAuth
//	@Param			type		query		string	true	"user_activity or user_registrations"
//	@Param			date_from	query		string	false	"YYYY-MM-DD, inclusive"
//	@Param			date_to		query		string	false	"YYYY-MM-DD, inclusive"
//	@Success		200			{object}	identitysdk.Envelope[any]
//	@Failure		400			{object}	identitysdk.Envelope[any]
//	@Router			/api/admin/reports [get].
func (h *AdminHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		rng  domain.DateRange
		errs []httpx.FieldError
	)
	if v := q.Get("date_from"); v != "" {
		t, err := parseReportDate(v, false)
		if err != nil {
			errs = append(errs, httpx.FieldError{Field: "date_from", Message: "must be YYYY-MM-DD"})
		}
		rng.From = &t
	}
	if v := q.Get("date_to"); v != "" {
		t, err := parseReportDate(v, true)
		if err != nil {
			errs = append(errs, httpx.FieldError{Field: "date_to", Message: "must be YYYY-MM-DD"})
		}
		rng.To = &t
	}
	if len(errs) > 0 {
		httpx.WriteFailure(w, http.StatusUnprocessableEntity, "Validation failed", errs)
		return
	}

	data, err := h.ReportService.Generate(r.Context(), domain.ReportType(q.Get("type")), rng)
	if err != nil {
		writeAdminError(w, r, err, "generate report")
		return
	}
	httpx.WriteSuccess(w, http.StatusOK, "", data)
}

// parseReportDate accepts a day or an RFC 3339 timestamp. A day given as the
// end of a range covers the whole day.
func parseReportDate(v string, end bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, err
	}
	if end {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
