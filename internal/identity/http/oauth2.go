package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
	"github.com/aussiebroadwan/identity/internal/identity/service"
	"github.com/aussiebroadwan/identity/pkg/httpx"
	"github.com/aussiebroadwan/identity/pkg/identitysdk"
	"github.com/aussiebroadwan/identity/pkg/slogx"
)

const invalidOAuth2Request = "Invalid OAuth2 request"

// OAuth2Handler serves the authorization endpoint and the consent handshake
// in front of it.
type OAuth2Handler struct {
	ConsentService   *service.ConsentService
	AuthorizeService *service.AuthorizeService
}

func consentRequestFrom(q url.Values) domain.ConsentRequest {
	return domain.ConsentRequest{
		ClientID:     q.Get("client_id"),
		RedirectURI:  q.Get("redirect_uri"),
		Scope:        q.Get("scope"),
		State:        q.Get("state"),
		ResponseType: q.Get("response_type"),
		GrantType:    q.Get("grant_type"),
	}
}

func decisionFrom(q url.Values) service.Decision {
	switch {
	case q.Get("approve") == "1":
		return service.DecisionApprove
	case q.Get("deny") == "1":
		return service.DecisionDeny
	default:
		return service.DecisionNone
	}
}

func writeInvalidOAuth2(w http.ResponseWriter) {
	httpx.NoCache(w)
	http.Error(w, invalidOAuth2Request, http.StatusBadRequest)
}

// HandleAuthorize handles GET /oauth2/authorize
//
//	@Summary		Authorization endpoint
//	@Description	Without a decision the user agent is sent to the consent screen.
//	@Description	With approve=1 an authorization code is issued and returned to the client's redirect_uri.
//	@Description	With deny=1 the client receives error=access_denied.
//	@Tags			OAuth2
//	@Security		BearerAuth
//	@Param			client_id		query	string	true	"Client ID"
//	@Param			redirect_uri	query	string	true	"Registered redirect URI"
//	@Param			response_type	query	string	false	"Must be code when present"
//	@Param			scope			query	string	false	"Space-delimited scopes"
//	@Param			state			query	string	false	"Opaque client state"
//	@Param			approve			query	string	false	"1 when the user approved"
//	@Param			deny			query	string	false	"1 when the user denied"
//	@Success		302	"Redirect"
//	@Failure		400	{string}	string	"Invalid OAuth2 request"
//	@Failure		401	{object}	identitysdk.ErrorResponse
//	@Router			/oauth2/authorize [get].
func (h *OAuth2Handler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	target, err := h.AuthorizeService.Authorize(ctx, httpx.UserIDFromContext(ctx), consentRequestFrom(q), decisionFrom(q))
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidConsentRequest):
		writeInvalidOAuth2(w)
		return
	default:
		slogx.FromContext(ctx).Error("authorize failed", slog.Any("err", err))
		httpx.ErrServerError("internal error").WriteError(w)
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, target, http.StatusFound)
}

// HandleConsent handles GET /oauth2/consent
//
//	@Summary		Consent details
//	@Description	Validates the authorization request and returns the URLs the consent screen submits to.
//	@Tags			OAuth2
//	@Produce		json
//	@Security		BearerAuth
//	@Param			client_id		query		string	true	"Client ID"
//	@Param			redirect_uri	query		string	false	"Redirect URI"
//	@Param			scope			query		string	false	"Space-delimited scopes"
//	@Param			state			query		string	false	"Opaque client state"
//	@Success		200				{object}	identitysdk.ConsentResponse
//	@Failure		400				{string}	string	"Invalid OAuth2 request"
//	@Router			/oauth2/consent [get].
func (h *OAuth2Handler) HandleConsent(w http.ResponseWriter, r *http.Request) {
	req, ok := h.validate(w, r)
	if !ok {
		return
	}

	httpx.WriteJSON(w, http.StatusOK, identitysdk.ConsentResponse{
		ClientID:   req.ClientID,
		Scope:      req.Scope,
		ApproveURL: h.ConsentService.BuildRedirectURL(req, true),
		DenyURL:    h.ConsentService.BuildRedirectURL(req, false),
	})
}

// HandleApprove handles GET /oauth2/consent/approve
//
//	@Summary		Approve consent
//	@Tags			OAuth2
//	@Security		BearerAuth
//	@Param			client_id	query	string	true	"Client ID"
//	@Success		302			"Redirect to the authorization endpoint with approve=1"
//	@Failure		400			{string}	string	"Invalid OAuth2 request"
//	@Router			/oauth2/consent/approve [get].
func (h *OAuth2Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.redirectDecision(w, r, true)
}

// HandleDeny handles GET /oauth2/consent/deny
//
//	@Summary		Deny consent
//	@Tags			OAuth2
//	@Security		BearerAuth
//	@Param			client_id	query	string	true	"Client ID"
//	@Success		302			"Redirect to the authorization endpoint with deny=1"
//	@Failure		400			{string}	string	"Invalid OAuth2 request"
//	@Router			/oauth2/consent/deny [get].
func (h *OAuth2Handler) HandleDeny(w http.ResponseWriter, r *http.Request) {
	h.redirectDecision(w, r, false)
}

func (h *OAuth2Handler) redirectDecision(w http.ResponseWriter, r *http.Request, approved bool) {
	req, ok := h.validate(w, r)
	if !ok {
		return
	}
	httpx.NoCache(w)
	http.Redirect(w, r, h.ConsentService.BuildRedirectURL(req, approved), http.StatusFound)
}

func (h *OAuth2Handler) validate(w http.ResponseWriter, r *http.Request) (domain.ConsentRequest, bool) {
	ctx := r.Context()
	req := consentRequestFrom(r.URL.Query())

	err := h.ConsentService.Validate(ctx, req)
	switch {
	case err == nil:
		return req, true
	case errors.Is(err, service.ErrInvalidConsentRequest):
		writeInvalidOAuth2(w)
	default:
		slogx.FromContext(ctx).Error("consent validation failed", slog.Any("err", err))
		httpx.ErrServerError("internal error").WriteError(w)
	}
	return domain.ConsentRequest{}, false
}
