package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/identity/pkg/jwtx"
	"github.com/aussiebroadwan/identity/pkg/slogx"
)

// RevocationChecker reports whether the access token with the given jti is
// still live. A token without a record is not live.
type RevocationChecker interface {
	IsAccessTokenActive(ctx context.Context, jti string) (bool, error)
}

// AuthnMiddleware verifies the bearer token and, when rc is non-nil, rejects
// tokens that have been revoked since issuance.
func AuthnMiddleware(v jwtx.Verifier, rc RevocationChecker) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := BearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			claims, err := v.Verify(raw)
			if err != nil {
				writeBearerError(w, "token verification failed")
				log.Warn("jwt verify failed", "err", err)
				return
			}

			if rc != nil {
				active, err := rc.IsAccessTokenActive(ctx, claims.ID)
				if err != nil {
					log.Error("access token lookup failed", "jti", claims.ID, "err", err)
					ErrServerError("internal error").WriteError(w)
					return
				}
				if !active {
					log.Info("revoked access token presented", "jti", claims.ID, "sub", claims.Subject)
					writeBearerError(w, "token revoked")
					return
				}
			}

			ctx = ContextWithClaims(ctx, claims)
			ctx = slogx.With(ctx, "user_id", claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(authz, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteJSON(w, http.StatusUnauthorized, Error{
		StatusCode:  http.StatusUnauthorized,
		Code:        "invalid_token",
		Description: desc,
	})
}
