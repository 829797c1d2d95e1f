package http

import (
	"strconv"

	"github.com/aussiebroadwan/identity/internal/identity/domain"
	"github.com/aussiebroadwan/identity/pkg/identitysdk"
)

func toUser(u domain.User) identitysdk.User {
	return identitysdk.User{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Roles:     u.Roles.Strings(),
		IsBlocked: u.IsBlocked,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func toSession(s domain.Session) identitysdk.Session {
	return identitysdk.Session{
		ID:         s.ID,
		UserID:     s.UserID,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
}

func toLoginResponse(p domain.TokenPair, u domain.User) identitysdk.LoginResponse {
	return identitysdk.LoginResponse{
		TokenResponse: identitysdk.TokenResponse{
			AccessToken:  p.AccessToken,
			RefreshToken: p.RefreshToken,
			TokenType:    p.TokenType,
			ExpiresIn:    p.ExpiresIn,
		},
		User: toUser(u),
	}
}

// mapPage converts the items of a page, keeping the paging fields.
func mapPage[T, U any](p domain.Page[T], f func(T) U) identitysdk.Page[U] {
	items := make([]U, len(p.Items))
	for i, it := range p.Items {
		items[i] = f(it)
	}
	return identitysdk.Page[U]{
		Items:      items,
		Page:       p.Page,
		Limit:      p.Limit,
		Total:      p.Total,
		TotalPages: p.TotalPages,
	}
}

// queryInt returns the integer query parameter, or 0 when absent or invalid.
// The service layer applies the defaults.
func queryInt(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
