package identitysdk

import "time"

// ErrorResponse is the OAuth2-style error body returned by the auth and
// OAuth2 endpoints.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// LoginRequest is the body of POST /api/auth/login. The endpoint also
// accepts the same fields form encoded.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest is the body of POST /api/auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse carries an access and refresh token pair.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// LoginResponse is returned by login and refresh.
type LoginResponse struct {
	TokenResponse
	User User `json:"user"`
}

// User is the public view of an account. The password hash never leaves
// the service.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	IsBlocked bool      `json:"isBlocked"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Session is the admin view of a login session.
type Session struct {
	ID         string     `json:"id"`
	UserID     string     `json:"userId"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt"`
}

// UserRequest is the body of the admin create and update endpoints.
// Password may be omitted on update.
type UserRequest struct {
	Username  string   `json:"username"`
	Email     string   `json:"email"`
	Password  string   `json:"password,omitempty"`
	Roles     []string `json:"roles,omitempty"`
	IsBlocked bool     `json:"isBlocked"`
}

// ConsentResponse is returned by GET /oauth2/consent.
type ConsentResponse struct {
	ClientID   string `json:"client_id"`
	ClientName string `json:"client_name,omitempty"`
	Scope      string `json:"scope,omitempty"`
	ApproveURL string `json:"approve_url"`
	DenyURL    string `json:"deny_url"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks holds the per-dependency readiness results.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}

// Page mirrors a paginated admin listing.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

// Envelope is the admin API response wrapper.
type Envelope[T any] struct {
	Status    string       `json:"status"`
	Code      int          `json:"code"`
	Message   string       `json:"message"`
	Data      T            `json:"data,omitempty"`
	Errors    []FieldError `json:"errors,omitempty"`
	Timestamp string       `json:"timestamp"`
}

// FieldError names one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
