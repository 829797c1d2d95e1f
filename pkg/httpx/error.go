package httpx

import (
	"fmt"
	"net/http"
)

// Error is the OAuth2-style error body used by the auth endpoints.
type Error struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError renders the error as JSON with its status code.
func (e Error) WriteError(w http.ResponseWriter) {
	code := e.StatusCode
	if code == 0 {
		code = http.StatusBadRequest
	}
	WriteJSON(w, code, e)
}

func ErrInvalidRequest(desc string) Error {
	return Error{StatusCode: http.StatusBadRequest, Code: "invalid_request", Description: desc}
}

func ErrInvalidCredentials(desc string) Error {
	return Error{StatusCode: http.StatusUnauthorized, Code: "invalid_credentials", Description: desc}
}

func ErrInvalidGrant(desc string) Error {
	return Error{StatusCode: http.StatusUnauthorized, Code: "invalid_grant", Description: desc}
}

func ErrServerError(desc string) Error {
	return Error{StatusCode: http.StatusInternalServerError, Code: "server_error", Description: desc}
}
