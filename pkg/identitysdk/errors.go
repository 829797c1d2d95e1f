package identitysdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned by the auth endpoints.
const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeInvalidGrant       = "invalid_grant"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeServerError        = "server_error"
)

// APIError is a non-2xx response from the identity service.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("identity: http %d", e.StatusCode)
	}
	return fmt.Sprintf("identity: http %d: %s: %s", e.StatusCode, e.Code, e.Description)
}

// IsCode reports whether err is an APIError carrying code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// parseErrorResponse understands both the OAuth2-style body and the admin
// envelope.
func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var oauth ErrorResponse
	if json.Unmarshal(body, &oauth) == nil && oauth.Error != "" {
		apiErr.Code = oauth.Error
		apiErr.Description = oauth.ErrorDescription
		return apiErr
	}

	var env Envelope[json.RawMessage]
	if json.Unmarshal(body, &env) == nil && env.Status == "error" {
		apiErr.Description = env.Message
	}
	return apiErr
}
