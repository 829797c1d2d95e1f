package httpx

import (
	"net/http"
	"time"
)

// Envelope is the response body of the admin API.
type Envelope struct {
	Status    string       `json:"status"` // "success" or "error"
	Code      int          `json:"code"`
	Message   string       `json:"message"`
	Data      any          `json:"data,omitempty"`
	Errors    []FieldError `json:"errors,omitempty"`
	Timestamp string       `json:"timestamp"`
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Now is the clock used for envelope timestamps.
var Now = time.Now

// WriteSuccess writes a success envelope carrying data.
func WriteSuccess(w http.ResponseWriter, code int, message string, data any) {
	if message == "" {
		message = "Success"
	}
	WriteJSON(w, code, Envelope{
		Status:    "success",
		Code:      code,
		Message:   message,
		Data:      data,
		Timestamp: Now().Format(time.RFC3339),
	})
}

// WriteFailure writes an error envelope with optional field errors.
func WriteFailure(w http.ResponseWriter, code int, message string, errs []FieldError) {
	WriteJSON(w, code, Envelope{
		Status:    "error",
		Code:      code,
		Message:   message,
		Errors:    errs,
		Timestamp: Now().Format(time.RFC3339),
	})
}
