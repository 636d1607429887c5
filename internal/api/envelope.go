package api

import (
	"encoding/json"
	"fmt"
)

// Payload is the server's JSON response envelope.
type Payload struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Errors  []FieldError    `json:"errors,omitempty"`
}

// FieldError is one entry of a structured validation-error list.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorMessage reduces the envelope to a single human-readable string:
// the message when present, else the first validation error, else fallback.
func (p Payload) ErrorMessage(fallback string) string {
	if p.Message != "" {
		return p.Message
	}
	for _, fe := range p.Errors {
		if fe.Message == "" {
			continue
		}
		if fe.Field != "" {
			return fmt.Sprintf("%s: %s", fe.Field, fe.Message)
		}
		return fe.Message
	}
	return fallback
}

// APIError is a request the server rejected (4xx/5xx or success=false).
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server rejected request (%d): %s", e.StatusCode, e.Message)
}
