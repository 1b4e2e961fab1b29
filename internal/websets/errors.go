package websets

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrMissingAPIKey is returned before any network call when the
// provider API key is not configured. Configuration errors are never
// retried.
var ErrMissingAPIKey = errors.New("websets API key is not configured")

// APIError is a non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("websets API error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("websets API error: status %d", e.StatusCode)
}

// Transient reports whether the error is worth retrying. Provider 5xx
// responses are transient; 4xx rejections are not.
func (e *APIError) Transient() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// IsTransient reports whether an error from this package is a
// transient provider or network failure rather than a hard rejection.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	if errors.Is(err, ErrMissingAPIKey) {
		return false
	}

	// Anything else from the HTTP layer is a network-level failure.
	return true
}

// parseAPIError reads an error response body into an APIError.
func parseAPIError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return &APIError{StatusCode: resp.StatusCode}
	}

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		msg := payload.Error
		if msg == "" {
			msg = payload.Message
		}
		if msg != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: msg}
		}
	}

	return &APIError{StatusCode: resp.StatusCode, Message: string(body)}
}
