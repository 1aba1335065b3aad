package dirsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/directory/pkg/httpx"
)

const (
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeServerError    = "server_error"
	ErrorCodeNotFound       = "not_found"
)

// APIError is a JSON error from the service. Handlers use WriteError to
// produce it and the client decodes it back.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes e as a JSON response.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	httpx.WriteJSON(w, e.StatusCode, ErrorResponse{Code: e.Code, Description: e.Description})
}

var (
	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}

	ErrNotFoundResponse = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeNotFound,
		Description: "not found",
	}
)

// Outcomes of form submissions and protected requests.
var (
	ErrNotAuthenticated   = errors.New("dirsdk: not authenticated")
	ErrInvalidCredentials = errors.New("dirsdk: invalid username or password")
	ErrUsernameTaken      = errors.New("dirsdk: username already taken")
	ErrInvalidInput       = errors.New("dirsdk: invalid input")
	ErrRateLimited        = errors.New("dirsdk: rate limited")
)

// parseErrorResponse maps a non-success response to an error.
func parseErrorResponse(resp *http.Response, body []byte) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return ErrInvalidCredentials
	case http.StatusConflict:
		return ErrUsernameTaken
	case http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return ErrInvalidInput
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}

	if isLoginRedirect(resp) {
		return ErrNotAuthenticated
	}

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Code != "" {
		apiErr.StatusCode = resp.StatusCode
		return &apiErr
	}

	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("unexpected status %d", resp.StatusCode),
	}
}
