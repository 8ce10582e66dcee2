package client

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrSessionExpired is returned once the refresh attempt cap is exhausted.
// The session has already been cleared when callers see this error.
var ErrSessionExpired = errors.New("session expired, please log in again")

// APIError carries a non-2xx server response.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("server returned %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("server returned %d (%s)", e.Status, e.Code)
}

// IsUnauthorized reports whether err is a 401 response from the server.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}
