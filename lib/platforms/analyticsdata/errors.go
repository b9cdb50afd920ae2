package analyticsdata

import (
	"fmt"
	"net/http"
)

// APIError is the error envelope returned by the service for non-2xx responses.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (e *APIError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("analytics data api: %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("analytics data api: %d %s: %s", e.Code, e.Status, e.Message)
}

// Temporary reports whether the request may succeed when retried as-is.
func (e *APIError) Temporary() bool {
	switch e.Code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}
