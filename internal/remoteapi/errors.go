// Package remoteapi is the transport boundary to the sync server: REST calls
// for metadata and chunk transfer plus an optional WebSocket
// push channel for low-latency change notification.
package remoteapi

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status classification: check with errors.Is.
var (
	ErrBadRequest  = errors.New("remoteapi: bad request")
	ErrUnauthorized = errors.New("remoteapi: unauthorized")
	ErrForbidden   = errors.New("remoteapi: forbidden")
	ErrNotFound    = errors.New("remoteapi: not found")
	ErrConflict    = errors.New("remoteapi: conflict")
	ErrThrottled   = errors.New("remoteapi: throttled")
	ErrServerError = errors.New("remoteapi: server error")
)

// APIError wraps a sentinel error with the HTTP status and server-provided
// message body, so callers can both errors.Is-classify and log detail.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remoteapi: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound, http.StatusGone:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

func isRetryable(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
