package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned when no credentials are present at
	// all. Callers should send the user to login; no network call happened.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrRefreshDenied is returned by the coordinator when the identity
	// service rejects the refresh token. The session store has already
	// been cleared by the time callers see it.
	ErrRefreshDenied = errors.New("refresh denied")

	// ErrSessionExpired is returned by the authenticated client when a
	// request was rejected and the follow-up refresh also failed.
	ErrSessionExpired = errors.New("session expired")
)

// APIError carries a business-level rejection from a remote service. It is
// never retried automatically; the message is meant for display.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return e.Message
}
