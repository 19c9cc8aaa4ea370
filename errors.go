package goSession

import (
	"errors"

	"github.com/MrEthical07/goSession/token"
)

var (
	// ErrMalformedToken is returned when a bearer token's claims cannot be decoded.
	// It is non-fatal: the token is kept and expiry is detected from 401 responses.
	ErrMalformedToken = token.ErrMalformedToken
	// ErrRefreshTransport is returned when the refresh exchange fails on the network,
	// times out, hits a server error, or returns an unreadable body.
	ErrRefreshTransport = errors.New("refresh transport failure")
	// ErrRefreshDenied is returned when the server rejects the refresh credential,
	// and to refresh waiters released by a session teardown.
	ErrRefreshDenied = errors.New("refresh denied")
	// ErrUnauthorized is returned after a refresh-and-retry cycle is exhausted.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNoSession is returned by operations that need a held bearer token.
	ErrNoSession = errors.New("no session")
	// ErrClientNotReady is returned by a nil or unbuilt Client.
	ErrClientNotReady = errors.New("client not initialized")
	// ErrSessionSync is returned when the session bridge endpoint rejects a sync.
	ErrSessionSync = errors.New("session sync failed")
)

// UnauthorizedError reports that no valid session could be established for a
// request. LoginURL is where the user should be sent; navigating there is left to
// the caller unless the Client was built with a navigator.
type UnauthorizedError struct {
	LoginURL string
	Cause    error
}

func (e *UnauthorizedError) Error() string {
	if e.Cause == nil {
		return ErrUnauthorized.Error()
	}
	return ErrUnauthorized.Error() + ": " + e.Cause.Error()
}

// Unwrap exposes both ErrUnauthorized and the refresh failure that caused it.
func (e *UnauthorizedError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrUnauthorized}
	}
	return []error{ErrUnauthorized, e.Cause}
}
