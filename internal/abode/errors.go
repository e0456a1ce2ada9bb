package abode

import (
	"errors"
	"fmt"
)

// Sentinel errors for Abode API operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConfiguration is returned when credentials or a request path are missing.
	ErrConfiguration = errors.New("abode: configuration error")

	// ErrAuthentication is returned when sign-in is rejected or the response
	// is malformed. Callers must treat the whole session as invalid.
	ErrAuthentication = errors.New("abode: authentication failed")

	// ErrToken is returned when the claims endpoint does not yield an OAuth token.
	ErrToken = errors.New("abode: oauth token unavailable")

	// ErrMissingSession is returned before sending a request that needs a session.
	ErrMissingSession = errors.New("abode: missing session")

	// ErrMissingAPIKey is returned before sending a request that needs an API key.
	ErrMissingAPIKey = errors.New("abode: missing API key")

	// ErrMissingOAuth is returned before sending a request that needs an OAuth token.
	ErrMissingOAuth = errors.New("abode: missing OAuth token")

	// ErrFetch is returned when a read endpoint answers with a non-200 status.
	ErrFetch = errors.New("abode: fetch failed")

	// ErrTransport is returned for network-level failures and non-2xx responses.
	ErrTransport = errors.New("abode: transport error")
)

// ResponseError describes a non-2xx response from the Abode API.
// Code is the application error code from the response body when present.
type ResponseError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *ResponseError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("abode: request failed with status code %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("abode: request failed with status code %d", e.StatusCode)
}

// Is lets errors.Is(err, ErrTransport) match any ResponseError.
func (e *ResponseError) Is(target error) bool {
	return target == ErrTransport
}
