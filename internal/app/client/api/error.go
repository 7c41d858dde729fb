package api

import "errors"

// Error taxonomy for remote calls. Every call site branches on these with
// errors.Is instead of re-implementing recovery inline.
var (
	// ErrInvalidCredentials is a 401 on login: the email/password pair was
	// rejected. Distinct from ErrUnauthorized.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is a 401 on any authenticated call: the stored token is
	// no longer accepted and the session must be cleared.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation is a 400 with a server-supplied message, shown to the user.
	ErrValidation = errors.New("validation failed")
	// ErrNetworkUnreachable means the request could not be sent at all.
	ErrNetworkUnreachable = errors.New("network unreachable")
	// ErrServer is an opaque 5xx.
	ErrServer = errors.New("server error")
)
