package auth

import "errors"

var (
	// ErrInvalidState is the CSRF check failing: the state presented at the
	// callback is missing, spent, or does not match the one stored on the
	// same session. Always terminal, never retried.
	ErrInvalidState = errors.New("invalid state parameter")

	// ErrProviderDenied carries an error the identity provider sent back on
	// the authorize redirect (user declined, bad scope, ...). No exchange is
	// attempted.
	ErrProviderDenied = errors.New("authorization denied by provider")

	// ErrInvalidToken marks a caller-supplied access token the provider did
	// not accept.
	ErrInvalidToken = errors.New("invalid token")
)
