package bnet

import "errors"

var (
	// ErrUpstreamAuth marks a token operation the identity provider rejected
	// (bad code, revoked refresh token, bad client credentials). Terminal for
	// the operation; never retried.
	ErrUpstreamAuth = errors.New("upstream auth rejected")
)
