// Package auth orchestrates the browser-facing OAuth2 login flow and the
// session validation/refresh protocol against the upstream identity provider.
package auth

import (
	"context"
	"errors"

	"armory/bnet"
	"armory/sessions"
)

// IdentityProvider is the slice of the upstream client the auth services
// need. Satisfied by *bnet.Client; faked in tests.
type IdentityProvider interface {
	// AuthCodeURL builds the provider authorize URL for a CSRF state value.
	AuthCodeURL(state string) string

	// Exchange swaps a single-use authorization code for a token pair.
	Exchange(ctx context.Context, code string) (*bnet.Token, error)

	// Refresh obtains a new token pair from a refresh token.
	Refresh(ctx context.Context, refreshToken string) (*bnet.Token, error)

	// ValidateToken reports whether an access token is still accepted.
	ValidateToken(ctx context.Context, accessToken string) bool
}

// Service owns the OAuth flow state machine and the session validation
// protocol. All session mutation goes through get → modify → set on a single
// session id.
type Service struct {
	sessions        sessions.Repo
	idp             IdentityProvider
	defaultCallback string
}

// NewService initializes the auth service with its required dependencies.
// defaultCallback is the frontend URL used when an authorize request carries
// no callback of its own.
func NewService(sessionRepo sessions.Repo, idp IdentityProvider, defaultCallback string) (*Service, error) {
	if sessionRepo == nil {
		return nil, errors.New("[NewService] session repo is required")
	}
	if idp == nil {
		return nil, errors.New("[NewService] identity provider is required")
	}

	return &Service{
		sessions:        sessionRepo,
		idp:             idp,
		defaultCallback: defaultCallback,
	}, nil
}
