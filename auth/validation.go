package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"armory/bnet"
	"armory/sessions"
)

// Reasons reported on auth-negative validation results. These are expected
// outcomes and travel as data, not as errors.
const (
	ReasonMissingSession  = "missing session information"
	ReasonInvalidSession  = "invalid session"
	ReasonStorageMismatch = "storage type mismatch"
	ReasonInvalidToken    = "invalid token"
)

// ValidationResult answers "is this caller authenticated, and under what
// persistence tier". Reason is set only when Authenticated is false.
type ValidationResult struct {
	Authenticated bool
	Persistent    bool
	Reason        string
}

// Validate checks a presented session against the identity provider,
// transparently refreshing an expired access token when the session holds a
// refresh token.
//
// The error return is reserved for infrastructure faults (store or provider
// transport failure); every expected "not authenticated" outcome comes back
// as a result with a reason.
func (s *Service) Validate(ctx context.Context, sessionID string, declaredTier sessions.Tier) (ValidationResult, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, sessions.ErrNotFound) {
		return ValidationResult{Reason: ReasonInvalidSession}, nil
	}
	if err != nil {
		return ValidationResult{}, fmt.Errorf("auth.Validate: %w", err)
	}

	if !session.Authenticated() {
		return ValidationResult{Reason: ReasonInvalidSession}, nil
	}

	// A long-lived identifier presented with short-lived semantics (or the
	// reverse) is rejected outright.
	if declaredTier != session.Tier {
		return ValidationResult{Reason: ReasonStorageMismatch}, nil
	}

	if s.idp.ValidateToken(ctx, session.AccessToken) {
		if err := s.sessions.Touch(ctx, sessionID); err != nil && !errors.Is(err, sessions.ErrNotFound) {
			return ValidationResult{}, fmt.Errorf("auth.Validate: %w", err)
		}
		return ValidationResult{Authenticated: true, Persistent: session.Tier.Persistent()}, nil
	}

	if session.RefreshToken == "" {
		return ValidationResult{Reason: ReasonInvalidToken}, nil
	}

	token, err := s.idp.Refresh(ctx, session.RefreshToken)
	if errors.Is(err, bnet.ErrUpstreamAuth) {
		// Refresh token spent or revoked; the caller has to log in again.
		log.Info().Str("sessionID", sessionID).Msg("refresh token rejected, session downgraded")
		return ValidationResult{Reason: ReasonInvalidToken}, nil
	}
	if err != nil {
		return ValidationResult{}, fmt.Errorf("auth.Validate: %w", err)
	}

	session.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		session.RefreshToken = token.RefreshToken
	}
	if err := s.sessions.Set(ctx, sessionID, session); err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			// Destroyed since we read it; a logged-out session stays out.
			return ValidationResult{Reason: ReasonInvalidSession}, nil
		}
		return ValidationResult{}, fmt.Errorf("auth.Validate: %w", err)
	}

	return ValidationResult{Authenticated: true, Persistent: session.Tier.Persistent()}, nil
}

// RefreshSession exchanges a refresh token for a new token pair and, when the
// session still exists, stores the new pair on it.
func (s *Service) RefreshSession(ctx context.Context, sessionID, refreshToken string) (*bnet.Token, error) {
	token, err := s.idp.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("auth.RefreshSession: %w", err)
	}

	if sessionID != "" {
		session, err := s.sessions.Get(ctx, sessionID)
		switch {
		case errors.Is(err, sessions.ErrNotFound):
			// No session to update; the caller still gets the new pair.
		case err != nil:
			log.Warn().Err(err).Str("sessionID", sessionID).Msg("could not store refreshed tokens")
		default:
			session.AccessToken = token.AccessToken
			if token.RefreshToken != "" {
				session.RefreshToken = token.RefreshToken
			}
			if err := s.sessions.Set(ctx, sessionID, session); err != nil {
				log.Warn().Err(err).Str("sessionID", sessionID).Msg("could not store refreshed tokens")
			}
		}
	}

	return token, nil
}

// AdoptToken validates a caller-supplied access token and binds it to a
// session, creating one if needed. Adopted sessions carry no refresh token,
// so a persistent adopted session cannot renew transparently.
func (s *Service) AdoptToken(ctx context.Context, sessionID, accessToken string, persistent bool) (*sessions.Session, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("auth.AdoptToken: %w", ErrInvalidToken)
	}
	if !s.idp.ValidateToken(ctx, accessToken) {
		return nil, fmt.Errorf("auth.AdoptToken: %w", ErrInvalidToken)
	}

	var session *sessions.Session
	var err error
	if sessionID != "" {
		session, err = s.sessions.Get(ctx, sessionID)
	}
	if sessionID == "" || errors.Is(err, sessions.ErrNotFound) {
		session, err = s.sessions.Create(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("auth.AdoptToken: %w", err)
	}

	session.AccessToken = accessToken
	session.Consent = persistent
	session.RefreshToken = ""
	if persistent {
		session.Tier = sessions.TierPersistent
	} else {
		session.Tier = sessions.TierEphemeral
	}

	if err := s.sessions.Set(ctx, session.ID, session); err != nil {
		return nil, fmt.Errorf("auth.AdoptToken: %w", err)
	}
	return session, nil
}

// UpdateConsent records a post-login change of the persistence choice.
// Revoking consent drops the stored tokens and downgrades the session to the
// ephemeral tier.
func (s *Service) UpdateConsent(ctx context.Context, sessionID string, consent bool) (*sessions.Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("auth.UpdateConsent: %w", err)
	}

	session.Consent = consent
	if !consent {
		session.AccessToken = ""
		session.RefreshToken = ""
		session.Tier = sessions.TierEphemeral
	}

	if err := s.sessions.Set(ctx, sessionID, session); err != nil {
		return nil, fmt.Errorf("auth.UpdateConsent: %w", err)
	}
	return session, nil
}
