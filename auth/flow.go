package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"armory/sessions"
)

// stateLength is the number of random bytes behind the state parameter.
// 32 bytes = 256 bits of entropy.
const stateLength = 32

// InitiateResult is what the authorize handler needs to send the browser on
// its way: the provider redirect and the session the flow is bound to.
type InitiateResult struct {
	RedirectURL string
	SessionID   string
}

// CallbackOutcome reports where the browser should land after the callback.
// It is returned whenever a redirect target is known, including on rejected
// callbacks, so the handler can bounce the user back to the frontend with an
// error code instead of a bare status page.
type CallbackOutcome struct {
	SessionID        string
	FrontendCallback string
	Persistent       bool

	// RefreshToken is set only for persistent outcomes, for the handler to
	// hand to the browser as a cookie.
	RefreshToken string
}

// Initiate starts a login attempt: it creates a session holding a fresh CSRF
// state, the frontend return URL and the consent choice, and returns the
// provider authorize URL.
//
// The session write is acknowledged by the store before the redirect URL is
// returned. Responding first and writing asynchronously is how callbacks end
// up racing their own state and must not be reintroduced.
func (s *Service) Initiate(ctx context.Context, frontendCallback string, consent bool) (*InitiateResult, error) {
	session, err := s.sessions.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth.Initiate: %w", err)
	}

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("auth.Initiate: %w", err)
	}

	if frontendCallback == "" {
		frontendCallback = s.defaultCallback
	}

	session.OAuthState = state
	session.FrontendCallback = frontendCallback
	session.Consent = consent

	if err := s.sessions.Set(ctx, session.ID, session); err != nil {
		return nil, fmt.Errorf("auth.Initiate: %w", err)
	}

	log.Debug().
		Str("sessionID", session.ID).
		Bool("consent", consent).
		Msg("issued oauth state")

	return &InitiateResult{
		RedirectURL: s.idp.AuthCodeURL(state),
		SessionID:   session.ID,
	}, nil
}

// HandleCallback finishes (or rejects) a login attempt.
//
// Order matters: the stored state is cleared and the clear persisted before
// the code exchange, so the state is single-use even if the process dies
// mid-exchange. The state check itself is unconditional — there is no
// environment under which it is relaxed.
func (s *Service) HandleCallback(ctx context.Context, sessionID, receivedState, code, providerErr string) (*CallbackOutcome, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, sessions.ErrNotFound) {
		log.Warn().Str("sessionID", sessionID).Msg("oauth callback for unknown session")
		return nil, fmt.Errorf("auth.HandleCallback: %w", ErrInvalidState)
	}
	if err != nil {
		return nil, fmt.Errorf("auth.HandleCallback: %w", err)
	}

	outcome := &CallbackOutcome{
		SessionID:        sessionID,
		FrontendCallback: session.FrontendCallback,
	}

	if providerErr != "" {
		log.Warn().
			Str("sessionID", sessionID).
			Str("providerError", providerErr).
			Msg("provider rejected authorization")
		return outcome, fmt.Errorf("auth.HandleCallback: %w: %s", ErrProviderDenied, providerErr)
	}

	// Single-use: the stored state is spent by this verification attempt,
	// pass or fail, and the deletion is persisted before the exchange.
	storedState := session.OAuthState
	session.OAuthState = ""
	if err := s.sessions.Set(ctx, sessionID, session); err != nil {
		return outcome, fmt.Errorf("auth.HandleCallback: %w", err)
	}

	if !stateMatches(storedState, receivedState) {
		log.Warn().
			Str("sessionID", sessionID).
			Str("received", receivedState).
			Str("stored", storedState).
			Msg("oauth state mismatch")
		return outcome, fmt.Errorf("auth.HandleCallback: %w", ErrInvalidState)
	}

	token, err := s.idp.Exchange(ctx, code)
	if err != nil {
		// Authorization codes are single-use; the same code will never
		// succeed on retry.
		return outcome, fmt.Errorf("auth.HandleCallback: %w", err)
	}

	session.AccessToken = token.AccessToken
	if session.Consent {
		session.Tier = sessions.TierPersistent
		session.RefreshToken = token.RefreshToken
	} else {
		session.Tier = sessions.TierEphemeral
		session.RefreshToken = ""
	}

	if err := s.sessions.Set(ctx, sessionID, session); err != nil {
		return outcome, fmt.Errorf("auth.HandleCallback: %w", err)
	}

	outcome.Persistent = session.Tier.Persistent()
	outcome.RefreshToken = session.RefreshToken

	log.Info().
		Str("sessionID", sessionID).
		Bool("persistent", outcome.Persistent).
		Msg("login completed")

	return outcome, nil
}

// Logout destroys the session. Destroying an already-absent session is fine.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Destroy(ctx, sessionID); err != nil {
		return fmt.Errorf("auth.Logout: %w", err)
	}
	return nil
}

func generateState() (string, error) {
	b := make([]byte, stateLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generateState: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// stateMatches compares the stored and received state byte-for-byte in
// constant time. Empty values never match anything.
func stateMatches(stored, received string) bool {
	if stored == "" || received == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(received)) == 1
}
