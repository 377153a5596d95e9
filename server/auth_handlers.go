package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"armory/auth"
	"armory/bnet"
	"armory/sessions"
)

const contentTypeJSON = "application/json; charset=utf-8"

// validateResponse is the JSON shape of every session-status answer.
// Auth-negative outcomes are data (200 + flag), not HTTP errors.
type validateResponse struct {
	IsAuthenticated bool   `json:"isAuthenticated"`
	IsPersistent    bool   `json:"isPersistent"`
	Error           string `json:"error,omitempty"`
}

// AuthorizeHandler starts the browser OAuth flow and redirects to the
// identity provider. The session (with its CSRF state) is stored before the
// redirect is written.
func (s *Server) AuthorizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callback := r.URL.Query().Get("callback")
		consent := r.URL.Query().Get("consent") == "true"

		result, err := s.auth.Initiate(r.Context(), callback, consent)
		if err != nil {
			log.Error().Err(err).Msg("could not initiate oauth flow")
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}

		s.SetSessionCookie(w, r, result.SessionID, false)
		http.Redirect(w, r, result.RedirectURL, http.StatusFound)
	}
}

// CallbackHandler finishes the OAuth flow. Failures redirect back to the
// frontend with an error code; the browser never sees a raw error page for
// an expected auth failure.
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		sessionID := s.sessionIDFromRequest(r)

		outcome, err := s.auth.HandleCallback(r.Context(), sessionID, q.Get("state"), q.Get("code"), q.Get("error"))
		if err != nil {
			s.redirectCallbackError(w, r, outcome, err, q.Get("error"))
			return
		}

		s.SetSessionCookie(w, r, outcome.SessionID, outcome.Persistent)
		if outcome.Persistent && outcome.RefreshToken != "" {
			s.SetRefreshTokenCookie(w, r, outcome.RefreshToken)
		}

		redirectURL, err := url.Parse(outcome.FrontendCallback)
		if err != nil {
			log.Error().Err(err).Str("callback", outcome.FrontendCallback).Msg("bad frontend callback url")
			http.Error(w, "invalid callback url", http.StatusBadRequest)
			return
		}
		params := redirectURL.Query()
		params.Set("success", "true")
		params.Set("hasToken", "true")
		params.Set("persistentSession", boolString(outcome.Persistent))
		params.Set("sid", outcome.SessionID)
		redirectURL.RawQuery = params.Encode()

		http.Redirect(w, r, redirectURL.String(), http.StatusFound)
	}
}

func (s *Server) redirectCallbackError(w http.ResponseWriter, r *http.Request, outcome *auth.CallbackOutcome, err error, providerCode string) {
	target := s.config.HTTP.FrontendURL + "/auth/error"
	if outcome != nil && outcome.FrontendCallback != "" {
		target = outcome.FrontendCallback
	}

	code := "server_error"
	switch {
	case errors.Is(err, auth.ErrInvalidState):
		code = "invalid_state"
	case errors.Is(err, auth.ErrProviderDenied):
		code = providerCode
	case errors.Is(err, bnet.ErrUpstreamAuth):
		code = "exchange_failed"
	}

	redirectURL, parseErr := url.Parse(target)
	if parseErr != nil {
		http.Error(w, "authentication failed", http.StatusBadRequest)
		return
	}
	params := redirectURL.Query()
	params.Set("error", code)
	redirectURL.RawQuery = params.Encode()

	http.Redirect(w, r, redirectURL.String(), http.StatusFound)
}

// ValidateHandler reports authentication status for a presented session. The
// declared storage tier must match the session's actual tier.
func (s *Server) ValidateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := r.Header.Get(sessionIDHeader)
		storageType := r.Header.Get(storageTypeHeader)

		if sessionID == "" || storageType == "" {
			writeJSON(w, http.StatusOK, validateResponse{Error: auth.ReasonMissingSession})
			return
		}

		tier, ok := tierFromStorageType(storageType)
		if !ok {
			writeJSON(w, http.StatusOK, validateResponse{Error: auth.ReasonStorageMismatch})
			return
		}

		result, err := s.auth.Validate(r.Context(), sessionID, tier)
		if err != nil {
			log.Error().Err(err).Msg("session validation failed")
			writeJSON(w, http.StatusServiceUnavailable, validateResponse{Error: "service unavailable"})
			return
		}

		writeJSON(w, http.StatusOK, validateResponse{
			IsAuthenticated: result.Authenticated,
			IsPersistent:    result.Persistent,
			Error:           result.Reason,
		})
	}
}

// LogoutHandler destroys the session and clears the client's cookies.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := s.sessionIDFromRequest(r)

		if err := s.auth.Logout(r.Context(), sessionID); err != nil {
			log.Error().Err(err).Msg("logout failed")
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "logout failed"})
			return
		}

		s.ClearSessionCookie(w)
		s.ClearRefreshTokenCookie(w)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

// RefreshTokenHandler exchanges the refresh-token cookie for a fresh access
// token and rotates the cookie.
func (s *Server) RefreshTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(refreshCookieName)
		if err != nil || cookie.Value == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "no refresh token found"})
			return
		}

		token, err := s.auth.RefreshSession(r.Context(), s.sessionIDFromRequest(r), cookie.Value)
		if errors.Is(err, bnet.ErrUpstreamAuth) {
			s.ClearRefreshTokenCookie(w)
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "refresh token rejected"})
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("token refresh failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "service unavailable"})
			return
		}

		if token.RefreshToken != "" {
			s.SetRefreshTokenCookie(w, r, token.RefreshToken)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"token":     token.AccessToken,
			"expiresIn": token.ExpiresIn(),
		})
	}
}

// ExchangeTokenHandler adopts a caller-supplied access token into a session.
func (s *Server) ExchangeTokenHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Token             string `json:"token"`
			PersistentSession bool   `json:"persistentSession"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "no token provided"})
			return
		}

		session, err := s.auth.AdoptToken(r.Context(), s.sessionIDFromRequest(r), body.Token, body.PersistentSession)
		if errors.Is(err, auth.ErrInvalidToken) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid token"})
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("token exchange failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "service unavailable"})
			return
		}

		s.SetSessionCookie(w, r, session.ID, session.Tier.Persistent())
		writeJSON(w, http.StatusOK, validateResponse{
			IsAuthenticated: true,
			IsPersistent:    session.Tier.Persistent(),
		})
	}
}

// UpdateConsentHandler grants or revokes persistence consent after login.
func (s *Server) UpdateConsentHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Consent bool `json:"consent"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
			return
		}

		session, err := s.auth.UpdateConsent(r.Context(), s.sessionIDFromRequest(r), body.Consent)
		if errors.Is(err, sessions.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": auth.ReasonInvalidSession})
			return
		}
		if err != nil {
			log.Error().Err(err).Msg("consent update failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "service unavailable"})
			return
		}

		if body.Consent && session.RefreshToken != "" {
			s.SetRefreshTokenCookie(w, r, session.RefreshToken)
		}
		if !body.Consent {
			s.ClearRefreshTokenCookie(w)
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func tierFromStorageType(storageType string) (sessions.Tier, bool) {
	switch storageType {
	case "local":
		return sessions.TierPersistent, true
	case "session":
		return sessions.TierEphemeral, true
	default:
		return "", false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
