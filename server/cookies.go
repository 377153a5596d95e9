package server

import "net/http"

const (
	// sessionCookieName carries the opaque session identifier.
	sessionCookieName = "wcv.sid"
	// refreshCookieName carries the upstream refresh token for the
	// refresh-token endpoint.
	refreshCookieName = "bnet_refresh_token"

	// sessionIDHeader / storageTypeHeader are the explicit-header transport
	// used by API clients instead of cookies.
	sessionIDHeader   = "X-Session-Id"
	storageTypeHeader = "X-Storage-Type"
)

func (s *Server) sameSite() http.SameSite {
	if s.config.IsProduction() {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}

// SetSessionCookie writes the session identifier cookie. Persistent sessions
// get the full store TTL as max-age; ephemeral ones stay browser-session
// scoped regardless of the record's retention in the store.
func (s *Server) SetSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string, persistent bool) {
	maxAge := 0 // browser-session cookie
	if persistent {
		maxAge = int(s.config.Sessions.PersistentTTL.Seconds())
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.config.IsProduction() || getScheme(r) == "https",
		SameSite: s.sameSite(),
		MaxAge:   maxAge,
	})
}

func (s *Server) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

func (s *Server) SetRefreshTokenCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.config.IsProduction() || getScheme(r) == "https",
		SameSite: s.sameSite(),
		MaxAge:   int(s.config.Sessions.PersistentTTL.Seconds()),
	})
}

func (s *Server) ClearRefreshTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   refreshCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// sessionIDFromRequest reads the session identifier from the explicit header
// or, failing that, the session cookie.
func (s *Server) sessionIDFromRequest(r *http.Request) string {
	if id := r.Header.Get(sessionIDHeader); id != "" {
		return id
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
