// Package sessions defines the server-side session record and its storage
// contract. A session carries the OAuth round-trip state while a login is in
// flight and the upstream token pair afterwards.
package sessions

import "time"

// Tier is the session persistence tier, chosen once from the user's consent
// at callback time and never re-derived afterwards.
type Tier string

const (
	// TierEphemeral sessions last for the browser session only and never
	// hold a refresh token; an expired access token means interactive
	// re-authentication.
	TierEphemeral Tier = "ephemeral"
	// TierPersistent sessions survive browser closure: long store TTL and a
	// refresh token for transparent access-token renewal.
	TierPersistent Tier = "persistent"
)

// Persistent reports whether the tier survives browser closure.
func (t Tier) Persistent() bool { return t == TierPersistent }

// Session is the stored record behind an opaque session identifier.
//
// OAuthState exists only between the authorize redirect and the callback and
// is cleared on first verification, pass or fail. RefreshToken is present
// exactly when Tier is TierPersistent.
type Session struct {
	ID               string    `json:"id"`
	OAuthState       string    `json:"oauthState,omitempty"`
	FrontendCallback string    `json:"frontendCallback,omitempty"`
	AccessToken      string    `json:"accessToken,omitempty"`
	RefreshToken     string    `json:"refreshToken,omitempty"`
	Tier             Tier      `json:"tier"`
	Consent          bool      `json:"consent"`
	CreatedAt        time.Time `json:"createdAt"`
	LastTouchedAt    time.Time `json:"lastTouchedAt"`
}

// Authenticated reports whether the session holds an access token.
func (s *Session) Authenticated() bool { return s.AccessToken != "" }
