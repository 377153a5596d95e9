// Package bnet wraps the Battle.net OAuth2 endpoints and the bearer-auth
// resource API. It is the only package that talks to the identity provider.
package bnet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const defaultHTTPTimeout = 10 * time.Second

// Config configures the Battle.net client. The URL fields default from the
// region and exist so tests can point the client at a local provider.
type Config struct {
	Region       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	AuthURL       string
	TokenURL      string
	CheckTokenURL string
	APIBaseURL    string

	HTTPTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Region == "" {
		c.Region = "eu"
	}
	if c.AuthURL == "" {
		c.AuthURL = "https://oauth.battle.net/authorize"
	}
	if c.TokenURL == "" {
		c.TokenURL = "https://oauth.battle.net/token"
	}
	if c.CheckTokenURL == "" {
		c.CheckTokenURL = "https://oauth.battle.net/oauth/check_token"
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = fmt.Sprintf("https://%s.api.blizzard.com", c.Region)
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = defaultHTTPTimeout
	}
	if len(c.Scopes) == 0 {
		c.Scopes = []string{"wow.profile"}
	}
}

// Token is an upstream token pair. Battle.net tokens are opaque strings.
type Token struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// ExpiresIn returns the remaining token lifetime in whole seconds.
func (t *Token) ExpiresIn() int {
	return int(time.Until(t.Expiry).Seconds())
}

// Client calls the Battle.net OAuth2 token endpoints and the resource API.
type Client struct {
	cfg   Config
	oauth *oauth2.Config
	http  *http.Client
	app   *AppTokenSource
}

// New validates the credentials and builds a client. A missing client id,
// secret or redirect URL is a startup-time configuration error.
func New(cfg Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("bnet.New: client id is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("bnet.New: client secret is required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("bnet.New: redirect url is required")
	}
	cfg.applyDefaults()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	c := &Client{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
				// Battle.net wants the client credentials as HTTP Basic auth
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		http: httpClient,
	}
	c.app = NewAppTokenSource(cfg, httpClient)
	return c, nil
}

// AuthCodeURL builds the provider authorize URL for the given CSRF state.
// Pure string construction, no network call.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange swaps an authorization code for a token pair. Authorization codes
// are single-use, so a failed exchange is never retried.
func (c *Client) Exchange(ctx context.Context, code string) (*Token, error) {
	tok, err := c.oauth.Exchange(c.withHTTPClient(ctx), code)
	if err != nil {
		return nil, wrapTokenErr("bnet.Exchange", err)
	}
	return fromOAuth2Token(tok), nil
}

// Refresh obtains a new token pair from a refresh token. An ErrUpstreamAuth
// result means the refresh token is spent or revoked and the user has to
// re-authenticate interactively.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Token, error) {
	ts := c.oauth.TokenSource(c.withHTTPClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := ts.Token()
	if err != nil {
		return nil, wrapTokenErr("bnet.Refresh", err)
	}
	return fromOAuth2Token(tok), nil
}

// ValidateToken asks the provider's introspection endpoint whether the access
// token is still good. An invalid token is an expected outcome, so every
// failure mode (including transport errors) reports false rather than an
// error.
func (c *Client) ValidateToken(ctx context.Context, accessToken string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.CheckTokenURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// AppToken returns the cached client-credentials token for server-to-server
// resource API calls, acquiring a new one only when the cached token has
// expired.
func (c *Client) AppToken() (string, error) {
	return c.app.Token()
}

// GetGameData performs an app-authorized GET against the resource API and
// returns the raw JSON body. The namespace defaults from the path the same
// way the upstream API families are organized (profile, dynamic, static).
func (c *Client) GetGameData(ctx context.Context, path, namespace string, params url.Values) ([]byte, error) {
	token, err := c.AppToken()
	if err != nil {
		return nil, fmt.Errorf("bnet.GetGameData: %w", err)
	}

	if namespace == "" {
		namespace = defaultNamespace(path)
	}
	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	q.Set("namespace", namespace+"-"+c.cfg.Region)
	q.Set("locale", "en_US")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("bnet.GetGameData: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bnet.GetGameData %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("bnet.GetGameData %s: %w: status %d", path, ErrUpstreamAuth, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bnet.GetGameData %s: unexpected status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("bnet.GetGameData %s: %w", path, err)
	}
	return body, nil
}

// withHTTPClient makes the oauth2 transport use our timeout-bound client.
func (c *Client) withHTTPClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http)
}

func fromOAuth2Token(tok *oauth2.Token) *Token {
	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
}

// wrapTokenErr maps a provider rejection (non-2xx token response) to
// ErrUpstreamAuth and leaves transport faults as plain wrapped errors.
func wrapTokenErr(op string, err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		return fmt.Errorf("%s: %w: status %d", op, ErrUpstreamAuth, rerr.Response.StatusCode)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func defaultNamespace(path string) string {
	switch {
	case strings.Contains(path, "/profile/"):
		return "profile"
	case strings.Contains(path, "mythic-keystone"):
		return "dynamic"
	default:
		return "static"
	}
}
