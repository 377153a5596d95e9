package bnet

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// AppTokenSource holds the process-wide client-credentials token used for
// non-user resource API calls. It is owned by the Client and injected into
// anything that needs app-level authorization; there is no package-level
// token state.
//
// The underlying oauth2.ReuseTokenSource serializes acquisition: concurrent
// callers either observe the current valid token or block behind exactly one
// network round trip for a replacement. It also renews the token a safety
// margin ahead of the provider-reported expiry, which absorbs clock skew
// against the provider.
type AppTokenSource struct {
	ts oauth2.TokenSource
}

// NewAppTokenSource builds the cached client-credentials source. The token is
// lazily acquired on first use.
func NewAppTokenSource(cfg Config, httpClient *http.Client) *AppTokenSource {
	cfg.applyDefaults()
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
	return &AppTokenSource{ts: cc.TokenSource(ctx)}
}

// Token returns a valid access token, acquiring or renewing one if needed.
func (a *AppTokenSource) Token() (string, error) {
	tok, err := a.ts.Token()
	if err != nil {
		return "", wrapTokenErr("bnet.AppToken", err)
	}
	return tok.AccessToken, nil
}
