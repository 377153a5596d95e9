package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"armory/auth"
	"armory/bnet"
	"armory/internal/config"
	"armory/server"
	"armory/sessions"
	fakesessionrepo "armory/sessions/repofakes"

	"github.com/stretchr/testify/require"
)

const (
	testFrontendURL      = "http://localhost:4200"
	testFrontendCallback = "http://localhost:4200/auth/done"
	testAccessToken      = "access-token-1"
	testRefreshToken     = "refresh-token-1"
)

// fakeIdentityProvider implements auth.IdentityProvider for handler tests.
type fakeIdentityProvider struct {
	exchangeErr  error
	refreshErr   error
	validateFunc func(accessToken string) bool
}

func (f *fakeIdentityProvider) AuthCodeURL(state string) string {
	return "https://oauth.example.com/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeIdentityProvider) Exchange(_ context.Context, _ string) (*bnet.Token, error) {
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &bnet.Token{
		AccessToken:  testAccessToken,
		RefreshToken: testRefreshToken,
		Expiry:       time.Now().Add(24 * time.Hour),
	}, nil
}

func (f *fakeIdentityProvider) Refresh(_ context.Context, _ string) (*bnet.Token, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &bnet.Token{
		AccessToken:  "refreshed-access-token",
		RefreshToken: "refreshed-refresh-token",
		Expiry:       time.Now().Add(24 * time.Hour),
	}, nil
}

func (f *fakeIdentityProvider) ValidateToken(_ context.Context, _ string) bool {
	if f.validateFunc != nil {
		return f.validateFunc("")
	}
	return true
}

type testFixture struct {
	server      *server.Server
	sessionRepo *fakesessionrepo.FakeSessionRepo
	idp         *fakeIdentityProvider
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()

	cfg := &config.Config{
		Env: "development",
		HTTP: config.HTTPConfig{
			Port:           "3000",
			FrontendURL:    testFrontendURL,
			AllowedOrigins: []string{testFrontendURL},
		},
		Sessions: config.SessionConfig{
			PersistentTTL: 720 * time.Hour,
			EphemeralTTL:  24 * time.Hour,
		},
	}

	sr := fakesessionrepo.NewFakeSessionRepo()
	idp := &fakeIdentityProvider{}

	authService, err := auth.NewService(sr, idp, testFrontendURL+"/auth/callback")
	require.NoError(t, err)

	srv, err := server.New(cfg, authService, sr, nil)
	require.NoError(t, err)

	return &testFixture{server: srv, sessionRepo: sr, idp: idp}
}

// do runs a request through the full middleware chain.
func (f *testFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

// login walks authorize + callback and returns the authenticated session.
func (f *testFixture) login(t *testing.T, consent bool) *sessions.Session {
	t.Helper()

	rec := f.do(httptest.NewRequest(http.MethodGet,
		"/auth/bnet?callback="+url.QueryEscape(testFrontendCallback)+"&consent="+boolQuery(consent), nil))
	require.Equal(t, http.StatusFound, rec.Code)

	sessionID := cookieValue(t, rec, "wcv.sid")
	session, err := f.sessionRepo.Get(context.Background(), sessionID)
	require.NoError(t, err)

	callbackReq := httptest.NewRequest(http.MethodGet,
		"/auth/callback?code=auth-code-1&state="+url.QueryEscape(session.OAuthState), nil)
	callbackReq.AddCookie(&http.Cookie{Name: "wcv.sid", Value: sessionID})
	rec = f.do(callbackReq)
	require.Equal(t, http.StatusFound, rec.Code)

	session, err = f.sessionRepo.Get(context.Background(), sessionID)
	require.NoError(t, err)
	return session
}

func cookieValue(t *testing.T, rec *httptest.ResponseRecorder, name string) string {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	t.Fatalf("cookie %q not set", name)
	return ""
}

func boolQuery(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestAuthorize_RedirectsToProviderWithSessionCookie(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/auth/bnet?consent=true", nil))

	require.Equal(t, http.StatusFound, rec.Code)

	sessionID := cookieValue(t, rec, "wcv.sid")
	session, err := f.sessionRepo.Get(context.Background(), sessionID)
	require.NoError(t, err)
	require.NotEmpty(t, session.OAuthState)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "oauth.example.com", location.Host)
	require.Equal(t, session.OAuthState, location.Query().Get("state"))
}

func TestCallback_SuccessRedirectsToFrontend(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet,
		"/auth/bnet?callback="+url.QueryEscape(testFrontendCallback)+"&consent=true", nil))
	sessionID := cookieValue(t, rec, "wcv.sid")
	session, err := f.sessionRepo.Get(context.Background(), sessionID)
	require.NoError(t, err)

	callbackReq := httptest.NewRequest(http.MethodGet,
		"/auth/callback?code=auth-code-1&state="+url.QueryEscape(session.OAuthState), nil)
	callbackReq.AddCookie(&http.Cookie{Name: "wcv.sid", Value: sessionID})
	rec = f.do(callbackReq)

	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(location.String(), testFrontendCallback))
	require.Equal(t, "true", location.Query().Get("success"))
	require.Equal(t, "true", location.Query().Get("persistentSession"))
	require.Equal(t, sessionID, location.Query().Get("sid"))
	require.Equal(t, testRefreshToken, cookieValue(t, rec, "bnet_refresh_token"))
}

func TestCallback_EphemeralSessionGetsNoRefreshCookie(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet,
		"/auth/bnet?callback="+url.QueryEscape(testFrontendCallback)+"&consent=false", nil))
	sessionID := cookieValue(t, rec, "wcv.sid")
	session, err := f.sessionRepo.Get(context.Background(), sessionID)
	require.NoError(t, err)

	callbackReq := httptest.NewRequest(http.MethodGet,
		"/auth/callback?code=auth-code-1&state="+url.QueryEscape(session.OAuthState), nil)
	callbackReq.AddCookie(&http.Cookie{Name: "wcv.sid", Value: sessionID})
	rec = f.do(callbackReq)

	require.Equal(t, http.StatusFound, rec.Code)
	for _, c := range rec.Result().Cookies() {
		require.NotEqual(t, "bnet_refresh_token", c.Name, "refresh tokens never reach the browser without consent")
	}
}

func TestCallback_StateMismatchRedirectsWithError(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet,
		"/auth/bnet?callback="+url.QueryEscape(testFrontendCallback), nil))
	sessionID := cookieValue(t, rec, "wcv.sid")

	callbackReq := httptest.NewRequest(http.MethodGet,
		"/auth/callback?code=auth-code-1&state=forged-state", nil)
	callbackReq.AddCookie(&http.Cookie{Name: "wcv.sid", Value: sessionID})
	rec = f.do(callbackReq)

	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(location.String(), testFrontendCallback))
	require.Equal(t, "invalid_state", location.Query().Get("error"))
}

func TestCallback_WithoutSessionRedirectsToErrorPage(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/auth/callback?code=x&state=y", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, testFrontendURL+"/auth/error", location.Scheme+"://"+location.Host+location.Path)
	require.Equal(t, "invalid_state", location.Query().Get("error"))
}

func TestCallback_ProviderDenialCarriesProviderCode(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet,
		"/auth/bnet?callback="+url.QueryEscape(testFrontendCallback), nil))
	sessionID := cookieValue(t, rec, "wcv.sid")

	callbackReq := httptest.NewRequest(http.MethodGet, "/auth/callback?error=access_denied", nil)
	callbackReq.AddCookie(&http.Cookie{Name: "wcv.sid", Value: sessionID})
	rec = f.do(callbackReq)

	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "access_denied", location.Query().Get("error"))
}

func TestValidate_AuthenticatedSession(t *testing.T) {
	f := setupTestFixture(t)
	session := f.login(t, true)

	req := httptest.NewRequest(http.MethodGet, "/auth/validate", nil)
	req.Header.Set("X-Session-Id", session.ID)
	req.Header.Set("X-Storage-Type", "local")
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, true, body["isAuthenticated"])
	require.Equal(t, true, body["isPersistent"])
	require.NotContains(t, body, "error")
}

func TestValidate_MissingHeaders(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/auth/validate", nil))

	require.Equal(t, http.StatusOK, rec.Code, "a missing session is an expected outcome, not an HTTP error")
	body := decodeBody(t, rec)
	require.Equal(t, false, body["isAuthenticated"])
	require.Equal(t, "missing session information", body["error"])
}

func TestValidate_StorageTypeMismatch(t *testing.T) {
	f := setupTestFixture(t)
	session := f.login(t, true) // persistent session

	req := httptest.NewRequest(http.MethodGet, "/auth/validate", nil)
	req.Header.Set("X-Session-Id", session.ID)
	req.Header.Set("X-Storage-Type", "session")
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, false, body["isAuthenticated"])
	require.Equal(t, "storage type mismatch", body["error"])
}

func TestValidate_UnknownStorageType(t *testing.T) {
	f := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/validate", nil)
	req.Header.Set("X-Session-Id", "some-session")
	req.Header.Set("X-Storage-Type", "indexeddb")
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "storage type mismatch", body["error"])
}

func TestLogout_DestroysSessionAndClearsCookies(t *testing.T) {
	f := setupTestFixture(t)
	session := f.login(t, true)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "wcv.sid", Value: session.ID})
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decodeBody(t, rec)["success"])

	_, err := f.sessionRepo.Get(context.Background(), session.ID)
	require.ErrorIs(t, err, sessions.ErrNotFound)

	for _, c := range rec.Result().Cookies() {
		if c.Name == "wcv.sid" || c.Name == "bnet_refresh_token" {
			require.Equal(t, -1, c.MaxAge)
		}
	}
}

func TestLogout_WithoutSessionSucceeds(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decodeBody(t, rec)["success"])
}

func TestRefreshToken_RotatesCookieAndReturnsToken(t *testing.T) {
	f := setupTestFixture(t)
	session := f.login(t, true)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: "wcv.sid", Value: session.ID})
	req.AddCookie(&http.Cookie{Name: "bnet_refresh_token", Value: session.RefreshToken})
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, true, body["success"])
	require.Equal(t, "refreshed-access-token", body["token"])
	require.Contains(t, body, "expiresIn")

	require.Equal(t, "refreshed-refresh-token", cookieValue(t, rec, "bnet_refresh_token"))

	stored, err := f.sessionRepo.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, "refreshed-access-token", stored.AccessToken)
}

func TestRefreshToken_MissingCookie(t *testing.T) {
	f := setupTestFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodPost, "/auth/refresh-token", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, false, decodeBody(t, rec)["success"])
}

func TestRefreshToken_RejectedUpstreamClearsCookie(t *testing.T) {
	f := setupTestFixture(t)
	f.idp.refreshErr = bnet.ErrUpstreamAuth

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: "bnet_refresh_token", Value: "revoked-token"})
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code, "a rejected refresh is an expected outcome")
	require.Equal(t, false, decodeBody(t, rec)["success"])
	for _, c := range rec.Result().Cookies() {
		if c.Name == "bnet_refresh_token" {
			require.Equal(t, -1, c.MaxAge)
		}
	}
}

func TestExchangeToken_AdoptsTokenIntoNewSession(t *testing.T) {
	f := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/exchange-token",
		strings.NewReader(`{"token":"externally-acquired-token","persistentSession":true}`))
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, true, body["isAuthenticated"])
	require.Equal(t, true, body["isPersistent"])

	sessionID := cookieValue(t, rec, "wcv.sid")
	stored, err := f.sessionRepo.Get(context.Background(), sessionID)
	require.NoError(t, err)
	require.Equal(t, "externally-acquired-token", stored.AccessToken)
	require.Equal(t, sessions.TierPersistent, stored.Tier)
}

func TestExchangeToken_MissingToken(t *testing.T) {
	f := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/exchange-token", strings.NewReader(`{}`))
	rec := f.do(req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExchangeToken_InvalidToken(t *testing.T) {
	f := setupTestFixture(t)
	f.idp.validateFunc = func(string) bool { return false }

	req := httptest.NewRequest(http.MethodPost, "/auth/exchange-token",
		strings.NewReader(`{"token":"stale-token"}`))
	rec := f.do(req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateConsent_RevocationClearsRefreshCookie(t *testing.T) {
	f := setupTestFixture(t)
	session := f.login(t, true)

	req := httptest.NewRequest(http.MethodPost, "/auth/update-consent",
		strings.NewReader(`{"consent":false}`))
	req.AddCookie(&http.Cookie{Name: "wcv.sid", Value: session.ID})
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, decodeBody(t, rec)["success"])
	require.Empty(t, cookieValue(t, rec, "bnet_refresh_token"))

	stored, err := f.sessionRepo.Get(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, sessions.TierEphemeral, stored.Tier)
	require.Empty(t, stored.RefreshToken)
}

func TestUpdateConsent_UnknownSession(t *testing.T) {
	f := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/auth/update-consent",
		strings.NewReader(`{"consent":true}`))
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, false, body["success"])
	require.Equal(t, "invalid session", body["error"])
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	f := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/validate", nil)
	req.Header.Set("Origin", testFrontendURL)
	rec := f.do(req)

	require.Equal(t, testFrontendURL, rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_RejectsUnknownOrigin(t *testing.T) {
	f := setupTestFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/validate", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := f.do(req)

	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
