package http_test

import (
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/canopyml/appgate/internal/gateway/auth"
	"github.com/canopyml/appgate/pkg/cryptox"
	"github.com/canopyml/appgate/pkg/oidcsdk"
)

func mintIDToken(t *testing.T, nonce string) string {
	t.Helper()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "user-1",
		"nonce": nonce,
	}).SignedString([]byte("idp-key"))
	require.NoError(t, err)
	return signed
}

func mintTokenWithClaims(t *testing.T, extra jwt.MapClaims) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":                "user-1",
		"aud":                "gateway",
		"preferred_username": "user-1",
		"exp":                time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("idp-key"))
	require.NoError(t, err)
	return signed
}

func decodeRefreshBody(t *testing.T, resp *nethttp.Response) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestRefreshTokenSetWithoutCookie(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, nethttp.MethodPost, "/console/oidc/refresh-token-set")
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)

	body := decodeRefreshBody(t, resp)
	require.Contains(t, body["redirectUrl"], "/protocol/openid-connect/auth")
	require.NotContains(t, body, "accessToken")
}

func TestRefreshTokenSetExpiredRefreshToken(t *testing.T) {
	e := newEnv(t)

	stale := signedCookie(t, auth.CookieRefreshToken, mintToken(t, "user-1", time.Now().Add(-time.Minute)))
	resp := e.do(t, nethttp.MethodPost, "/console/oidc/refresh-token-set", stale)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)

	body := decodeRefreshBody(t, resp)
	require.Contains(t, body["redirectUrl"], "/protocol/openid-connect/auth")
}

func TestRefreshTokenSetRedirectCarriesRefererPage(t *testing.T) {
	e := newEnv(t)

	// The endpoint itself only answers POST; sending the browser back to
	// it after login would dead-end. The redirect returns to the page the
	// SPA called from.
	resp := e.doWithReferer(t, nethttp.MethodPost, "/console/oidc/refresh-token-set",
		"http://gateway.test/console/apps/jupyter-1/?tab=runs")
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)

	body := decodeRefreshBody(t, resp)
	loc, err := url.Parse(body["redirectUrl"].(string))
	require.NoError(t, err)

	redirectURI, err := url.Parse(loc.Query().Get("redirect_uri"))
	require.NoError(t, err)
	require.Equal(t, "/console/apps/jupyter-1/?tab=runs", redirectURI.Query().Get("backUrl"))
}

func TestRefreshTokenSetRedirectWithoutRefererUsesLanding(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, nethttp.MethodPost, "/console/oidc/refresh-token-set")
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)

	body := decodeRefreshBody(t, resp)
	loc, err := url.Parse(body["redirectUrl"].(string))
	require.NoError(t, err)

	redirectURI, err := url.Parse(loc.Query().Get("redirect_uri"))
	require.NoError(t, err)
	require.Equal(t, "/console/", redirectURI.Query().Get("backUrl"))
}

func TestRefreshTokenSetInvalidGrant(t *testing.T) {
	e := newEnv(t)
	e.setTokenHandler(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(nethttp.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
	})

	live := signedCookie(t, auth.CookieRefreshToken, mintToken(t, "user-1", time.Now().Add(24*time.Hour)))
	resp := e.do(t, nethttp.MethodPost, "/console/oidc/refresh-token-set", live)

	// A revoked session is a login problem, not a server error.
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	body := decodeRefreshBody(t, resp)
	require.Contains(t, body["redirectUrl"], "/protocol/openid-connect/auth")
}

func TestRefreshTokenSetSuccess(t *testing.T) {
	e := newEnv(t)

	newAccess := mintToken(t, "user-1", time.Now().Add(time.Hour))
	newRefresh := mintToken(t, "user-1", time.Now().Add(24*time.Hour))
	e.setTokenHandler(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(oidcsdk.TokenSet{
			AccessToken:  newAccess,
			RefreshToken: newRefresh,
			ExpiresIn:    300,
		})
	})

	live := signedCookie(t, auth.CookieRefreshToken, mintToken(t, "user-1", time.Now().Add(24*time.Hour)))
	resp := e.do(t, nethttp.MethodPost, "/console/oidc/refresh-token-set", live)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)

	body := decodeRefreshBody(t, resp)
	require.Equal(t, newAccess, body["accessToken"])
	require.NotContains(t, body, "redirectUrl")
	require.Greater(t, body["accessTokenExp"], float64(time.Now().Unix()))
	require.Greater(t, body["refreshTokenExp"], body["accessTokenExp"])

	require.NotNil(t, cookieByName(resp, auth.CookieAccessToken))
	require.NotNil(t, cookieByName(resp, auth.CookieRefreshToken))
}

func TestRefreshTokenSetProviderErrorPropagates(t *testing.T) {
	e := newEnv(t)
	e.setTokenHandler(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.WriteHeader(nethttp.StatusInternalServerError)
	})

	live := signedCookie(t, auth.CookieRefreshToken, mintToken(t, "user-1", time.Now().Add(24*time.Hour)))
	resp := e.do(t, nethttp.MethodPost, "/console/oidc/refresh-token-set", live)
	require.Equal(t, nethttp.StatusBadGateway, resp.StatusCode)
}

func TestCallbackSuccess(t *testing.T) {
	e := newEnv(t)

	secret := cryptox.MustGenerateToken(cryptox.TokenSize128)
	access := mintTokenWithClaims(t, jwt.MapClaims{"email": "user-1@example.com"})
	refresh := mintToken(t, "user-1", time.Now().Add(24*time.Hour))

	e.setTokenHandler(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		require.Equal(t, "code-123", r.PostForm.Get("code"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(oidcsdk.TokenSet{
			AccessToken:  access,
			RefreshToken: refresh,
			IDToken:      mintIDToken(t, cryptox.FingerprintToken(secret)),
			ExpiresIn:    300,
		})
	})

	resp := e.do(t, nethttp.MethodGet,
		"/console/oidc/callback?code=code-123&backUrl="+url.QueryEscape("/console/apps/jupyter-1/"),
		signedCookie(t, auth.CookieNonce, secret),
	)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(page), "/console/apps/jupyter-1/")

	for _, name := range []string{auth.CookieAccessToken, auth.CookieRefreshToken, auth.CookieUsername, auth.CookieThumbnail} {
		require.NotNil(t, cookieByName(resp, name), "expected %s cookie", name)
	}

	nonce := cookieByName(resp, auth.CookieNonce)
	require.NotNil(t, nonce)
	require.Negative(t, nonce.MaxAge, "nonce cookie must be cleared after the exchange")

	thumb := cookieByName(resp, auth.CookieThumbnail)
	require.Contains(t, thumb.Value, "gravatar.com/avatar/")
}

func TestCallbackNonceMismatchFallsBackToLogout(t *testing.T) {
	e := newEnv(t)

	secret := cryptox.MustGenerateToken(cryptox.TokenSize128)
	e.setTokenHandler(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(oidcsdk.TokenSet{
			AccessToken: mintToken(t, "user-1", time.Now().Add(time.Hour)),
			IDToken:     mintIDToken(t, "someone-elses-nonce"),
		})
	})

	resp := e.do(t, nethttp.MethodGet, "/console/oidc/callback?code=code-123",
		signedCookie(t, auth.CookieNonce, secret),
	)
	require.Equal(t, nethttp.StatusFound, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Location"), "/protocol/openid-connect/logout")
}

func TestCallbackWithoutNonceCookieRejected(t *testing.T) {
	e := newEnv(t)

	// A token endpoint that would happily complete the exchange; the
	// gateway must never get that far without its own nonce cookie.
	e.setTokenHandler(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(oidcsdk.TokenSet{
			AccessToken:  mintTokenWithClaims(t, nil),
			RefreshToken: mintToken(t, "user-1", time.Now().Add(24*time.Hour)),
			IDToken:      mintIDToken(t, "attacker-chosen-nonce"),
		})
	})

	resp := e.do(t, nethttp.MethodGet, "/console/oidc/callback?code=attacker-code")
	require.Equal(t, nethttp.StatusFound, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Location"), "/protocol/openid-connect/logout")

	// A forged callback must not leave the victim logged in as anyone.
	for _, c := range resp.Cookies() {
		require.Negative(t, c.MaxAge, "cookie %s must only ever be cleared here", c.Name)
	}
}

func TestRequestAPITokenCallbackWithoutNonceCookieRejected(t *testing.T) {
	e := newEnv(t)

	e.setTokenHandler(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(oidcsdk.TokenSet{
			AccessToken:  mintTokenWithClaims(t, nil),
			RefreshToken: mintToken(t, "user-1", time.Now().Add(30*24*time.Hour)),
			IDToken:      mintIDToken(t, "attacker-chosen-nonce"),
		})
	})

	resp := e.do(t, nethttp.MethodGet, "/console/oidc/request-api-token-callback?code=attacker-code")
	require.Equal(t, nethttp.StatusFound, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Location"), "/protocol/openid-connect/logout")
	require.Nil(t, cookieByName(resp, auth.CookieAPIToken))
}

func TestCallbackRejectsAbsoluteBackURL(t *testing.T) {
	e := newEnv(t)

	secret := cryptox.MustGenerateToken(cryptox.TokenSize128)
	e.setTokenHandler(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		require.NoError(t, r.ParseForm())
		// The poisoned backUrl never reaches the redirect URI.
		require.NotContains(t, r.PostForm.Get("redirect_uri"), "evil.example")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(oidcsdk.TokenSet{
			AccessToken:  mintTokenWithClaims(t, nil),
			RefreshToken: mintToken(t, "user-1", time.Now().Add(24*time.Hour)),
			IDToken:      mintIDToken(t, cryptox.FingerprintToken(secret)),
		})
	})

	resp := e.do(t, nethttp.MethodGet,
		"/console/oidc/callback?code=code-123&backUrl="+url.QueryEscape("https://evil.example/phish"),
		signedCookie(t, auth.CookieNonce, secret),
	)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)

	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NotContains(t, string(page), "evil.example")
}

func TestLogoutClearsEverything(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, nethttp.MethodGet, "/console/oidc/logout", loginCookies(t, "user-1")...)
	require.Equal(t, nethttp.StatusFound, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Location"), "/protocol/openid-connect/logout")
	require.Contains(t, resp.Header.Get("Location"), url.QueryEscape("/console/"))

	cleared := map[string]bool{}
	for _, c := range resp.Cookies() {
		if c.MaxAge < 0 {
			cleared[c.Name] = true
		}
	}
	for _, name := range []string{
		auth.CookieAccessToken, auth.CookieRefreshToken,
		auth.CookieUsername, auth.CookieThumbnail, auth.CookieNonce,
	} {
		require.True(t, cleared[name], "expected %s to be cleared", name)
	}
}

func TestRequestAPIToken(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, nethttp.MethodGet, "/console/oidc/request-api-token?backUrl="+url.QueryEscape("/console/api-token"))
	require.Equal(t, nethttp.StatusFound, resp.StatusCode)

	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/realms/canopy/protocol/openid-connect/auth", loc.Path)
	require.Contains(t, loc.Query().Get("scope"), "offline_access")
	require.Contains(t, loc.Query().Get("redirect_uri"), "request-api-token-callback")

	require.NotNil(t, cookieByName(resp, auth.CookieNonce))
}

func TestRequestAPITokenCallback(t *testing.T) {
	e := newEnv(t)

	secret := cryptox.MustGenerateToken(cryptox.TokenSize128)
	offline := mintToken(t, "user-1", time.Now().Add(30*24*time.Hour))

	e.setTokenHandler(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(oidcsdk.TokenSet{
			AccessToken:  mintTokenWithClaims(t, nil),
			RefreshToken: offline,
			IDToken:      mintIDToken(t, cryptox.FingerprintToken(secret)),
		})
	})

	resp := e.do(t, nethttp.MethodGet,
		"/console/oidc/request-api-token-callback?code=code-123&backUrl="+url.QueryEscape("/console/api-token"),
		signedCookie(t, auth.CookieNonce, secret),
	)
	require.Equal(t, nethttp.StatusFound, resp.StatusCode)
	require.Equal(t, "/console/api-token", resp.Header.Get("Location"))

	apiToken := cookieByName(resp, auth.CookieAPIToken)
	require.NotNil(t, apiToken)
	require.Equal(t, 60, apiToken.MaxAge)
}
