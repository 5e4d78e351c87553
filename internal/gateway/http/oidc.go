package http

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/canopyml/appgate/internal/gateway/auth"
	"github.com/canopyml/appgate/pkg/cryptox"
	"github.com/canopyml/appgate/pkg/httpx"
	"github.com/canopyml/appgate/pkg/oidcsdk"
	"github.com/canopyml/appgate/pkg/slogx"
	"github.com/canopyml/appgate/pkg/token"
)

// apiTokenTTL is how long the one-shot apiToken cookie lives. Just long
// enough for the SPA to read it after the callback redirect.
const apiTokenTTL = 60 * time.Second

// OIDCHandler serves the login callback, token refresh, logout, and the
// API token flow.
type OIDCHandler struct {
	Gate     *auth.Gate
	Provider *oidcsdk.Client

	CookieKey  []byte
	CookiePath string

	// LandingPath is the default backUrl when the provider sent none.
	LandingPath string

	// APITokenRedirectURI is the absolute URL of the request-api-token
	// callback, registered with the provider alongside the main one.
	APITokenRedirectURI string
}

// loginPage hands the fresh access token to the SPA and forwards the
// browser to where it was headed. Cookies alone would do for the proxy
// paths, but the SPA keeps the token in memory for its own API calls.
var loginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Signing in…</title></head>
<body>
<script>
window.localStorage.setItem('canopy.accessToken', {{.AccessToken}});
window.location.replace({{.BackURL}});
</script>
</body>
</html>`))

// HandleCallback godoc
//
//	@Summary		OIDC Login Callback
//	@Description	Redeems the authorization code, validates the login nonce, sets the
//	@Description	token cookies, and hands control back to the SPA.
//	@Tags			OIDC
//	@Produce		html
//	@Param			code	query		string	true	"Authorization code"
//	@Param			backUrl	query		string	false	"Path to return to after login"
//	@Success		200		{string}	string	"login completion page"
//	@Failure		302		{string}	string	"exchange failed; logout flow"
//	@Router			/oidc/callback [get].
func (h *OIDCHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	jar := httpx.NewJar(w, r, h.CookieKey)
	log := slogx.FromContext(r.Context())

	backURL := sanitizeBackURL(r.URL.Query().Get("backUrl"), h.LandingPath)
	code := r.URL.Query().Get("code")

	// No nonce cookie means this flow was not started by the gate; the
	// code in the URL could be anyone's. Refuse it like a failed exchange.
	secret, ok := jar.GetSigned(auth.CookieNonce)
	if !ok {
		log.Warn("callback without a login nonce cookie")
		h.clearAuthCookies(jar)
		http.Redirect(w, r, h.Provider.EndSessionURL(absoluteURL(r, h.LandingPath)), http.StatusFound)
		return
	}

	ts, err := h.Provider.Exchange(r.Context(), code,
		h.Provider.CallbackRedirectURI(backURL), cryptox.FingerprintToken(secret))
	if err != nil {
		// A failed exchange leaves the browser with half a login. Tear
		// it all down and start over from the provider.
		log.Warn("code exchange failed", "error", err)
		h.clearAuthCookies(jar)
		http.Redirect(w, r, h.Provider.EndSessionURL(absoluteURL(r, h.LandingPath)), http.StatusFound)
		return
	}

	access, err := token.Parse(ts.AccessToken, h.Provider.ClientID())
	if err != nil {
		log.Error("provider returned unparseable access token", "error", err)
		httpx.WriteJSON(w, http.StatusBadGateway, map[string]string{
			"error": "identity provider returned a malformed token",
		})
		return
	}

	jar.Set(auth.CookieAccessToken, ts.AccessToken, httpx.CookieOpts{Path: h.CookiePath, Signed: true})
	jar.Set(auth.CookieRefreshToken, ts.RefreshToken, httpx.CookieOpts{Path: h.CookiePath, Signed: true})
	jar.Set(auth.CookieUsername, access.PreferredUsername(), httpx.CookieOpts{Path: h.CookiePath, Signed: true})
	jar.Set(auth.CookieThumbnail, gravatarURL(access.Email()), httpx.CookieOpts{Path: h.CookiePath, Signed: true})
	jar.Clear(auth.CookieNonce, h.CookiePath)

	httpx.NoCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = loginPage.Execute(w, map[string]string{
		"AccessToken": ts.AccessToken,
		"BackURL":     backURL,
	})
}

type refreshResponse struct {
	RedirectURL     string `json:"redirectUrl,omitempty"`
	AccessToken     string `json:"accessToken,omitempty"`
	AccessTokenExp  int64  `json:"accessTokenExp,omitempty"`
	RefreshTokenExp int64  `json:"refreshTokenExp,omitempty"`
}

// HandleRefreshTokenSet godoc
//
//	@Summary		Refresh Token Set
//	@Description	Rotates the token cookies using the refresh token. A missing, expired,
//	@Description	or provider-rejected refresh token is not an error: the response carries
//	@Description	a redirectUrl and the SPA sends the browser back through login.
//	@Tags			OIDC
//	@Produce		json
//	@Success		200	{object}	refreshResponse
//	@Failure		502	{object}	map[string]string	"identity provider failure"
//	@Router			/oidc/refresh-token-set [post].
func (h *OIDCHandler) HandleRefreshTokenSet(w http.ResponseWriter, r *http.Request) {
	jar := httpx.NewJar(w, r, h.CookieKey)
	log := slogx.FromContext(r.Context())

	refreshRaw, ok := jar.GetSigned(auth.CookieRefreshToken)
	if !ok {
		httpx.WriteJSON(w, http.StatusOK, refreshResponse{RedirectURL: h.loginURL(r, jar)})
		return
	}
	if refresh, err := token.Parse(refreshRaw, h.Provider.ClientID()); err != nil || refresh.IsExpired() {
		httpx.WriteJSON(w, http.StatusOK, refreshResponse{RedirectURL: h.loginURL(r, jar)})
		return
	}

	ts, err := h.Provider.Refresh(r.Context(), refreshRaw)
	if err != nil {
		if oidcsdk.IsInvalidGrant(err) {
			httpx.WriteJSON(w, http.StatusOK, refreshResponse{RedirectURL: h.loginURL(r, jar)})
			return
		}

		log.Error("refresh grant failed", "error", err)
		var pe *oidcsdk.ProviderError
		if errors.As(err, &pe) {
			httpx.WriteJSON(w, http.StatusBadGateway, map[string]string{
				"error":             pe.Code,
				"error_description": pe.Description,
			})
			return
		}
		httpx.WriteJSON(w, http.StatusBadGateway, map[string]string{
			"error": "identity provider unavailable",
		})
		return
	}

	access, err := token.Parse(ts.AccessToken, h.Provider.ClientID())
	if err != nil {
		log.Error("provider returned unparseable access token", "error", err)
		httpx.WriteJSON(w, http.StatusBadGateway, map[string]string{
			"error": "identity provider returned a malformed token",
		})
		return
	}
	refresh, err := token.Parse(ts.RefreshToken, h.Provider.ClientID())
	if err != nil {
		log.Error("provider returned unparseable refresh token", "error", err)
		httpx.WriteJSON(w, http.StatusBadGateway, map[string]string{
			"error": "identity provider returned a malformed token",
		})
		return
	}

	jar.Set(auth.CookieAccessToken, ts.AccessToken, httpx.CookieOpts{Path: h.CookiePath, Signed: true})
	jar.Set(auth.CookieRefreshToken, ts.RefreshToken, httpx.CookieOpts{Path: h.CookiePath, Signed: true})

	httpx.WriteJSON(w, http.StatusOK, refreshResponse{
		AccessToken:     ts.AccessToken,
		AccessTokenExp:  access.ExpiresUnix(),
		RefreshTokenExp: refresh.ExpiresUnix(),
	})
}

// HandleLogout godoc
//
//	@Summary		Logout
//	@Description	Clears every auth cookie and redirects to the provider's end-session
//	@Description	endpoint, which sends the browser back to the landing page.
//	@Tags			OIDC
//	@Success		302	{string}	string	"redirect to provider logout"
//	@Router			/oidc/logout [get].
func (h *OIDCHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	jar := httpx.NewJar(w, r, h.CookieKey)
	h.clearAuthCookies(jar)

	httpx.NoCache(w)
	http.Redirect(w, r, h.Provider.EndSessionURL(absoluteURL(r, h.LandingPath)), http.StatusFound)
}

// HandleRequestAPIToken godoc
//
//	@Summary		Request API Token
//	@Description	Starts an authorization flow with the offline_access scope so the
//	@Description	callback can hand the SPA a long-lived offline token.
//	@Tags			OIDC
//	@Param			backUrl	query		string	false	"Path to return to"
//	@Success		302		{string}	string	"redirect to provider login"
//	@Router			/oidc/request-api-token [get].
func (h *OIDCHandler) HandleRequestAPIToken(w http.ResponseWriter, r *http.Request) {
	jar := httpx.NewJar(w, r, h.CookieKey)

	secret := cryptox.MustGenerateToken(cryptox.TokenSize128)
	jar.Set(auth.CookieNonce, secret, httpx.CookieOpts{Path: h.CookiePath, Signed: true})

	httpx.NoCache(w)
	http.Redirect(w, r, h.Provider.AuthorizationURL(oidcsdk.AuthRequest{
		BackURL:     sanitizeBackURL(r.URL.Query().Get("backUrl"), h.LandingPath),
		RedirectURI: h.APITokenRedirectURI,
		Nonce:       cryptox.FingerprintToken(secret),
		Scopes:      []string{"offline_access"},
	}), http.StatusFound)
}

// HandleRequestAPITokenCallback godoc
//
//	@Summary		API Token Callback
//	@Description	Redeems the code from the offline_access flow and parks the offline
//	@Description	token in a short-lived apiToken cookie for the SPA to collect.
//	@Tags			OIDC
//	@Param			code	query		string	true	"Authorization code"
//	@Param			backUrl	query		string	false	"Path to return to"
//	@Success		302		{string}	string	"redirect back to the SPA"
//	@Router			/oidc/request-api-token-callback [get].
func (h *OIDCHandler) HandleRequestAPITokenCallback(w http.ResponseWriter, r *http.Request) {
	jar := httpx.NewJar(w, r, h.CookieKey)
	log := slogx.FromContext(r.Context())

	backURL := sanitizeBackURL(r.URL.Query().Get("backUrl"), h.LandingPath)

	secret, ok := jar.GetSigned(auth.CookieNonce)
	if !ok {
		log.Warn("api token callback without a login nonce cookie")
		h.clearAuthCookies(jar)
		http.Redirect(w, r, h.Provider.EndSessionURL(absoluteURL(r, h.LandingPath)), http.StatusFound)
		return
	}

	ts, err := h.Provider.Exchange(r.Context(), r.URL.Query().Get("code"),
		oidcsdk.AppendBackURL(h.APITokenRedirectURI, backURL), cryptox.FingerprintToken(secret))
	if err != nil {
		log.Warn("api token exchange failed", "error", err)
		h.clearAuthCookies(jar)
		http.Redirect(w, r, h.Provider.EndSessionURL(absoluteURL(r, h.LandingPath)), http.StatusFound)
		return
	}

	jar.Set(auth.CookieAPIToken, ts.RefreshToken, httpx.CookieOpts{
		Path:   h.CookiePath,
		Signed: true,
		MaxAge: apiTokenTTL,
	})
	jar.Clear(auth.CookieNonce, h.CookiePath)

	httpx.NoCache(w)
	http.Redirect(w, r, backURL, http.StatusFound)
}

func (h *OIDCHandler) clearAuthCookies(jar *httpx.Jar) {
	for _, name := range []string{
		auth.CookieAccessToken,
		auth.CookieRefreshToken,
		auth.CookieUsername,
		auth.CookieThumbnail,
		auth.CookieNonce,
	} {
		jar.Clear(name, h.CookiePath)
	}
}

// loginURL builds the login redirect handed back by the refresh
// endpoint. Its own URL is POST-only and not a navigable destination,
// so the backUrl comes from the page the SPA called it from.
func (h *OIDCHandler) loginURL(r *http.Request, jar *httpx.Jar) string {
	return h.Gate.LoginRedirectTo(r, jar, h.refererBackURL(r)).Location
}

// refererBackURL reduces the Referer header to a relative path and
// query, falling back to the landing path when it is absent or points
// off-site.
func (h *OIDCHandler) refererBackURL(r *http.Request) string {
	ref, err := url.Parse(r.Header.Get("Referer"))
	if err != nil {
		return h.LandingPath
	}

	back := ref.Path
	if ref.RawQuery != "" {
		back += "?" + ref.RawQuery
	}
	return sanitizeBackURL(back, h.LandingPath)
}

// sanitizeBackURL rejects absolute and protocol-relative targets so the
// callback cannot be used as an open redirect.
func sanitizeBackURL(backURL, fallback string) string {
	if !strings.HasPrefix(backURL, "/") || strings.HasPrefix(backURL, "//") {
		return fallback
	}
	return backURL
}

// absoluteURL rebuilds a path into an absolute URL as the client saw it,
// trusting X-Forwarded-Proto from the fronting ingress.
func absoluteURL(r *http.Request, path string) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + path
}

// gravatarURL derives the avatar thumbnail shown in the UI header.
func gravatarURL(email string) string {
	if email == "" {
		return ""
	}
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(email))))
	return "https://www.gravatar.com/avatar/" + hex.EncodeToString(sum[:]) + "?d=mp"
}
