package auth

import (
	"net/http"
	"time"

	"github.com/canopyml/appgate/pkg/cryptox"
	"github.com/canopyml/appgate/pkg/httpx"
	"github.com/canopyml/appgate/pkg/oidcsdk"
	"github.com/canopyml/appgate/pkg/slogx"
	"github.com/canopyml/appgate/pkg/token"
)

// DefaultRefreshMargin is how close to expiry an access token may get
// before the gate refreshes it inline. Wide enough that a token passing
// the gate is still valid when it reaches the backend.
const DefaultRefreshMargin = 5 * time.Second

// Gate decides whether a request is authenticated, refreshing the token
// set inline when the access token is about to expire.
type Gate struct {
	Provider *oidcsdk.Client

	// AdminRole is the role RequireAdmin demands, e.g.
	// "realm-management:realm-admin".
	AdminRole string

	// CookiePath is where the token cookies are scoped, normally the
	// deployment prefix plus "/".
	CookiePath string

	// RefreshMargin defaults to DefaultRefreshMargin when zero.
	RefreshMargin time.Duration
}

// RequireLogin authenticates the request from its token cookies.
//
// Outcomes:
//   - both cookies present and the refresh token alive: Continue, with
//     a silent refresh first if the access token expires within the
//     margin (both cookies are rewritten through jar).
//   - cookies missing, malformed, or refresh token expired: Redirect to
//     the provider's login page, carrying the request URL as backUrl.
//   - the provider rejects the refresh grant (session revoked, user
//     deleted): the same login redirect.
//   - any other provider failure: Fail, propagated unchanged.
func (g *Gate) RequireLogin(r *http.Request, jar *httpx.Jar) (State, Decision) {
	accessRaw, haveAccess := jar.GetSigned(CookieAccessToken)
	refreshRaw, haveRefresh := jar.GetSigned(CookieRefreshToken)
	if !haveAccess || !haveRefresh {
		return State{}, g.loginRedirect(r, jar)
	}

	refresh, err := token.Parse(refreshRaw, g.Provider.ClientID())
	if err != nil || refresh.IsExpired() {
		return State{}, g.loginRedirect(r, jar)
	}

	access, err := token.Parse(accessRaw, g.Provider.ClientID())
	if err != nil {
		return State{}, g.loginRedirect(r, jar)
	}

	state := State{}

	if access.ExpiresWithin(g.refreshMargin()) {
		ts, err := g.Provider.Refresh(r.Context(), refreshRaw)
		if err != nil {
			if oidcsdk.IsInvalidGrant(err) {
				return State{}, g.loginRedirect(r, jar)
			}
			return State{}, Fail(err)
		}

		newAccess, err := token.Parse(ts.AccessToken, g.Provider.ClientID())
		if err != nil {
			return State{}, Fail(err)
		}
		newRefresh, err := token.Parse(ts.RefreshToken, g.Provider.ClientID())
		if err != nil {
			return State{}, Fail(err)
		}

		jar.Set(CookieAccessToken, ts.AccessToken, httpx.CookieOpts{Path: g.CookiePath, Signed: true})
		jar.Set(CookieRefreshToken, ts.RefreshToken, httpx.CookieOpts{Path: g.CookiePath, Signed: true})

		slogx.FromContext(r.Context()).Debug("access token refreshed inline",
			"user_id", newAccess.Subject(),
		)

		access, refresh = newAccess, newRefresh
		state.NewAccessToken = ts.AccessToken
	}

	state.UserID = access.Subject()
	state.Username = access.PreferredUsername()
	state.IsAdmin = access.HasRole(g.AdminRole)
	state.AccessTokenExp = access.ExpiresAt()
	state.RefreshTokenExp = refresh.ExpiresAt()
	if thumb, ok := jar.GetSigned(CookieThumbnail); ok {
		state.Thumbnail = thumb
	}

	return state, Continue()
}

// RequireAdmin is RequireLogin plus the realm admin role. A logged-in
// user without the role is bounced to login rather than told the page
// exists.
func (g *Gate) RequireAdmin(r *http.Request, jar *httpx.Jar) (State, Decision) {
	state, decision := g.RequireLogin(r, jar)
	if decision.Kind != KindContinue {
		return state, decision
	}
	if !state.IsAdmin {
		return State{}, g.loginRedirect(r, jar)
	}
	return state, decision
}

// LoginRedirect builds a fresh login redirect regardless of cookie
// state. The OIDC handlers use it when an exchange fails.
func (g *Gate) LoginRedirect(r *http.Request, jar *httpx.Jar) Decision {
	return g.loginRedirect(r, jar)
}

// LoginRedirectTo is LoginRedirect with an explicit backUrl, for
// endpoints whose own URL is not a navigable destination.
func (g *Gate) LoginRedirectTo(r *http.Request, jar *httpx.Jar, backURL string) Decision {
	return g.loginRedirectTo(jar, backURL)
}

func (g *Gate) loginRedirect(r *http.Request, jar *httpx.Jar) Decision {
	return g.loginRedirectTo(jar, BackURL(r))
}

// loginRedirectTo mints a nonce secret, stores it in a signed cookie,
// and sends the browser to the authorization endpoint carrying the
// secret's fingerprint. The callback proves the login was started here
// by matching the ID token's nonce claim against the cookie's
// fingerprint.
func (g *Gate) loginRedirectTo(jar *httpx.Jar, backURL string) Decision {
	secret := cryptox.MustGenerateToken(cryptox.TokenSize128)
	jar.Set(CookieNonce, secret, httpx.CookieOpts{Path: g.CookiePath, Signed: true})

	return Redirect(g.Provider.AuthorizationURL(oidcsdk.AuthRequest{
		BackURL: backURL,
		Nonce:   cryptox.FingerprintToken(secret),
	}))
}

func (g *Gate) refreshMargin() time.Duration {
	if g.RefreshMargin > 0 {
		return g.RefreshMargin
	}
	return DefaultRefreshMargin
}

// AdminRoleForRealm returns the Keycloak role that marks a realm
// administrator. The master realm uses a realm-level role; every other
// realm exposes it through the realm-management client.
func AdminRoleForRealm(realm string) string {
	if realm == "master" {
		return "realm:admin"
	}
	return "realm-management:realm-admin"
}

// BackURL is the path-and-query to return to after login. Host and
// scheme are dropped; the callback redirects relative to the gateway.
func BackURL(r *http.Request) string {
	back := r.URL.Path
	if r.URL.RawQuery != "" {
		back += "?" + r.URL.RawQuery
	}
	return back
}
