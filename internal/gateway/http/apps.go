package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/canopyml/appgate/internal/gateway/auth"
	"github.com/canopyml/appgate/internal/gateway/directory"
	"github.com/canopyml/appgate/internal/gateway/proxy"
	"github.com/canopyml/appgate/internal/gateway/session"
	"github.com/canopyml/appgate/pkg/httpx"
	"github.com/canopyml/appgate/pkg/slogx"
)

// AppsHandler dispatches requests under /apps/{appID} to application
// backends after resolving the route and authorizing the requester.
type AppsHandler struct {
	Gate      *auth.Gate
	Directory directory.Service
	Sessions  *session.Manager
	Forwarder *proxy.Forwarder
	CookieKey []byte
	Prefix    string
}

// ServeHTTP godoc
//
//	@Summary		Application Proxy
//	@Description	Forwards the request to the application backend identified by the path.
//	@Description	Public applications are forwarded directly. Group and platform scoped
//	@Description	applications require a session credential; without one the browser is
//	@Description	sent through the login flow and redirected back.
//	@Tags			Apps
//	@Param			appID	path		string	true	"Application instance ID"
//	@Success		302		{string}	string	"redirect to canonical path, login, or back after authorization"
//	@Failure		400		{object}	map[string]string	"unknown application scope"
//	@Failure		403		{object}	map[string]string	"not a member of the owning group"
//	@Failure		404		{object}	map[string]string	"application absent or not ready"
//	@Failure		503		{object}	map[string]string	"application backend down"
//	@Router			/apps/{appID} [get].
func (h *AppsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	appID := r.PathValue("appID")
	log := slogx.FromContext(r.Context())

	route, err := h.Directory.GetApplicationRoute(r.Context(), appID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			writeNotFound(w, r)
			return
		}
		log.Error("route lookup failed", "app_id", appID, "error", err)
		httpx.WriteJSON(w, http.StatusBadGateway, map[string]string{
			"error": "directory unavailable",
		})
		return
	}
	if !route.Ready {
		writeNotFound(w, r)
		return
	}

	// The bare base path redirects to its slashed form so relative URLs
	// inside the application resolve under /apps/{appID}/.
	base := h.Prefix + "/apps/" + appID
	if r.URL.Path == base {
		target := base + "/"
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	target, err := url.Parse(route.Target)
	if err != nil {
		log.Error("invalid route target", "app_id", appID, "target", route.Target, "error", err)
		httpx.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "invalid application route",
		})
		return
	}

	switch route.Scope {
	case directory.ScopePublic:
		h.forward(w, r, route, target)

	case directory.ScopeGroup, directory.ScopePlatform:
		h.authorizeAndForward(w, r, route, target)

	default:
		log.Warn("unknown application scope", "app_id", appID, "scope", route.Scope)
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unknown application scope",
		})
	}
}

// authorizeAndForward handles the group and platform scopes. A live
// session credential forwards immediately; otherwise the requester goes
// through the gate, a credential is minted, and the browser is bounced
// back to the same URL to retry with the cookie attached.
func (h *AppsHandler) authorizeAndForward(w http.ResponseWriter, r *http.Request, route directory.Route, target *url.URL) {
	jar := httpx.NewJar(w, r, h.CookieKey)

	if credential, ok := jar.Get(session.CookieName); ok &&
		h.Sessions.Validate(credential, route.ID) {
		h.forward(w, r, route, target)
		return
	}

	state, decision := h.Gate.RequireLogin(r, jar)
	if runDecision(w, r, decision) {
		return
	}

	if route.Scope == directory.ScopeGroup {
		member, err := h.Directory.IsGroupMember(r.Context(), state.UserID, route.Group)
		if err != nil {
			slogx.FromContext(r.Context()).Error("membership check failed",
				"app_id", route.ID, "user_id", state.UserID, "error", err)
			httpx.WriteJSON(w, http.StatusBadGateway, map[string]string{
				"error": "directory unavailable",
			})
			return
		}
		if !member {
			writeForbidden(w, r)
			return
		}
	}

	credential := h.Sessions.Mint(route.ID)
	jar.Set(session.CookieName, credential, httpx.CookieOpts{
		Path: h.Sessions.CookiePath(route.ID),
	})

	// Redirect back to the same URL; the retry carries the credential
	// and takes the fast path above.
	http.Redirect(w, r, auth.BackURL(r), http.StatusFound)
}

func (h *AppsHandler) forward(w http.ResponseWriter, r *http.Request, route directory.Route, target *url.URL) {
	slogx.MarkProxied(r.Context())

	opts := proxy.ForwardOptions{AppID: route.ID, Target: target}
	if route.Rewrite {
		opts.StripPrefix = h.Prefix + "/apps/" + route.ID
	}
	h.Forwarder.Forward(w, r, opts)
}

// ServeUpgrade handles protocol upgrades under /apps/. It runs outside
// the middleware chain because the connection is hijacked. There is no
// authorization branch here: the handshake either reaches a known ready
// application or the connection is dropped without a response.
func (h *AppsHandler) ServeUpgrade(w http.ResponseWriter, r *http.Request) {
	appID := upgradeAppID(r.URL.Path, h.Prefix)
	if appID == "" {
		proxy.DropUpgrade(w, r)
		return
	}

	route, err := h.Directory.GetApplicationRoute(r.Context(), appID)
	if err != nil || !route.Ready {
		proxy.DropUpgrade(w, r)
		return
	}

	target, err := url.Parse(route.Target)
	if err != nil {
		proxy.DropUpgrade(w, r)
		return
	}

	opts := proxy.ForwardOptions{AppID: route.ID, Target: target}
	if route.Rewrite {
		opts.StripPrefix = h.Prefix + "/apps/" + route.ID
	}
	h.Forwarder.ForwardUpgrade(w, r, opts)
}

// upgradeAppID extracts the application ID from an upgrade request path,
// which bypasses the mux and its path values.
func upgradeAppID(path, prefix string) string {
	rest, ok := strings.CutPrefix(path, prefix+"/apps/")
	if !ok {
		return ""
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
