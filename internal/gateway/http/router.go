// Package http routes gateway traffic: the OIDC endpoints, the
// application proxy dispatcher, the files proxy, and health checks.
package http

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/canopyml/appgate/internal/gateway/auth"
	"github.com/canopyml/appgate/internal/gateway/directory"
	"github.com/canopyml/appgate/internal/gateway/proxy"
	"github.com/canopyml/appgate/internal/gateway/session"
	"github.com/canopyml/appgate/pkg/httpx"
	"github.com/canopyml/appgate/pkg/oidcsdk"
	"github.com/canopyml/appgate/pkg/slogx"

	_ "github.com/canopyml/appgate/api/gateway" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	// Prefix is the deployment path prefix, e.g. "/console". Empty for
	// root deployments.
	Prefix string

	// CookieKey signs the token cookies.
	CookieKey []byte

	// LandingPath is where logout and login fallbacks send the browser.
	LandingPath string

	Gate      *auth.Gate
	Provider  *oidcsdk.Client
	Directory directory.Service
	Sessions  *session.Manager
	Forwarder *proxy.Forwarder

	// FilesTarget and FilesAPIPrefix point the files proxy at the
	// storage backend.
	FilesTarget    *url.URL
	FilesAPIPrefix string

	// APITokenRedirectURI is the absolute request-api-token callback URL
	// registered with the provider.
	APITokenRedirectURI string

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	upgrades http.Handler
}

func NewRouter(prefix, buildVersion string, cookieKey []byte, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		Prefix:       prefix,
		CookieKey:    cookieKey,
		LandingPath:  prefix + "/",
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerOIDC()
	r.registerApps()
	r.registerFiles()
	r.registerSystem()

	r.Mux.Handle(r.Prefix+"/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Application Gateway API
//	@version		0.1.0
//	@description	Authenticated reverse proxy for platform applications. Handles the
//	@description	OIDC login flow against the identity provider, silent token refresh,
//	@description	per-application session credentials, and request forwarding.
//
//	@contact.name	CanopyML Team
//	@contact.url	https://github.com/canopyml/appgate
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:8080
//	@BasePath		/
//
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// Upgrade requests for applications skip the middleware chain; the
	// connection is hijacked for a raw byte splice and the wrapping
	// response writer must not outlive it.
	if r.upgrades != nil && proxy.IsUpgradeRequest(req) &&
		strings.HasPrefix(req.URL.Path, r.Prefix+"/apps/") {
		r.upgrades.ServeHTTP(w, req)
		return
	}

	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerOIDC() {
	h := &OIDCHandler{
		Gate:                r.Gate,
		Provider:            r.Provider,
		CookieKey:           r.CookieKey,
		CookiePath:          r.Prefix + "/",
		LandingPath:         r.LandingPath,
		APITokenRedirectURI: r.APITokenRedirectURI,
	}

	// Callback endpoints burn authorization codes; strict by IP.
	r.Mux.Handle("GET "+r.Prefix+"/oidc/callback",
		httpx.Chain(http.HandlerFunc(h.HandleCallback),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("GET "+r.Prefix+"/oidc/request-api-token-callback",
		httpx.Chain(http.HandlerFunc(h.HandleRequestAPITokenCallback),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("POST "+r.Prefix+"/oidc/refresh-token-set",
		httpx.Chain(http.HandlerFunc(h.HandleRefreshTokenSet),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET "+r.Prefix+"/oidc/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET "+r.Prefix+"/oidc/request-api-token",
		httpx.Chain(http.HandlerFunc(h.HandleRequestAPIToken),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerApps() {
	h := &AppsHandler{
		Gate:      r.Gate,
		Directory: r.Directory,
		Sessions:  r.Sessions,
		Forwarder: r.Forwarder,
		CookieKey: r.CookieKey,
		Prefix:    r.Prefix,
	}

	// All methods: the dispatcher decides per route; proxied traffic is
	// not rate limited here.
	r.Mux.Handle(r.Prefix+"/apps/{appID}", http.HandlerFunc(h.ServeHTTP))
	r.Mux.Handle(r.Prefix+"/apps/{appID}/{rest...}", http.HandlerFunc(h.ServeHTTP))

	r.upgrades = http.HandlerFunc(h.ServeUpgrade)
}

func (r *Router) registerFiles() {
	// No storage backend configured (dev mode without a platform API);
	// the files routes simply do not exist.
	if r.FilesTarget == nil {
		return
	}

	h := &FilesHandler{
		Gate:      r.Gate,
		Directory: r.Directory,
		Forwarder: r.Forwarder,
		CookieKey: r.CookieKey,
		Prefix:    r.Prefix,
		Target:    r.FilesTarget,
		APIPrefix: r.FilesAPIPrefix,
	}

	r.Mux.Handle(r.Prefix+"/files/{rest...}", http.HandlerFunc(h.ServeHTTP))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.Directory),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
