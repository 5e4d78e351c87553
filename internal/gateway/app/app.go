package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/canopyml/appgate/internal/gateway/auth"
	"github.com/canopyml/appgate/internal/gateway/directory"
	httpapi "github.com/canopyml/appgate/internal/gateway/http"
	"github.com/canopyml/appgate/internal/gateway/proxy"
	"github.com/canopyml/appgate/internal/gateway/session"
	"github.com/canopyml/appgate/pkg/oidcsdk"
	"github.com/canopyml/appgate/pkg/slogx"
	"github.com/canopyml/appgate/pkg/ttlcache"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the gateway with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	provider  *oidcsdk.Client
	directory directory.Service
	sessions  *session.Manager
	routes    *ttlcache.Cache[directory.Route]

	// HTTP server
	server *http.Server
	router *httpapi.Router

	stopJanitors []func()
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "appgate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	app.initProvider()
	app.initDirectory()
	app.initSessions()
	if err := app.initHTTP(); err != nil {
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.logger.Info("gateway starting",
		"port", app.cfg.Port,
		"prefix", app.cfg.Prefix,
		"version", BuildVersion,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gateway...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	for _, stop := range app.stopJanitors {
		stop()
	}

	app.logger.Info("gateway stopped")
	return nil
}

// initProvider configures the OIDC client against the identity provider.
func (app *Application) initProvider() {
	app.provider = oidcsdk.NewClient(oidcsdk.Config{
		BaseURL:      app.cfg.KeycloakBaseURL,
		Realm:        app.cfg.Realm,
		ClientID:     app.cfg.ClientID,
		ClientSecret: app.cfg.ClientSecret,
		RedirectURI:  app.cfg.Host + app.cfg.Prefix + "/oidc/callback",
	})
}

// initDirectory wires the application route source. Without a GraphQL
// endpoint the gateway runs in dev mode with an empty in-memory directory.
func (app *Application) initDirectory() {
	if app.cfg.GraphQLEndpoint == "" {
		app.logger.Warn("no GRAPHQL_ENDPOINT configured, using empty in-memory directory")
		app.directory = directory.NewStaticService()
		return
	}

	routes := ttlcache.New[directory.Route]()
	app.stopJanitors = append(app.stopJanitors, routes.StartJanitor(time.Minute))
	app.routes = routes

	app.directory = &directory.CachedService{
		Inner: &directory.GraphQLService{
			Endpoint: app.cfg.GraphQLEndpoint,
			Secret:   app.cfg.SharedGraphQLSecret,
		},
		Routes: routes,
		TTL:    app.cfg.RouteTTL,
	}
}

// initSessions builds the per-application session credential store.
func (app *Application) initSessions() {
	store := ttlcache.New[string]()
	app.stopJanitors = append(app.stopJanitors, store.StartJanitor(time.Minute))

	app.sessions = &session.Manager{
		Sessions: store,
		TTL:      app.cfg.SessionTTL,
		Prefix:   app.cfg.Prefix,
	}
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() error {
	router := httpapi.NewRouter(
		app.cfg.Prefix,
		BuildVersion,
		[]byte(app.cfg.CookieSecret),
		app.logger,
	)

	// Wire dependencies to router
	router.Gate = &auth.Gate{
		Provider:      app.provider,
		AdminRole:     auth.AdminRoleForRealm(app.cfg.Realm),
		CookiePath:    app.cfg.Prefix + "/",
		RefreshMargin: app.cfg.RefreshMargin,
	}
	router.Provider = app.provider
	router.Directory = app.directory
	router.Sessions = app.sessions
	router.Forwarder = &proxy.Forwarder{}
	router.APITokenRedirectURI = app.cfg.Host + app.cfg.Prefix + "/oidc/request-api-token-callback"

	if app.cfg.GraphQLEndpoint != "" {
		target, apiPrefix, err := filesBackend(app.cfg.GraphQLEndpoint)
		if err != nil {
			return fmt.Errorf("invalid GRAPHQL_ENDPOINT: %w", err)
		}
		router.FilesTarget = target
		router.FilesAPIPrefix = apiPrefix
	}

	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return nil
}

// filesBackend derives the storage API origin and path prefix from the
// GraphQL endpoint URL. An endpoint of https://hub.example.com/api/graphql
// yields origin https://hub.example.com and prefix /api.
func filesBackend(endpoint string) (*url.URL, string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, "", err
	}

	apiPrefix := strings.TrimSuffix(u.Path, "/graphql")
	target := &url.URL{Scheme: u.Scheme, Host: u.Host}
	return target, apiPrefix, nil
}
