package app

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Host   string // Required: external URL of the gateway, e.g. https://console.example.com
	Prefix string // Optional: deployment path prefix (default: empty, root)

	KeycloakBaseURL string // Required: provider base URL including path prefix
	Realm           string // Required: Keycloak realm
	ClientID        string // Required: OAuth2 client ID
	ClientSecret    string // Required: OAuth2 client secret

	CookieSecret string // Required: cookie signing key (max 64 bytes)

	GraphQLEndpoint     string // Optional: platform GraphQL URL; empty enables dev mode routes
	SharedGraphQLSecret string // Required when GraphQLEndpoint is set

	SessionTTL    time.Duration // Optional: proxy session lifetime (default: 1h)
	RouteTTL      time.Duration // Optional: route cache lifetime (default: 30s)
	RefreshMargin time.Duration // Optional: silent refresh margin (default: 5s)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		Host:   getEnvOrDefault("GATEWAY_HOST", "http://localhost:8080"),
		Prefix: os.Getenv("GATEWAY_PREFIX"),

		KeycloakBaseURL: os.Getenv("KEYCLOAK_BASE_URL"),
		Realm:           getEnvOrDefault("KEYCLOAK_REALM", "master"),
		ClientID:        getEnvOrDefault("KEYCLOAK_CLIENT_ID", "gateway"),
		ClientSecret:    os.Getenv("KEYCLOAK_CLIENT_SECRET"),

		CookieSecret: os.Getenv("GATEWAY_COOKIE_SECRET"),

		GraphQLEndpoint:     os.Getenv("GRAPHQL_ENDPOINT"),
		SharedGraphQLSecret: os.Getenv("GRAPHQL_SHARED_SECRET"),

		SessionTTL:    getEnvDurationOrDefault("SESSION_TTL", time.Hour),
		RouteTTL:      getEnvDurationOrDefault("ROUTE_TTL", 30*time.Second),
		RefreshMargin: getEnvDurationOrDefault("REFRESH_MARGIN", 5*time.Second),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

// Validate rejects configurations the gateway cannot start with.
func (cfg Config) Validate() error {
	if cfg.KeycloakBaseURL == "" {
		return fmt.Errorf("KEYCLOAK_BASE_URL is required")
	}
	if cfg.ClientSecret == "" {
		return fmt.Errorf("KEYCLOAK_CLIENT_SECRET is required")
	}
	if cfg.CookieSecret == "" {
		return fmt.Errorf("GATEWAY_COOKIE_SECRET is required")
	}
	if len(cfg.CookieSecret) > 64 {
		// BLAKE2b keyed mode caps the key at 64 bytes.
		return fmt.Errorf("GATEWAY_COOKIE_SECRET must be at most 64 bytes")
	}
	if cfg.GraphQLEndpoint != "" && cfg.SharedGraphQLSecret == "" {
		return fmt.Errorf("GRAPHQL_SHARED_SECRET is required when GRAPHQL_ENDPOINT is set")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
