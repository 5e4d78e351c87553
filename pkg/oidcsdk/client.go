package oidcsdk

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config carries the provider coordinates and client credentials.
type Config struct {
	// BaseURL is the provider root, including any path prefix the provider
	// is served under (e.g. "https://id.example.com/auth" for Keycloak).
	BaseURL string
	// Realm is the Keycloak realm name.
	Realm string

	ClientID     string
	ClientSecret string

	// RedirectURI is the gateway's callback URL registered with the provider.
	RedirectURI string

	// HTTPClient overrides the default client (10 second timeout).
	HTTPClient *http.Client
}

// Client talks to one realm of an OpenID Connect provider.
type Client struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	redirectURI  string
	httpClient   *http.Client
}

// NewClient creates a provider client.
func NewClient(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		realm:        cfg.Realm,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  cfg.RedirectURI,
		httpClient:   hc,
	}
}

// Realm returns the realm this client is bound to.
func (c *Client) Realm() string {
	return c.realm
}

// ClientID returns the OAuth2 client identifier.
func (c *Client) ClientID() string {
	return c.clientID
}

// endpoint builds a realm protocol endpoint URL, e.g. endpoint("token")
// for the token endpoint.
func (c *Client) endpoint(name string) string {
	return c.baseURL + "/realms/" + url.PathEscape(c.realm) + "/protocol/openid-connect/" + name
}

// AuthRequest describes a login redirect to the authorization endpoint.
type AuthRequest struct {
	// BackURL is where the user should land after the callback completes.
	// It is carried as a query parameter on the redirect URI, so the
	// callback handler receives it without any server-side state.
	BackURL string

	// RedirectURI overrides the client's default callback. Flows with
	// their own callback endpoint (the API token flow) set this.
	RedirectURI string

	// Nonce is the value the provider must echo inside the ID token's
	// nonce claim. Pass the fingerprint of a secret the caller retains.
	Nonce string

	// Scopes to request beyond "openid", which is always included.
	Scopes []string
}

// AppendBackURL attaches a backUrl query parameter to a redirect URI.
// The token exchange must present the exact redirect URI used in the
// authorization request, so callback handlers rebuild theirs with this
// same function.
func AppendBackURL(redirectURI, backURL string) string {
	if backURL == "" {
		return redirectURI
	}
	sep := "?"
	if strings.Contains(redirectURI, "?") {
		sep = "&"
	}
	return redirectURI + sep + "backUrl=" + url.QueryEscape(backURL)
}

// CallbackRedirectURI returns the client's default redirect URI carrying
// the given back URL.
func (c *Client) CallbackRedirectURI(backURL string) string {
	return AppendBackURL(c.redirectURI, backURL)
}

// AuthorizationURL builds the authorization endpoint URL for a login
// redirect.
func (c *Client) AuthorizationURL(req AuthRequest) string {
	base := req.RedirectURI
	if base == "" {
		base = c.redirectURI
	}
	redirect := AppendBackURL(base, req.BackURL)

	scopes := append([]string{"openid"}, req.Scopes...)

	q := url.Values{
		"response_type": {"code"},
		"client_id":     {c.clientID},
		"redirect_uri":  {redirect},
		"scope":         {strings.Join(scopes, " ")},
	}
	if req.Nonce != "" {
		q.Set("nonce", req.Nonce)
	}

	return c.endpoint("auth") + "?" + q.Encode()
}

// EndSessionURL builds the provider logout URL. After the provider clears
// its own session it redirects the browser to redirectURI.
func (c *Client) EndSessionURL(redirectURI string) string {
	q := url.Values{
		"client_id":                {c.clientID},
		"post_logout_redirect_uri": {redirectURI},
	}
	return c.endpoint("logout") + "?" + q.Encode()
}
