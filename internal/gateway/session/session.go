// Package session mints and validates per-application proxy credentials.
//
// After the gate authorizes a user for an application, the dispatcher
// mints an opaque credential and sets it as a cookie scoped to that
// application's path. Presence of the credential in the session cache is
// the only proof of authorization on later requests; no claims are
// attached to it. The cookie is deliberately unsigned, its 128 bits of
// entropy are the secret.
package session

import (
	"time"

	"github.com/canopyml/appgate/pkg/cryptox"
	"github.com/canopyml/appgate/pkg/ttlcache"
)

// CookieName carries the proxy session credential. The name is fixed by
// the platform's browser clients.
const CookieName = "phapplication-session-id"

// Manager owns the session credential cache.
type Manager struct {
	// Sessions maps credential -> application ID. Storing the application
	// ID closes the hole where a credential minted for one application is
	// replayed against another.
	Sessions *ttlcache.Cache[string]
	// TTL is the sliding credential lifetime.
	TTL time.Duration
	// Prefix is the gateway's deployment path prefix, e.g. "/console".
	Prefix string
}

// CookiePath returns the path the credential cookie is scoped to. The
// trailing slash keeps /apps/{id}-other from matching.
func (m *Manager) CookiePath(appID string) string {
	return m.Prefix + "/apps/" + appID + "/"
}

// Mint creates a credential for appID and records it in the cache.
// Concurrent mints for the same user and application produce distinct
// credentials; both are valid, the browser keeps whichever cookie landed
// last.
func (m *Manager) Mint(appID string) string {
	credential := cryptox.MustGenerateToken(cryptox.TokenSize128)
	m.Sessions.Set(credential, appID, m.TTL)
	return credential
}

// Validate reports whether credential is a live session for appID, and
// slides its expiry when it is.
func (m *Manager) Validate(credential, appID string) bool {
	if credential == "" {
		return false
	}
	boundApp, ok := m.Sessions.Get(credential)
	if !ok || boundApp != appID {
		return false
	}
	return m.Sessions.Touch(credential, m.TTL)
}

// Revoke drops a credential.
func (m *Manager) Revoke(credential string) {
	m.Sessions.Delete(credential)
}
