// Package directory resolves application routing metadata and group
// membership from the platform's control plane.
package directory

import (
	"context"
	"errors"
)

// Scope is the visibility level of an application route.
type Scope string

const (
	// ScopePublic routes are forwarded without any authorization.
	ScopePublic Scope = "public"
	// ScopeGroup routes require login plus membership of the route's group.
	ScopeGroup Scope = "group"
	// ScopePlatform routes require login by any platform user.
	ScopePlatform Scope = "platform"
)

// ErrNotFound is returned when no application exists for the given ID.
var ErrNotFound = errors.New("directory: application not found")

// Route is the forwarding record for one deployed application.
type Route struct {
	// ID is the application instance identifier, unique per deployment.
	ID string
	// Scope controls who may reach the application.
	Scope Scope
	// Group owning the application. Only meaningful for ScopeGroup.
	Group string
	// Target is the in-cluster base URL of the application service.
	Target string
	// Rewrite strips the gateway's /apps/{id} prefix before forwarding.
	// Applications that serve under their own base path set this false.
	Rewrite bool
	// Ready is false while the application is still starting or stopping.
	// Routes that are not ready are treated as absent.
	Ready bool
}

// Service answers routing and membership questions. Implementations must
// be safe for concurrent use.
type Service interface {
	// GetApplicationRoute returns the route for appID, or ErrNotFound.
	GetApplicationRoute(ctx context.Context, appID string) (Route, error)

	// IsGroupMember reports whether the user belongs to the named group.
	IsGroupMember(ctx context.Context, userID, group string) (bool, error)
}
