package directory

import (
	"context"
	"time"

	"github.com/canopyml/appgate/pkg/ttlcache"
)

// CachedService memoizes route lookups in a TTL cache. A stale route may
// be served until its entry expires; the cache is refreshed whole-entry on
// the next miss. Lookups that race on a cold key each hit the underlying
// service, and the last writer wins, which is harmless because entries are
// replaced atomically.
//
// Failed lookups, including ErrNotFound, are never cached. A newly
// deployed application becomes reachable on the next request rather than
// after a negative entry times out.
type CachedService struct {
	// Inner is the service being memoized.
	Inner Service
	// Routes is the shared route cache, injected at startup.
	Routes *ttlcache.Cache[Route]
	// TTL for cached routes.
	TTL time.Duration
}

// GetApplicationRoute implements Service.
func (s *CachedService) GetApplicationRoute(ctx context.Context, appID string) (Route, error) {
	if route, ok := s.Routes.Get(appID); ok {
		return route, nil
	}

	route, err := s.Inner.GetApplicationRoute(ctx, appID)
	if err != nil {
		return Route{}, err
	}

	s.Routes.Set(appID, route, s.TTL)
	return route, nil
}

// IsGroupMember implements Service. Membership is not cached; revoking a
// user's access must take effect on their next unauthorized request.
func (s *CachedService) IsGroupMember(ctx context.Context, userID, group string) (bool, error) {
	return s.Inner.IsGroupMember(ctx, userID, group)
}

// Ping probes the underlying service when it supports probing.
func (s *CachedService) Ping(ctx context.Context) error {
	if pinger, ok := s.Inner.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

// Invalidate drops the cached route for appID, forcing the next lookup
// through to the underlying service.
func (s *CachedService) Invalidate(appID string) {
	s.Routes.Delete(appID)
}
