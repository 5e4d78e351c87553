package directory

import (
	"context"
	"sync"
)

// StaticService serves a fixed route table and membership list. Used in
// dev mode when no control plane is running, and as the in-memory fake in
// tests.
type StaticService struct {
	mu      sync.RWMutex
	routes  map[string]Route
	members map[string]map[string]bool // userID -> group set
}

// NewStaticService builds a service from a fixed set of routes.
func NewStaticService(routes ...Route) *StaticService {
	s := &StaticService{
		routes:  make(map[string]Route, len(routes)),
		members: make(map[string]map[string]bool),
	}
	for _, r := range routes {
		s.routes[r.ID] = r
	}
	return s
}

// AddRoute inserts or replaces a route.
func (s *StaticService) AddRoute(r Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[r.ID] = r
}

// AddMember records that userID belongs to group.
func (s *StaticService) AddMember(userID, group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[userID] == nil {
		s.members[userID] = make(map[string]bool)
	}
	s.members[userID][group] = true
}

// GetApplicationRoute implements Service.
func (s *StaticService) GetApplicationRoute(_ context.Context, appID string) (Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	route, ok := s.routes[appID]
	if !ok {
		return Route{}, ErrNotFound
	}
	return route, nil
}

// IsGroupMember implements Service.
func (s *StaticService) IsGroupMember(_ context.Context, userID, group string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.members[userID][group], nil
}
