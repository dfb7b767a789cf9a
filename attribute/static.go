package attribute

import (
	"context"
	"sync"
)

// Compile-time interface check.
var _ Store = (*Static)(nil)

// Static is a thread-safe in-memory attribute store for tests and
// development. Resource attributes are keyed by "type/id", user attributes
// by user ID, environment attributes are global.
type Static struct {
	mu          sync.RWMutex
	resource    map[string]map[string]any
	user        map[string]map[string]any
	environment map[string]any
}

// NewStatic creates an empty static attribute store.
func NewStatic() *Static {
	return &Static{
		resource:    make(map[string]map[string]any),
		user:        make(map[string]map[string]any),
		environment: make(map[string]any),
	}
}

// SetResource sets an attribute on a specific resource.
func (s *Static) SetResource(resourceType, resourceID, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rk := resourceType + "/" + resourceID
	if s.resource[rk] == nil {
		s.resource[rk] = make(map[string]any)
	}
	s.resource[rk][key] = value
}

// SetUser sets an attribute on a user.
func (s *Static) SetUser(userID, key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user[userID] == nil {
		s.user[userID] = make(map[string]any)
	}
	s.user[userID][key] = value
}

// SetEnvironment sets a global environment attribute.
func (s *Static) SetEnvironment(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.environment[key] = value
}

// GetAttributes returns a copy of the attribute bundle for the given kind
// and scope. Unknown scopes yield an empty map, never an error.
func (s *Static) GetAttributes(_ context.Context, kind Kind, scope Scope) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var src map[string]any
	switch kind {
	case KindResource:
		src = s.resource[scope.ResourceType+"/"+scope.ResourceID]
	case KindUser:
		src = s.user[scope.UserID]
	case KindEnvironment:
		src = s.environment
	default:
		src = nil
	}

	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out, nil
}
