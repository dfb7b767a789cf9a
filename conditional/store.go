package conditional

import (
	"context"

	"github.com/gatewise/gatewise/id"
)

// Store defines persistence operations for conditional grants.
type Store interface {
	// CreateConditional persists a new conditional grant.
	CreateConditional(ctx context.Context, g *Grant) error

	// GetConditional retrieves a conditional grant by ID.
	GetConditional(ctx context.Context, grantID id.ConditionalID) (*Grant, error)

	// UpdateConditional persists changes to a conditional grant.
	UpdateConditional(ctx context.Context, g *Grant) error

	// DeleteConditional removes a conditional grant by ID.
	DeleteConditional(ctx context.Context, grantID id.ConditionalID) error

	// ListConditionals returns conditional grants matching the filter.
	ListConditionals(ctx context.Context, filter *ListFilter) ([]*Grant, error)

	// ListActiveConditionalsForKey returns active grants matching
	// (userID, permID, resourceType) whose ResourceID equals resourceID or
	// is empty (wildcard rows apply to every resource of the type).
	ListActiveConditionalsForKey(ctx context.Context, userID string, permID id.PermissionID, resourceType, resourceID string) ([]*Grant, error)

	// CountConditionalsByPermission returns how many conditional grants
	// reference the permission. Used by the permission delete guard.
	CountConditionalsByPermission(ctx context.Context, permID id.PermissionID) (int64, error)
}
