package grant

import (
	"context"

	"github.com/gatewise/gatewise/id"
)

// Store defines persistence operations for direct resource grants.
type Store interface {
	// CreateGrant persists a new grant.
	CreateGrant(ctx context.Context, g *Grant) error

	// FindGrant returns the grant matching the unique tuple, or nil when
	// no such grant exists (absence is not an error).
	FindGrant(ctx context.Context, userID, resourceType, resourceID, perm string) (*Grant, error)

	// DeleteGrant removes the grant matching the unique tuple and reports
	// whether a row was deleted.
	DeleteGrant(ctx context.Context, userID, resourceType, resourceID, perm string) (bool, error)

	// DeleteGrantByID removes a grant by ID.
	DeleteGrantByID(ctx context.Context, grantID id.GrantID) error

	// ListGrants returns grants matching the filter.
	ListGrants(ctx context.Context, filter *ListFilter) ([]*Grant, error)

	// ListGrantsForResource returns all grants on a specific resource.
	ListGrantsForResource(ctx context.Context, resourceType, resourceID string) ([]*Grant, error)

	// ListResourceIDsWithPermission returns the IDs of resources of the given
	// type on which the user holds the permission.
	ListResourceIDsWithPermission(ctx context.Context, userID, resourceType, perm string) ([]string, error)

	// ListUserIDsWithPermission returns the users holding the permission on
	// a specific resource.
	ListUserIDsWithPermission(ctx context.Context, resourceType, resourceID, perm string) ([]string, error)

	// DeleteGrantsByUser removes all grants held by a user.
	DeleteGrantsByUser(ctx context.Context, userID string) error

	// CountGrantsByPermissionName returns how many grants reference the
	// permission name. Used by the permission delete guard.
	CountGrantsByPermissionName(ctx context.Context, perm string) (int64, error)
}
