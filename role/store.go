package role

import (
	"context"

	"github.com/gatewise/gatewise/id"
)

// Store defines persistence operations for roles and the role↔permission
// join rows.
type Store interface {
	// CreateRole persists a new role.
	CreateRole(ctx context.Context, r *Role) error

	// GetRole retrieves a role by ID.
	GetRole(ctx context.Context, roleID id.RoleID) (*Role, error)

	// GetRoleBySlug retrieves a role by organization and slug.
	GetRoleBySlug(ctx context.Context, orgID, slug string) (*Role, error)

	// UpdateRole persists changes to a role conditioned on the version the
	// writer read. The store must reject the write when the stored version
	// no longer matches expectedVersion (lost-update prevention).
	UpdateRole(ctx context.Context, r *Role, expectedVersion int) error

	// DeleteRole removes a role by ID, cascading its permission rows.
	DeleteRole(ctx context.Context, roleID id.RoleID) error

	// ListRoles returns roles matching the filter.
	ListRoles(ctx context.Context, filter *ListFilter) ([]*Role, error)

	// CountRoles returns the number of roles matching the filter.
	CountRoles(ctx context.Context, filter *ListFilter) (int64, error)

	// ListRolePermissions returns permission IDs attached to a role.
	ListRolePermissions(ctx context.Context, roleID id.RoleID) ([]id.PermissionID, error)

	// AttachPermission links a permission to a role. The (role, permission)
	// pair is unique; attaching an existing pair is a no-op.
	AttachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error

	// DetachPermission removes a permission from a role.
	DetachPermission(ctx context.Context, roleID id.RoleID, permID id.PermissionID) error

	// SetRolePermissions replaces all permissions for a role.
	SetRolePermissions(ctx context.Context, roleID id.RoleID, permIDs []id.PermissionID) error

	// ListChildRoles returns direct child roles of a parent.
	ListChildRoles(ctx context.Context, parentID id.RoleID) ([]*Role, error)

	// DeleteRolesByOrg removes all roles for an organization.
	DeleteRolesByOrg(ctx context.Context, orgID string) error
}
