package permission

import (
	"context"

	"github.com/gatewise/gatewise/id"
)

// Store defines persistence operations for permissions.
type Store interface {
	// CreatePermission persists a new permission.
	CreatePermission(ctx context.Context, p *Permission) error

	// GetPermission retrieves a permission by ID.
	GetPermission(ctx context.Context, permID id.PermissionID) (*Permission, error)

	// GetPermissionByName retrieves a permission by its "resource:action" name.
	GetPermissionByName(ctx context.Context, orgID, name string) (*Permission, error)

	// UpdatePermission persists changes to a permission.
	UpdatePermission(ctx context.Context, p *Permission) error

	// DeletePermission removes a permission by ID.
	DeletePermission(ctx context.Context, permID id.PermissionID) error

	// ListPermissions returns permissions matching the filter.
	ListPermissions(ctx context.Context, filter *ListFilter) ([]*Permission, error)

	// CountPermissions returns the number of permissions matching the filter.
	CountPermissions(ctx context.Context, filter *ListFilter) (int64, error)

	// CountPermissionReferences returns how many role attachments and grants
	// currently reference the permission. Used to enforce the no-delete-while-
	// referenced invariant.
	CountPermissionReferences(ctx context.Context, permID id.PermissionID) (int64, error)
}
