package temporal

import (
	"context"

	"github.com/gatewise/gatewise/id"
)

// Store defines persistence operations for time-based grants.
type Store interface {
	// CreateTemporal persists a new time-based grant.
	CreateTemporal(ctx context.Context, g *Grant) error

	// GetTemporal retrieves a time-based grant by ID.
	GetTemporal(ctx context.Context, grantID id.TemporalID) (*Grant, error)

	// UpdateTemporal persists changes to a time-based grant.
	UpdateTemporal(ctx context.Context, g *Grant) error

	// DeleteTemporal removes a time-based grant by ID.
	DeleteTemporal(ctx context.Context, grantID id.TemporalID) error

	// ListTemporals returns time-based grants matching the filter.
	ListTemporals(ctx context.Context, filter *ListFilter) ([]*Grant, error)

	// ListActiveTemporalsForKey returns active-flagged grants matching
	// (userID, permID, resourceType) whose ResourceID equals resourceID or
	// is empty (wildcard). Window/schedule evaluation is the caller's job.
	ListActiveTemporalsForKey(ctx context.Context, userID string, permID id.PermissionID, resourceType, resourceID string) ([]*Grant, error)

	// CountTemporalsByPermission returns how many time-based grants
	// reference the permission. Used by the permission delete guard.
	CountTemporalsByPermission(ctx context.Context, permID id.PermissionID) (int64, error)
}
