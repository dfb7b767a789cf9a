// Package conditional defines attribute-based (ABAC) permission grants and
// the boolean expression trees that guard them.
package conditional

import (
	"time"

	"github.com/gatewise/gatewise/id"
)

// Grant is a permission grant that is live only while IsActive is set and
// its expression evaluates true against current attributes.
// ResourceID may be empty, in which case the grant applies to every
// resource of ResourceType (wildcard).
type Grant struct {
	ID           id.ConditionalID `json:"id" db:"id"`
	UserID       string           `json:"user_id" db:"user_id"`
	PermissionID id.PermissionID  `json:"permission_id" db:"permission_id"`
	ResourceType string           `json:"resource_type" db:"resource_type"`
	ResourceID   string           `json:"resource_id,omitempty" db:"resource_id"`
	Expression   *Expression      `json:"expression" db:"-"`
	IsActive     bool             `json:"is_active" db:"is_active"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at" db:"updated_at"`
}

// EvalContext carries the request context an expression is evaluated
// against: the identifiers used to scope attribute lookups plus the
// free-form per-request context attributes.
type EvalContext struct {
	UserID       string
	OrgID        string
	WorkspaceID  string
	ResourceType string
	ResourceID   string
	Context      map[string]any
}

// ListFilter contains filters for listing conditional grants.
type ListFilter struct {
	UserID       string           `json:"user_id,omitempty"`
	PermissionID *id.PermissionID `json:"permission_id,omitempty"`
	ResourceType string           `json:"resource_type,omitempty"`
	IsActive     *bool            `json:"is_active,omitempty"`
	Limit        int              `json:"limit,omitempty"`
	Offset       int              `json:"offset,omitempty"`
}
