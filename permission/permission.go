// Package permission defines the Permission entity and its store interface.
package permission

import (
	"time"

	"github.com/gatewise/gatewise/id"
)

// Scope is the level at which a permission applies.
type Scope string

const (
	// ScopeSystem applies platform-wide.
	ScopeSystem Scope = "system"

	// ScopeOrganization applies within a single organization.
	ScopeOrganization Scope = "organization"

	// ScopeWorkspace applies within a single workspace.
	ScopeWorkspace Scope = "workspace"

	// ScopeResource applies to individual resources.
	ScopeResource Scope = "resource"
)

// Valid reports whether s is a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeSystem, ScopeOrganization, ScopeWorkspace, ScopeResource:
		return true
	}
	return false
}

// Permission represents a specific action allowed on a resource type.
// Its identity is the (Resource, Action) pair; Name is the canonical
// "resource:action" form. A permission is immutable once referenced by
// a role or a grant — deletion is rejected while references exist.
type Permission struct {
	ID          id.PermissionID `json:"id" db:"id"`
	OrgID       string          `json:"org_id" db:"org_id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description,omitempty" db:"description"`
	Resource    string          `json:"resource" db:"resource"`
	Action      string          `json:"action" db:"action"`
	Scope       Scope           `json:"scope" db:"scope"`
	IsSystem    bool            `json:"is_system" db:"is_system"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// CanonicalName returns the "resource:action" permission name.
func CanonicalName(resource, action string) string {
	return resource + ":" + action
}

// ListFilter contains filters for listing permissions.
type ListFilter struct {
	OrgID    string `json:"org_id,omitempty"`
	Resource string `json:"resource,omitempty"`
	Action   string `json:"action,omitempty"`
	Scope    Scope  `json:"scope,omitempty"`
	IsSystem *bool  `json:"is_system,omitempty"`
	Search   string `json:"search,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}
