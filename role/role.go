// Package role defines the Role entity and its store interface for RBAC.
package role

import (
	"time"

	"github.com/gatewise/gatewise/id"
)

// Type distinguishes seeded system roles from organization-defined ones.
type Type string

const (
	// TypeSystem marks a seeded, read-only role.
	TypeSystem Type = "system"

	// TypeCustom marks an organization-defined role.
	TypeCustom Type = "custom"
)

// Role represents an authorization role that can be assigned to users.
//
// A custom role belongs to one organization and may inherit from exactly
// one parent role (tree, not DAG). Version is bumped on every mutation
// and used as the optimistic-concurrency token for conditioned writes.
// A template role is a pattern: it cannot be assigned directly, only
// instantiated, and instantiation copies its permission set (TemplateID
// records provenance with no live link afterward).
type Role struct {
	ID          id.RoleID      `json:"id" db:"id"`
	OrgID       string         `json:"org_id" db:"org_id"`
	Name        string         `json:"name" db:"name"`
	Description string         `json:"description,omitempty" db:"description"`
	Slug        string         `json:"slug" db:"slug"`
	Type        Type           `json:"type" db:"type"`
	Priority    int            `json:"priority" db:"priority"`
	Version     int            `json:"version" db:"version"`
	ParentID    *id.RoleID     `json:"parent_id,omitempty" db:"parent_id"`
	IsTemplate  bool           `json:"is_template" db:"is_template"`
	TemplateID  *id.RoleID     `json:"template_id,omitempty" db:"template_id"`
	Metadata    map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// IsSystem reports whether the role is a seeded, read-only system role.
func (r *Role) IsSystem() bool { return r.Type == TypeSystem }

// ListFilter contains filters for listing roles.
type ListFilter struct {
	OrgID      string     `json:"org_id,omitempty"`
	Type       Type       `json:"type,omitempty"`
	IsTemplate *bool      `json:"is_template,omitempty"`
	ParentID   *id.RoleID `json:"parent_id,omitempty"`
	Search     string     `json:"search,omitempty"`
	Limit      int        `json:"limit,omitempty"`
	Offset     int        `json:"offset,omitempty"`
}
