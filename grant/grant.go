// Package grant defines direct user→resource permission grants.
//
// A grant is the simple sharing primitive ("share this one flow with this
// one user"): binary existence, no conditions, independent of roles.
package grant

import (
	"time"

	"github.com/gatewise/gatewise/id"
)

// Grant is a direct permission grant on a single resource.
// The (UserID, ResourceType, ResourceID, Permission) tuple is unique.
type Grant struct {
	ID           id.GrantID `json:"id" db:"id"`
	UserID       string     `json:"user_id" db:"user_id"`
	ResourceType string     `json:"resource_type" db:"resource_type"`
	ResourceID   string     `json:"resource_id" db:"resource_id"`
	Permission   string     `json:"permission" db:"permission"`
	GrantedBy    string     `json:"granted_by,omitempty" db:"granted_by"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// ListFilter contains filters for listing grants.
type ListFilter struct {
	UserID       string `json:"user_id,omitempty"`
	ResourceType string `json:"resource_type,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`
	Permission   string `json:"permission,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}
